package worker

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/bobarin/montage/internal/audio"
	"github.com/bobarin/montage/internal/captions"
	"github.com/bobarin/montage/internal/compose"
	"github.com/bobarin/montage/internal/engine"
	"github.com/bobarin/montage/internal/media"
	"github.com/bobarin/montage/internal/models"
	"github.com/bobarin/montage/internal/render"
	"github.com/bobarin/montage/internal/segment"
	"github.com/bobarin/montage/internal/timeline"
	"github.com/bobarin/montage/internal/workspace"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

// Publisher uploads a finished video and returns where it can be fetched.
type Publisher interface {
	Publish(ctx context.Context, jobID uuid.UUID, path string) (string, error)
}

// PipelineOptions are the process-wide render settings.
type PipelineOptions struct {
	TempDir        string
	FontsDir       string
	Pacing         timeline.Pacing
	HoldShortClips bool
	FPS            int
	// Seed returns the random seed for a job. Defaults to the wall clock.
	Seed func(jobID uuid.UUID) int64
}

// Result describes a finished render.
type Result struct {
	Output    string
	URL       string
	Duration  float64
	Plan      timeline.Plan
	Effects   []string
	Mixed     bool
	Captioned bool
}

// Pipeline runs one job's stages in order: plan, render segments,
// composite, mix and caption, mux, publish.
type Pipeline struct {
	engine       engine.Engine
	mixer        *audio.Mixer
	orchestrator *render.Orchestrator
	publisher    Publisher
	opts         PipelineOptions
}

func NewPipeline(eng engine.Engine, publisher Publisher, opts PipelineOptions) *Pipeline {
	if opts.Pacing == (timeline.Pacing{}) {
		opts.Pacing = timeline.DefaultPacing
	}
	if opts.Seed == nil {
		opts.Seed = func(uuid.UUID) int64 { return time.Now().UnixNano() }
	}
	return &Pipeline{
		engine:       eng,
		mixer:        audio.NewMixer(eng),
		orchestrator: render.NewOrchestrator(eng),
		publisher:    publisher,
		opts:         opts,
	}
}

// Run renders req. report is called at each stage boundary. All temporary
// files are removed before Run returns.
func (p *Pipeline) Run(ctx context.Context, jobID uuid.UUID, req models.RenderRequest, report func(models.Stage)) (Result, error) {
	if report == nil {
		report = func(models.Stage) {}
	}
	req = req.WithDefaults()
	logger := log.With().Str("component", "pipeline").Str("job_id", jobID.String()).Logger()

	report(models.StagePlanning)

	ws, err := workspace.New(p.opts.TempDir, jobID)
	if err != nil {
		return Result{}, err
	}
	defer ws.Cleanup()

	narration, err := p.narrationDuration(ctx, req)
	if err != nil {
		return Result{}, err
	}

	catalog, err := media.Scan(ctx, req.MediaDir, p.engine)
	if err != nil {
		return Result{}, err
	}

	plan, err := timeline.New(narration, p.pacing(req.Pacing))
	if err != nil {
		return Result{}, err
	}
	logger.Info().
		Float64("narration", narration).
		Int("segments", plan.SegmentCount).
		Float64("segment_duration", plan.SegmentDuration).
		Float64("transition", plan.TransitionDuration).
		Int("images", catalog.Count(media.KindImage)).
		Int("clips", catalog.Count(media.KindClip)).
		Msg("timeline planned")

	report(models.StageSegments)

	size := req.Orientation.Resolution()
	renderer := segment.NewRenderer(p.engine, segment.Options{
		Size:           size,
		Mode:           req.CropMode,
		HoldShortClips: p.opts.HoldShortClips,
		FPS:            p.opts.FPS,
	})
	sel := segment.NewSelection(catalog, p.opts.Seed(jobID))

	segments, err := renderer.RenderAll(ctx, sel, plan, ws)
	if err != nil {
		return Result{}, err
	}

	report(models.StageCompositing)

	compositor := compose.NewCompositor(p.engine, req.Transitions)
	composed, err := compositor.Compose(ctx, segments, plan.TransitionDuration, sel.Rand, ws.Path("composed.mp4"))
	if err != nil {
		return Result{}, err
	}
	if drift := math.Abs(composed.Duration - narration); drift > 0.05 {
		logger.Warn().Float64("composed", composed.Duration).Float64("narration", narration).Msg("composed length drifts from narration")
	}

	paths := make([]string, len(segments))
	for i, s := range segments {
		paths[i] = s.Path
	}
	ws.Remove(ctx, paths...)

	report(models.StageMixing)
	wantCaptions := req.Captions != nil && len(req.Timings) > 0
	if wantCaptions {
		report(models.StageCaptioning)
	}

	var mixed audio.Result
	var captionPath string

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		spec := audio.MixSpec{NarrationPath: req.NarrationPath, NarrationDuration: narration}
		if req.Background != nil {
			spec.BackgroundPath = req.Background.Path
			spec.VolumePercent = req.Background.VolumePercent
		}
		var err error
		mixed, err = p.mixer.Mix(gctx, spec, ws.Path("mixed.m4a"))
		return err
	})
	if wantCaptions {
		g.Go(func() error {
			doc, err := captions.Build(req.Timings, req.Captions.WithDefaults(), size.Width, size.Height)
			if err != nil {
				return fmt.Errorf("caption build failed: %w", err)
			}
			path := ws.Path("captions.ass")
			if err := doc.WriteFile(path); err != nil {
				return fmt.Errorf("caption write failed: %w", err)
			}
			captionPath = path
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return Result{}, err
	}

	report(models.StageMuxing)

	err = p.orchestrator.Render(ctx, render.Job{
		ID:            jobID,
		ComposedVideo: composed.Path,
		Audio:         mixed.Path,
		Captions:      captionPath,
		FontsDir:      p.opts.FontsDir,
		Duration:      narration,
		Output:        req.OutputPath,
	})
	if err != nil {
		return Result{}, err
	}

	result := Result{
		Output:    req.OutputPath,
		Duration:  narration,
		Plan:      plan,
		Effects:   composed.Effects,
		Mixed:     mixed.Mixed,
		Captioned: captionPath != "",
	}

	if req.Publish {
		if p.publisher == nil {
			logger.Warn().Msg("publish requested but no object storage is configured")
		} else {
			report(models.StagePublishing)
			url, err := p.publisher.Publish(ctx, jobID, req.OutputPath)
			if err != nil {
				if errors.Is(err, context.Canceled) {
					return Result{}, err
				}
				logger.Warn().Err(err).Msg("publish failed, output kept locally")
			} else {
				result.URL = url
			}
		}
	}

	return result, nil
}

func (p *Pipeline) narrationDuration(ctx context.Context, req models.RenderRequest) (float64, error) {
	if req.NarrationDuration > 0 {
		return req.NarrationDuration, nil
	}
	info, err := p.engine.Probe(ctx, req.NarrationPath)
	if err != nil {
		return 0, fmt.Errorf("failed to probe narration: %w", err)
	}
	if !info.HasAudio {
		return 0, fmt.Errorf("narration %s has no audio stream", req.NarrationPath)
	}
	return info.Duration, nil
}

func (p *Pipeline) pacing(override *models.Pacing) timeline.Pacing {
	pacing := p.opts.Pacing
	if override == nil {
		return pacing
	}
	if override.TargetSegmentSeconds > 0 {
		pacing.TargetSegment = override.TargetSegmentSeconds
	}
	if override.MaxTransitionSeconds > 0 {
		pacing.MaxTransition = override.MaxTransitionSeconds
	}
	return pacing
}
