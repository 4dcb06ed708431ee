// Package segment normalizes randomly chosen source assets into canonical,
// fixed-length segments.
package segment

import (
	"context"
	"errors"
	"fmt"
	"math/rand"

	"github.com/bobarin/montage/internal/engine"
	"github.com/bobarin/montage/internal/media"
	"github.com/bobarin/montage/internal/retry"
	"github.com/bobarin/montage/internal/timeline"
	"github.com/bobarin/montage/internal/workspace"
	"github.com/rs/zerolog/log"
)

// ErrSlotFailed means no asset could be rendered for a slot. It aborts the job.
var ErrSlotFailed = errors.New("no renderable asset for segment")

// Rendered is a normalized segment on disk.
type Rendered struct {
	SlotIndex int
	Path      string
	HasAudio  bool
	Duration  float64
	Source    string
}

type Options struct {
	Size engine.Resolution
	Mode engine.CropMode
	// HoldShortClips freezes the last frame of clips shorter than their slot.
	HoldShortClips bool
	FPS            int
}

type Renderer struct {
	engine engine.Engine
	opts   Options
	policy retry.Policy
}

func NewRenderer(eng engine.Engine, opts Options) *Renderer {
	policy := retry.AssetSelection
	policy.IsFatal = func(err error) bool { return errors.Is(err, engine.ErrEngineUnavailable) }
	return &Renderer{engine: eng, opts: opts, policy: policy}
}

// Render normalizes one asset into output for the slot's duration.
func (r *Renderer) Render(ctx context.Context, asset media.Asset, slot timeline.Slot, output string) (Rendered, error) {
	spec := engine.NormalizeSpec{
		Input:         asset.Path,
		Still:         asset.Kind == media.KindImage,
		Duration:      slot.Duration,
		HoldLastFrame: r.opts.HoldShortClips,
		KeepAudio:     asset.Kind == media.KindClip && asset.HasAudio,
		Size:          r.opts.Size,
		Mode:          r.opts.Mode,
		FPS:           r.opts.FPS,
		Output:        output,
	}
	if asset.Kind == media.KindClip {
		spec.SourceDuration = asset.Duration
	}

	if err := r.engine.Normalize(ctx, spec); err != nil {
		return Rendered{}, fmt.Errorf("render %s: %w", asset.Path, err)
	}

	duration := slot.Duration
	if spec.SourceDuration > 0 && spec.SourceDuration < duration && !r.opts.HoldShortClips {
		duration = spec.SourceDuration
	}

	return Rendered{
		SlotIndex: slot.Index,
		Path:      output,
		HasAudio:  spec.KeepAudio,
		Duration:  duration,
		Source:    asset.Path,
	}, nil
}

// Selection is the per-job random source plus the assets that already
// failed, so a broken file is not retried in later slots.
type Selection struct {
	Catalog *media.Catalog
	Rand    *rand.Rand
	bad     map[string]bool
}

func NewSelection(cat *media.Catalog, seed int64) *Selection {
	return &Selection{Catalog: cat, Rand: rand.New(rand.NewSource(seed)), bad: make(map[string]bool)}
}

// RenderSlot keeps drawing random assets until one renders. After the
// retry budget is spent the slot fails with ErrSlotFailed.
func (r *Renderer) RenderSlot(ctx context.Context, sel *Selection, slot timeline.Slot, output string) (Rendered, error) {
	logger := log.With().Str("component", "segment").Int("slot", slot.Index).Logger()

	var out Rendered
	var attempts int
	err := r.policy.Do(ctx, func(ctx context.Context, attempt int) error {
		attempts = attempt
		asset, ok := sel.Catalog.Pick(sel.Rand, sel.bad)
		if !ok {
			return retry.Fatal(fmt.Errorf("every asset in the catalog failed"))
		}

		rendered, err := r.Render(ctx, asset, slot, output)
		if err != nil {
			sel.bad[asset.Path] = true
			logger.Warn().Err(err).Int("attempt", attempt).Str("asset", asset.Path).Msg("asset failed, picking another")
			return err
		}
		out = rendered
		return nil
	})
	if err != nil {
		if errors.Is(err, engine.ErrEngineUnavailable) || ctx.Err() != nil {
			return Rendered{}, err
		}
		return Rendered{}, fmt.Errorf("%w: slot %d after %d attempts: %v", ErrSlotFailed, slot.Index, attempts, err)
	}
	return out, nil
}

// RenderAll renders every slot of the plan in order.
func (r *Renderer) RenderAll(ctx context.Context, sel *Selection, plan timeline.Plan, ws *workspace.Workspace) ([]Rendered, error) {
	segments := make([]Rendered, 0, len(plan.Slots))
	for _, slot := range plan.Slots {
		seg, err := r.RenderSlot(ctx, sel, slot, ws.SegmentPath(slot.Index))
		if err != nil {
			return nil, err
		}
		segments = append(segments, seg)
	}
	return segments, nil
}
