// Package compose chains rendered segments into one continuous stream with
// randomized transitions.
package compose

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"os"

	"github.com/bobarin/montage/internal/engine"
	"github.com/bobarin/montage/internal/segment"
	"github.com/rs/zerolog/log"
)

// DefaultEffects are xfade transition names.
var DefaultEffects = []string{
	"fade",
	"dissolve",
	"wipeleft",
	"wiperight",
	"wipeup",
	"wipedown",
	"slideleft",
	"slideright",
	"slideup",
	"slidedown",
	"circleopen",
	"circleclose",
}

var ErrNoSegments = errors.New("no segments to compose")

// Result is the composed stream on disk.
type Result struct {
	Path     string
	Duration float64
	HasAudio bool
	Effects  []string
}

type Compositor struct {
	engine  engine.Engine
	effects []string
}

func NewCompositor(eng engine.Engine, effects []string) *Compositor {
	if len(effects) == 0 {
		effects = DefaultEffects
	}
	return &Compositor{engine: eng, effects: effects}
}

// Compose joins segments in order. Every adjacent pair is blended with one
// randomly chosen effect. Any engine failure here is fatal for the job.
func (c *Compositor) Compose(ctx context.Context, segments []segment.Rendered, transition float64, rng *rand.Rand, output string) (Result, error) {
	if len(segments) == 0 {
		return Result{}, ErrNoSegments
	}

	if len(segments) == 1 {
		if err := os.Rename(segments[0].Path, output); err != nil {
			return Result{}, fmt.Errorf("failed to move single segment: %w", err)
		}
		return Result{Path: output, Duration: segments[0].Duration, HasAudio: segments[0].HasAudio}, nil
	}

	spec, duration := BuildSpec(segments, transition, c.pickEffects(rng, len(segments)-1), output)

	log.Info().Str("component", "compose").Int("segments", len(segments)).
		Float64("transition", transition).Float64("duration", duration).
		Int("audio_links", len(spec.Audio.Links)).Msg("compositing")

	if err := c.engine.Crossfade(ctx, spec); err != nil {
		return Result{}, fmt.Errorf("composition failed: %w", err)
	}

	effects := make([]string, len(spec.Video))
	for i, tr := range spec.Video {
		effects[i] = tr.Effect
	}
	return Result{Path: output, Duration: duration, HasAudio: len(spec.Audio.Links) > 0, Effects: effects}, nil
}

func (c *Compositor) pickEffects(rng *rand.Rand, n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = c.effects[rng.Intn(len(c.effects))]
	}
	return out
}

// BuildSpec lays out the transition chain and returns it with the composed
// duration.
//
// Transition i starts where the running stream ends minus the overlap, so
// with equal segment lengths d it sits at i*(d-t). Audio follows the same
// timeline: adjacent audio-bearing segments crossfade, a run of silent
// segments becomes padded silence, and audio that only starts later is
// delayed to its segment's start.
func BuildSpec(segments []segment.Rendered, transition float64, effects []string, output string) (engine.CrossfadeSpec, float64) {
	spec := engine.CrossfadeSpec{
		Inputs: make([]string, len(segments)),
		Video:  make([]engine.VideoTransition, 0, len(segments)-1),
		Output: output,
	}

	starts := make([]float64, len(segments))
	overlaps := make([]float64, len(segments))
	end := 0.0
	for i, seg := range segments {
		spec.Inputs[i] = seg.Path
		if i == 0 {
			end = seg.Duration
			continue
		}

		// A transition can never be longer than half of either neighbour.
		t := math.Min(transition, 0.5*math.Min(segments[i-1].Duration, seg.Duration))
		if t < 0 {
			t = 0
		}
		offset := end - t
		spec.Video = append(spec.Video, engine.VideoTransition{Effect: effects[i-1], Duration: t, Offset: offset})

		starts[i] = offset
		overlaps[i] = t
		end = offset + seg.Duration
	}

	last := -1
	for i, seg := range segments {
		if !seg.HasAudio {
			continue
		}
		switch {
		case last < 0:
			spec.Audio.Lead = starts[i]
			spec.Audio.Links = append(spec.Audio.Links, engine.AudioLink{Input: i, Kind: engine.LinkStart})
		case last == i-1:
			spec.Audio.Links = append(spec.Audio.Links, engine.AudioLink{Input: i, Kind: engine.LinkCrossfade, Duration: overlaps[i]})
		default:
			gap := starts[i] - (starts[last] + segments[last].Duration)
			if gap < 0 {
				gap = 0
			}
			spec.Audio.Links = append(spec.Audio.Links, engine.AudioLink{Input: i, Kind: engine.LinkGap, Duration: gap})
		}
		last = i
	}

	return spec, end
}
