// Package audio lays the background track under the narration.
package audio

import (
	"context"
	"errors"
	"fmt"
	"math"
	"os"

	"github.com/bobarin/montage/internal/engine"
	"github.com/rs/zerolog/log"
)

// MaxAttenuationDB is the reduction applied at the lowest volume setting
// scale. The percent-to-dB curve is linear and chosen for feel, it is not a
// loudness standard.
const MaxAttenuationDB = 40.0

// PercentToAttenuation maps a background volume percent to dB of reduction:
// 40 * (1 - p/100). p is clamped to [1, 100], so 100 gives 0 dB and 1 gives 39.6 dB.
func PercentToAttenuation(percent int) float64 {
	if percent < 1 {
		percent = 1
	}
	if percent > 100 {
		percent = 100
	}
	return MaxAttenuationDB * (1 - float64(percent)/100)
}

// LoopCount is how many whole plays of the background cover the narration
// before truncation.
func LoopCount(narration, background float64) int {
	if background <= 0 || narration <= 0 {
		return 1
	}
	return int(math.Floor(narration/background)) + 1
}

// MixSpec is the caller's audio request.
type MixSpec struct {
	NarrationPath     string
	NarrationDuration float64
	BackgroundPath    string
	VolumePercent     int
}

// Result is the track handed to the final mux.
type Result struct {
	Path     string
	Duration float64
	// Mixed is false when the narration is passed through unchanged.
	Mixed bool
}

type Mixer struct {
	engine engine.Engine
}

func NewMixer(eng engine.Engine) *Mixer {
	return &Mixer{engine: eng}
}

// Mix writes narration plus background to output. A missing or unreadable
// background is not an error: the narration is returned unchanged.
func (m *Mixer) Mix(ctx context.Context, spec MixSpec, output string) (Result, error) {
	passthrough := Result{Path: spec.NarrationPath, Duration: spec.NarrationDuration}
	if spec.BackgroundPath == "" {
		return passthrough, nil
	}

	logger := log.With().Str("component", "audio").Str("background", spec.BackgroundPath).Logger()

	if _, err := os.Stat(spec.BackgroundPath); err != nil {
		logger.Warn().Err(err).Msg("background music not found, continuing without it")
		return passthrough, nil
	}

	info, err := m.engine.Probe(ctx, spec.BackgroundPath)
	if err != nil || !info.HasAudio || info.Duration <= 0 {
		if ctx.Err() != nil {
			return Result{}, ctx.Err()
		}
		logger.Warn().Err(err).Msg("background music unreadable, continuing without it")
		return passthrough, nil
	}

	mix := engine.MixSpec{
		Narration:     spec.NarrationPath,
		Background:    spec.BackgroundPath,
		Duration:      spec.NarrationDuration,
		Loops:         LoopCount(spec.NarrationDuration, info.Duration),
		AttenuationDB: PercentToAttenuation(spec.VolumePercent),
		Output:        output,
	}

	logger.Info().Int("loops", mix.Loops).Float64("attenuation_db", mix.AttenuationDB).Msg("mixing background")

	if err := m.engine.Mix(ctx, mix); err != nil {
		if errors.Is(err, engine.ErrEngineUnavailable) || ctx.Err() != nil {
			return Result{}, fmt.Errorf("audio mix failed: %w", err)
		}
		logger.Warn().Err(err).Msg("background mix failed, continuing without it")
		return passthrough, nil
	}

	return Result{Path: output, Duration: spec.NarrationDuration, Mixed: true}, nil
}
