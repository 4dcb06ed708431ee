// Package render produces the final deliverable from the composed video,
// the mixed audio and the caption track.
package render

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/bobarin/montage/internal/engine"
	"github.com/bobarin/montage/internal/retry"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// Job is everything the final mux needs.
type Job struct {
	ID            uuid.UUID
	ComposedVideo string
	Audio         string
	Captions      string // optional ASS file
	FontsDir      string
	// Duration is the narration length; anything past it is dropped.
	Duration float64
	Output   string
}

type Orchestrator struct {
	engine engine.Engine
	policy retry.Policy
}

func NewOrchestrator(eng engine.Engine) *Orchestrator {
	policy := retry.FinalRender
	policy.IsFatal = func(err error) bool { return errors.Is(err, engine.ErrEngineUnavailable) }
	return &Orchestrator{engine: eng, policy: policy}
}

// Render muxes the job into its output file, retrying transient engine
// failures. The returned error keeps the engine's diagnostic output.
func (o *Orchestrator) Render(ctx context.Context, job Job) error {
	if job.Duration <= 0 {
		return fmt.Errorf("invalid narration duration %v", job.Duration)
	}
	if err := os.MkdirAll(filepath.Dir(job.Output), 0755); err != nil {
		return fmt.Errorf("failed to create output dir: %w", err)
	}

	logger := log.With().Str("component", "render").Str("job_id", job.ID.String()).Logger()

	spec := engine.MuxSpec{
		Video:     job.ComposedVideo,
		Audio:     job.Audio,
		Subtitles: job.Captions,
		FontsDir:  job.FontsDir,
		Duration:  job.Duration,
		Output:    job.Output,
	}

	var attempts int
	err := o.policy.Do(ctx, func(ctx context.Context, attempt int) error {
		attempts = attempt
		if attempt > 1 {
			logger.Warn().Int("attempt", attempt).Int("max", o.policy.MaxAttempts).Msg("retrying final render")
		}
		return o.engine.Mux(ctx, spec)
	})
	if err != nil {
		if rmErr := os.Remove(job.Output); rmErr != nil && !os.IsNotExist(rmErr) {
			logger.Warn().Err(rmErr).Msg("failed to remove partial output")
		}
		return fmt.Errorf("final render failed after %d attempts: %w", attempts, err)
	}

	logger.Info().Str("output", job.Output).Int("attempts", attempts).Msg("render complete")
	return nil
}
