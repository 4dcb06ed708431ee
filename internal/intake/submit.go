// Package intake turns render requests from any caller into queued jobs.
package intake

import (
	"context"
	"fmt"

	"github.com/bobarin/montage/internal/models"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

type JobCreator interface {
	CreateJob(ctx context.Context, job *models.RenderJob) error
}

type Enqueuer interface {
	Enqueue(ctx context.Context, jobID uuid.UUID) error
}

// Submitter is the single path from a request to a queued job, shared by
// the HTTP API and the Kafka consumer.
type Submitter struct {
	store JobCreator
	queue Enqueuer
}

func NewSubmitter(store JobCreator, queue Enqueuer) *Submitter {
	return &Submitter{store: store, queue: queue}
}

// Submit validates req, persists a pending job and queues it. Validation
// failures wrap models.ErrInvalidRequest.
func (s *Submitter) Submit(ctx context.Context, req models.RenderRequest) (*models.RenderJob, error) {
	req = req.WithDefaults()
	if err := req.Validate(); err != nil {
		return nil, err
	}

	job := &models.RenderJob{
		ID:      uuid.New(),
		Status:  models.JobStatusPending,
		Stage:   models.StageQueued,
		Request: req,
	}

	if err := s.store.CreateJob(ctx, job); err != nil {
		return nil, fmt.Errorf("failed to create job: %w", err)
	}

	if err := s.queue.Enqueue(ctx, job.ID); err != nil {
		return nil, fmt.Errorf("failed to enqueue job: %w", err)
	}

	log.Info().Str("component", "intake").Str("job_id", job.ID.String()).Str("output", req.OutputPath).Msg("job queued")
	return job, nil
}
