package worker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/bobarin/montage/internal/models"
	"github.com/bobarin/montage/internal/progress"
	"github.com/bobarin/montage/internal/queue"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

const (
	DefaultConcurrency = 2
	MaxConcurrency     = 3
)

// ClampConcurrency keeps the pool between one and MaxConcurrency workers.
// Zero selects the default.
func ClampConcurrency(n int) int {
	switch {
	case n == 0:
		return DefaultConcurrency
	case n < 1:
		return 1
	case n > MaxConcurrency:
		return MaxConcurrency
	}
	return n
}

// Source hands out queued job ids.
type Source interface {
	Dequeue(ctx context.Context, timeout time.Duration) (*queue.Job, error)
}

// Store loads the request behind a job id.
type Store interface {
	GetJob(ctx context.Context, id uuid.UUID) (*models.RenderJob, error)
}

// Reporter receives status updates. progress.Bus satisfies it.
type Reporter interface {
	Publish(u progress.Update)
}

type Worker struct {
	source   Source
	store    Store
	pipeline *Pipeline
	reporter Reporter

	pollTimeout time.Duration

	// jobs is the context running jobs use. It outlives the dequeue loop so
	// a shutdown lets jobs in flight finish until Abort is called.
	jobs   context.Context
	cancel context.CancelFunc
	once   sync.Once
}

func New(source Source, store Store, pipeline *Pipeline, reporter Reporter) *Worker {
	jobs, cancel := context.WithCancel(context.Background())
	return &Worker{
		source:      source,
		store:       store,
		pipeline:    pipeline,
		reporter:    reporter,
		pollTimeout: 5 * time.Second,
		jobs:        jobs,
		cancel:      cancel,
	}
}

// Start runs concurrency dequeue loops until ctx is cancelled, then waits
// for the jobs in flight.
func (w *Worker) Start(ctx context.Context, concurrency int) error {
	concurrency = ClampConcurrency(concurrency)
	log.Info().Str("component", "worker").Int("concurrency", concurrency).Msg("worker started")

	g := new(errgroup.Group)
	g.SetLimit(concurrency)
	for i := 0; i < concurrency; i++ {
		slot := i
		g.Go(func() error {
			w.processQueue(ctx, slot)
			return nil
		})
	}

	err := g.Wait()
	log.Info().Str("component", "worker").Msg("worker stopped")
	return err
}

// Abort cancels jobs still running after shutdown.
func (w *Worker) Abort() {
	w.once.Do(w.cancel)
}

func (w *Worker) processQueue(ctx context.Context, slot int) {
	logger := log.With().Str("component", "worker").Int("slot", slot).Logger()
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		job, err := w.source.Dequeue(ctx, w.pollTimeout)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			logger.Error().Err(err).Msg("error dequeuing")
			sleep(ctx, time.Second)
			continue
		}
		if job == nil {
			continue
		}

		w.handle(job.ID, logger)
	}
}

func (w *Worker) handle(id uuid.UUID, logger zerolog.Logger) {
	record, err := w.store.GetJob(w.jobs, id)
	if err != nil {
		logger.Error().Err(err).Str("job_id", id.String()).Msg("failed to load job")
		return
	}
	if record.Status.Terminal() {
		logger.Warn().Str("job_id", id.String()).Str("status", string(record.Status)).Msg("skipping finished job")
		return
	}

	w.Process(w.jobs, id, record.Request)
}

// Process runs one job through the pipeline and reports every transition,
// ending with "completed" or "failed: <reason>". A panic inside the
// pipeline fails only this job.
func (w *Worker) Process(ctx context.Context, id uuid.UUID, req models.RenderRequest) (res Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("internal error: %v", r)
			log.Error().Str("component", "worker").Str("job_id", id.String()).Interface("panic", r).Msg("job panicked")
		}
		if err != nil {
			w.reporter.Publish(progress.Update{
				JobID:  id,
				Status: models.JobStatusFailed,
				Stage:  models.StageDone,
				Reason: err.Error(),
			})
			return
		}
		w.reporter.Publish(progress.Update{
			JobID:     id,
			Status:    models.JobStatusCompleted,
			Stage:     models.StageDone,
			Output:    res.Output,
			OutputURL: res.URL,
		})
	}()

	report := func(stage models.Stage) {
		w.reporter.Publish(progress.Update{JobID: id, Status: models.JobStatusProcessing, Stage: stage})
	}
	return w.pipeline.Run(ctx, id, req, report)
}

func sleep(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
