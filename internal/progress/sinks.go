package progress

import (
	"context"

	"github.com/bobarin/montage/internal/models"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// LogSink writes every update to the global logger.
func LogSink() Sink {
	return SinkFunc(func(_ context.Context, u Update) error {
		ev := log.Info()
		if u.Status == models.JobStatusFailed {
			ev = log.Error()
		}
		ev.Str("component", "job").
			Str("job_id", u.JobID.String()).
			Str("stage", string(u.Stage)).
			Msg(u.Text())
		return nil
	})
}

// JobStore is the persistence the store sink writes through.
type JobStore interface {
	UpdateJobStatus(ctx context.Context, id uuid.UUID, status models.JobStatus, stage models.Stage) error
	UpdateJobError(ctx context.Context, id uuid.UUID, message string) error
	SetOutput(ctx context.Context, id uuid.UUID, path, url string) error
}

// StoreSink mirrors updates into the job table.
func StoreSink(store JobStore) Sink {
	return SinkFunc(func(ctx context.Context, u Update) error {
		if u.Status == models.JobStatusFailed {
			return store.UpdateJobError(ctx, u.JobID, u.Reason)
		}
		if u.Status == models.JobStatusCompleted && u.Output != "" {
			if err := store.SetOutput(ctx, u.JobID, u.Output, u.OutputURL); err != nil {
				return err
			}
		}
		return store.UpdateJobStatus(ctx, u.JobID, u.Status, u.Stage)
	})
}
