package progress

import (
	"context"
	"sync"
	"time"

	"github.com/bobarin/montage/internal/models"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// Update is one status transition of a render job.
type Update struct {
	JobID     uuid.UUID        `json:"job_id"`
	Status    models.JobStatus `json:"status"`
	Stage     models.Stage     `json:"stage"`
	Reason    string           `json:"reason,omitempty"`
	OutputURL string           `json:"output_url,omitempty"`
	Output    string           `json:"output_path,omitempty"`
	Time      time.Time        `json:"time"`
}

// Text is the caller-facing status string.
func (u Update) Text() string {
	return models.StatusText(u.Status, u.Stage, u.Reason)
}

// Sink receives updates in publish order from the bus goroutine.
type Sink interface {
	Apply(ctx context.Context, u Update) error
}

type SinkFunc func(ctx context.Context, u Update) error

func (f SinkFunc) Apply(ctx context.Context, u Update) error { return f(ctx, u) }

// Bus carries updates from workers to sinks over a buffered channel with a
// single consumer, so sinks never see concurrent calls.
type Bus struct {
	updates chan Update
	sinks   []Sink

	mu     sync.RWMutex
	closed bool
	done   chan struct{}
}

func NewBus(buffer int, sinks ...Sink) *Bus {
	if buffer < 1 {
		buffer = 64
	}
	return &Bus{
		updates: make(chan Update, buffer),
		sinks:   sinks,
		done:    make(chan struct{}),
	}
}

// Publish enqueues an update. It blocks while the buffer is full and drops
// the update once the bus is closed.
func (b *Bus) Publish(u Update) {
	if u.Time.IsZero() {
		u.Time = time.Now().UTC()
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		log.Warn().Str("component", "progress").Str("job_id", u.JobID.String()).Msg("update after bus close dropped")
		return
	}
	b.updates <- u
}

// Run drains updates until Close is called. Sink errors are logged and do
// not stop delivery to the remaining sinks.
func (b *Bus) Run(ctx context.Context) {
	defer close(b.done)
	for u := range b.updates {
		for _, s := range b.sinks {
			if err := s.Apply(ctx, u); err != nil {
				log.Error().Err(err).
					Str("component", "progress").
					Str("job_id", u.JobID.String()).
					Str("status", u.Text()).
					Msg("sink failed to apply update")
			}
		}
	}
}

// Close stops accepting updates and waits for Run to flush what is queued.
func (b *Bus) Close() {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	b.closed = true
	close(b.updates)
	b.mu.Unlock()
	<-b.done
}
