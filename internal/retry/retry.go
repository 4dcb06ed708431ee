package retry

import (
	"context"
	"errors"
	"time"

	"github.com/eapache/go-resiliency/retrier"
)

// Policy is the single retry rule used for asset selection, final render,
// temp-file cleanup and uploads. Only the parameters differ between call sites.
type Policy struct {
	// MaxAttempts counts the first try. Values below 1 mean one attempt.
	MaxAttempts int
	// Backoff is the wait between attempts (the initial wait when Exponential is set).
	Backoff     time.Duration
	Exponential bool
	// Jitter spreads each wait by up to this fraction (0..1).
	Jitter float64
	// IsFatal stops retrying when it reports true. Context errors and errors
	// wrapped with Fatal always stop.
	IsFatal func(error) bool
}

// Preset policies
var (
	AssetSelection = Policy{MaxAttempts: 5}
	FinalRender    = Policy{MaxAttempts: 3, Backoff: 1500 * time.Millisecond}
	Cleanup        = Policy{MaxAttempts: 5, Backoff: 200 * time.Millisecond}
	Upload         = Policy{MaxAttempts: 5, Backoff: time.Second, Exponential: true, Jitter: 0.25}
)

// Do runs op until it succeeds, returns a fatal error, or the attempts are
// used up. attempt starts at 1. The last error is returned unchanged.
func (p Policy) Do(ctx context.Context, op func(ctx context.Context, attempt int) error) error {
	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	var backoff []time.Duration
	if p.Exponential {
		backoff = retrier.ExponentialBackoff(attempts-1, p.Backoff)
	} else {
		backoff = retrier.ConstantBackoff(attempts-1, p.Backoff)
	}

	r := retrier.New(backoff, classifier{isFatal: p.IsFatal})
	if p.Jitter > 0 {
		r.SetJitter(p.Jitter)
	}

	attempt := 0
	err := r.RunCtx(ctx, func(ctx context.Context) error {
		attempt++
		return op(ctx, attempt)
	})

	var fe *fatalError
	if errors.As(err, &fe) {
		return fe.err
	}
	return err
}

// Fatal marks err so that Do stops retrying immediately.
func Fatal(err error) error {
	if err == nil {
		return nil
	}
	return &fatalError{err: err}
}

type fatalError struct {
	err error
}

func (e *fatalError) Error() string { return e.err.Error() }
func (e *fatalError) Unwrap() error { return e.err }

type classifier struct {
	isFatal func(error) bool
}

func (c classifier) Classify(err error) retrier.Action {
	if err == nil {
		return retrier.Succeed
	}

	var fe *fatalError
	if errors.As(err, &fe) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return retrier.Fail
	}
	if c.isFatal != nil && c.isFatal(err) {
		return retrier.Fail
	}
	return retrier.Retry
}
