package intake

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/IBM/sarama"
)

// fakeGroup fails the first Consume, then runs one short session, then a
// session that lasts until the context ends.
type fakeGroup struct {
	sarama.ConsumerGroup
	calls  atomic.Int32
	joined chan struct{}
	errs   chan error
}

func (f *fakeGroup) Consume(ctx context.Context, _ []string, handler sarama.ConsumerGroupHandler) error {
	switch f.calls.Add(1) {
	case 1:
		return errors.New("kafka: topic not found")
	case 2:
		return handler.Setup(nil)
	default:
		if err := handler.Setup(nil); err != nil {
			return err
		}
		close(f.joined)
		<-ctx.Done()
		return ctx.Err()
	}
}

func (f *fakeGroup) Errors() <-chan error { return f.errs }

func (f *fakeGroup) Close() error {
	close(f.errs)
	return nil
}

func TestConsumerStartSurvivesFailedConsume(t *testing.T) {
	prev := consumeRetryWait
	consumeRetryWait = time.Millisecond
	t.Cleanup(func() { consumeRetryWait = prev })

	group := &fakeGroup{joined: make(chan struct{}), errs: make(chan error)}
	c := &Consumer{
		group:   group,
		handler: &MessageHandler{},
		topic:   "render-requests",
		groupID: "montage",
		ready:   make(chan struct{}),
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	started := make(chan error, 1)
	go func() { started <- c.Start(ctx) }()

	select {
	case err := <-started:
		if err != nil {
			t.Fatalf("Start() error = %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Start() did not return after the group recovered")
	}

	select {
	case <-group.joined:
	case <-time.After(2 * time.Second):
		t.Fatalf("group was not rejoined after a session ended, calls = %d", group.calls.Load())
	}

	if err := c.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
}

func TestConsumerStartCanceled(t *testing.T) {
	prev := consumeRetryWait
	consumeRetryWait = time.Hour
	t.Cleanup(func() { consumeRetryWait = prev })

	group := &fakeGroup{joined: make(chan struct{}), errs: make(chan error)}
	c := &Consumer{group: group, handler: &MessageHandler{}, ready: make(chan struct{})}

	ctx, cancel := context.WithCancel(context.Background())
	started := make(chan error, 1)
	go func() { started <- c.Start(ctx) }()

	for group.calls.Load() == 0 {
		time.Sleep(time.Millisecond)
	}
	cancel()

	select {
	case err := <-started:
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("Start() error = %v, want context.Canceled", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Start() did not return after cancel")
	}
	c.Close()
}
