package render

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/bobarin/montage/internal/engine"
	"github.com/bobarin/montage/internal/engine/enginetest"
	"github.com/bobarin/montage/internal/retry"
	"github.com/google/uuid"
)

func newJob(t *testing.T) Job {
	return Job{
		ID:            uuid.New(),
		ComposedVideo: "composed.mp4",
		Audio:         "mixed.m4a",
		Captions:      "captions.ass",
		Duration:      20,
		Output:        filepath.Join(t.TempDir(), "out", "video_1.mp4"),
	}
}

func fastOrchestrator(fake *enginetest.Fake) *Orchestrator {
	o := NewOrchestrator(fake)
	o.policy.Backoff = 0
	return o
}

func TestRenderSucceeds(t *testing.T) {
	fake := enginetest.New()
	job := newJob(t)

	if err := fastOrchestrator(fake).Render(context.Background(), job); err != nil {
		t.Fatalf("Render: %v", err)
	}
	if len(fake.Muxed) != 1 {
		t.Fatalf("mux calls = %d", len(fake.Muxed))
	}
	spec := fake.Muxed[0]
	if spec.Duration != 20 || spec.Subtitles != "captions.ass" || spec.Output != job.Output {
		t.Errorf("spec = %+v", spec)
	}
	if _, err := os.Stat(job.Output); err != nil {
		t.Errorf("output missing: %v", err)
	}
}

func TestRenderRetriesThenSucceeds(t *testing.T) {
	fake := enginetest.New()
	fake.MuxErr = func(call int, spec engine.MuxSpec) error {
		if call < 3 {
			return &engine.Error{Op: "mux", Err: errors.New("exit status 1"), Stderr: "Resource temporarily unavailable"}
		}
		return nil
	}

	if err := fastOrchestrator(fake).Render(context.Background(), newJob(t)); err != nil {
		t.Fatalf("Render: %v", err)
	}
	if len(fake.Muxed) != 3 {
		t.Fatalf("mux calls = %d, want 3", len(fake.Muxed))
	}
}

func TestRenderSurfacesDiagnostics(t *testing.T) {
	fake := enginetest.New()
	fake.MuxErr = func(call int, spec engine.MuxSpec) error {
		return &engine.Error{Op: "mux", Err: errors.New("exit status 1"), Stderr: "[Parsed_ass_0] Unable to open captions.ass"}
	}

	err := fastOrchestrator(fake).Render(context.Background(), newJob(t))
	if err == nil {
		t.Fatal("expected error")
	}
	if len(fake.Muxed) != retry.FinalRender.MaxAttempts {
		t.Fatalf("mux calls = %d, want %d", len(fake.Muxed), retry.FinalRender.MaxAttempts)
	}
	if !strings.Contains(err.Error(), "Unable to open captions.ass") {
		t.Errorf("engine output lost: %v", err)
	}
	var engErr *engine.Error
	if !errors.As(err, &engErr) {
		t.Errorf("err does not wrap *engine.Error: %v", err)
	}
}

func TestRenderEngineUnavailableNotRetried(t *testing.T) {
	fake := enginetest.New()
	fake.MuxErr = func(int, engine.MuxSpec) error { return &engine.Error{Op: "mux", Err: engine.ErrEngineUnavailable} }

	err := fastOrchestrator(fake).Render(context.Background(), newJob(t))
	if !errors.Is(err, engine.ErrEngineUnavailable) {
		t.Fatalf("err = %v", err)
	}
	if len(fake.Muxed) != 1 {
		t.Fatalf("mux calls = %d, want 1", len(fake.Muxed))
	}
}

func TestRenderRejectsZeroDuration(t *testing.T) {
	job := newJob(t)
	job.Duration = 0
	if err := fastOrchestrator(enginetest.New()).Render(context.Background(), job); err == nil {
		t.Fatal("expected error")
	}
}
