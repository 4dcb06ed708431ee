package segment

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/bobarin/montage/internal/engine"
	"github.com/bobarin/montage/internal/engine/enginetest"
	"github.com/bobarin/montage/internal/media"
	"github.com/bobarin/montage/internal/timeline"
	"github.com/bobarin/montage/internal/workspace"
	"github.com/google/uuid"
)

func newRenderer(fake *enginetest.Fake, hold bool) *Renderer {
	return NewRenderer(fake, Options{Size: engine.Vertical, Mode: engine.FillCrop, HoldShortClips: hold})
}

func TestRenderImage(t *testing.T) {
	fake := enginetest.New()
	r := newRenderer(fake, true)

	out := t.TempDir() + "/seg.mp4"
	seg, err := r.Render(context.Background(), media.Asset{Path: "a.png", Kind: media.KindImage}, timeline.Slot{Index: 2, Duration: 4.2}, out)
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if seg.HasAudio || seg.Duration != 4.2 || seg.SlotIndex != 2 || seg.Path != out {
		t.Errorf("unexpected segment %+v", seg)
	}
	spec := fake.Normalized[0]
	if !spec.Still || spec.KeepAudio || spec.SourceDuration != 0 {
		t.Errorf("unexpected spec %+v", spec)
	}
}

func TestRenderShortClip(t *testing.T) {
	clip := media.Asset{Path: "c.mp4", Kind: media.KindClip, Duration: 2.5, HasAudio: true}
	slot := timeline.Slot{Duration: 4}

	tests := []struct {
		hold bool
		want float64
	}{
		{hold: false, want: 2.5},
		{hold: true, want: 4},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("hold=%v", tt.hold), func(t *testing.T) {
			fake := enginetest.New()
			seg, err := newRenderer(fake, tt.hold).Render(context.Background(), clip, slot, t.TempDir()+"/s.mp4")
			if err != nil {
				t.Fatalf("Render: %v", err)
			}
			if seg.Duration != tt.want {
				t.Errorf("duration = %v, want %v", seg.Duration, tt.want)
			}
			if !seg.HasAudio {
				t.Error("clip audio dropped")
			}
			if fake.Normalized[0].Still {
				t.Error("clips must never be looped as stills")
			}
		})
	}
}

func corruptCatalog(n int) *media.Catalog {
	assets := make([]media.Asset, n)
	for i := range assets {
		assets[i] = media.Asset{Path: fmt.Sprintf("bad_%d.png", i), Kind: media.KindImage}
	}
	return media.NewCatalog(assets)
}

func TestRenderSlotFailsAfterFiveAttempts(t *testing.T) {
	fake := enginetest.New()
	fake.NormalizeErr = func(spec engine.NormalizeSpec) error {
		return &engine.Error{Op: "normalize", Err: errors.New("exit status 1"), Stderr: "Invalid data found"}
	}

	sel := NewSelection(corruptCatalog(10), 42)
	_, err := newRenderer(fake, true).RenderSlot(context.Background(), sel, timeline.Slot{Index: 0, Duration: 4}, t.TempDir()+"/s.mp4")
	if !errors.Is(err, ErrSlotFailed) {
		t.Fatalf("err = %v, want ErrSlotFailed", err)
	}
	if len(fake.Normalized) != 5 {
		t.Fatalf("attempts = %d, want 5", len(fake.Normalized))
	}

	seen := map[string]bool{}
	for _, spec := range fake.Normalized {
		if seen[spec.Input] {
			t.Errorf("failed asset %s retried", spec.Input)
		}
		seen[spec.Input] = true
	}
}

func TestRenderSlotExhaustedCatalog(t *testing.T) {
	fake := enginetest.New()
	fake.NormalizeErr = func(engine.NormalizeSpec) error { return errors.New("corrupt") }

	sel := NewSelection(corruptCatalog(2), 1)
	_, err := newRenderer(fake, true).RenderSlot(context.Background(), sel, timeline.Slot{Duration: 4}, t.TempDir()+"/s.mp4")
	if !errors.Is(err, ErrSlotFailed) {
		t.Fatalf("err = %v, want ErrSlotFailed", err)
	}
	if len(fake.Normalized) != 2 {
		t.Fatalf("attempts = %d, want 2", len(fake.Normalized))
	}
}

func TestRenderSlotRecoversFromBadAsset(t *testing.T) {
	cat := media.NewCatalog([]media.Asset{
		{Path: "bad.png", Kind: media.KindImage},
		{Path: "good.png", Kind: media.KindImage},
	})
	fake := enginetest.New()
	fake.NormalizeErr = func(spec engine.NormalizeSpec) error {
		if spec.Input == "bad.png" {
			return errors.New("corrupt")
		}
		return nil
	}

	for seed := int64(0); seed < 10; seed++ {
		sel := NewSelection(cat, seed)
		seg, err := newRenderer(fake, true).RenderSlot(context.Background(), sel, timeline.Slot{Duration: 4}, t.TempDir()+"/s.mp4")
		if err != nil {
			t.Fatalf("seed %d: %v", seed, err)
		}
		if seg.Source != "good.png" {
			t.Fatalf("seed %d: source = %s", seed, seg.Source)
		}
	}
}

func TestRenderSlotEngineUnavailableIsFatal(t *testing.T) {
	fake := enginetest.New()
	fake.NormalizeErr = func(engine.NormalizeSpec) error {
		return &engine.Error{Op: "normalize", Err: engine.ErrEngineUnavailable}
	}

	sel := NewSelection(corruptCatalog(10), 3)
	_, err := newRenderer(fake, true).RenderSlot(context.Background(), sel, timeline.Slot{Duration: 4}, t.TempDir()+"/s.mp4")
	if !errors.Is(err, engine.ErrEngineUnavailable) {
		t.Fatalf("err = %v, want ErrEngineUnavailable", err)
	}
	if len(fake.Normalized) != 1 {
		t.Fatalf("attempts = %d, want 1", len(fake.Normalized))
	}
}

func TestRenderAll(t *testing.T) {
	fake := enginetest.New()
	ws, err := workspace.New(t.TempDir(), uuid.New())
	if err != nil {
		t.Fatal(err)
	}
	plan, err := timeline.New(20, timeline.DefaultPacing)
	if err != nil {
		t.Fatal(err)
	}

	cat := media.NewCatalog([]media.Asset{{Path: "a.png", Kind: media.KindImage}, {Path: "b.mp4", Kind: media.KindClip, Duration: 30}})
	segs, err := newRenderer(fake, true).RenderAll(context.Background(), NewSelection(cat, 9), plan, ws)
	if err != nil {
		t.Fatalf("RenderAll: %v", err)
	}
	if len(segs) != plan.SegmentCount {
		t.Fatalf("got %d segments, want %d", len(segs), plan.SegmentCount)
	}
	for i, s := range segs {
		if s.SlotIndex != i || s.Path != ws.SegmentPath(i) {
			t.Errorf("segment %d = %+v", i, s)
		}
	}
}
