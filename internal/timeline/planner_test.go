package timeline

import (
	"errors"
	"math"
	"testing"
)

const epsilon = 0.05

func TestNewTwentySecondNarration(t *testing.T) {
	plan, err := New(20.0, Pacing{TargetSegment: 4.5, MaxTransition: 1.2})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if plan.SegmentDuration < 3.8 || plan.SegmentDuration > 5.2 {
		t.Fatalf("segment duration %.3f outside [3.8, 5.2]", plan.SegmentDuration)
	}
	if plan.SegmentCount != 5 {
		t.Errorf("segment count = %d, want 5", plan.SegmentCount)
	}
	if got := plan.ComposedDuration(); math.Abs(got-20.0) > epsilon {
		t.Errorf("composed duration = %.3f, want 20.0", got)
	}
}

func TestNewInvariants(t *testing.T) {
	durations := []float64{0.3, 1, 2.5, 4.4, 4.5, 7, 9.99, 13, 20, 31.7, 45, 60, 90, 180, 600}

	for _, total := range durations {
		plan, err := New(total, DefaultPacing)
		if err != nil {
			t.Fatalf("New(%v): %v", total, err)
		}
		if plan.SegmentCount < 1 {
			t.Errorf("total=%v: segment count %d < 1", total, plan.SegmentCount)
		}
		if plan.TransitionDuration < 0 {
			t.Errorf("total=%v: negative transition %v", total, plan.TransitionDuration)
		}
		if plan.SegmentDuration <= plan.TransitionDuration {
			t.Errorf("total=%v: segment %v not longer than transition %v", total, plan.SegmentDuration, plan.TransitionDuration)
		}
		if plan.TransitionDuration > DefaultPacing.MaxTransition {
			t.Errorf("total=%v: transition %v above cap", total, plan.TransitionDuration)
		}
		if got := plan.ComposedDuration(); math.Abs(got-total) > epsilon {
			t.Errorf("total=%v: composed %v", total, got)
		}
		if len(plan.Slots) != plan.SegmentCount {
			t.Errorf("total=%v: %d slots for %d segments", total, len(plan.Slots), plan.SegmentCount)
		}
	}
}

func TestNewShortNarrationStillHasOneSegment(t *testing.T) {
	plan, err := New(2.0, DefaultPacing)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if plan.SegmentCount < 1 {
		t.Fatalf("segment count = %d", plan.SegmentCount)
	}
}

func TestNewFallsBackToLastCandidate(t *testing.T) {
	// A band nothing can satisfy forces the r+2 candidate.
	plan, err := New(20.0, Pacing{TargetSegment: 4.5, MaxTransition: 1.2, MinSegment: 100, MaxSegment: 200})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if plan.SegmentCount != 6 {
		t.Fatalf("segment count = %d, want 6", plan.SegmentCount)
	}
}

func TestNewRejectsBadDuration(t *testing.T) {
	for _, total := range []float64{0, -1, math.NaN(), math.Inf(1)} {
		if _, err := New(total, DefaultPacing); !errors.Is(err, ErrInvalidDuration) {
			t.Errorf("New(%v) err = %v, want ErrInvalidDuration", total, err)
		}
	}
}

func TestOffsets(t *testing.T) {
	plan := Plan{SegmentCount: 4, SegmentDuration: 5, TransitionDuration: 1}
	want := []float64{4, 8, 12}
	for i, w := range want {
		if got := plan.Offset(i + 1); got != w {
			t.Errorf("Offset(%d) = %v, want %v", i+1, got, w)
		}
	}
}

func TestNewZeroMaxTransitionMeansHardCuts(t *testing.T) {
	plan, err := New(20.0, Pacing{TargetSegment: 4.5})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if plan.TransitionDuration != 0 {
		t.Errorf("transition = %v, want 0", plan.TransitionDuration)
	}
	if plan.SegmentCount != 4 || plan.SegmentDuration != 5 {
		t.Errorf("plan = %d x %v, want 4 x 5", plan.SegmentCount, plan.SegmentDuration)
	}
	if got := plan.ComposedDuration(); math.Abs(got-20.0) > epsilon {
		t.Errorf("composed duration = %.3f, want 20.0", got)
	}
}
