// Package timeline plans how many visual segments a narration needs and how
// long each one runs once transition overlap is accounted for.
package timeline

import (
	"errors"
	"fmt"
	"math"
)

// ErrInvalidDuration is returned for a non-positive or non-finite narration length.
var ErrInvalidDuration = errors.New("narration duration must be positive")

// Pacing controls the planner. Zero TargetSegment, MinSegment and
// MaxSegment fall back to DefaultPacing. A zero MaxTransition is kept and
// means hard cuts between segments.
type Pacing struct {
	TargetSegment float64 // desired seconds per segment
	MaxTransition float64 // upper bound on each transition
	MinSegment    float64 // acceptance band, low end
	MaxSegment    float64 // acceptance band, high end
}

// DefaultPacing matches a ~4.5s cadence with transitions capped at 1.2s.
var DefaultPacing = Pacing{
	TargetSegment: 4.5,
	MaxTransition: 1.2,
	MinSegment:    3.8,
	MaxSegment:    5.2,
}

func (p Pacing) withDefaults() Pacing {
	if p.TargetSegment <= 0 {
		p.TargetSegment = DefaultPacing.TargetSegment
	}
	if p.MaxTransition < 0 {
		p.MaxTransition = 0
	}
	if p.MinSegment <= 0 {
		p.MinSegment = DefaultPacing.MinSegment
	}
	if p.MaxSegment <= 0 {
		p.MaxSegment = DefaultPacing.MaxSegment
	}
	return p
}

// Slot is one planned segment position on the timeline.
type Slot struct {
	Index    int
	Duration float64
}

// Plan is the planner's output.
type Plan struct {
	SegmentCount       int
	SegmentDuration    float64
	TransitionDuration float64
	Slots              []Slot
}

// ComposedDuration is the length of the chained segments after every
// transition overlap has been removed.
func (p Plan) ComposedDuration() float64 {
	return ComposedDuration(p.SegmentCount, p.SegmentDuration, p.TransitionDuration)
}

// Offset returns where transition i (1-based) starts on the composed timeline.
func (p Plan) Offset(i int) float64 {
	return float64(i) * (p.SegmentDuration - p.TransitionDuration)
}

// ComposedDuration returns n*d - (n-1)*t.
func ComposedDuration(n int, d, t float64) float64 {
	if n <= 0 {
		return 0
	}
	return float64(n)*d - float64(n-1)*t
}

// New plans segments for a narration of total seconds.
//
// Starting from r = max(1, floor(total/target)) it tries counts r, r+1, r+2.
// Each candidate s gets t = min(maxTransition, total/(3s)) and
// d = (total + (s-1)t) / s, so the s-1 overlaps are paid back. The first d
// inside the band wins; otherwise the last candidate is used.
func New(total float64, pacing Pacing) (Plan, error) {
	if total <= 0 || math.IsNaN(total) || math.IsInf(total, 0) {
		return Plan{}, fmt.Errorf("%w: got %v", ErrInvalidDuration, total)
	}
	pacing = pacing.withDefaults()

	rough := int(math.Floor(total / pacing.TargetSegment))
	if rough < 1 {
		rough = 1
	}

	var count int
	var seg, trans float64
	for s := rough; s <= rough+2; s++ {
		count = s
		trans = math.Min(pacing.MaxTransition, total/(3*float64(s)))
		seg = (total + float64(s-1)*trans) / float64(s)
		if seg >= pacing.MinSegment && seg <= pacing.MaxSegment {
			break
		}
	}

	// A single segment has nothing to blend with.
	if count == 1 {
		trans = 0
		seg = total
	}

	plan := Plan{
		SegmentCount:       count,
		SegmentDuration:    seg,
		TransitionDuration: trans,
		Slots:              make([]Slot, count),
	}
	for i := range plan.Slots {
		plan.Slots[i] = Slot{Index: i, Duration: seg}
	}
	return plan, nil
}
