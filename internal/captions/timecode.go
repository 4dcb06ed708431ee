package captions

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// ErrInvalidTimecode is returned when a string is not H:MM:SS.cc.
var ErrInvalidTimecode = errors.New("invalid timecode")

// Timecode formats seconds as H:MM:SS.cc, rounded to the nearest centisecond.
// Negative values clamp to zero.
func Timecode(seconds float64) string {
	if seconds < 0 || math.IsNaN(seconds) {
		seconds = 0
	}

	cs := int64(math.Round(seconds * 100))
	hours := cs / 360000
	minutes := (cs / 6000) % 60
	secs := (cs / 100) % 60
	centis := cs % 100

	return fmt.Sprintf("%d:%02d:%02d.%02d", hours, minutes, secs, centis)
}

// ParseTimecode is the inverse of Timecode.
func ParseTimecode(s string) (float64, error) {
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) != 3 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidTimecode, s)
	}

	hours, err := strconv.Atoi(parts[0])
	if err != nil || hours < 0 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidTimecode, s)
	}
	minutes, err := strconv.Atoi(parts[1])
	if err != nil || minutes < 0 || minutes > 59 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidTimecode, s)
	}

	whole, frac, ok := strings.Cut(parts[2], ".")
	if !ok || len(frac) != 2 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidTimecode, s)
	}
	secs, err := strconv.Atoi(whole)
	if err != nil || secs < 0 || secs > 59 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidTimecode, s)
	}
	centis, err := strconv.Atoi(frac)
	if err != nil || centis < 0 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidTimecode, s)
	}

	total := int64(hours)*360000 + int64(minutes)*6000 + int64(secs)*100 + int64(centis)
	return float64(total) / 100, nil
}

// centiseconds converts a duration in seconds to whole centiseconds, never below floor.
func centiseconds(d float64, floor int) int {
	cs := int(math.Round(d * 100))
	if cs < floor {
		return floor
	}
	return cs
}
