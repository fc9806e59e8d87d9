package availability

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Unavailable is the sentinel range for a day without any availability.
const Unavailable = "00:00-00:00"

// ErrFormat is returned when a range or clock string cannot be parsed.
var ErrFormat = errors.New("format error")

// Range is a time-of-day interval in minutes since midnight. End is exclusive.
type Range struct {
	Start int
	End   int
}

// ParseRange parses a "HH:MM-HH:MM" string.
func ParseRange(s string) (Range, error) {
	parts := strings.Split(strings.TrimSpace(s), "-")
	if len(parts) != 2 {
		return Range{}, fmt.Errorf("%w: range %q must look like HH:MM-HH:MM", ErrFormat, s)
	}
	start, err := parseClock(parts[0])
	if err != nil {
		return Range{}, fmt.Errorf("%w: range %q: %v", ErrFormat, s, err)
	}
	end, err := parseClock(parts[1])
	if err != nil {
		return Range{}, fmt.Errorf("%w: range %q: %v", ErrFormat, s, err)
	}
	return Range{Start: start, End: end}, nil
}

func parseClock(s string) (int, error) {
	t, err := time.Parse("15:04", strings.TrimSpace(s))
	if err != nil {
		return 0, fmt.Errorf("invalid clock time %q", s)
	}
	return t.Hour()*60 + t.Minute(), nil
}

// Empty reports whether the range holds no time at all. The sentinel is empty.
func (r Range) Empty() bool {
	return r.Start >= r.End
}

// Contains reports whether the minute of day falls inside the range.
func (r Range) Contains(minute int) bool {
	return !r.Empty() && minute >= r.Start && minute < r.End
}

// Midpoint returns the minute of day halfway through the range.
func (r Range) Midpoint() int {
	return r.Start + (r.End-r.Start)/2
}

func (r Range) String() string {
	if r.Empty() {
		return Unavailable
	}
	return fmt.Sprintf("%02d:%02d-%02d:%02d", r.Start/60, r.Start%60, r.End/60, r.End%60)
}

// Intersect returns the overlap of a and b, or false when max(start) >= min(end).
func Intersect(a, b Range) (Range, bool) {
	out := Range{Start: max(a.Start, b.Start), End: min(a.End, b.End)}
	if out.Empty() {
		return Range{}, false
	}
	return out, true
}

// IntersectAll chains Intersect over every range. No ranges means no overlap.
func IntersectAll(ranges ...Range) (Range, bool) {
	if len(ranges) == 0 {
		return Range{}, false
	}
	acc := ranges[0]
	if acc.Empty() {
		return Range{}, false
	}
	for _, r := range ranges[1:] {
		var ok bool
		if acc, ok = Intersect(acc, r); !ok {
			return Range{}, false
		}
	}
	return acc, true
}

// Merge returns the hull of a and b. An empty side yields the other one.
func Merge(a, b Range) Range {
	switch {
	case a.Empty():
		return b
	case b.Empty():
		return a
	}
	return Range{Start: min(a.Start, b.Start), End: max(a.End, b.End)}
}

// Around returns the window of d on both sides of the given clock time, clamped to the day.
func Around(t time.Time, d time.Duration) Range {
	minute := t.Hour()*60 + t.Minute()
	delta := int(d / time.Minute)
	return Range{Start: max(0, minute-delta), End: min(24*60-1, minute+delta)}
}
