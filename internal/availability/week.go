package availability

import (
	"fmt"
	"strings"
	"time"
)

// Week maps a lowercase English day name ("monday") to a "HH:MM-HH:MM" range.
// A missing day is unavailable.
type Week map[string]string

// DayName returns the key used by Week for the given weekday.
func DayName(d time.Weekday) string {
	return strings.ToLower(d.String())
}

// NewWeek returns a week where every day is unavailable.
func NewWeek() Week {
	w := make(Week, 7)
	for d := time.Sunday; d <= time.Saturday; d++ {
		w[DayName(d)] = Unavailable
	}
	return w
}

// On returns the range for a weekday. Malformed or missing entries count as unavailable.
func (w Week) On(d time.Weekday) (Range, bool) {
	raw, ok := w[DayName(d)]
	if !ok {
		return Range{}, false
	}
	r, err := ParseRange(raw)
	if err != nil || r.Empty() {
		return Range{}, false
	}
	return r, true
}

// Set stores r for the weekday, writing the sentinel for empty ranges.
func (w Week) Set(d time.Weekday, r Range) {
	w[DayName(d)] = r.String()
}

// SetRaw validates and stores a range string for the named day.
func (w Week) SetRaw(day, raw string) error {
	d, err := ParseDay(day)
	if err != nil {
		return err
	}
	r, err := ParseRange(raw)
	if err != nil {
		return err
	}
	w.Set(d, r)
	return nil
}

// ParseDay resolves an English day name, case-insensitively.
func ParseDay(day string) (time.Weekday, error) {
	want := strings.ToLower(strings.TrimSpace(day))
	for d := time.Sunday; d <= time.Saturday; d++ {
		if DayName(d) == want {
			return d, nil
		}
	}
	return 0, fmt.Errorf("%w: unknown day %q", ErrFormat, day)
}

// AvailableAt reports whether t's clock time falls inside the range for t's weekday.
func (w Week) AvailableAt(t time.Time) bool {
	r, ok := w.On(t.Weekday())
	return ok && r.Contains(t.Hour()*60+t.Minute())
}

// Any reports whether at least one day has availability.
func (w Week) Any() bool {
	for d := time.Sunday; d <= time.Saturday; d++ {
		if _, ok := w.On(d); ok {
			return true
		}
	}
	return false
}

// EarliestStart returns the earliest start minute over all available days.
func (w Week) EarliestStart() (int, bool) {
	best, found := 0, false
	for d := time.Sunday; d <= time.Saturday; d++ {
		r, ok := w.On(d)
		if !ok {
			continue
		}
		if !found || r.Start < best {
			best, found = r.Start, true
		}
	}
	return best, found
}

// IntersectWeek intersects two weeks day by day. Days without overlap hold the sentinel.
func IntersectWeek(a, b Week) Week {
	out := NewWeek()
	for d := time.Sunday; d <= time.Saturday; d++ {
		ra, okA := a.On(d)
		rb, okB := b.On(d)
		if !okA || !okB {
			continue
		}
		if r, ok := Intersect(ra, rb); ok {
			out.Set(d, r)
		}
	}
	return out
}

// Overlaps reports whether a and b share any time on the weekday.
func Overlaps(a, b Week, d time.Weekday) bool {
	ra, okA := a.On(d)
	rb, okB := b.On(d)
	if !okA || !okB {
		return false
	}
	_, ok := Intersect(ra, rb)
	return ok
}

// Extend merges r into the existing range of the weekday.
func (w Week) Extend(d time.Weekday, r Range) {
	cur, _ := w.On(d)
	w.Set(d, Merge(cur, r))
}

// Clone returns a copy safe to mutate.
func (w Week) Clone() Week {
	out := make(Week, len(w))
	for k, v := range w {
		out[k] = v
	}
	return out
}
