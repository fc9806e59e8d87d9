package conflict

import (
	"slices"
	"time"

	"github.com/mauv0809/tourney/internal/tournament"
)

// SuggestOptions tune candidate generation.
type SuggestOptions struct {
	Limit         int
	StandardHours []int
	Location      *time.Location
	// Now drops candidates that are not in the future. Zero keeps everything.
	Now time.Time
	// Taken drops candidates already held by another match.
	Taken func(time.Time) bool
}

// Suggest proposes alternate times for two teams without a common slot: the
// midpoint of each team's window on every day either is available, then the
// standard hours on every day until the limit is reached. Days blacklisted by
// either team are skipped. The result is sorted and free of duplicates.
// Only the given days are considered, which callers restrict to weekend days.
func Suggest(t1, t2 *tournament.Team, days []time.Time, opts SuggestOptions) []time.Time {
	loc := opts.Location
	if loc == nil {
		loc = time.UTC
	}
	limit := opts.Limit
	if limit <= 0 {
		limit = 10
	}

	var out []time.Time
	add := func(t time.Time) {
		if len(out) >= limit {
			return
		}
		if !opts.Now.IsZero() && !t.After(opts.Now) {
			return
		}
		if opts.Taken != nil && opts.Taken(t) {
			return
		}
		if slices.ContainsFunc(out, t.Equal) {
			return
		}
		out = append(out, t)
	}

	usable := make([]time.Time, 0, len(days))
	for _, d := range days {
		local := d.In(loc)
		if t1.BlacklistedOn(local) || t2.BlacklistedOn(local) {
			continue
		}
		usable = append(usable, time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc))
	}

	for _, day := range usable {
		for _, t := range []*tournament.Team{t1, t2} {
			if r, ok := t.Availability.On(day.Weekday()); ok {
				add(day.Add(time.Duration(r.Midpoint()) * time.Minute))
			}
		}
	}
	for _, day := range usable {
		for _, h := range opts.StandardHours {
			add(day.Add(time.Duration(h) * time.Hour))
		}
	}

	slices.SortFunc(out, func(a, b time.Time) int { return a.Compare(b) })
	return out
}
