package schedule

import (
	"fmt"
	"time"

	"github.com/mauv0809/tourney/internal/availability"
	"github.com/mauv0809/tourney/internal/tournament"
)

// Rules are the knobs of slot generation and assignment.
type Rules struct {
	Location         *time.Location
	SlotInterval     time.Duration
	MaxSlotsPerDay   int
	DefaultStartHour int
	Cooldown         time.Duration
}

// DefaultRules returns two-hour slots, three per day from 10:00, with a 30 minute cooldown.
func DefaultRules() Rules {
	return Rules{
		Location:         time.UTC,
		SlotInterval:     2 * time.Hour,
		MaxSlotsPerDay:   3,
		DefaultStartHour: 10,
		Cooldown:         30 * time.Minute,
	}
}

func (r Rules) location() *time.Location {
	if r.Location == nil {
		return time.UTC
	}
	return r.Location
}

// Window is the inclusive date range a tournament is played in.
type Window struct {
	Start time.Time
	End   time.Time
}

// WindowOf returns the registration end to tournament end window of a state.
func WindowOf(s *tournament.State) Window {
	return Window{Start: s.RegistrationEnd, End: s.TournamentEnd}
}

// WeekendDays returns midnight of every Saturday and Sunday inside the window.
func WeekendDays(w Window, loc *time.Location) []time.Time {
	start := dateOf(w.Start, loc)
	end := dateOf(w.End, loc)
	var days []time.Time
	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		if wd := d.Weekday(); wd == time.Saturday || wd == time.Sunday {
			days = append(days, d)
		}
	}
	return days
}

func dateOf(t time.Time, loc *time.Location) time.Time {
	t = t.In(loc)
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc)
}

// StartHour returns the earliest hour anyone is available, or def when no availability is known.
func StartHour(def int, weeks ...availability.Week) int {
	best, found := 0, false
	for _, w := range weeks {
		start, ok := w.EarliestStart()
		if !ok {
			continue
		}
		if !found || start < best {
			best, found = start, true
		}
	}
	if !found {
		return def
	}
	return best / 60
}

// StateStartHour applies StartHour to every solo entrant and active team of
// the state. Excluded and withdrawn teams play no further matches.
func StateStartHour(s *tournament.State, def int) int {
	teams := s.ActiveTeams()
	weeks := make([]availability.Week, 0, len(teams)+len(s.Solos))
	for _, t := range teams {
		weeks = append(weeks, t.Availability)
	}
	for _, e := range s.Solos {
		weeks = append(weeks, e.Availability)
	}
	return StartHour(def, weeks...)
}

// GenerateSlots lays out candidate slots on every weekend day of the window.
// Each day gets ceil(pairings/days) slots, capped by the rules, starting at startHour.
func GenerateSlots(w Window, startHour, pairings int, rules Rules) ([]time.Time, error) {
	if pairings <= 0 {
		return nil, fmt.Errorf("%w: no pairings to schedule", tournament.ErrCapacity)
	}
	loc := rules.location()
	days := WeekendDays(w, loc)
	if len(days) == 0 {
		return nil, fmt.Errorf("%w: no weekend days between %s and %s", tournament.ErrCapacity,
			w.Start.Format(tournament.DateLayout), w.End.Format(tournament.DateLayout))
	}

	perDay := (pairings + len(days) - 1) / len(days)
	perDay = max(1, min(perDay, rules.MaxSlotsPerDay))

	slots := make([]time.Time, 0, perDay*len(days))
	for _, day := range days {
		first := time.Date(day.Year(), day.Month(), day.Day(), startHour, 0, 0, 0, loc)
		for i := range perDay {
			slot := first.Add(time.Duration(i) * rules.SlotInterval)
			if !sameDate(slot, day) {
				break
			}
			slots = append(slots, slot)
		}
	}
	return slots, nil
}

func sameDate(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

// FreeSlots re-runs the generator for the state's window and drops every slot
// that is claimed or not after now.
func FreeSlots(s *tournament.State, rules Rules, now time.Time) []time.Time {
	var pairings int
	for _, m := range s.Matches {
		if m.Status != tournament.MatchForfeit {
			pairings++
		}
	}
	slots, err := GenerateSlots(WindowOf(s), StateStartHour(s, rules.DefaultStartHour), pairings, rules)
	if err != nil {
		return nil
	}
	var free []time.Time
	for _, slot := range slots {
		if slot.After(now) && !s.SlotTaken(slot, 0) {
			free = append(free, slot)
		}
	}
	return free
}
