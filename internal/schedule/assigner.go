package schedule

import (
	"fmt"
	"time"

	"github.com/charmbracelet/log"
	"github.com/mauv0809/tourney/internal/availability"
	"github.com/mauv0809/tourney/internal/tournament"
)

// Assignment records where one match was placed.
type Assignment struct {
	MatchID int
	Slot    time.Time
	Rescue  bool
}

// Result is the outcome of one assignment run.
type Result struct {
	Assigned   []Assignment
	Unassigned []int
	Rejections map[RejectionReason]int
}

// Rescued counts the degraded placements.
func (r *Result) Rescued() int {
	n := 0
	for _, a := range r.Assigned {
		if a.Rescue {
			n++
		}
	}
	return n
}

// RejectionReason explains why a slot was skipped for a pairing.
type RejectionReason int

const (
	RejectClaimed RejectionReason = iota
	RejectBlacklisted
	RejectUnavailable
	RejectTeamBooked
	RejectSameDay
	RejectCooldown
)

func (r RejectionReason) String() string {
	switch r {
	case RejectClaimed:
		return "slot claimed"
	case RejectBlacklisted:
		return "date blacklisted"
	case RejectUnavailable:
		return "team unavailable"
	case RejectTeamBooked:
		return "team double booked"
	case RejectSameDay:
		return "team already plays that day"
	case RejectCooldown:
		return "cooldown"
	}
	return "unknown"
}

type dayKey struct {
	team string
	date string
}

type assigner struct {
	rules     Rules
	loc       *time.Location
	slots     []time.Time
	claimed   map[int64]int
	teamSlots map[string]map[int64]bool
	teamDays  map[dayKey]bool
	last      map[string]time.Time
	weekdays  []time.Weekday
	result    *Result
}

// Assign places every given match into one of the slots, in order. It only
// mutates the matches in memory; the caller persists the state afterwards.
// Matches already holding a slot in the state keep it and count as bookings.
func Assign(s *tournament.State, matches []*tournament.Match, slots []time.Time, rules Rules) (*Result, error) {
	a := &assigner{
		rules:     rules,
		loc:       rules.location(),
		slots:     slots,
		claimed:   make(map[int64]int),
		teamSlots: make(map[string]map[int64]bool),
		teamDays:  make(map[dayKey]bool),
		last:      make(map[string]time.Time),
		result:    &Result{Rejections: make(map[RejectionReason]int)},
	}
	for _, m := range s.Matches {
		if m.Status == tournament.MatchForfeit || m.ScheduledTime == nil {
			continue
		}
		a.book(m, *m.ScheduledTime)
	}

	free := 0
	for _, slot := range slots {
		if _, taken := a.claimed[slot.Unix()]; !taken {
			free++
		}
	}
	if free < len(matches) {
		return nil, fmt.Errorf("%w: %d free slots for %d pairings", tournament.ErrCapacity, free, len(matches))
	}
	a.weekdays = slotWeekdays(slots, a.loc)

	for _, m := range matches {
		t1, t2, err := s.MatchTeams(m)
		if err != nil {
			return nil, err
		}
		a.assign(m, t1, t2)
	}
	log.Info("Slot assignment finished",
		"assigned", len(a.result.Assigned),
		"rescued", a.result.Rescued(),
		"unassigned", len(a.result.Unassigned))
	return a.result, nil
}

func (a *assigner) assign(m *tournament.Match, t1, t2 *tournament.Team) {
	for _, slot := range a.slots {
		if reason, ok := a.check(slot, t1, t2); !ok {
			a.result.Rejections[reason]++
			log.Debug("Rejected slot", "matchID", m.ID, "slot", slot, "reason", reason)
			continue
		}
		a.place(m, slot, false)
		return
	}

	if slot, ok := a.rescue(t1, t2); ok {
		log.Warn("Rescue placement ignores spacing rules", "matchID", m.ID, "slot", slot, "team1", t1.Name, "team2", t2.Name)
		a.place(m, slot, true)
		return
	}

	log.Warn("No slot for pairing", "matchID", m.ID, "team1", t1.Name, "team2", t2.Name)
	a.result.Unassigned = append(a.result.Unassigned, m.ID)
}

// check applies every rule in order: hard filters first, then the soft spacing rules.
func (a *assigner) check(slot time.Time, t1, t2 *tournament.Team) (RejectionReason, bool) {
	if reason, ok := a.hard(slot, t1, t2); !ok {
		return reason, false
	}
	if _, taken := a.claimed[slot.Unix()]; taken {
		return RejectClaimed, false
	}
	date := slot.In(a.loc).Format(tournament.DateLayout)
	for _, t := range []*tournament.Team{t1, t2} {
		if a.teamDays[dayKey{team: t.Name, date: date}] {
			return RejectSameDay, false
		}
		if last, ok := a.last[t.Name]; ok && absDuration(slot.Sub(last)) < a.rules.Cooldown {
			return RejectCooldown, false
		}
	}
	return 0, true
}

func (a *assigner) hard(slot time.Time, t1, t2 *tournament.Team) (RejectionReason, bool) {
	local := slot.In(a.loc)
	for _, t := range []*tournament.Team{t1, t2} {
		if t.BlacklistedOn(local) {
			return RejectBlacklisted, false
		}
	}
	for _, t := range []*tournament.Team{t1, t2} {
		if a.teamSlots[t.Name][slot.Unix()] {
			return RejectTeamBooked, false
		}
	}
	if !t1.Availability.AvailableAt(local) || !t2.Availability.AvailableAt(local) {
		return RejectUnavailable, false
	}
	return 0, true
}

// rescue picks the first unclaimed slot both teams can attend. When the teams
// do share availability but every such slot is gone, it falls back to the first
// unclaimed slot neither team blacklisted. Teams without any shared day are left
// for conflict resolution.
func (a *assigner) rescue(t1, t2 *tournament.Team) (time.Time, bool) {
	for _, slot := range a.slots {
		if _, taken := a.claimed[slot.Unix()]; taken {
			continue
		}
		if _, ok := a.hard(slot, t1, t2); ok {
			return slot, true
		}
	}
	if !a.shareAnyDay(t1, t2) {
		return time.Time{}, false
	}
	for _, slot := range a.slots {
		if _, taken := a.claimed[slot.Unix()]; taken {
			continue
		}
		local := slot.In(a.loc)
		if t1.BlacklistedOn(local) || t2.BlacklistedOn(local) {
			continue
		}
		return slot, true
	}
	return time.Time{}, false
}

func (a *assigner) shareAnyDay(t1, t2 *tournament.Team) bool {
	for _, d := range a.weekdays {
		if availability.Overlaps(t1.Availability, t2.Availability, d) {
			return true
		}
	}
	return false
}

func (a *assigner) place(m *tournament.Match, slot time.Time, rescue bool) {
	m.Schedule(slot, rescue)
	a.book(m, slot)
	a.result.Assigned = append(a.result.Assigned, Assignment{MatchID: m.ID, Slot: slot, Rescue: rescue})
	log.Info("Assigned slot", "matchID", m.ID, "slot", slot, "rescue", rescue)
}

func (a *assigner) book(m *tournament.Match, slot time.Time) {
	a.claimed[slot.Unix()] = m.ID
	date := slot.In(a.loc).Format(tournament.DateLayout)
	for _, team := range []string{m.Team1, m.Team2} {
		if a.teamSlots[team] == nil {
			a.teamSlots[team] = make(map[int64]bool)
		}
		a.teamSlots[team][slot.Unix()] = true
		a.teamDays[dayKey{team: team, date: date}] = true
		a.last[team] = slot
	}
}

func slotWeekdays(slots []time.Time, loc *time.Location) []time.Weekday {
	seen := make(map[time.Weekday]bool)
	var out []time.Weekday
	for _, s := range slots {
		d := s.In(loc).Weekday()
		if !seen[d] {
			seen[d] = true
			out = append(out, d)
		}
	}
	return out
}

func absDuration(d time.Duration) time.Duration {
	if d < 0 {
		return -d
	}
	return d
}
