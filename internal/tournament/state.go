package tournament

import (
	"fmt"
	"time"
)

// NewState returns an empty tournament with registration open.
func NewState() *State {
	return &State{RegistrationOpen: true, NextMatchID: 1}
}

func (s *State) Team(name string) *Team {
	for _, t := range s.Teams {
		if t.Name == name {
			return t
		}
	}
	return nil
}

func (s *State) Match(id int) *Match {
	for _, m := range s.Matches {
		if m.ID == id {
			return m
		}
	}
	return nil
}

// TeamOf returns the active team the member plays for, if any.
func (s *State) TeamOf(member string) *Team {
	for _, t := range s.Teams {
		if t.Status == TeamActive && t.HasMember(member) {
			return t
		}
	}
	return nil
}

func (s *State) Solo(member string) *SoloEntrant {
	for _, e := range s.Solos {
		if e.Member == member {
			return e
		}
	}
	return nil
}

// ActiveTeams returns the active teams in registration order.
func (s *State) ActiveTeams() []*Team {
	var out []*Team
	for _, t := range s.Teams {
		if t.Status == TeamActive {
			out = append(out, t)
		}
	}
	return out
}

// MatchTeams resolves both sides of a match.
func (s *State) MatchTeams(m *Match) (*Team, *Team, error) {
	t1, t2 := s.Team(m.Team1), s.Team(m.Team2)
	if t1 == nil || t2 == nil {
		return nil, nil, fmt.Errorf("%w: match %d references unknown team", ErrInvariant, m.ID)
	}
	return t1, t2, nil
}

// Members returns the members of both teams of a match.
func (s *State) Members(m *Match) []string {
	var out []string
	for _, name := range []string{m.Team1, m.Team2} {
		if t := s.Team(name); t != nil {
			out = append(out, t.Members...)
		}
	}
	return out
}

// SlotTaken reports whether a non-forfeited match other than exceptID holds t.
func (s *State) SlotTaken(t time.Time, exceptID int) bool {
	for _, m := range s.Matches {
		if m.ID == exceptID || m.Status == MatchForfeit || m.ScheduledTime == nil {
			continue
		}
		if m.ScheduledTime.Equal(t) {
			return true
		}
	}
	return false
}

// Unscheduled returns the non-terminal matches without a scheduled time.
func (s *State) Unscheduled() []*Match {
	var out []*Match
	for _, m := range s.Matches {
		if !m.Terminal() && m.ScheduledTime == nil {
			out = append(out, m)
		}
	}
	return out
}

// Validate checks the invariants every committed state must hold.
func (s *State) Validate() error {
	seen := make(map[int64]int)
	ids := make(map[int]bool)
	for _, m := range s.Matches {
		if ids[m.ID] {
			return fmt.Errorf("%w: duplicate match id %d", ErrInvariant, m.ID)
		}
		ids[m.ID] = true
		if s.Team(m.Team1) == nil || s.Team(m.Team2) == nil {
			return fmt.Errorf("%w: match %d references unknown team", ErrInvariant, m.ID)
		}
		if m.Terminal() && m.Reschedule != nil {
			return fmt.Errorf("%w: match %d is %s with a pending reschedule", ErrInvariant, m.ID, m.Status)
		}
		if m.Status == MatchForfeit || m.ScheduledTime == nil {
			continue
		}
		key := m.ScheduledTime.Unix()
		if other, ok := seen[key]; ok {
			return fmt.Errorf("%w: matches %d and %d share slot %s", ErrInvariant, other, m.ID, m.ScheduledTime.Format(time.RFC3339))
		}
		seen[key] = m.ID
	}
	for _, t := range s.Teams {
		if t.Status == TeamActive && len(t.Members) != 2 {
			return fmt.Errorf("%w: active team %q has %d members", ErrInvariant, t.Name, len(t.Members))
		}
	}
	return nil
}

func (t *Team) HasMember(member string) bool {
	for _, m := range t.Members {
		if m == member {
			return true
		}
	}
	return false
}

// BlacklistedOn reports whether the team marked the calendar date of day as unavailable.
func (t *Team) BlacklistedOn(day time.Time) bool {
	key := day.Format(DateLayout)
	for _, d := range t.UnavailableDates {
		if d == key {
			return true
		}
	}
	return false
}

// Terminal reports whether the match can no longer be scheduled.
func (m *Match) Terminal() bool {
	return m.Status == MatchForfeit || m.Status == MatchCompleted
}

func (m *Match) Involves(team string) bool {
	return m.Team1 == team || m.Team2 == team
}

// Opponent returns the other side of the match.
func (m *Match) Opponent(team string) string {
	if m.Team1 == team {
		return m.Team2
	}
	return m.Team1
}

// Schedule assigns a slot and marks the match scheduled.
func (m *Match) Schedule(t time.Time, rescue bool) {
	m.ScheduledTime = &t
	m.Status = MatchScheduled
	m.RescueAssigned = rescue
}

// Unschedule clears the slot of a non-terminal match.
func (m *Match) Unschedule() {
	if m.Terminal() {
		return
	}
	m.ScheduledTime = nil
	m.Status = MatchOpen
	m.RescueAssigned = false
}
