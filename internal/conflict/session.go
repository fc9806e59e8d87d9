package conflict

import (
	"fmt"
	"slices"
	"time"

	"github.com/mauv0809/tourney/internal/tournament"
)

// Outcome is the state of a resolution session.
type Outcome string

const (
	Pending      Outcome = "pending"
	ResolvedSlot Outcome = "resolved_slot"
	ExcludedOne  Outcome = "excluded_one"
	ExcludedBoth Outcome = "excluded_both"
)

// Session negotiates one conflicting pairing. It is not safe for concurrent
// use; the Resolver serialises every call.
type Session struct {
	ID          string
	MatchID     int
	Team1       string
	Team2       string
	Suggestions []time.Time
	Deadline    time.Time

	members   map[string]string
	approvals map[string]time.Time
	selected  *time.Time
	outcome   Outcome
	slot      time.Time
	excluded  []string
}

// NewSession opens a pending session for the match between t1 and t2.
func NewSession(id string, matchID int, t1, t2 *tournament.Team, suggestions []time.Time) *Session {
	s := &Session{
		ID:          id,
		MatchID:     matchID,
		Team1:       t1.Name,
		Team2:       t2.Name,
		Suggestions: suggestions,
		members:     make(map[string]string),
		approvals:   make(map[string]time.Time),
		outcome:     Pending,
	}
	for _, t := range []*tournament.Team{t1, t2} {
		for _, m := range t.Members {
			s.members[m] = t.Name
		}
	}
	return s
}

func (s *Session) Outcome() Outcome { return s.outcome }

// Slot returns the agreed slot once resolved.
func (s *Session) Slot() time.Time { return s.slot }

// Excluded returns the teams to exclude once the session ended in exclusion.
func (s *Session) Excluded() []string { return slices.Clone(s.excluded) }

// Members returns every participant in sorted order.
func (s *Session) Members() []string {
	out := make([]string, 0, len(s.members))
	for m := range s.members {
		out = append(out, m)
	}
	slices.Sort(out)
	return out
}

// Approvals counts the members who approved the current selection.
func (s *Session) Approvals() int {
	if s.selected == nil {
		return 0
	}
	n := 0
	for _, t := range s.approvals {
		if t.Equal(*s.selected) {
			n++
		}
	}
	return n
}

// Select picks a suggested slot and counts as that member's approval of it.
func (s *Session) Select(member string, slot time.Time) (Outcome, error) {
	if err := s.check(member); err != nil {
		return s.outcome, err
	}
	if !slices.ContainsFunc(s.Suggestions, slot.Equal) {
		return s.outcome, fmt.Errorf("%w: %s is not one of the suggested slots", tournament.ErrFormat, slot.Format(time.RFC3339))
	}
	s.selected = &slot
	s.approvals[member] = slot
	return s.settle(), nil
}

// Confirm approves the latest selection.
func (s *Session) Confirm(member string) (Outcome, error) {
	if err := s.check(member); err != nil {
		return s.outcome, err
	}
	if s.selected == nil {
		return s.outcome, fmt.Errorf("%w: no slot selected yet", tournament.ErrInvariant)
	}
	s.approvals[member] = *s.selected
	return s.settle(), nil
}

// Decline ends the session and marks the member's team for exclusion.
func (s *Session) Decline(member string) (Outcome, error) {
	if err := s.check(member); err != nil {
		return s.outcome, err
	}
	s.outcome = ExcludedOne
	s.excluded = []string{s.members[member]}
	return s.outcome, nil
}

// Expire ends a still pending session and marks both teams for exclusion.
func (s *Session) Expire() Outcome {
	if s.outcome == Pending {
		s.outcome = ExcludedBoth
		s.excluded = []string{s.Team1, s.Team2}
	}
	return s.outcome
}

func (s *Session) check(member string) error {
	if s.outcome != Pending {
		return fmt.Errorf("%w: conflict for match %d already ended (%s)", tournament.ErrInvariant, s.MatchID, s.outcome)
	}
	if _, ok := s.members[member]; !ok {
		return fmt.Errorf("%w: %s does not play match %d", tournament.ErrForbidden, member, s.MatchID)
	}
	return nil
}

// settle resolves the session once every member approved the same slot.
func (s *Session) settle() Outcome {
	if len(s.approvals) != len(s.members) {
		return s.outcome
	}
	var agreed *time.Time
	for _, t := range s.approvals {
		if agreed == nil {
			agreed = &t
			continue
		}
		if !t.Equal(*agreed) {
			return s.outcome
		}
	}
	s.outcome = ResolvedSlot
	s.slot = *agreed
	return s.outcome
}
