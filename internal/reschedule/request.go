package reschedule

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/mauv0809/tourney/internal/clock"
	"github.com/mauv0809/tourney/internal/tournament"
)

// Outcome is the state of a reschedule request.
type Outcome string

const (
	Pending  Outcome = "pending_request"
	Approved Outcome = "approved"
	Declined Outcome = "declined"
	TimedOut Outcome = "timed_out"
	// Aborted means every member agreed but the slot was claimed before commit.
	Aborted Outcome = "aborted"
	// Cancelled means an administrator reset the request.
	Cancelled Outcome = "cancelled"
)

// Layouts accepted for a requested time, tried in order.
var Layouts = []string{"02.01.2006 15:04", "2006-01-02 15:04", time.RFC3339}

// ParseTime reads a requested time in loc.
func ParseTime(raw string, loc *time.Location) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	for _, layout := range Layouts {
		if t, err := time.ParseInLocation(layout, raw, loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("%w: %q is not a date and time like 07.11.2026 16:00", tournament.ErrFormat, raw)
}

// Request is one reschedule vote in flight.
type Request struct {
	ID          string
	MatchID     int
	RequestedBy string
	Team        string
	Opponent    string
	From        *time.Time
	To          time.Time
	Deadline    time.Time

	members  map[string]string
	accepted map[string]bool
	timer    clock.Handle
}

func newRequest(id string, s *tournament.State, m *tournament.Match, requester string, to, deadline time.Time) *Request {
	team := s.TeamOf(requester).Name
	r := &Request{
		ID:          id,
		MatchID:     m.ID,
		RequestedBy: requester,
		Team:        team,
		Opponent:    m.Opponent(team),
		To:          to,
		Deadline:    deadline,
		members:     make(map[string]string),
		accepted:    make(map[string]bool),
	}
	if m.ScheduledTime != nil {
		from := *m.ScheduledTime
		r.From = &from
	}
	for _, name := range []string{m.Team1, m.Team2} {
		if t := s.Team(name); t != nil {
			for _, member := range t.Members {
				r.members[member] = name
			}
		}
	}
	return r
}

// Members returns every voter in sorted order.
func (r *Request) Members() []string {
	out := make([]string, 0, len(r.members))
	for m := range r.members {
		out = append(out, m)
	}
	slices.Sort(out)
	return out
}

// TeamOf returns the team a voter plays for.
func (r *Request) TeamOf(member string) (string, bool) {
	t, ok := r.members[member]
	return t, ok
}

func (r *Request) accept(member string) bool {
	r.accepted[member] = true
	return len(r.accepted) == len(r.members)
}

// Accepted counts the members who accepted so far.
func (r *Request) Accepted() int { return len(r.accepted) }

func (r *Request) other(team string) string {
	if team == r.Team {
		return r.Opponent
	}
	return r.Team
}
