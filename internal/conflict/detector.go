package conflict

import (
	"time"

	"github.com/charmbracelet/log"
	"github.com/mauv0809/tourney/internal/availability"
	"github.com/mauv0809/tourney/internal/schedule"
	"github.com/mauv0809/tourney/internal/tournament"
)

// Conflict is a pairing whose teams can never meet inside the window.
type Conflict struct {
	MatchID int
	Team1   string
	Team2   string
}

// Detect returns every unscheduled match whose teams share no availability on
// any weekend day of the tournament window. Unscheduled matches whose teams do
// overlap are ordinary scheduling misses and are skipped.
func Detect(s *tournament.State, loc *time.Location) []Conflict {
	return detect(s, s.Unscheduled(), loc)
}

// DetectMatches runs the same check over the given match IDs, whether or not
// they are scheduled. Unknown and terminal matches are ignored.
func DetectMatches(s *tournament.State, ids []int, loc *time.Location) []Conflict {
	var matches []*tournament.Match
	for _, id := range ids {
		if m := s.Match(id); m != nil && !m.Terminal() {
			matches = append(matches, m)
		}
	}
	return detect(s, matches, loc)
}

func detect(s *tournament.State, matches []*tournament.Match, loc *time.Location) []Conflict {
	weekdays := windowWeekdays(s, loc)
	var out []Conflict
	for _, m := range matches {
		t1, t2, err := s.MatchTeams(m)
		if err != nil {
			log.Warn("Skipping match with unknown team", "matchID", m.ID, "error", err)
			continue
		}
		if sharesAny(t1, t2, weekdays) {
			log.Info("Match overlaps, not a conflict", "matchID", m.ID, "team1", t1.Name, "team2", t2.Name)
			continue
		}
		log.Warn("Availability conflict", "matchID", m.ID, "team1", t1.Name, "team2", t2.Name)
		out = append(out, Conflict{MatchID: m.ID, Team1: t1.Name, Team2: t2.Name})
	}
	return out
}

func windowWeekdays(s *tournament.State, loc *time.Location) []time.Weekday {
	seen := make(map[time.Weekday]bool)
	var out []time.Weekday
	for _, d := range schedule.WeekendDays(schedule.WindowOf(s), loc) {
		if wd := d.Weekday(); !seen[wd] {
			seen[wd] = true
			out = append(out, wd)
		}
	}
	return out
}

func sharesAny(t1, t2 *tournament.Team, weekdays []time.Weekday) bool {
	for _, d := range weekdays {
		if availability.Overlaps(t1.Availability, t2.Availability, d) {
			return true
		}
	}
	return false
}
