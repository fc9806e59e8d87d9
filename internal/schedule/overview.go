package schedule

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/mauv0809/tourney/internal/tournament"
)

// Overview renders the schedule as plain text grouped by day.
func Overview(s *tournament.State, loc *time.Location) string {
	if loc == nil {
		loc = time.UTC
	}
	var scheduled []*tournament.Match
	var pending, closed []*tournament.Match
	for _, m := range s.Matches {
		switch {
		case m.Terminal():
			closed = append(closed, m)
		case m.ScheduledTime == nil:
			pending = append(pending, m)
		default:
			scheduled = append(scheduled, m)
		}
	}
	sort.SliceStable(scheduled, func(i, j int) bool {
		return scheduled[i].ScheduledTime.Before(*scheduled[j].ScheduledTime)
	})

	var b strings.Builder
	b.WriteString("Tournament schedule\n")
	if len(s.Matches) == 0 {
		b.WriteString("No matches yet.\n")
		return b.String()
	}

	day := ""
	for _, m := range scheduled {
		local := m.ScheduledTime.In(loc)
		if d := local.Format("Monday 02.01.2006"); d != day {
			day = d
			fmt.Fprintf(&b, "\n%s\n", day)
		}
		flag := ""
		if m.Reschedule != nil {
			flag = " (reschedule pending)"
		}
		fmt.Fprintf(&b, "  %s  #%d %s vs %s%s\n", local.Format("15:04"), m.ID, m.Team1, m.Team2, flag)
	}
	if len(pending) > 0 {
		b.WriteString("\nAwaiting a slot\n")
		for _, m := range pending {
			fmt.Fprintf(&b, "  #%d %s vs %s\n", m.ID, m.Team1, m.Team2)
		}
	}
	if len(closed) > 0 {
		b.WriteString("\nDecided\n")
		for _, m := range closed {
			outcome := "no winner"
			if m.Winner != "" {
				outcome = m.Winner + " wins"
			}
			if m.Status == tournament.MatchForfeit {
				outcome += " by forfeit"
			}
			fmt.Fprintf(&b, "  #%d %s vs %s: %s\n", m.ID, m.Team1, m.Team2, outcome)
		}
	}
	return b.String()
}
