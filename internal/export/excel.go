package export

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/mauv0809/tourney/internal/availability"
	"github.com/mauv0809/tourney/internal/tournament"
	"github.com/xuri/excelize/v2"
)

const (
	ScheduleSheet = "Schedule"
	TeamsSheet    = "Teams"
)

var weekdays = []time.Weekday{
	time.Monday, time.Tuesday, time.Wednesday, time.Thursday, time.Friday, time.Saturday, time.Sunday,
}

// Generate creates a workbook with the match schedule and the registered teams.
func Generate(s *tournament.State, loc *time.Location) (*excelize.File, error) {
	if loc == nil {
		loc = time.UTC
	}
	f := excelize.NewFile()
	f.SetDefaultFont("Arial")

	if err := writeSchedule(f, s, loc); err != nil {
		return nil, fmt.Errorf("writing schedule sheet: %w", err)
	}
	if err := writeTeams(f, s); err != nil {
		return nil, fmt.Errorf("writing teams sheet: %w", err)
	}
	f.DeleteSheet("Sheet1")
	return f, nil
}

func headerStyle(f *excelize.File) (int, error) {
	return f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Color: "#FFFFFF", Family: "Arial"},
		Fill:      excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{"#4472C4"}},
		Alignment: &excelize.Alignment{Horizontal: "center"},
	})
}

func writeRow(f *excelize.File, sheet string, row int, values []any) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return err
	}
	return f.SetSheetRow(sheet, cell, &values)
}

func writeHeader(f *excelize.File, sheet string, headers []any) error {
	if err := writeRow(f, sheet, 1, headers); err != nil {
		return err
	}
	style, err := headerStyle(f)
	if err != nil {
		return err
	}
	last, err := excelize.CoordinatesToCellName(len(headers), 1)
	if err != nil {
		return err
	}
	if err := f.SetCellStyle(sheet, "A1", last, style); err != nil {
		return err
	}
	return f.SetPanes(sheet, &excelize.Panes{Freeze: true, YSplit: 1, TopLeftCell: "A2", ActivePane: "bottomLeft"})
}

func writeSchedule(f *excelize.File, s *tournament.State, loc *time.Location) error {
	if _, err := f.NewSheet(ScheduleSheet); err != nil {
		return err
	}
	if err := writeHeader(f, ScheduleSheet, []any{"Date", "Day", "Time", "Match", "Team 1", "Team 2", "Status", "Note"}); err != nil {
		return err
	}

	matches := make([]*tournament.Match, len(s.Matches))
	copy(matches, s.Matches)
	// Scheduled matches first in time order, the rest by ID.
	sort.SliceStable(matches, func(i, j int) bool {
		a, b := matches[i].ScheduledTime, matches[j].ScheduledTime
		switch {
		case a != nil && b != nil:
			return a.Before(*b)
		case a != nil:
			return true
		case b != nil:
			return false
		}
		return matches[i].ID < matches[j].ID
	})

	for i, m := range matches {
		date, day, clock := "", "", ""
		if m.ScheduledTime != nil {
			local := m.ScheduledTime.In(loc)
			date, day, clock = local.Format("02.01.2006"), local.Format("Mon"), local.Format("15:04")
		}
		if err := writeRow(f, ScheduleSheet, i+2, []any{date, day, clock, m.ID, m.Team1, m.Team2, string(m.Status), note(m)}); err != nil {
			return err
		}
	}

	f.SetColWidth(ScheduleSheet, "A", "A", 12)
	f.SetColWidth(ScheduleSheet, "B", "D", 8)
	f.SetColWidth(ScheduleSheet, "E", "F", 22)
	f.SetColWidth(ScheduleSheet, "G", "G", 12)
	f.SetColWidth(ScheduleSheet, "H", "H", 30)
	return nil
}

func note(m *tournament.Match) string {
	var parts []string
	switch {
	case m.Status == tournament.MatchForfeit && m.Winner != "":
		parts = append(parts, fmt.Sprintf("%s wins by forfeit of %s", m.Winner, m.ForfeitBy))
	case m.Status == tournament.MatchForfeit:
		parts = append(parts, "no winner")
	case m.Status == tournament.MatchCompleted:
		parts = append(parts, m.Winner+" won")
	}
	if m.RescueAssigned {
		parts = append(parts, "rescue placement")
	}
	if m.RescheduledOnce {
		parts = append(parts, "rescheduled")
	}
	if m.Reschedule != nil {
		parts = append(parts, "reschedule pending")
	}
	return strings.Join(parts, ", ")
}

func writeTeams(f *excelize.File, s *tournament.State) error {
	if _, err := f.NewSheet(TeamsSheet); err != nil {
		return err
	}
	headers := []any{"Team", "Members", "Status"}
	for _, d := range weekdays {
		headers = append(headers, d.String()[:3])
	}
	headers = append(headers, "Unavailable")
	if err := writeHeader(f, TeamsSheet, headers); err != nil {
		return err
	}

	for i, t := range s.Teams {
		row := []any{t.Name, strings.Join(t.Members, ", "), status(t)}
		for _, d := range weekdays {
			if r, ok := t.Availability.On(d); ok {
				row = append(row, r.String())
			} else {
				row = append(row, availability.Unavailable)
			}
		}
		row = append(row, strings.Join(t.UnavailableDates, ", "))
		if err := writeRow(f, TeamsSheet, i+2, row); err != nil {
			return err
		}
	}
	f.SetColWidth(TeamsSheet, "A", "B", 24)
	f.SetColWidth(TeamsSheet, "C", "J", 13)
	f.SetColWidth(TeamsSheet, "K", "K", 24)
	return nil
}

func status(t *tournament.Team) string {
	if t.ExcludedReason != "" {
		return fmt.Sprintf("%s (%s)", t.Status, t.ExcludedReason)
	}
	return string(t.Status)
}
