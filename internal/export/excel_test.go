package export_test

import (
	"bytes"
	"testing"
	"time"

	"github.com/mauv0809/tourney/internal/availability"
	"github.com/mauv0809/tourney/internal/export"
	"github.com/mauv0809/tourney/internal/tournament"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func testState() *tournament.State {
	s := tournament.NewState()
	for _, n := range []string{"A", "B", "C"} {
		s.Teams = append(s.Teams, &tournament.Team{
			Name:         n,
			Members:      []string{n + "-a", n + "-b"},
			Availability: availability.Week{"saturday": "10:00-18:00"},
			Status:       tournament.TeamActive,
		})
	}
	s.CreateRoundRobin()
	s.Match(3).Schedule(time.Date(2026, 11, 7, 10, 0, 0, 0, time.UTC), true)
	s.Match(2).Schedule(time.Date(2026, 11, 8, 12, 0, 0, 0, time.UTC), false)
	s.Forfeit(s.Match(1), "B")
	return s
}

func TestGenerate(t *testing.T) {
	f, err := export.Generate(testState(), time.UTC)
	require.NoError(t, err)

	t.Run("sheets", func(t *testing.T) {
		assert.Equal(t, []string{export.ScheduleSheet, export.TeamsSheet}, f.GetSheetList())
	})

	t.Run("schedule rows in time order", func(t *testing.T) {
		rows, err := f.GetRows(export.ScheduleSheet)
		require.NoError(t, err)
		require.Len(t, rows, 4)
		assert.Equal(t, []string{"Date", "Day", "Time", "Match", "Team 1", "Team 2", "Status", "Note"}, rows[0])
		assert.Equal(t, []string{"07.11.2026", "Sat", "10:00", "3", "B", "C", "scheduled", "rescue placement"}, rows[1])
		assert.Equal(t, "08.11.2026", rows[2][0])
		assert.Equal(t, "1", rows[3][3])
		assert.Equal(t, "A wins by forfeit of B", rows[3][7])
	})

	t.Run("teams", func(t *testing.T) {
		v, err := f.GetCellValue(export.TeamsSheet, "B2")
		require.NoError(t, err)
		assert.Equal(t, "A-a, A-b", v)
		sat, err := f.GetCellValue(export.TeamsSheet, "I2")
		require.NoError(t, err)
		assert.Equal(t, "10:00-18:00", sat)
		sun, err := f.GetCellValue(export.TeamsSheet, "J2")
		require.NoError(t, err)
		assert.Equal(t, availability.Unavailable, sun)
	})
}

func TestGenerate_WritesReadableWorkbook(t *testing.T) {
	f, err := export.Generate(tournament.NewState(), nil)
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, f.Write(&buf))

	back, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	rows, err := back.GetRows(export.ScheduleSheet)
	require.NoError(t, err)
	assert.Len(t, rows, 1, "only the header without matches")
}
