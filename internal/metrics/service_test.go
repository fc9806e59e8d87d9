package metrics

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestService(t *testing.T) {
	reg := prometheus.NewRegistry()
	s := NewService(reg)

	s.IncScheduleRuns()
	s.IncSlotsAssigned(false)
	s.IncSlotsAssigned(true)
	s.IncSlotsAssigned(true)
	s.SetUnscheduledMatches(3)
	s.IncRescheduleOutcome("declined")

	assert.Equal(t, 1.0, testutil.ToFloat64(s.ScheduleRuns))
	assert.Equal(t, 2.0, testutil.ToFloat64(s.SlotsAssigned.WithLabelValues("rescue")))
	assert.Equal(t, 1.0, testutil.ToFloat64(s.SlotsAssigned.WithLabelValues("regular")))
	assert.Equal(t, 3.0, testutil.ToFloat64(s.UnscheduledMatches))
	assert.Equal(t, 1.0, testutil.ToFloat64(s.RescheduleOutcomes.WithLabelValues("declined")))

	rec := httptest.NewRecorder()
	NewMetricsHandler(reg).ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(body), "tourney_schedule_runs_total 1"))
}

func TestMock(t *testing.T) {
	m := NewMock()
	m.IncSlotsAssigned(true)
	m.IncSlotsAssigned(false)
	m.IncConflictOutcome("excluded_both")
	total, rescued := m.SlotsAssigned()
	assert.Equal(t, 2, total)
	assert.Equal(t, 1, rescued)
	assert.Equal(t, 1, m.ConflictOutcome("excluded_both"))
	assert.Equal(t, 0, m.ConflictOutcome("resolved_slot"))
}
