package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var _ Metrics = (*Service)(nil)

// NewMetricsHandler returns an http.Handler for the given Gatherer.
// If no gatherer is provided, it uses the default one.
func NewMetricsHandler(gatherer ...prometheus.Gatherer) http.Handler {
	gath := prometheus.DefaultGatherer
	if len(gatherer) > 0 {
		gath = gatherer[0]
	}
	return promhttp.HandlerFor(gath, promhttp.HandlerOpts{})
}

// NewService creates and registers the Prometheus metrics.
// If no registerer is provided, it uses the default Prometheus registerer.
func NewService(registerer ...prometheus.Registerer) *Service {
	reg := prometheus.DefaultRegisterer
	if len(registerer) > 0 {
		reg = registerer[0]
	}

	s := &Service{
		ScheduleRuns: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tourney_schedule_runs_total",
			Help: "The total number of schedule generations.",
		}),
		SlotsAssigned: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tourney_slots_assigned_total",
			Help: "Slot placements, split into regular and rescue placements.",
		}, []string{"mode"}),
		UnscheduledMatches: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "tourney_unscheduled_matches",
			Help: "Open matches without a slot after the last schedule run.",
		}),
		SchedulingDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "tourney_scheduling_duration_seconds",
			Help:    "The duration of a full schedule generation.",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}),
		ConflictsDetected: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tourney_conflicts_detected_total",
			Help: "Pairings found without any shared availability.",
		}),
		ConflictOutcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tourney_conflict_outcomes_total",
			Help: "Terminal outcomes of conflict negotiations.",
		}, []string{"outcome"}),
		RescheduleRequests: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tourney_reschedule_requests_total",
			Help: "Accepted reschedule requests.",
		}),
		RescheduleOutcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tourney_reschedule_outcomes_total",
			Help: "Terminal outcomes of reschedule negotiations.",
		}, []string{"outcome"}),
		NotificationsSent: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tourney_notifications_sent_total",
			Help: "The total number of notifications successfully sent.",
		}),
		NotificationsFailed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tourney_notifications_failed_total",
			Help: "The total number of notifications that failed to send.",
		}),
		StartupTimeSeconds: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "tourney_startup_duration_seconds",
			Help: "The duration of the application startup in seconds.",
		}),
	}

	reg.MustRegister(
		s.ScheduleRuns,
		s.SlotsAssigned,
		s.UnscheduledMatches,
		s.SchedulingDuration,
		s.ConflictsDetected,
		s.ConflictOutcomes,
		s.RescheduleRequests,
		s.RescheduleOutcomes,
		s.NotificationsSent,
		s.NotificationsFailed,
		s.StartupTimeSeconds,
	)

	return s
}

func (s *Service) IncScheduleRuns() {
	s.ScheduleRuns.Inc()
}

func (s *Service) IncSlotsAssigned(rescue bool) {
	mode := "regular"
	if rescue {
		mode = "rescue"
	}
	s.SlotsAssigned.WithLabelValues(mode).Inc()
}

func (s *Service) SetUnscheduledMatches(n int) {
	s.UnscheduledMatches.Set(float64(n))
}

func (s *Service) ObserveSchedulingDuration(seconds float64) {
	s.SchedulingDuration.Observe(seconds)
}

func (s *Service) IncConflictsDetected() {
	s.ConflictsDetected.Inc()
}

func (s *Service) IncConflictOutcome(outcome string) {
	s.ConflictOutcomes.WithLabelValues(outcome).Inc()
}

func (s *Service) IncRescheduleRequests() {
	s.RescheduleRequests.Inc()
}

func (s *Service) IncRescheduleOutcome(outcome string) {
	s.RescheduleOutcomes.WithLabelValues(outcome).Inc()
}

func (s *Service) IncNotificationSent() {
	s.NotificationsSent.Inc()
}

func (s *Service) IncNotificationFailed() {
	s.NotificationsFailed.Inc()
}

func (s *Service) SetStartupTime(duration float64) {
	s.StartupTimeSeconds.Set(duration)
}
