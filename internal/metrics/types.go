package metrics

import "github.com/prometheus/client_golang/prometheus"

// Service holds all the Prometheus metrics for the application.
type Service struct {
	ScheduleRuns        prometheus.Counter
	SlotsAssigned       *prometheus.CounterVec
	UnscheduledMatches  prometheus.Gauge
	SchedulingDuration  prometheus.Histogram
	ConflictsDetected   prometheus.Counter
	ConflictOutcomes    *prometheus.CounterVec
	RescheduleRequests  prometheus.Counter
	RescheduleOutcomes  *prometheus.CounterVec
	NotificationsSent   prometheus.Counter
	NotificationsFailed prometheus.Counter
	StartupTimeSeconds  prometheus.Gauge
}
