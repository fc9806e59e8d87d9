package metrics

// Metrics defines the interface for collecting application metrics.
// This decouples the scheduling code from the specific metrics implementation (e.g., Prometheus).
type Metrics interface {
	IncScheduleRuns()
	IncSlotsAssigned(rescue bool)
	SetUnscheduledMatches(n int)
	ObserveSchedulingDuration(seconds float64)
	IncConflictsDetected()
	IncConflictOutcome(outcome string)
	IncRescheduleRequests()
	IncRescheduleOutcome(outcome string)
	IncNotificationSent()
	IncNotificationFailed()
	SetStartupTime(duration float64)
}
