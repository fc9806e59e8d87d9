package metrics

import "sync"

// Mock is a mock implementation of the Metrics interface for testing.
// It is safe for concurrent use.
type Mock struct {
	mu                  sync.Mutex
	scheduleRuns        int
	slotsAssigned       int
	slotsRescued        int
	unscheduled         int
	schedulingDurations []float64
	conflictsDetected   int
	conflictOutcomes    map[string]int
	rescheduleRequests  int
	rescheduleOutcomes  map[string]int
	notificationsSent   int
	notificationsFailed int
	startupTime         float64
}

var _ Metrics = (*Mock)(nil)

// NewMock creates a new mock instance.
func NewMock() *Mock {
	return &Mock{
		conflictOutcomes:   make(map[string]int),
		rescheduleOutcomes: make(map[string]int),
	}
}

func (m *Mock) IncScheduleRuns() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.scheduleRuns++
}

func (m *Mock) IncSlotsAssigned(rescue bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.slotsAssigned++
	if rescue {
		m.slotsRescued++
	}
}

func (m *Mock) SetUnscheduledMatches(n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.unscheduled = n
}

func (m *Mock) ObserveSchedulingDuration(seconds float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.schedulingDurations = append(m.schedulingDurations, seconds)
}

func (m *Mock) IncConflictsDetected() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.conflictsDetected++
}

func (m *Mock) IncConflictOutcome(outcome string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.conflictOutcomes[outcome]++
}

func (m *Mock) IncRescheduleRequests() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rescheduleRequests++
}

func (m *Mock) IncRescheduleOutcome(outcome string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rescheduleOutcomes[outcome]++
}

func (m *Mock) IncNotificationSent() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.notificationsSent++
}

func (m *Mock) IncNotificationFailed() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.notificationsFailed++
}

func (m *Mock) SetStartupTime(duration float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.startupTime = duration
}

// ScheduleRuns returns the number of times IncScheduleRuns was called.
func (m *Mock) ScheduleRuns() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.scheduleRuns
}

// SlotsAssigned returns the total and rescued placements recorded.
func (m *Mock) SlotsAssigned() (total, rescued int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.slotsAssigned, m.slotsRescued
}

// Unscheduled returns the last value passed to SetUnscheduledMatches.
func (m *Mock) Unscheduled() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.unscheduled
}

// ConflictsDetected returns the number of times IncConflictsDetected was called.
func (m *Mock) ConflictsDetected() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.conflictsDetected
}

// ConflictOutcome returns how often the outcome was recorded.
func (m *Mock) ConflictOutcome(outcome string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.conflictOutcomes[outcome]
}

// RescheduleRequests returns the number of times IncRescheduleRequests was called.
func (m *Mock) RescheduleRequests() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.rescheduleRequests
}

// RescheduleOutcome returns how often the outcome was recorded.
func (m *Mock) RescheduleOutcome(outcome string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.rescheduleOutcomes[outcome]
}

// NotificationsSent returns the number of times IncNotificationSent was called.
func (m *Mock) NotificationsSent() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.notificationsSent
}

// NotificationsFailed returns the number of times IncNotificationFailed was called.
func (m *Mock) NotificationsFailed() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.notificationsFailed
}
