package notifier

import (
	"context"
	"sync"
)

// NotifyCall holds the arguments for a call to Notify.
type NotifyCall struct {
	Recipients []string
	Prompt     Prompt
}

// Mock is a mock implementation of the Notifier interface for testing.
// It is safe for concurrent use.
type Mock struct {
	mu sync.Mutex

	// Spies
	NotifyFunc    func(recipients []string, p Prompt) (Delivery, error)
	BroadcastFunc func(p Prompt) error

	// Call records
	NotifyCalls    []NotifyCall
	BroadcastCalls []Prompt
}

var _ Notifier = (*Mock)(nil)

// NewMock creates a new mock instance.
func NewMock() *Mock {
	return &Mock{}
}

// Reset clears all call records.
func (m *Mock) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.NotifyCalls = nil
	m.BroadcastCalls = nil
}

func (m *Mock) Notify(ctx context.Context, recipients []string, p Prompt) (Delivery, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.NotifyCalls = append(m.NotifyCalls, NotifyCall{Recipients: recipients, Prompt: p})
	if m.NotifyFunc != nil {
		return m.NotifyFunc(recipients, p)
	}
	return Delivery{Delivered: recipients}, nil
}

func (m *Mock) Broadcast(ctx context.Context, p Prompt) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.BroadcastCalls = append(m.BroadcastCalls, p)
	if m.BroadcastFunc != nil {
		return m.BroadcastFunc(p)
	}
	return nil
}

// Notified returns a copy of the Notify call records.
func (m *Mock) Notified() []NotifyCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]NotifyCall(nil), m.NotifyCalls...)
}

// Broadcasts returns a copy of the Broadcast call records.
func (m *Mock) Broadcasts() []Prompt {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Prompt(nil), m.BroadcastCalls...)
}

// LastNotify returns the most recent Notify call.
func (m *Mock) LastNotify() (NotifyCall, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.NotifyCalls) == 0 {
		return NotifyCall{}, false
	}
	return m.NotifyCalls[len(m.NotifyCalls)-1], true
}
