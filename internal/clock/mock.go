package clock

import (
	"sort"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

// fakeClock is the part of clockwork's fake clock Fake drives.
type fakeClock interface {
	clockwork.Clock
	Advance(d time.Duration)
}

// Fake is a manually advanced clock for tests. It is safe for concurrent use.
//
// clockwork may fire AfterFunc callbacks on their own goroutines, so Fake only
// uses the timers to learn that a deadline passed. Advance waits for every due
// timer and then runs the callbacks itself, in deadline order.
type Fake struct {
	clk fakeClock

	mu      sync.Mutex
	next    Handle
	pending map[Handle]*fakeTimer
}

type fakeTimer struct {
	at    time.Time
	fn    func()
	timer clockwork.Timer
	fired chan struct{}
}

var _ Scheduler = (*Fake)(nil)

func NewFake(now time.Time) *Fake {
	return &Fake{clk: clockwork.NewFakeClockAt(now), pending: make(map[Handle]*fakeTimer)}
}

func (f *Fake) Now() time.Time {
	return f.clk.Now()
}

func (f *Fake) After(d time.Duration, fn func()) Handle {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.next++
	t := &fakeTimer{at: f.clk.Now().Add(d), fn: fn, fired: make(chan struct{})}
	t.timer = f.clk.AfterFunc(d, func() { close(t.fired) })
	f.pending[f.next] = t
	return f.next
}

func (f *Fake) Cancel(h Handle) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	t, ok := f.pending[h]
	if !ok {
		return false
	}
	delete(f.pending, h)
	t.timer.Stop()
	return true
}

// Pending returns the number of armed callbacks.
func (f *Fake) Pending() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.pending)
}

// Advance moves time forward and runs every callback that became due, in
// deadline order, outside the clock's lock.
func (f *Fake) Advance(d time.Duration) {
	f.mu.Lock()
	f.clk.Advance(d)
	now := f.clk.Now()
	var due []Handle
	for h, t := range f.pending {
		if !t.at.After(now) {
			due = append(due, h)
		}
	}
	sort.Slice(due, func(i, j int) bool {
		a, b := f.pending[due[i]], f.pending[due[j]]
		if a.at.Equal(b.at) {
			return due[i] < due[j]
		}
		return a.at.Before(b.at)
	})
	timers := make([]*fakeTimer, 0, len(due))
	for _, h := range due {
		timers = append(timers, f.pending[h])
		delete(f.pending, h)
	}
	f.mu.Unlock()

	for _, t := range timers {
		<-t.fired
		t.fn()
	}
}
