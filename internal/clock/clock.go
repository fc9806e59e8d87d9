package clock

import (
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

// Real schedules callbacks on a clockwork clock.
type Real struct {
	clk clockwork.Clock

	mu     sync.Mutex
	next   Handle
	timers map[Handle]clockwork.Timer
}

var _ Scheduler = (*Real)(nil)

// New returns a Scheduler backed by the wall clock.
func New() *Real {
	return NewWith(clockwork.NewRealClock())
}

// NewWith schedules on the given clockwork clock.
func NewWith(clk clockwork.Clock) *Real {
	return &Real{clk: clk, timers: make(map[Handle]clockwork.Timer)}
}

func (c *Real) Now() time.Time {
	return c.clk.Now()
}

func (c *Real) After(d time.Duration, fn func()) Handle {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.next++
	h := c.next
	c.timers[h] = c.clk.AfterFunc(d, func() {
		// Whoever removes the handle first owns it: the firing timer or Cancel.
		if !c.take(h) {
			return
		}
		fn()
	})
	return h
}

func (c *Real) Cancel(h Handle) bool {
	c.mu.Lock()
	t, ok := c.timers[h]
	delete(c.timers, h)
	c.mu.Unlock()
	if !ok {
		return false
	}
	t.Stop()
	return true
}

// Pending returns the number of callbacks that have neither fired nor been cancelled.
func (c *Real) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.timers)
}

func (c *Real) take(h Handle) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.timers[h]; !ok {
		return false
	}
	delete(c.timers, h)
	return true
}
