package clock

import "time"

// Handle identifies a pending callback.
type Handle uint64

// Scheduler is the only timing primitive the negotiation code uses.
type Scheduler interface {
	// Now returns the current time.
	Now() time.Time
	// After runs fn once after d, unless the handle is cancelled first.
	After(d time.Duration, fn func()) Handle
	// Cancel stops a pending callback. It reports whether the callback was
	// still pending; cancelling a fired or unknown handle is a no-op.
	Cancel(h Handle) bool
}
