package processor

import (
	"context"
	"time"
)

// History records published schedules. store.SQL implements it.
type History interface {
	RecordPublication(ctx context.Context, at time.Time, matches, unscheduled, rescued int) error
}
