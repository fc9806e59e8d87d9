package tournament

import (
	"errors"

	"github.com/mauv0809/tourney/internal/availability"
)

var (
	// ErrFormat marks malformed ranges and timestamps.
	ErrFormat = availability.ErrFormat
	// ErrCapacity marks schedules that cannot hold every pairing.
	ErrCapacity = errors.New("capacity error")
	// ErrConflict marks a slot or team that became invalid before commit.
	ErrConflict = errors.New("conflict")
	// ErrInvariant marks a guarded precondition failure.
	ErrInvariant = errors.New("invariant violation")
	ErrNotFound  = errors.New("not found")
	ErrForbidden = errors.New("forbidden")
)
