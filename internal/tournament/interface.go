package tournament

import "context"

// Backend persists the whole tournament dataset.
type Backend interface {
	// Load returns the stored state, or a fresh one if nothing has been saved yet.
	// Every call must return a value the caller may mutate freely.
	Load(ctx context.Context) (*State, error)
	// Save replaces the stored state. Readers never observe a partial write.
	Save(ctx context.Context, state *State) error
}

// Repository is the only way to read or change tournament state.
type Repository interface {
	// View runs fn against a snapshot. Changes made by fn are discarded.
	View(ctx context.Context, fn func(*State) error) error
	// Update runs fn as one read-modify-write transaction. The state is saved
	// only if fn succeeds and the result passes Validate.
	Update(ctx context.Context, fn func(*State) error) error
}
