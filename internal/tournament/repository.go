package tournament

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/charmbracelet/log"
)

type repository struct {
	backend Backend
	mu      sync.Mutex
	now     func() time.Time
}

var _ Repository = (*repository)(nil)

// NewRepository serialises every transaction against backend behind one lock.
func NewRepository(backend Backend) Repository {
	return &repository{backend: backend, now: time.Now}
}

func (r *repository) View(ctx context.Context, fn func(*State) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	state, err := r.backend.Load(ctx)
	if err != nil {
		return fmt.Errorf("failed to load tournament state: %w", err)
	}
	return fn(state)
}

func (r *repository) Update(ctx context.Context, fn func(*State) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	state, err := r.backend.Load(ctx)
	if err != nil {
		return fmt.Errorf("failed to load tournament state: %w", err)
	}
	if err := fn(state); err != nil {
		return err
	}
	if err := state.Validate(); err != nil {
		log.Error("Refusing to commit invalid tournament state", "error", err)
		return err
	}
	state.UpdatedAt = r.now().UTC()
	if err := r.backend.Save(ctx, state); err != nil {
		return fmt.Errorf("failed to save tournament state: %w", err)
	}
	return nil
}
