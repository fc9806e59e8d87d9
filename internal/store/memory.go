package store

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/mauv0809/tourney/internal/tournament"
)

// Memory keeps the state as encoded bytes so every Load hands out a fresh copy.
type Memory struct {
	mu   sync.Mutex
	data []byte
}

var _ tournament.Backend = (*Memory)(nil)

func NewMemory() *Memory {
	return &Memory{}
}

func (m *Memory) Load(ctx context.Context) (*tournament.State, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.data == nil {
		return tournament.NewState(), nil
	}
	var state tournament.State
	if err := json.Unmarshal(m.data, &state); err != nil {
		return nil, err
	}
	return &state, nil
}

func (m *Memory) Save(ctx context.Context, state *tournament.State) error {
	data, err := json.Marshal(state)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data = data
	return nil
}
