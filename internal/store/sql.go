package store

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/charmbracelet/log"
	"github.com/mauv0809/tourney/internal/tournament"
	"github.com/vmihailenco/msgpack/v5"
)

// SQL stores the tournament as a msgpack blob in a single row.
type SQL struct {
	db *sql.DB
}

var _ tournament.Backend = (*SQL)(nil)

func NewSQL(db *sql.DB) *SQL {
	return &SQL{db: db}
}

func (s *SQL) Load(ctx context.Context) (*tournament.State, error) {
	var payload []byte
	err := s.db.QueryRowContext(ctx, "SELECT payload FROM tournament_state WHERE id = 1").Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return tournament.NewState(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query tournament state: %w", err)
	}
	return decodeState(payload)
}

func (s *SQL) Save(ctx context.Context, state *tournament.State) error {
	payload, err := encodeState(state)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO tournament_state (id, payload, updated_at) VALUES (1, ?, ?)
		ON CONFLICT(id) DO UPDATE SET payload = excluded.payload, updated_at = excluded.updated_at`,
		payload, time.Now().Unix())
	if err != nil {
		return fmt.Errorf("failed to save tournament state: %w", err)
	}
	log.Debug("Saved tournament state", "bytes", len(payload))
	return nil
}

// RecordPublication appends a row to the schedule publication history.
func (s *SQL) RecordPublication(ctx context.Context, at time.Time, matches, unscheduled, rescued int) error {
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO schedule_publications (published_at, matches, unscheduled, rescued) VALUES (?, ?, ?, ?)",
		at.Unix(), matches, unscheduled, rescued)
	if err != nil {
		return fmt.Errorf("failed to record publication: %w", err)
	}
	return nil
}

// Publications returns how many schedules have been published.
func (s *SQL) Publications(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM schedule_publications").Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count publications: %w", err)
	}
	return n, nil
}

func encodeState(state *tournament.State) ([]byte, error) {
	var buf bytes.Buffer
	enc := msgpack.NewEncoder(&buf)
	enc.SetCustomStructTag("json")
	if err := enc.Encode(state); err != nil {
		return nil, fmt.Errorf("failed to encode state: %w", err)
	}
	return buf.Bytes(), nil
}

func decodeState(payload []byte) (*tournament.State, error) {
	dec := msgpack.NewDecoder(bytes.NewReader(payload))
	dec.SetCustomStructTag("json")
	var state tournament.State
	if err := dec.Decode(&state); err != nil {
		return nil, fmt.Errorf("failed to decode state: %w", err)
	}
	return &state, nil
}
