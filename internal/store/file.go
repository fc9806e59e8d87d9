package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/charmbracelet/log"
	"github.com/mauv0809/tourney/internal/tournament"
)

// File stores the tournament as one JSON document on disk.
type File struct {
	path string
}

var _ tournament.Backend = (*File)(nil)

func NewFile(path string) *File {
	return &File{path: path}
}

func (f *File) Load(ctx context.Context) (*tournament.State, error) {
	data, err := os.ReadFile(f.path)
	if errors.Is(err, os.ErrNotExist) {
		log.Info("No tournament file found, starting fresh", "path", f.path)
		return tournament.NewState(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", f.path, err)
	}
	var state tournament.State
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", f.path, err)
	}
	return &state, nil
}

// Save writes to a temporary file next to the target and renames it into place.
func (f *File) Save(ctx context.Context, state *tournament.State) error {
	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode state: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(f.path), filepath.Base(f.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to sync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if err := os.Rename(tmp.Name(), f.path); err != nil {
		return fmt.Errorf("failed to replace %s: %w", f.path, err)
	}
	log.Debug("Saved tournament state", "path", f.path, "bytes", len(data))
	return nil
}
