package tournament_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/mauv0809/tourney/internal/store"
	"github.com/mauv0809/tourney/internal/tournament"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRepository_Update(t *testing.T) {
	ctx := context.Background()
	repo := tournament.NewRepository(store.NewMemory())

	require.NoError(t, repo.Update(ctx, func(s *tournament.State) error {
		s.Teams = activeTeams(3)
		s.CreateRoundRobin()
		return nil
	}))

	t.Run("failed transaction leaves state untouched", func(t *testing.T) {
		boom := errors.New("boom")
		err := repo.Update(ctx, func(s *tournament.State) error {
			s.Matches = nil
			return boom
		})
		assert.ErrorIs(t, err, boom)
		require.NoError(t, repo.View(ctx, func(s *tournament.State) error {
			assert.Len(t, s.Matches, 3)
			return nil
		}))
	})

	t.Run("invalid result is not committed", func(t *testing.T) {
		slot := time.Date(2026, 11, 7, 14, 0, 0, 0, time.UTC)
		err := repo.Update(ctx, func(s *tournament.State) error {
			s.Match(1).Schedule(slot, false)
			s.Match(2).Schedule(slot, false)
			return nil
		})
		assert.ErrorIs(t, err, tournament.ErrInvariant)
		require.NoError(t, repo.View(ctx, func(s *tournament.State) error {
			assert.Nil(t, s.Match(1).ScheduledTime)
			return nil
		}))
	})

	t.Run("view discards changes", func(t *testing.T) {
		require.NoError(t, repo.View(ctx, func(s *tournament.State) error {
			s.Matches = nil
			return nil
		}))
		require.NoError(t, repo.View(ctx, func(s *tournament.State) error {
			assert.Len(t, s.Matches, 3)
			return nil
		}))
	})
}

func TestRepository_ConcurrentUpdatesAreSerialised(t *testing.T) {
	ctx := context.Background()
	repo := tournament.NewRepository(store.NewMemory())

	var wg sync.WaitGroup
	for range 20 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, repo.Update(ctx, func(s *tournament.State) error {
				s.Extensions++
				return nil
			}))
		}()
	}
	wg.Wait()

	require.NoError(t, repo.View(ctx, func(s *tournament.State) error {
		assert.Equal(t, 20, s.Extensions)
		return nil
	}))
}
