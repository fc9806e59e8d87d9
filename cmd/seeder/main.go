package main

import (
	"context"
	"fmt"
	"math/rand"
	"os"
	"strconv"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/mauv0809/tourney/internal/availability"
	"github.com/mauv0809/tourney/internal/database"
	"github.com/mauv0809/tourney/internal/store"
	"github.com/mauv0809/tourney/internal/tournament"
)

// Simplified config loading for the script
func loadConfig() map[string]string {
	err := godotenv.Load()
	if err != nil {
		log.Warn("No .env file found, reading from environment variables")
	}

	config := map[string]string{
		"DB_NAME":    "tourney.db",
		"SEED_TEAMS": "8",
		"SEED_SOLOS": "3",
	}
	for _, key := range []string{"DB_NAME", "TURSO_PRIMARY_URL", "TURSO_AUTH_TOKEN", "SEED_TEAMS", "SEED_SOLOS"} {
		if value, ok := os.LookupEnv(key); ok {
			config[key] = value
		}
	}
	return config
}

func count(cfg map[string]string, key string) int {
	n, err := strconv.Atoi(cfg[key])
	if err != nil || n < 0 {
		log.Fatalf("Error: %s must be a non-negative number, got %q", key, cfg[key])
	}
	return n
}

// randomWeek gives every entrant a Saturday, a Sunday or both.
func randomWeek(rng *rand.Rand) availability.Week {
	starts := []int{9, 10, 12, 14}
	week := availability.NewWeek()
	for _, day := range []string{"saturday", "sunday"} {
		if rng.Intn(4) == 0 {
			continue
		}
		from := starts[rng.Intn(len(starts))]
		week[day] = fmt.Sprintf("%02d:00-%02d:00", from, from+4+rng.Intn(5))
	}
	if week["saturday"] == availability.Unavailable && week["sunday"] == availability.Unavailable {
		week["saturday"] = "10:00-18:00"
	}
	return week
}

func main() {
	log.Info("Starting tournament seeder...")
	cfg := loadConfig()
	teams, solos := count(cfg, "SEED_TEAMS"), count(cfg, "SEED_SOLOS")

	db, teardown, err := database.InitDB(cfg["DB_NAME"], cfg["TURSO_PRIMARY_URL"], cfg["TURSO_AUTH_TOKEN"])
	if err != nil {
		log.Fatalf("Failed to open database: %s", err)
	}
	defer teardown()
	log.Info("Successfully connected to the database.")

	ctx := context.Background()
	repo := tournament.NewRepository(store.NewSQL(db))
	rng := rand.New(rand.NewSource(rand.Int63()))
	names := tournament.NewNameGenerator(rng)

	err = repo.Update(ctx, func(s *tournament.State) error {
		if !s.RegistrationOpen {
			return fmt.Errorf("registration is already closed, nothing to seed")
		}
		for range teams {
			name, ok := s.UniqueName(names)
			if !ok {
				return fmt.Errorf("ran out of team names after %d teams", len(s.Teams))
			}
			members := []string{uuid.NewString(), uuid.NewString()}
			if _, err := s.RegisterTeam(name, members, randomWeek(rng)); err != nil {
				return fmt.Errorf("failed to register %s: %w", name, err)
			}
		}
		for range solos {
			if err := s.AddSolo(uuid.NewString(), randomWeek(rng)); err != nil {
				return fmt.Errorf("failed to add solo entrant: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		log.Fatalf("Failed to seed tournament: %s", err)
	}
	log.Info("Seeded tournament", "teams", teams, "solos", solos)
}
