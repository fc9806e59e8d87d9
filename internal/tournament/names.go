package tournament

import (
	"math/rand"

	"github.com/gosimple/slug"
)

var (
	adjectives = []string{
		"Swift", "Crimson", "Silent", "Golden", "Rapid", "Lucky", "Fierce", "Clever",
		"Brave", "Mighty", "Wild", "Frosty", "Electric", "Shadow", "Iron", "Cosmic",
	}
	nouns = []string{
		"Falcons", "Wolves", "Tigers", "Owls", "Sharks", "Foxes", "Comets", "Dragons",
		"Ravens", "Lynxes", "Rockets", "Vipers", "Bears", "Hawks", "Titans", "Otters",
	}
)

// maxNameAttempts bounds the retries for a unique team name.
const maxNameAttempts = 64

// NameGenerator produces candidate team names.
type NameGenerator interface {
	Next() string
}

type randomNames struct {
	rng *rand.Rand
}

// NewNameGenerator returns an adjective+noun generator driven by rng.
func NewNameGenerator(rng *rand.Rand) NameGenerator {
	return &randomNames{rng: rng}
}

func (g *randomNames) Next() string {
	return adjectives[g.rng.Intn(len(adjectives))] + " " + nouns[g.rng.Intn(len(nouns))]
}

// NameKey normalises a team name for collision checks.
func NameKey(name string) string {
	return slug.Make(name)
}

// NameTaken reports whether a team with an equivalent name exists.
func (s *State) NameTaken(name string) bool {
	key := NameKey(name)
	for _, t := range s.Teams {
		if NameKey(t.Name) == key {
			return true
		}
	}
	return false
}

// UniqueName draws names until one is free. ok is false when every attempt collided.
func (s *State) UniqueName(names NameGenerator) (string, bool) {
	for range maxNameAttempts {
		candidate := names.Next()
		if !s.NameTaken(candidate) {
			return candidate, true
		}
	}
	return "", false
}
