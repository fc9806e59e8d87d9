package tournament

import "github.com/charmbracelet/log"

// GeneratePairings returns one match per unordered pair of active teams, with
// IDs assigned sequentially from firstID. Fewer than two active teams yields nil.
func GeneratePairings(teams []*Team, firstID int) []*Match {
	var active []*Team
	for _, t := range teams {
		if t.Status == TeamActive {
			active = append(active, t)
		}
	}
	if len(active) < 2 {
		return nil
	}

	matches := make([]*Match, 0, len(active)*(len(active)-1)/2)
	id := firstID
	for i := 0; i < len(active); i++ {
		for j := i + 1; j < len(active); j++ {
			matches = append(matches, &Match{
				ID:     id,
				Team1:  active[i].Name,
				Team2:  active[j].Name,
				Status: MatchOpen,
			})
			id++
		}
	}
	return matches
}

// CreateRoundRobin replaces the match list with a fresh round robin starting at ID 1.
func (s *State) CreateRoundRobin() []*Match {
	s.Matches = GeneratePairings(s.Teams, 1)
	s.NextMatchID = len(s.Matches) + 1
	log.Info("Generated round robin", "teams", len(s.ActiveTeams()), "matches", len(s.Matches))
	return s.Matches
}
