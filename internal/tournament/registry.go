package tournament

import (
	"fmt"
	"math/rand"
	"slices"
	"time"

	"github.com/charmbracelet/log"
	"github.com/mauv0809/tourney/internal/availability"
)

// AddSolo registers a member without a partner.
func (s *State) AddSolo(member string, week availability.Week) error {
	if !s.RegistrationOpen {
		return fmt.Errorf("%w: registration is closed", ErrInvariant)
	}
	if s.Solo(member) != nil || s.TeamOf(member) != nil {
		return fmt.Errorf("%w: %s is already registered", ErrInvariant, member)
	}
	if week == nil {
		week = availability.NewWeek()
	}
	s.Solos = append(s.Solos, &SoloEntrant{Member: member, Availability: week})
	log.Info("Registered solo entrant", "member", member)
	return nil
}

// RegisterTeam registers a complete team of two.
func (s *State) RegisterTeam(name string, members []string, week availability.Week) (*Team, error) {
	if !s.RegistrationOpen {
		return nil, fmt.Errorf("%w: registration is closed", ErrInvariant)
	}
	if len(members) != 2 || members[0] == members[1] {
		return nil, fmt.Errorf("%w: a team needs two distinct members", ErrInvariant)
	}
	if s.NameTaken(name) {
		return nil, fmt.Errorf("%w: team name %q is taken", ErrConflict, name)
	}
	for _, m := range members {
		if s.Solo(m) != nil || s.TeamOf(m) != nil {
			return nil, fmt.Errorf("%w: %s is already registered", ErrInvariant, m)
		}
	}
	if week == nil {
		week = availability.NewWeek()
	}
	team := &Team{Name: name, Members: slices.Clone(members), Availability: week, Status: TeamActive}
	s.Teams = append(s.Teams, team)
	log.Info("Registered team", "team", name, "members", members)
	return team, nil
}

// SetAvailability stores a day range for the member's team, or their solo entry.
func (s *State) SetAvailability(member, day, raw string) error {
	week, err := s.weekOf(member)
	if err != nil {
		return err
	}
	return week.SetRaw(day, raw)
}

// AddUnavailableDate blacklists a calendar date ("2006-01-02") for the member's team or solo entry.
func (s *State) AddUnavailableDate(member, date string) error {
	if _, err := time.Parse(DateLayout, date); err != nil {
		return fmt.Errorf("%w: date %q must look like %s", ErrFormat, date, DateLayout)
	}
	if t := s.TeamOf(member); t != nil {
		if !slices.Contains(t.UnavailableDates, date) {
			t.UnavailableDates = append(t.UnavailableDates, date)
		}
		return nil
	}
	if e := s.Solo(member); e != nil {
		if !slices.Contains(e.UnavailableDates, date) {
			e.UnavailableDates = append(e.UnavailableDates, date)
		}
		return nil
	}
	return fmt.Errorf("%w: %s is not registered", ErrNotFound, member)
}

func (s *State) weekOf(member string) (availability.Week, error) {
	if t := s.TeamOf(member); t != nil {
		if t.Availability == nil {
			t.Availability = availability.NewWeek()
		}
		return t.Availability, nil
	}
	if e := s.Solo(member); e != nil {
		if e.Availability == nil {
			e.Availability = availability.NewWeek()
		}
		return e.Availability, nil
	}
	return nil, fmt.Errorf("%w: %s is not registered", ErrNotFound, member)
}

// AutoPair shuffles the solo pool and pairs consecutive entrants into new teams.
// An odd entrant out stays in the pool.
func (s *State) AutoPair(rng *rand.Rand, names NameGenerator) []*Team {
	pool := s.Solos
	rng.Shuffle(len(pool), func(i, j int) { pool[i], pool[j] = pool[j], pool[i] })

	var formed []*Team
	var left []*SoloEntrant
	for i := 0; i+1 < len(pool); i += 2 {
		a, b := pool[i], pool[i+1]
		name, ok := s.UniqueName(names)
		if !ok {
			log.Warn("Could not find a unique team name, returning pair to solo pool", "members", []string{a.Member, b.Member})
			left = append(left, a, b)
			continue
		}
		team := &Team{
			Name:             name,
			Members:          []string{a.Member, b.Member},
			Availability:     availability.IntersectWeek(a.Availability, b.Availability),
			UnavailableDates: unionDates(a.UnavailableDates, b.UnavailableDates),
			Status:           TeamActive,
		}
		s.Teams = append(s.Teams, team)
		formed = append(formed, team)
		log.Info("Formed team from solo entrants", "team", name, "members", team.Members)
	}
	if len(pool)%2 == 1 {
		left = append(left, pool[len(pool)-1])
	}
	s.Solos = left
	return formed
}

func unionDates(a, b []string) []string {
	out := slices.Clone(a)
	for _, d := range b {
		if !slices.Contains(out, d) {
			out = append(out, d)
		}
	}
	return out
}

// CleanupOrphans dissolves every active team left with a single member.
func (s *State) CleanupOrphans() []string {
	var dissolved []string
	for _, t := range slices.Clone(s.Teams) {
		if t.Status == TeamActive && len(t.Members) == 1 {
			s.dissolve(t)
			dissolved = append(dissolved, t.Name)
		}
	}
	return dissolved
}

// dissolve returns the remaining member to the solo pool. Teams referenced by
// matches are withdrawn instead of removed.
func (s *State) dissolve(t *Team) []int {
	for _, m := range t.Members {
		if s.Solo(m) == nil {
			s.Solos = append(s.Solos, &SoloEntrant{
				Member:           m,
				Availability:     t.Availability.Clone(),
				UnavailableDates: slices.Clone(t.UnavailableDates),
			})
		}
	}
	if s.referenced(t.Name) {
		log.Info("Withdrawing orphaned team", "team", t.Name)
		return s.Withdraw(t.Name)
	}
	s.Teams = slices.DeleteFunc(s.Teams, func(x *Team) bool { return x == t })
	log.Info("Dissolved orphaned team", "team", t.Name)
	return nil
}

func (s *State) referenced(team string) bool {
	for _, m := range s.Matches {
		if m.Involves(team) {
			return true
		}
	}
	return false
}

// Leave removes a member from the tournament. A team left with one member is
// dissolved. It returns the matches forfeited as a result.
func (s *State) Leave(member string) ([]int, error) {
	if e := s.Solo(member); e != nil {
		s.Solos = slices.DeleteFunc(s.Solos, func(x *SoloEntrant) bool { return x == e })
		log.Info("Solo entrant left", "member", member)
		return nil, nil
	}
	t := s.TeamOf(member)
	if t == nil {
		return nil, fmt.Errorf("%w: %s is not registered", ErrNotFound, member)
	}
	t.Members = slices.DeleteFunc(t.Members, func(m string) bool { return m == member })
	log.Info("Member left team", "member", member, "team", t.Name, "remaining", len(t.Members))
	if len(t.Members) == 0 {
		return s.Withdraw(t.Name), nil
	}
	return s.dissolve(t), nil
}

// Withdraw marks the team withdrawn and forfeits its open matches.
func (s *State) Withdraw(team string) []int {
	t := s.Team(team)
	if t == nil {
		return nil
	}
	t.Status = TeamWithdrawn
	return s.forfeitOpenMatches(team)
}

// Exclude marks the team excluded and forfeits its open matches.
func (s *State) Exclude(team, reason string) ([]int, error) {
	return s.ExcludeTeams(reason, team)
}

// ExcludeTeams excludes every given team before forfeiting, so a match between
// two excluded teams ends without a winner.
func (s *State) ExcludeTeams(reason string, teams ...string) ([]int, error) {
	for _, name := range teams {
		if s.Team(name) == nil {
			return nil, fmt.Errorf("%w: team %q", ErrNotFound, name)
		}
	}
	for _, name := range teams {
		t := s.Team(name)
		t.Status = TeamExcluded
		t.ExcludedReason = reason
		log.Info("Excluded team", "team", name, "reason", reason)
	}
	var ids []int
	for _, name := range teams {
		ids = append(ids, s.forfeitOpenMatches(name)...)
	}
	return ids, nil
}

func (s *State) forfeitOpenMatches(team string) []int {
	var ids []int
	for _, m := range s.Matches {
		if m.Terminal() || !m.Involves(team) {
			continue
		}
		s.Forfeit(m, team)
		ids = append(ids, m.ID)
	}
	return ids
}

// Forfeit ends the match against the given team. The opponent wins unless it
// is no longer active, in which case nobody does.
func (s *State) Forfeit(m *Match, by string) {
	m.Status = MatchForfeit
	m.ForfeitBy = by
	m.Reschedule = nil
	opponent := s.Team(m.Opponent(by))
	if opponent != nil && opponent.Status == TeamActive {
		m.Winner = opponent.Name
		opponent.Wins++
	} else {
		m.Winner = ""
		m.NoWinner = true
	}
	log.Info("Match forfeited", "matchID", m.ID, "forfeitBy", by, "winner", m.Winner)
}

// RecordResult completes a match with the given winner.
func (s *State) RecordResult(matchID int, winner string) error {
	m := s.Match(matchID)
	if m == nil {
		return fmt.Errorf("%w: match %d", ErrNotFound, matchID)
	}
	if m.Terminal() {
		return fmt.Errorf("%w: match %d is already %s", ErrInvariant, matchID, m.Status)
	}
	if !m.Involves(winner) {
		return fmt.Errorf("%w: %q does not play match %d", ErrInvariant, winner, matchID)
	}
	m.Status = MatchCompleted
	m.Winner = winner
	m.Reschedule = nil
	if t := s.Team(winner); t != nil {
		t.Wins++
	}
	return nil
}
