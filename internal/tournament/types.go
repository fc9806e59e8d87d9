package tournament

import (
	"time"

	"github.com/mauv0809/tourney/internal/availability"
)

type TeamStatus string

const (
	TeamActive    TeamStatus = "active"
	TeamWithdrawn TeamStatus = "withdrawn"
	TeamExcluded  TeamStatus = "excluded"
)

type MatchStatus string

const (
	MatchOpen      MatchStatus = "open"
	MatchScheduled MatchStatus = "scheduled"
	MatchForfeit   MatchStatus = "forfeit"
	MatchCompleted MatchStatus = "completed"
)

// ReasonAvailabilityConflict is recorded on teams excluded by a conflict negotiation.
const ReasonAvailabilityConflict = "availability_conflict"

// DateLayout is the layout of blacklisted calendar dates.
const DateLayout = "2006-01-02"

// Team is a registered pair of members.
type Team struct {
	Name             string            `json:"name"`
	Members          []string          `json:"members"`
	Availability     availability.Week `json:"availability"`
	UnavailableDates []string          `json:"unavailable_dates,omitempty"`
	Status           TeamStatus        `json:"status"`
	Wins             int               `json:"wins"`
	ExcludedReason   string            `json:"excluded_reason,omitempty"`
}

// SoloEntrant is a member waiting to be paired into a team.
type SoloEntrant struct {
	Member           string            `json:"member"`
	Availability     availability.Week `json:"availability"`
	UnavailableDates []string          `json:"unavailable_dates,omitempty"`
}

// ReschedulePending holds the persisted trace of a reschedule vote in flight.
type ReschedulePending struct {
	RequestedBy  string    `json:"requested_by"`
	ProposedTime time.Time `json:"proposed_time"`
	Since        time.Time `json:"since"`
}

// Match is one pairing of two teams.
type Match struct {
	ID              int                `json:"id"`
	Team1           string             `json:"team1"`
	Team2           string             `json:"team2"`
	Status          MatchStatus        `json:"status"`
	ScheduledTime   *time.Time         `json:"scheduled_time,omitempty"`
	Winner          string             `json:"winner,omitempty"`
	ForfeitBy       string             `json:"forfeit_by,omitempty"`
	NoWinner        bool               `json:"no_winner,omitempty"`
	RescheduledOnce bool               `json:"rescheduled_once"`
	RescueAssigned  bool               `json:"rescue_assigned,omitempty"`
	Reschedule      *ReschedulePending `json:"reschedule,omitempty"`
}

// State is the whole persisted tournament dataset.
type State struct {
	RegistrationOpen bool           `json:"registration_open"`
	RegistrationEnd  time.Time      `json:"registration_end"`
	TournamentEnd    time.Time      `json:"tournament_end"`
	Teams            []*Team        `json:"teams"`
	Solos            []*SoloEntrant `json:"solos"`
	Matches          []*Match       `json:"matches"`
	NextMatchID      int            `json:"next_match_id"`
	Extensions       int            `json:"extensions"`
	UpdatedAt        time.Time      `json:"updated_at"`
}
