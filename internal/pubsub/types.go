package pubsub

import (
	"time"

	"cloud.google.com/go/pubsub"
)

type client struct {
	client   *pubsub.Client
	teardown func()
}

// EventType represents the type of event/message sent via pubsub.
type EventType string

const (
	EventSchedulePublished EventType = "schedule-published"
	EventMatchForfeited    EventType = "match-forfeited"
	EventMatchRescheduled  EventType = "match-rescheduled"
	EventTeamExcluded      EventType = "team-excluded"
)

// SchedulePublished is sent whenever a full schedule has been committed.
type SchedulePublished struct {
	Matches     int       `msgpack:"matches"`
	Unscheduled int       `msgpack:"unscheduled"`
	Rescued     int       `msgpack:"rescued"`
	At          time.Time `msgpack:"at"`
}

// MatchForfeited is sent for every match ended by forfeit.
type MatchForfeited struct {
	MatchID   int    `msgpack:"match_id"`
	ForfeitBy string `msgpack:"forfeit_by"`
	Winner    string `msgpack:"winner"`
	Reason    string `msgpack:"reason"`
}

// MatchRescheduled is sent when a reschedule vote commits.
type MatchRescheduled struct {
	MatchID int       `msgpack:"match_id"`
	From    time.Time `msgpack:"from"`
	To      time.Time `msgpack:"to"`
}

// TeamExcluded is sent when a team is excluded from the tournament.
type TeamExcluded struct {
	Team   string `msgpack:"team"`
	Reason string `msgpack:"reason"`
}
