package http

import (
	"net/http"

	"github.com/mauv0809/tourney/internal/config"
	"github.com/mauv0809/tourney/internal/metrics"
	"github.com/mauv0809/tourney/internal/notifier"
	"github.com/mauv0809/tourney/internal/processor"
	"github.com/mauv0809/tourney/internal/pubsub"
)

type Server struct {
	Processor      *processor.Processor
	Notifier       notifier.Notifier
	Metrics        metrics.Metrics
	MetricsHandler http.Handler
	Cfg            config.Config
	Router         *http.ServeMux
	pubsub         pubsub.PubSubClient
}

// pushMessage is the envelope Pub/Sub wraps around pushed messages.
type pushMessage struct {
	Subscription string `json:"subscription"`
	Message      struct {
		Data      string `json:"data"`
		MessageID string `json:"messageId"`
	} `json:"message"`
}

type reportResponse struct {
	Formed     []string `json:"formed,omitempty"`
	Dissolved  []string `json:"dissolved,omitempty"`
	Matches    int      `json:"matches"`
	Assigned   int      `json:"assigned"`
	Rescued    int      `json:"rescued"`
	Unassigned []int    `json:"unassigned,omitempty"`
	Conflicts  int      `json:"conflicts"`
	Extended   int      `json:"extended"`
}

type matchResponse struct {
	ID             int    `json:"id"`
	Team1          string `json:"team1"`
	Team2          string `json:"team2"`
	Status         string `json:"status"`
	ScheduledTime  string `json:"scheduled_time,omitempty"`
	RescueAssigned bool   `json:"rescue_assigned,omitempty"`
	Winner         string `json:"winner,omitempty"`
	ForfeitBy      string `json:"forfeit_by,omitempty"`
	Reschedule     bool   `json:"reschedule_pending,omitempty"`
}
