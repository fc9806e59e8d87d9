package http

import (
	"net/http"

	"github.com/mauv0809/tourney/internal/config"
	"github.com/mauv0809/tourney/internal/metrics"
	"github.com/mauv0809/tourney/internal/notifier"
	"github.com/mauv0809/tourney/internal/processor"
	"github.com/mauv0809/tourney/internal/pubsub"
)

func NewServer(proc *processor.Processor, n notifier.Notifier, metricsSvc metrics.Metrics, metricsHandler http.Handler, cfg config.Config, ps pubsub.PubSubClient) *Server {
	server := &Server{
		Processor:      proc,
		Notifier:       n,
		Metrics:        metricsSvc,
		MetricsHandler: metricsHandler,
		Cfg:            cfg,
		Router:         http.NewServeMux(),
		pubsub:         ps,
	}

	server.routes()
	return server
}

func (s *Server) routes() {
	// All handlers are wrapped with middleware using the Chain helper.
	admin := adminMiddleware(s.Cfg.AdminToken)
	s.Router.Handle("/metrics", s.MetricsHandler)
	s.Router.Handle("GET /health", Chain(s.HealthCheckHandler(), paramsMiddleware))
	s.Router.Handle("GET /schedule", Chain(s.ScheduleHandler(), paramsMiddleware))
	s.Router.Handle("GET /schedule.xlsx", Chain(s.ExportHandler(), paramsMiddleware))
	s.Router.Handle("GET /free-slots", Chain(s.FreeSlotsHandler(), paramsMiddleware))
	s.Router.Handle("POST /admin/close-registration", Chain(s.CloseRegistrationHandler(), paramsMiddleware, admin))
	s.Router.Handle("POST /admin/regenerate", Chain(s.RegenerateHandler(), paramsMiddleware, admin))
	s.Router.Handle("POST /admin/conflicts/detect", Chain(s.DetectConflictsHandler(), paramsMiddleware, admin))
	s.Router.Handle("POST /admin/conflicts/cancel", Chain(s.CancelConflictHandler(), paramsMiddleware, admin))
	s.Router.Handle("POST /admin/reschedule/reset", Chain(s.ResetRescheduleHandler(), paramsMiddleware, admin))
	s.Router.Handle("POST /admin/teams/exclude", Chain(s.ExcludeTeamHandler(), paramsMiddleware, admin))
	s.Router.Handle("POST /slack/interactions", Chain(s.SlackInteractionHandler(), paramsMiddleware))
	for _, name := range []string{notifier.CommandReschedule, notifier.CommandJoin, notifier.CommandLeave, notifier.CommandAvailability} {
		s.Router.Handle("POST /slack/command/"+name, Chain(s.SlackCommandHandler(name), paramsMiddleware))
	}
	s.Router.Handle("POST /pubsub/team-excluded", Chain(s.TeamExcludedHandler(), paramsMiddleware, admin))
	s.Router.Handle("POST /pubsub/match-forfeited", Chain(s.MatchForfeitedHandler(), paramsMiddleware, admin))
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.Router.ServeHTTP(w, r)
}
