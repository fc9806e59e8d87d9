package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/charmbracelet/log"
	"github.com/mauv0809/tourney/internal/access"
	"github.com/mauv0809/tourney/internal/clock"
	"github.com/mauv0809/tourney/internal/config"
	"github.com/mauv0809/tourney/internal/database"
	server "github.com/mauv0809/tourney/internal/http"
	"github.com/mauv0809/tourney/internal/metrics"
	"github.com/mauv0809/tourney/internal/notifier"
	"github.com/mauv0809/tourney/internal/notifier/discord"
	"github.com/mauv0809/tourney/internal/notifier/slack"
	"github.com/mauv0809/tourney/internal/processor"
	"github.com/mauv0809/tourney/internal/pubsub"
	"github.com/mauv0809/tourney/internal/store"
	"github.com/mauv0809/tourney/internal/tournament"
	"github.com/prometheus/client_golang/prometheus"
)

var _ discord.Handler = (*processor.Processor)(nil)

func main() {
	// Start profiling timer
	startTime := time.Now()
	log.SetFormatter(log.JSONFormatter)
	cfg := config.Load()
	rules, err := config.LoadRulesFromFile(cfg.RulesFile)
	if err != nil {
		log.Fatalf("Failed to load tournament rules: %s", err)
	}
	ctx := context.Background()

	backend, history, teardown := openStore(cfg)
	defer teardown()
	log.Info("Storage initialization time recorded", "duration_ms", time.Since(startTime).Milliseconds())

	reg := prometheus.NewRegistry()
	metricsSvc := metrics.NewService(reg)
	metricsHandler := metrics.NewMetricsHandler(reg)

	var events pubsub.PubSubClient = pubsub.NewNop()
	if cfg.ProjectID != "" {
		client, closePubSub, err := pubsub.New(ctx, cfg.ProjectID)
		if err != nil {
			log.Fatalf("Failed to initialize pubsub: %s", err)
		}
		defer closePubSub()
		events = client
	}

	var n notifier.Notifier = notifier.Log{}
	var roles access.RoleChecker = adminRoles(cfg, rules.AdminRoles)
	var dg *discordgo.Session
	switch {
	case cfg.Discord.Enabled():
		dg, err = discordgo.New("Bot " + cfg.Discord.Token)
		if err != nil {
			log.Fatalf("Failed to create discord session: %s", err)
		}
		n = notifier.NewFanout(discord.NewTransport(dg, cfg.Discord.ChannelID), metricsSvc, discord.Mention)
		roles = discord.NewRoleChecker(dg, cfg.Discord.GuildID)
	case cfg.Slack.Enabled():
		n = notifier.NewFanout(slack.NewTransport(cfg.Slack.Token, cfg.Slack.ChannelID, cfg.DryRun), metricsSvc, slack.Mention)
	default:
		log.Warn("No chat provider configured, notifications are only logged")
	}

	proc := processor.New(tournament.NewRepository(backend), n, metricsSvc, events, clock.New(), roles, rules.ProcessorOptions())
	if history != nil {
		proc.SetHistory(history)
	}
	if err := proc.Recover(ctx); err != nil {
		log.Fatalf("Failed to recover tournament state: %s", err)
	}

	if dg != nil {
		router := discord.NewRouter(dg, cfg.Discord.GuildID, proc)
		router.Handlers()
		if err := dg.Open(); err != nil {
			log.Fatalf("Failed to open discord session: %s", err)
		}
		defer dg.Close()
		if err := router.Register(); err != nil {
			log.Error("Failed to register discord commands", "error", err)
		}
	}

	s := server.NewServer(proc, n, metricsSvc, metricsHandler, cfg, events)

	// --- Record startup time ---
	startupDuration := time.Since(startTime)
	metricsSvc.SetStartupTime(startupDuration.Seconds())
	log.Info("Startup time recorded", "duration_ms", startupDuration.Milliseconds())

	// --- Graceful shutdown setup ---
	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: s,
	}

	// Channel to listen for errors coming from the server
	serverErrors := make(chan error, 1)

	go func() {
		log.Info("Server started", "port", cfg.Port)
		serverErrors <- srv.ListenAndServe()
	}()

	// Channel to listen for interrupt signals
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	// Block until we receive a signal or an error
	select {
	case err := <-serverErrors:
		if err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	case sig := <-shutdown:
		log.Info("Shutdown signal received", "signal", sig)

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			log.Error("Server shutdown failed", "error", err)
		} else {
			log.Info("Server gracefully stopped")
		}
	}

	log.Info("Server process shutting down")
}

// openStore picks the SQL backend when a database is configured and the
// JSON file otherwise. history is nil for the file backend.
func openStore(cfg config.Config) (tournament.Backend, processor.History, func()) {
	if cfg.DBName == "" && cfg.Turso.PrimaryURL == "" {
		log.Info("Using file store", "path", cfg.StateFile)
		return store.NewFile(cfg.StateFile), nil, func() {}
	}
	db, dbTeardown, err := database.InitDB(cfg.DBName, cfg.Turso.PrimaryURL, cfg.Turso.AuthToken)
	if err != nil {
		log.Fatalf("Failed to initialize database: %s", err)
	}
	sqlStore := store.NewSQL(db)
	return sqlStore, sqlStore, func() {
		log.Info("Closing database connection")
		dbTeardown()
	}
}

// adminRoles grants every configured admin user all admin roles.
func adminRoles(cfg config.Config, roles []string) access.Static {
	static := make(access.Static, len(cfg.AdminUsers))
	for _, u := range cfg.AdminUsers {
		static[u] = roles
	}
	return static
}
