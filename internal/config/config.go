package config

import (
	"os"
	"strconv"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/joho/godotenv"
)

// Load reads configuration from environment variables and .env file.
func Load() Config {
	err := godotenv.Load()
	if err != nil {
		log.Info("No .env file found, reading from environment variables")
	}

	// A helper function to get a required env var. It will fail if the env var is not set.
	getEnv := func(key string) string {
		if value, ok := os.LookupEnv(key); ok {
			return value
		}
		log.Fatalf("Error: Required environment variable %s is not set.", key)
		return "" // This line is never reached
	}
	optional := func(key, def string) string {
		if value, ok := os.LookupEnv(key); ok {
			return value
		}
		return def
	}

	cfg := Config{
		Port:       optional("PORT", "8080"),
		AdminToken: getEnv("ADMIN_TOKEN"),
		DryRun:     parseBool(optional("DRY_RUN", "false")),
		AdminUsers: splitList(optional("ADMIN_USERS", "")),
		StateFile:  optional("STATE_FILE", "tournament.json"),
		DBName:     optional("DB_NAME", ""),
		Turso: TursoConfig{
			PrimaryURL: optional("TURSO_PRIMARY_URL", ""),
			AuthToken:  optional("TURSO_AUTH_TOKEN", ""),
		},
		Slack: SlackConfig{
			Token:         optional("SLACK_BOT_TOKEN", ""),
			ChannelID:     optional("SLACK_CHANNEL_ID", ""),
			SigningSecret: optional("SLACK_SIGNING_SECRET", ""),
		},
		Discord: DiscordConfig{
			Token:     optional("DISCORD_BOT_TOKEN", ""),
			GuildID:   optional("DISCORD_GUILD_ID", ""),
			ChannelID: optional("DISCORD_CHANNEL_ID", ""),
		},
		ProjectID: optional("GCP_PROJECT", ""),
		RulesFile: optional("TOURNAMENT_CONFIG", ""),
	}
	if cfg.Slack.Enabled() && cfg.Slack.ChannelID == "" {
		cfg.Slack.ChannelID = getEnv("SLACK_CHANNEL_ID")
	}
	if cfg.Discord.Enabled() && cfg.Discord.ChannelID == "" {
		cfg.Discord.ChannelID = getEnv("DISCORD_CHANNEL_ID")
	}
	return cfg
}

func parseBool(v string) bool {
	b, err := strconv.ParseBool(v)
	if err != nil {
		log.Warn("Invalid boolean, using false", "value", v)
		return false
	}
	return b
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
