package config

// Config holds all configuration for the application.
type Config struct {
	Port       string
	AdminToken string
	DryRun     bool
	// AdminUsers grant the admin roles to user IDs when no chat platform
	// resolves roles.
	AdminUsers []string

	StateFile string
	DBName    string
	Turso     TursoConfig

	Slack   SlackConfig
	Discord DiscordConfig

	ProjectID string
	RulesFile string
}

type SlackConfig struct {
	Token         string
	ChannelID     string
	SigningSecret string
}

// Enabled reports whether a bot token is configured.
func (c SlackConfig) Enabled() bool { return c.Token != "" }

type DiscordConfig struct {
	Token     string
	GuildID   string
	ChannelID string
}

func (c DiscordConfig) Enabled() bool { return c.Token != "" }

type TursoConfig struct {
	PrimaryURL string
	AuthToken  string
}
