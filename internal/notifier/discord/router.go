package discord

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/charmbracelet/log"
	"github.com/mauv0809/tourney/internal/notifier"
	"github.com/mauv0809/tourney/internal/tournament"
)

// Handler receives the commands and votes arriving over Discord.
type Handler interface {
	notifier.Responder
	notifier.Commander
	RequestReschedule(ctx context.Context, member string, matchID int, when string) (string, error)
	ResetReschedule(ctx context.Context, user string, matchID int) (string, error)
}

// Commands are the slash commands the bot registers.
var Commands = []*discordgo.ApplicationCommand{
	{
		Name:        "reschedule",
		Description: "Propose a new time for one of your matches",
		Options: []*discordgo.ApplicationCommandOption{
			{
				Type:        discordgo.ApplicationCommandOptionInteger,
				Name:        "match",
				Description: "Match number",
				Required:    true,
			},
			{
				Type:        discordgo.ApplicationCommandOptionString,
				Name:        "time",
				Description: "New time, e.g. 2026-11-07 16:00",
				Required:    true,
			},
		},
	},
	{
		Name:        notifier.CommandJoin,
		Description: "Register solo, or as a team with a partner",
		Options: []*discordgo.ApplicationCommandOption{
			{
				Type:        discordgo.ApplicationCommandOptionString,
				Name:        "team",
				Description: "Team name, leave empty to join the solo pool",
			},
			{
				Type:        discordgo.ApplicationCommandOptionUser,
				Name:        "partner",
				Description: "Your teammate",
			},
		},
	},
	{
		Name:        notifier.CommandLeave,
		Description: "Unregister from the tournament",
	},
	{
		Name:        notifier.CommandAvailability,
		Description: "Set a weekday range, or block a date",
		Options: []*discordgo.ApplicationCommandOption{
			{
				Type:        discordgo.ApplicationCommandOptionString,
				Name:        "day",
				Description: "Weekday, e.g. saturday",
			},
			{
				Type:        discordgo.ApplicationCommandOptionString,
				Name:        "range",
				Description: "Time range, e.g. 10:00-18:00, or off",
			},
			{
				Type:        discordgo.ApplicationCommandOptionString,
				Name:        "date",
				Description: "Date you cannot play, e.g. 2026-11-07",
			},
		},
	},
	{
		Name:        "reschedule-reset",
		Description: "Admin: cancel a pending reschedule vote",
		Options: []*discordgo.ApplicationCommandOption{{
			Type:        discordgo.ApplicationCommandOptionInteger,
			Name:        "match",
			Description: "Match number",
			Required:    true,
		}},
	},
}

type Router struct {
	s       *discordgo.Session
	guildID string
	h       Handler
}

func NewRouter(s *discordgo.Session, guildID string, h Handler) *Router {
	return &Router{s: s, guildID: guildID, h: h}
}

// Register creates the slash commands in the guild.
func (r *Router) Register() error {
	appID := r.s.State.User.ID
	for _, cmd := range Commands {
		if _, err := r.s.ApplicationCommandCreate(appID, r.guildID, cmd); err != nil {
			return fmt.Errorf("failed to register /%s: %w", cmd.Name, err)
		}
	}
	return nil
}

// Handlers attaches the interaction handler to the session.
func (r *Router) Handlers() {
	r.s.AddHandler(func(s *discordgo.Session, ic *discordgo.InteractionCreate) {
		if ic.Type != discordgo.InteractionApplicationCommand && ic.Type != discordgo.InteractionMessageComponent {
			return
		}
		defer func() {
			if rec := recover(); rec != nil {
				log.Error("Panic while handling interaction", "panic", rec)
			}
		}()

		if err := deferEphemeral(s, ic); err != nil {
			log.Error("Failed to acknowledge interaction", "error", err)
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), 12*time.Second)
		defer cancel()

		reply := r.dispatch(ctx, ic)
		if _, err := s.FollowupMessageCreate(ic.Interaction, true, &discordgo.WebhookParams{
			Content: reply,
			Flags:   discordgo.MessageFlagsEphemeral,
		}); err != nil {
			log.Error("Failed to send interaction reply", "error", err)
		}
	})
}

func (r *Router) dispatch(ctx context.Context, ic *discordgo.InteractionCreate) string {
	user := userID(ic)
	if user == "" {
		return "Could not tell who you are."
	}

	switch ic.Type {
	case discordgo.InteractionMessageComponent:
		a, err := componentAction(ic)
		if err != nil {
			log.Warn("Ignoring malformed component", "error", err)
			return "This button is no longer valid."
		}
		msg, err := r.h.Respond(ctx, user, a)
		return replyText(msg, err)

	case discordgo.InteractionApplicationCommand:
		data := ic.ApplicationCommandData()
		log.Info("Slash command", "name", data.Name, "user", user, "guild", ic.GuildID)
		switch data.Name {
		case "reschedule":
			matchID, when := intOption(data, "match"), stringOption(data, "time")
			msg, err := r.h.RequestReschedule(ctx, user, matchID, when)
			return replyText(msg, err)
		case "reschedule-reset":
			msg, err := r.h.ResetReschedule(ctx, user, intOption(data, "match"))
			return replyText(msg, err)
		case notifier.CommandJoin, notifier.CommandLeave, notifier.CommandAvailability:
			args, ok := commandArgs(data)
			if !ok {
				return "Usage: " + notifier.Usage(data.Name)
			}
			msg, err := r.h.Run(ctx, notifier.Command{Name: data.Name, Member: user, Args: args})
			return replyText(msg, err)
		}
	}
	return "Unknown command."
}

// commandArgs lays out the options in the order the text commands take them.
// It reports false for option combinations no command accepts.
func commandArgs(data discordgo.ApplicationCommandInteractionData) ([]string, bool) {
	switch data.Name {
	case notifier.CommandJoin:
		team, partner := stringOption(data, "team"), userOption(data, "partner")
		if (team == "") != (partner == "") {
			return nil, false
		}
		if team == "" {
			return nil, true
		}
		return append(strings.Fields(team), partner), true
	case notifier.CommandAvailability:
		day, rng, date := stringOption(data, "day"), stringOption(data, "range"), stringOption(data, "date")
		switch {
		case date != "" && day == "" && rng == "":
			return []string{date}, true
		case date == "" && day != "" && rng != "":
			return []string{day, rng}, true
		}
		return nil, false
	}
	return nil, true
}

func componentAction(ic *discordgo.InteractionCreate) (notifier.Action, error) {
	data := ic.MessageComponentData()
	value := ""
	if len(data.Values) > 0 {
		value = data.Values[0]
	}
	return notifier.ParseAction(data.CustomID, value)
}

func userID(ic *discordgo.InteractionCreate) string {
	if ic.Member != nil && ic.Member.User != nil {
		return ic.Member.User.ID
	}
	if ic.User != nil {
		return ic.User.ID
	}
	return ""
}

func intOption(data discordgo.ApplicationCommandInteractionData, name string) int {
	for _, o := range data.Options {
		if o.Name == name && o.Type == discordgo.ApplicationCommandOptionInteger {
			return int(o.IntValue())
		}
	}
	return 0
}

func stringOption(data discordgo.ApplicationCommandInteractionData, name string) string {
	for _, o := range data.Options {
		if o.Name == name && o.Type == discordgo.ApplicationCommandOptionString {
			return o.StringValue()
		}
	}
	return ""
}

func userOption(data discordgo.ApplicationCommandInteractionData, name string) string {
	for _, o := range data.Options {
		if o.Name == name && o.Type == discordgo.ApplicationCommandOptionUser {
			return o.UserValue(nil).ID
		}
	}
	return ""
}

// replyText turns a handler result into the text shown to the member.
func replyText(msg string, err error) string {
	if err == nil {
		return msg
	}
	switch {
	case errors.Is(err, tournament.ErrFormat):
		return "That doesn't look right: " + err.Error()
	case errors.Is(err, tournament.ErrConflict):
		return "That slot was just taken, please request again: " + err.Error()
	case errors.Is(err, tournament.ErrInvariant), errors.Is(err, tournament.ErrNotFound):
		return "Not possible right now: " + err.Error()
	case errors.Is(err, tournament.ErrForbidden):
		return "You are not allowed to do that."
	}
	log.Error("Interaction failed", "error", err)
	return "Something went wrong."
}

func deferEphemeral(s *discordgo.Session, ic *discordgo.InteractionCreate) error {
	return s.InteractionRespond(ic.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseDeferredChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{Flags: discordgo.MessageFlagsEphemeral},
	})
}
