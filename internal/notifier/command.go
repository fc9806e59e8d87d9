package notifier

import (
	"context"
	"fmt"
	"strings"

	"github.com/mauv0809/tourney/internal/tournament"
)

// Slash commands a member can run from either chat.
const (
	CommandReschedule   = "reschedule"
	CommandJoin         = "join"
	CommandLeave        = "leave"
	CommandAvailability = "availability"
)

// Command is a slash command with its arguments split on whitespace.
type Command struct {
	Name   string
	Member string
	Args   []string
}

// ParseCommand splits the free text typed after a slash command. Slack user
// mentions ("<@U123|name>") are reduced to the user ID.
func ParseCommand(name, member, text string) (Command, error) {
	switch name {
	case CommandReschedule, CommandJoin, CommandLeave, CommandAvailability:
	default:
		return Command{}, fmt.Errorf("%w: unknown command %q", tournament.ErrFormat, name)
	}
	if member == "" {
		return Command{}, fmt.Errorf("%w: command without a user", tournament.ErrFormat)
	}
	fields := strings.Fields(text)
	for i, f := range fields {
		fields[i] = mentionID(f)
	}
	return Command{Name: name, Member: member, Args: fields}, nil
}

func mentionID(s string) string {
	inner, ok := strings.CutPrefix(s, "<@")
	if !ok {
		return s
	}
	inner, ok = strings.CutSuffix(inner, ">")
	if !ok {
		return s
	}
	id, _, _ := strings.Cut(inner, "|")
	return strings.TrimPrefix(id, "!")
}

// Usage is the help text shown for a command with bad arguments.
func Usage(name string) string {
	switch name {
	case CommandReschedule:
		return "/reschedule <match> <dd.mm.yyyy hh:mm>"
	case CommandJoin:
		return "/join for the solo pool, or /join <team name> @partner"
	case CommandLeave:
		return "/leave"
	case CommandAvailability:
		return "/availability <day> <hh:mm-hh:mm|off>, or /availability <yyyy-mm-dd> to block a date"
	}
	return ""
}

// Commander runs member slash commands and returns the text to show them.
type Commander interface {
	Run(ctx context.Context, cmd Command) (string, error)
}
