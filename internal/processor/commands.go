package processor

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/mauv0809/tourney/internal/availability"
	"github.com/mauv0809/tourney/internal/notifier"
	"github.com/mauv0809/tourney/internal/tournament"
)

var _ notifier.Commander = (*Processor)(nil)

// Run executes a member's slash command.
func (p *Processor) Run(ctx context.Context, cmd notifier.Command) (string, error) {
	log.Info("Running command", "name", cmd.Name, "member", cmd.Member, "args", cmd.Args)
	switch cmd.Name {
	case notifier.CommandReschedule:
		if len(cmd.Args) < 2 {
			return "", usage(cmd.Name)
		}
		matchID, err := strconv.Atoi(strings.TrimPrefix(cmd.Args[0], "#"))
		if err != nil {
			return "", usage(cmd.Name)
		}
		return p.RequestReschedule(ctx, cmd.Member, matchID, strings.Join(cmd.Args[1:], " "))
	case notifier.CommandJoin:
		return p.join(ctx, cmd)
	case notifier.CommandLeave:
		return p.leave(ctx, cmd.Member)
	case notifier.CommandAvailability:
		return p.updateAvailability(ctx, cmd)
	}
	return "", fmt.Errorf("%w: unknown command %q", tournament.ErrFormat, cmd.Name)
}

// join registers a solo entrant when no arguments are given. Otherwise the
// last argument is the partner and the rest is the team name.
func (p *Processor) join(ctx context.Context, cmd notifier.Command) (string, error) {
	if len(cmd.Args) == 0 {
		if err := p.AddSolo(ctx, cmd.Member, nil); err != nil {
			return "", err
		}
		return "You joined the solo pool. A partner is assigned when registration closes.", nil
	}
	if len(cmd.Args) < 2 {
		return "", usage(cmd.Name)
	}
	partner := cmd.Args[len(cmd.Args)-1]
	name := strings.Join(cmd.Args[:len(cmd.Args)-1], " ")
	if err := p.RegisterTeam(ctx, name, []string{cmd.Member, partner}, nil); err != nil {
		return "", err
	}
	return fmt.Sprintf("Team %s is registered.", name), nil
}

func (p *Processor) leave(ctx context.Context, member string) (string, error) {
	forfeited, err := p.Leave(ctx, member)
	if err != nil {
		return "", err
	}
	if len(forfeited) == 0 {
		return "You left the tournament.", nil
	}
	ids := make([]string, len(forfeited))
	for i, id := range forfeited {
		ids[i] = "#" + strconv.Itoa(id)
	}
	return fmt.Sprintf("You left the tournament. Forfeited matches: %s.", strings.Join(ids, ", ")), nil
}

// updateAvailability sets one weekday range, or blacklists a date when the only
// argument is one.
func (p *Processor) updateAvailability(ctx context.Context, cmd notifier.Command) (string, error) {
	switch len(cmd.Args) {
	case 1:
		date := cmd.Args[0]
		if _, err := time.Parse(tournament.DateLayout, date); err != nil {
			return "", usage(cmd.Name)
		}
		if err := p.AddUnavailableDate(ctx, cmd.Member, date); err != nil {
			return "", err
		}
		return fmt.Sprintf("Noted, you are not available on %s.", date), nil
	case 2:
		day, raw := cmd.Args[0], cmd.Args[1]
		if strings.EqualFold(raw, "off") {
			raw = availability.Unavailable
		}
		if err := p.SetAvailability(ctx, cmd.Member, day, raw); err != nil {
			return "", err
		}
		if raw == availability.Unavailable {
			return fmt.Sprintf("Noted, you are not available on %s.", strings.ToLower(day)), nil
		}
		return fmt.Sprintf("Availability for %s set to %s.", strings.ToLower(day), raw), nil
	}
	return "", usage(cmd.Name)
}

func usage(name string) error {
	return fmt.Errorf("%w: usage %s", tournament.ErrFormat, notifier.Usage(name))
}
