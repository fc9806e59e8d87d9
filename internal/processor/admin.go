package processor

import (
	"context"
	"fmt"
	"time"

	"github.com/charmbracelet/log"
	"github.com/mauv0809/tourney/internal/access"
	"github.com/mauv0809/tourney/internal/availability"
	"github.com/mauv0809/tourney/internal/notifier"
	"github.com/mauv0809/tourney/internal/pubsub"
	"github.com/mauv0809/tourney/internal/tournament"
)

var _ notifier.Responder = (*Processor)(nil)

// Respond routes a button press or selection to the negotiation it belongs to.
func (p *Processor) Respond(ctx context.Context, member string, a notifier.Action) (string, error) {
	log.Info("Handling action", "member", member, "kind", a.Kind, "verb", a.Verb, "ref", a.Ref)
	switch a.Kind {
	case notifier.KindConflict:
		return p.resolver.Respond(ctx, member, a)
	case notifier.KindReschedule:
		return p.negotiator.Respond(ctx, member, a)
	}
	return "", fmt.Errorf("%w: unknown action kind %q", tournament.ErrFormat, a.Kind)
}

// RequestReschedule asks every player of the match to approve a new time.
func (p *Processor) RequestReschedule(ctx context.Context, member string, matchID int, when string) (string, error) {
	req, err := p.negotiator.Request(ctx, matchID, member, when)
	if err != nil {
		return "", err
	}
	loc := p.opts.Rules.Location
	return fmt.Sprintf("Asked %d players to move match #%d to %s. Voting closes %s.",
		len(req.Members()), matchID, req.To.In(loc).Format("Mon 02.01. 15:04"), req.Deadline.In(loc).Format("Mon 02.01. 15:04")), nil
}

// ResetReschedule force-resets a pending reschedule. Admins only.
func (p *Processor) ResetReschedule(ctx context.Context, actor string, matchID int) (string, error) {
	reset, err := p.negotiator.Cancel(ctx, actor, matchID)
	if err != nil {
		return "", err
	}
	if !reset {
		return fmt.Sprintf("No reschedule was pending for match #%d.", matchID), nil
	}
	return fmt.Sprintf("Reschedule of match #%d was reset.", matchID), nil
}

// CancelConflict aborts a conflict negotiation without applying any outcome. Admins only.
func (p *Processor) CancelConflict(ctx context.Context, actor string, matchID int) error {
	return p.resolver.Cancel(ctx, actor, matchID)
}

// FreeSlots lists the slots a reschedule may move to.
func (p *Processor) FreeSlots(ctx context.Context) ([]time.Time, error) {
	return p.negotiator.FreeSlots(ctx)
}

// Recover clears negotiation residue left behind by a restart.
func (p *Processor) Recover(ctx context.Context) error {
	n, err := p.negotiator.Recover(ctx)
	if err != nil {
		return fmt.Errorf("failed to recover reschedule state: %w", err)
	}
	if n > 0 {
		log.Warn("Cleared stale reschedule requests", "count", n)
	}
	return nil
}

// Snapshot returns a copy of the current state.
func (p *Processor) Snapshot(ctx context.Context) (*tournament.State, error) {
	var out *tournament.State
	err := p.repo.View(ctx, func(s *tournament.State) error {
		out = s
		return nil
	})
	return out, err
}

// RegisterTeam adds a complete team while registration is open.
func (p *Processor) RegisterTeam(ctx context.Context, name string, members []string, week availability.Week) error {
	return p.repo.Update(ctx, func(s *tournament.State) error {
		_, err := s.RegisterTeam(name, members, week)
		return err
	})
}

// AddSolo puts a member into the solo pool while registration is open.
func (p *Processor) AddSolo(ctx context.Context, member string, week availability.Week) error {
	return p.repo.Update(ctx, func(s *tournament.State) error {
		return s.AddSolo(member, week)
	})
}

// SetAvailability replaces one weekday range of the member's team or solo entry.
func (p *Processor) SetAvailability(ctx context.Context, member, day, raw string) error {
	return p.repo.Update(ctx, func(s *tournament.State) error {
		return s.SetAvailability(member, day, raw)
	})
}

// AddUnavailableDate blacklists a calendar date for the member's team or solo entry.
func (p *Processor) AddUnavailableDate(ctx context.Context, member, date string) error {
	return p.repo.Update(ctx, func(s *tournament.State) error {
		return s.AddUnavailableDate(member, date)
	})
}

// Leave removes a member. Matches forfeited because the team fell apart end
// their negotiations as well.
func (p *Processor) Leave(ctx context.Context, member string) ([]int, error) {
	var forfeited []int
	var events []pubsub.MatchForfeited
	err := p.repo.Update(ctx, func(s *tournament.State) error {
		ids, err := s.Leave(member)
		if err != nil {
			return err
		}
		forfeited, events = ids, forfeitEvents(s, ids, string(tournament.TeamWithdrawn))
		return nil
	})
	if err != nil {
		return nil, err
	}
	p.ended(ctx, forfeited, events)
	return forfeited, nil
}

// Exclude removes a team from the tournament and forfeits its open matches. Admins only.
func (p *Processor) Exclude(ctx context.Context, actor, team, reason string) ([]int, error) {
	if err := access.Require(ctx, p.roles, actor, p.opts.AdminRoles); err != nil {
		return nil, err
	}
	if reason == "" {
		reason = "excluded_by_admin"
	}
	var forfeited []int
	var events []pubsub.MatchForfeited
	err := p.repo.Update(ctx, func(s *tournament.State) error {
		ids, err := s.Exclude(team, reason)
		if err != nil {
			return err
		}
		forfeited, events = ids, forfeitEvents(s, ids, reason)
		return nil
	})
	if err != nil {
		return nil, err
	}
	log.Info("Team excluded by admin", "team", team, "by", actor, "forfeited", forfeited)
	if err := p.pubsub.SendMessage(ctx, pubsub.EventTeamExcluded, pubsub.TeamExcluded{Team: team, Reason: reason}); err != nil {
		log.Error("Failed to publish exclusion", "team", team, "error", err)
	}
	p.ended(ctx, forfeited, events)
	return forfeited, nil
}

func forfeitEvents(s *tournament.State, ids []int, reason string) []pubsub.MatchForfeited {
	out := make([]pubsub.MatchForfeited, 0, len(ids))
	for _, id := range ids {
		m := s.Match(id)
		out = append(out, pubsub.MatchForfeited{MatchID: id, ForfeitBy: m.ForfeitBy, Winner: m.Winner, Reason: reason})
	}
	return out
}

// ended tears down the negotiations of forfeited matches and publishes the forfeits.
func (p *Processor) ended(ctx context.Context, ids []int, events []pubsub.MatchForfeited) {
	if len(ids) == 0 {
		return
	}
	p.negotiator.Drop(ctx, ids)
	p.resolver.Drop(ctx, ids)
	for _, ev := range events {
		if err := p.pubsub.SendMessage(ctx, pubsub.EventMatchForfeited, ev); err != nil {
			log.Error("Failed to publish forfeit", "matchID", ev.MatchID, "error", err)
		}
	}
}
