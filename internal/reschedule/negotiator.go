package reschedule

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"github.com/mauv0809/tourney/internal/access"
	"github.com/mauv0809/tourney/internal/clock"
	"github.com/mauv0809/tourney/internal/metrics"
	"github.com/mauv0809/tourney/internal/notifier"
	"github.com/mauv0809/tourney/internal/pubsub"
	"github.com/mauv0809/tourney/internal/schedule"
	"github.com/mauv0809/tourney/internal/tournament"
)

// ReasonDeclined is recorded on matches forfeited by a declined reschedule.
const ReasonDeclined = "reschedule_declined"

// Options configure a Negotiator.
type Options struct {
	Rules      schedule.Rules
	Timeout    time.Duration
	Cutoff     time.Duration
	ExtendDays int
	AdminRoles []string
}

// Negotiator runs reschedule votes. At most one request exists per match; the
// registry lock is held across each state transaction so transitions of one
// request never interleave.
type Negotiator struct {
	mu       sync.Mutex
	requests map[int]*Request
	byID     map[string]int

	repo     tournament.Repository
	notifier notifier.Notifier
	clock    clock.Scheduler
	metrics  metrics.Metrics
	events   pubsub.PubSubClient
	roles    access.RoleChecker
	opts     Options
}

func NewNegotiator(
	repo tournament.Repository,
	n notifier.Notifier,
	clk clock.Scheduler,
	m metrics.Metrics,
	events pubsub.PubSubClient,
	roles access.RoleChecker,
	opts Options,
) *Negotiator {
	if opts.Rules.Location == nil {
		opts.Rules.Location = time.UTC
	}
	return &Negotiator{
		requests: make(map[int]*Request),
		byID:     make(map[string]int),
		repo:     repo,
		notifier: n,
		clock:    clk,
		metrics:  m,
		events:   events,
		roles:    roles,
		opts:     opts,
	}
}

func (n *Negotiator) loc() *time.Location { return n.opts.Rules.Location }

// Pending returns the match IDs with a vote in flight.
func (n *Negotiator) Pending() []int {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]int, 0, len(n.requests))
	for id := range n.requests {
		out = append(out, id)
	}
	slices.Sort(out)
	return out
}

// Lookup returns the request in flight for a match.
func (n *Negotiator) Lookup(matchID int) (*Request, bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	r, ok := n.requests[matchID]
	return r, ok
}

// freeSlots returns the open future slots, extending the tournament once by
// ExtendDays when none are left.
func (n *Negotiator) freeSlots(s *tournament.State, now time.Time) []time.Time {
	free := schedule.FreeSlots(s, n.opts.Rules, now)
	if len(free) > 0 || n.opts.ExtendDays <= 0 || s.TournamentEnd.IsZero() {
		return free
	}
	s.TournamentEnd = s.TournamentEnd.AddDate(0, 0, n.opts.ExtendDays)
	log.Warn("No free slots left, extending tournament", "days", n.opts.ExtendDays, "end", s.TournamentEnd)
	return schedule.FreeSlots(s, n.opts.Rules, now)
}

// FreeSlots lists the slots a reschedule may target. An extension made to
// find any is persisted.
func (n *Negotiator) FreeSlots(ctx context.Context) ([]time.Time, error) {
	var free []time.Time
	err := n.repo.Update(ctx, func(s *tournament.State) error {
		free = n.freeSlots(s, n.clock.Now())
		return nil
	})
	return free, err
}

// Request opens a vote to move a match to the time given in raw. Every
// precondition is checked before anything changes.
func (n *Negotiator) Request(ctx context.Context, matchID int, requester, raw string) (*Request, error) {
	n.mu.Lock()
	if _, ok := n.requests[matchID]; ok {
		n.mu.Unlock()
		log.Warn("Rejected second reschedule request", "matchID", matchID, "requester", requester)
		return nil, fmt.Errorf("%w: a reschedule for match %d is already pending", tournament.ErrInvariant, matchID)
	}

	now := n.clock.Now()
	var req *Request
	err := n.repo.Update(ctx, func(s *tournament.State) error {
		m := s.Match(matchID)
		if m == nil {
			return fmt.Errorf("%w: match %d", tournament.ErrNotFound, matchID)
		}
		if m.Reschedule != nil {
			return fmt.Errorf("%w: a reschedule for match %d is already pending", tournament.ErrInvariant, matchID)
		}
		team := s.TeamOf(requester)
		if team == nil || !m.Involves(team.Name) {
			return fmt.Errorf("%w: %s does not play match %d", tournament.ErrForbidden, requester, matchID)
		}
		if m.Terminal() {
			return fmt.Errorf("%w: match %d is %s", tournament.ErrInvariant, matchID, m.Status)
		}
		if m.RescheduledOnce {
			return fmt.Errorf("%w: match %d was already rescheduled once", tournament.ErrInvariant, matchID)
		}
		to, err := ParseTime(raw, n.loc())
		if err != nil {
			return err
		}
		if !to.After(now) {
			return fmt.Errorf("%w: %s is in the past", tournament.ErrFormat, to.Format("02.01.2006 15:04"))
		}
		if m.ScheduledTime != nil && m.ScheduledTime.Sub(now) <= n.opts.Cutoff {
			return fmt.Errorf("%w: match %d starts within %s", tournament.ErrInvariant, matchID, n.opts.Cutoff)
		}
		if !slices.ContainsFunc(n.freeSlots(s, now), to.Equal) {
			return fmt.Errorf("%w: %s is not a free slot", tournament.ErrConflict, to.Format("02.01.2006 15:04"))
		}

		m.Reschedule = &tournament.ReschedulePending{RequestedBy: requester, ProposedTime: to, Since: now}
		req = newRequest(uuid.NewString(), s, m, requester, to, now.Add(n.opts.Timeout))
		return nil
	})
	if err != nil {
		n.mu.Unlock()
		log.Info("Reschedule request rejected", "matchID", matchID, "requester", requester, "error", err)
		return nil, err
	}

	id, mid := req.ID, req.MatchID
	req.timer = n.clock.After(n.opts.Timeout, func() { n.expire(mid, id) })
	n.requests[mid] = req
	n.byID[id] = mid
	n.mu.Unlock()

	n.metrics.IncRescheduleRequests()
	log.Info("Reschedule requested", "matchID", mid, "requester", requester, "to", req.To)

	if _, err := n.notifier.Notify(ctx, req.Members(), n.prompt(req)); err != nil {
		log.Error("Failed to deliver reschedule vote", "matchID", mid, "error", err)
	}
	return req, nil
}

func (n *Negotiator) prompt(r *Request) notifier.Prompt {
	from := "no time yet"
	if r.From != nil {
		from = r.From.In(n.loc()).Format("Monday 02.01.2006 15:04")
	}
	return notifier.Prompt{
		Title: fmt.Sprintf("Reschedule request for match #%d", r.MatchID),
		Body: fmt.Sprintf("%s wants to move the match against %s.\nCurrent: %s\nProposed: %s\n"+
			"All players must accept by %s. A single decline forfeits the match for the declining team.",
			r.Team, r.Opponent, from, r.To.In(n.loc()).Format("Monday 02.01.2006 15:04"),
			r.Deadline.In(n.loc()).Format("Mon 02.01. 15:04")),
		Choices: []notifier.Choice{
			{ID: notifier.EncodeAction(notifier.KindReschedule, notifier.VerbAccept, r.ID), Label: "Accept"},
			{ID: notifier.EncodeAction(notifier.KindReschedule, notifier.VerbDecline, r.ID), Label: "Decline", Danger: true},
		},
	}
}

// Respond applies a button press.
func (n *Negotiator) Respond(ctx context.Context, member string, a notifier.Action) (string, error) {
	if a.Kind != notifier.KindReschedule {
		return "", fmt.Errorf("%w: not a reschedule action", tournament.ErrFormat)
	}
	n.mu.Lock()
	matchID, ok := n.byID[a.Ref]
	n.mu.Unlock()
	if !ok {
		return "", fmt.Errorf("%w: this reschedule request is closed", tournament.ErrNotFound)
	}

	var outcome Outcome
	var err error
	switch a.Verb {
	case notifier.VerbAccept, notifier.VerbConfirm:
		outcome, err = n.Vote(ctx, matchID, a.Ref, member, true)
	case notifier.VerbDecline:
		outcome, err = n.Vote(ctx, matchID, a.Ref, member, false)
	default:
		return "", fmt.Errorf("%w: unsupported verb %q", tournament.ErrFormat, a.Verb)
	}
	if err != nil {
		return "", err
	}
	switch outcome {
	case Approved:
		return fmt.Sprintf("Everyone accepted. Match #%d is moved.", matchID), nil
	case Declined:
		return fmt.Sprintf("You declined. Match #%d is forfeited.", matchID), nil
	}
	return "Accepted. Waiting for the other players.", nil
}

// Vote records one member's answer for the request with the given ID. An empty
// requestID matches whatever request is in flight for the match.
func (n *Negotiator) Vote(ctx context.Context, matchID int, requestID, member string, accept bool) (Outcome, error) {
	n.mu.Lock()
	req, ok := n.requests[matchID]
	if !ok || (requestID != "" && req.ID != requestID) {
		n.mu.Unlock()
		return "", fmt.Errorf("%w: no reschedule pending for match %d", tournament.ErrNotFound, matchID)
	}
	team, ok := req.TeamOf(member)
	if !ok {
		n.mu.Unlock()
		return "", fmt.Errorf("%w: %s does not play match %d", tournament.ErrForbidden, member, matchID)
	}

	if !accept {
		err := n.decline(ctx, req, member, team)
		n.mu.Unlock()
		if err != nil {
			return "", err
		}
		n.announce(ctx, fmt.Sprintf("Match #%d forfeited", matchID),
			fmt.Sprintf("%s declined the reschedule. %s wins match #%d.", team, req.other(team), matchID))
		return Declined, nil
	}

	if !req.accept(member) {
		n.mu.Unlock()
		log.Info("Reschedule accepted", "matchID", matchID, "member", member, "accepted", req.Accepted(), "of", len(req.members))
		return Pending, nil
	}

	err := n.commit(ctx, req)
	n.mu.Unlock()
	if err != nil {
		n.announce(ctx, fmt.Sprintf("Reschedule of match #%d failed", matchID),
			fmt.Sprintf("The proposed slot was taken before everyone answered. %s, please request again.", req.Team))
		return Aborted, err
	}
	n.announce(ctx, fmt.Sprintf("Match #%d rescheduled", matchID),
		fmt.Sprintf("Match #%d now takes place %s.", matchID, req.To.In(n.loc()).Format("Monday 02.01.2006 15:04")))
	return Approved, nil
}

func (n *Negotiator) decline(ctx context.Context, req *Request, member, team string) error {
	var ev pubsub.MatchForfeited
	err := n.repo.Update(ctx, func(s *tournament.State) error {
		m := s.Match(req.MatchID)
		if m == nil || m.Terminal() {
			return fmt.Errorf("%w: match %d is no longer open", tournament.ErrInvariant, req.MatchID)
		}
		s.Forfeit(m, team)
		ev = pubsub.MatchForfeited{MatchID: m.ID, ForfeitBy: team, Winner: m.Winner, Reason: ReasonDeclined}
		return nil
	})
	n.teardown(req)
	if err != nil {
		return err
	}
	n.metrics.IncRescheduleOutcome(string(Declined))
	log.Info("Reschedule declined, match forfeited", "matchID", req.MatchID, "member", member, "team", team)
	if err := n.events.SendMessage(ctx, pubsub.EventMatchForfeited, ev); err != nil {
		log.Error("Failed to publish forfeit", "matchID", req.MatchID, "error", err)
	}
	return nil
}

// commit moves the match once every member accepted, re-checking that the
// slot is still free. A claimed slot aborts with ErrConflict and leaves the
// schedule as it was.
func (n *Negotiator) commit(ctx context.Context, req *Request) error {
	claimed := false
	var from time.Time
	err := n.repo.Update(ctx, func(s *tournament.State) error {
		m := s.Match(req.MatchID)
		if m == nil || m.Terminal() {
			return fmt.Errorf("%w: match %d is no longer open", tournament.ErrInvariant, req.MatchID)
		}
		m.Reschedule = nil
		if s.SlotTaken(req.To, m.ID) {
			claimed = true
			return nil
		}
		if m.ScheduledTime != nil {
			from = *m.ScheduledTime
		}
		m.Schedule(req.To, false)
		m.RescheduledOnce = true
		return nil
	})
	n.teardown(req)
	if err != nil {
		return err
	}
	if claimed {
		n.metrics.IncRescheduleOutcome(string(Aborted))
		log.Warn("Reschedule slot claimed before commit", "matchID", req.MatchID, "slot", req.To)
		return fmt.Errorf("%w: %s was claimed by another match", tournament.ErrConflict, req.To.In(n.loc()).Format("02.01.2006 15:04"))
	}
	n.metrics.IncRescheduleOutcome(string(Approved))
	log.Info("Reschedule committed", "matchID", req.MatchID, "from", from, "to", req.To)
	ev := pubsub.MatchRescheduled{MatchID: req.MatchID, From: from, To: req.To}
	if err := n.events.SendMessage(ctx, pubsub.EventMatchRescheduled, ev); err != nil {
		log.Error("Failed to publish reschedule", "matchID", req.MatchID, "error", err)
	}
	return nil
}

func (n *Negotiator) expire(matchID int, requestID string) {
	ctx := context.Background()
	n.mu.Lock()
	req, ok := n.requests[matchID]
	if !ok || req.ID != requestID {
		n.mu.Unlock()
		return
	}
	err := n.clear(ctx, matchID)
	n.teardown(req)
	n.mu.Unlock()
	if err != nil {
		log.Error("Failed to clear timed out reschedule", "matchID", matchID, "error", err)
		return
	}
	n.metrics.IncRescheduleOutcome(string(TimedOut))
	log.Info("Reschedule timed out", "matchID", matchID)
	n.announce(ctx, fmt.Sprintf("Reschedule of match #%d expired", matchID),
		fmt.Sprintf("Not everyone answered within %s. Match #%d keeps its original time.", n.opts.Timeout, matchID))
}

// Cancel force-resets the vote for a match. It requires an admin role and is
// safe to call when nothing is pending. It reports whether anything was reset.
func (n *Negotiator) Cancel(ctx context.Context, actor string, matchID int) (bool, error) {
	if err := access.Require(ctx, n.roles, actor, n.opts.AdminRoles); err != nil {
		return false, err
	}
	n.mu.Lock()
	req, inFlight := n.requests[matchID]
	if inFlight {
		n.teardown(req)
	}
	cleared := false
	err := n.repo.Update(ctx, func(s *tournament.State) error {
		if m := s.Match(matchID); m != nil && m.Reschedule != nil {
			m.Reschedule = nil
			cleared = true
		}
		return nil
	})
	n.mu.Unlock()
	if err != nil {
		return false, err
	}
	if inFlight || cleared {
		n.metrics.IncRescheduleOutcome(string(Cancelled))
		log.Info("Reschedule reset by admin", "matchID", matchID, "by", actor)
	}
	return inFlight || cleared, nil
}

// Drop forgets the votes of matches that ended elsewhere, e.g. by a forfeit.
// It does not touch the stored state.
func (n *Negotiator) Drop(ctx context.Context, matchIDs []int) {
	n.mu.Lock()
	defer n.mu.Unlock()
	for _, id := range matchIDs {
		if req, ok := n.requests[id]; ok {
			log.Info("Dropping reschedule of ended match", "matchID", id)
			n.teardown(req)
		}
	}
}

// Recover clears persisted reschedule fields that have no vote in flight, as
// left behind by a restart. It returns the number of matches cleaned.
func (n *Negotiator) Recover(ctx context.Context) (int, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	cleaned := 0
	err := n.repo.Update(ctx, func(s *tournament.State) error {
		cleaned = 0
		for _, m := range s.Matches {
			if m.Reschedule == nil {
				continue
			}
			if _, ok := n.requests[m.ID]; ok {
				continue
			}
			log.Warn("Clearing stale reschedule", "matchID", m.ID, "requestedBy", m.Reschedule.RequestedBy)
			m.Reschedule = nil
			cleaned++
		}
		return nil
	})
	return cleaned, err
}

func (n *Negotiator) clear(ctx context.Context, matchID int) error {
	return n.repo.Update(ctx, func(s *tournament.State) error {
		if m := s.Match(matchID); m != nil {
			m.Reschedule = nil
		}
		return nil
	})
}

// teardown removes the request from the registry. Callers hold n.mu.
func (n *Negotiator) teardown(req *Request) {
	n.clock.Cancel(req.timer)
	delete(n.requests, req.MatchID)
	delete(n.byID, req.ID)
}

func (n *Negotiator) announce(ctx context.Context, title, body string) {
	if err := n.notifier.Broadcast(ctx, notifier.Prompt{Title: title, Body: body}); err != nil {
		log.Error("Failed to announce reschedule outcome", "error", err)
	}
}
