package conflict

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"github.com/mauv0809/tourney/internal/access"
	"github.com/mauv0809/tourney/internal/availability"
	"github.com/mauv0809/tourney/internal/clock"
	"github.com/mauv0809/tourney/internal/metrics"
	"github.com/mauv0809/tourney/internal/notifier"
	"github.com/mauv0809/tourney/internal/pubsub"
	"github.com/mauv0809/tourney/internal/schedule"
	"github.com/mauv0809/tourney/internal/tournament"
)

// Options configure a Resolver.
type Options struct {
	Location      *time.Location
	Timeout       time.Duration
	MergeWindow   time.Duration
	Suggestions   int
	StandardHours []int
	AdminRoles    []string
}

// Hooks are called after the resolver released its lock.
type Hooks struct {
	// Regenerate runs once the last pending session ended.
	Regenerate func(ctx context.Context) error
	// Forfeited reports matches ended by an exclusion.
	Forfeited func(ctx context.Context, matchIDs []int)
}

type entry struct {
	session *Session
	timer   clock.Handle
}

// Resolver owns every open conflict session.
type Resolver struct {
	mu       sync.Mutex
	sessions map[string]*entry
	byMatch  map[int]string

	repo     tournament.Repository
	notifier notifier.Notifier
	clock    clock.Scheduler
	metrics  metrics.Metrics
	events   pubsub.PubSubClient
	roles    access.RoleChecker
	opts     Options
	hooks    Hooks
}

func NewResolver(
	repo tournament.Repository,
	n notifier.Notifier,
	clk clock.Scheduler,
	m metrics.Metrics,
	events pubsub.PubSubClient,
	roles access.RoleChecker,
	opts Options,
) *Resolver {
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	return &Resolver{
		sessions: make(map[string]*entry),
		byMatch:  make(map[int]string),
		repo:     repo,
		notifier: n,
		clock:    clk,
		metrics:  m,
		events:   events,
		roles:    roles,
		opts:     opts,
	}
}

// SetHooks installs the callbacks run after terminal transitions.
func (r *Resolver) SetHooks(h Hooks) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.hooks = h
}

// Pending returns the match IDs with an open session.
func (r *Resolver) Pending() []int {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]int, 0, len(r.byMatch))
	for id := range r.byMatch {
		out = append(out, id)
	}
	return out
}

// Session returns the open session for a match, if any.
func (r *Resolver) Session(matchID int) (*Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	id, ok := r.byMatch[matchID]
	if !ok {
		return nil, false
	}
	return r.sessions[id].session, true
}

// Start opens a session for every conflict that has none yet and asks the
// members of both teams to agree on a slot. It returns the number opened.
// A conflict without a single suggestion is timed out on the spot. The
// Regenerate hook is not run from here since callers may be scheduling.
func (r *Resolver) Start(ctx context.Context, conflicts []Conflict) (int, error) {
	var invites, hopeless []*Session

	r.mu.Lock()
	err := r.repo.View(ctx, func(s *tournament.State) error {
		days := schedule.WeekendDays(schedule.WindowOf(s), r.opts.Location)
		now := r.clock.Now()
		for _, c := range conflicts {
			if _, open := r.byMatch[c.MatchID]; open {
				log.Info("Conflict already under negotiation", "matchID", c.MatchID)
				continue
			}
			m := s.Match(c.MatchID)
			if m == nil || m.Terminal() {
				continue
			}
			t1, t2, err := s.MatchTeams(m)
			if err != nil {
				return err
			}
			suggestions := Suggest(t1, t2, days, SuggestOptions{
				Limit:         r.opts.Suggestions,
				StandardHours: r.opts.StandardHours,
				Location:      r.opts.Location,
				Now:           now,
				Taken:         func(t time.Time) bool { return s.SlotTaken(t, m.ID) },
			})
			sess := NewSession(uuid.NewString(), m.ID, t1, t2, suggestions)
			sess.Deadline = now.Add(r.opts.Timeout)
			r.metrics.IncConflictsDetected()
			if len(suggestions) == 0 {
				log.Warn("No slot left to suggest, timing out conflict", "matchID", m.ID)
				sess.Expire()
				hopeless = append(hopeless, sess)
				continue
			}
			id := sess.ID
			r.sessions[id] = &entry{
				session: sess,
				timer:   r.clock.After(r.opts.Timeout, func() { r.expire(id) }),
			}
			r.byMatch[m.ID] = id
			log.Info("Opened conflict session", "matchID", m.ID, "session", id, "suggestions", len(suggestions))
			invites = append(invites, sess)
		}
		return nil
	})
	r.mu.Unlock()
	if err != nil {
		return 0, err
	}

	for _, sess := range hopeless {
		r.mu.Lock()
		_, forfeited, err := r.finish(ctx, &entry{session: sess})
		hooks := r.hooks
		r.mu.Unlock()
		if err != nil {
			log.Error("Failed to apply conflict timeout", "matchID", sess.MatchID, "error", err)
			continue
		}
		r.announce(ctx, "Conflict timed out", sess)
		if len(forfeited) > 0 && hooks.Forfeited != nil {
			hooks.Forfeited(ctx, forfeited)
		}
	}
	opened := 0
	for _, sess := range invites {
		r.mu.Lock()
		_, open := r.sessions[sess.ID]
		r.mu.Unlock()
		if !open {
			continue
		}
		opened++
		if _, err := r.notifier.Notify(ctx, sess.Members(), r.prompt(sess)); err != nil {
			log.Error("Failed to deliver conflict prompt", "matchID", sess.MatchID, "error", err)
		}
	}
	return opened, nil
}

func (r *Resolver) prompt(s *Session) notifier.Prompt {
	options := make([]notifier.Choice, 0, len(s.Suggestions))
	for _, t := range s.Suggestions {
		options = append(options, notifier.Choice{
			ID:    strconv.FormatInt(t.Unix(), 10),
			Label: t.In(r.opts.Location).Format("Mon 02.01. 15:04"),
		})
	}
	body := fmt.Sprintf("%s and %s share no availability for match #%d.\n"+
		"Pick a time that works for you. Once all %d players agree, the match is set.\n"+
		"Declining excludes your team. Without agreement by %s both teams are excluded.",
		s.Team1, s.Team2, s.MatchID, len(s.members), s.Deadline.In(r.opts.Location).Format("Mon 02.01. 15:04"))
	return notifier.Prompt{
		Title: fmt.Sprintf("Availability conflict: match #%d", s.MatchID),
		Body:  body,
		Select: &notifier.Select{
			ID:          notifier.EncodeAction(notifier.KindConflict, notifier.VerbSelect, s.ID),
			Placeholder: "Choose a time",
			Options:     options,
		},
		Choices: []notifier.Choice{
			{ID: notifier.EncodeAction(notifier.KindConflict, notifier.VerbConfirm, s.ID), Label: "Confirm selection"},
			{ID: notifier.EncodeAction(notifier.KindConflict, notifier.VerbDecline, s.ID), Label: "Decline", Danger: true},
		},
	}
}

// Respond applies one member's vote.
func (r *Resolver) Respond(ctx context.Context, member string, a notifier.Action) (string, error) {
	if a.Kind != notifier.KindConflict {
		return "", fmt.Errorf("%w: not a conflict action", tournament.ErrFormat)
	}

	r.mu.Lock()
	e, ok := r.sessions[a.Ref]
	if !ok {
		r.mu.Unlock()
		return "", fmt.Errorf("%w: conflict session %s is closed", tournament.ErrNotFound, a.Ref)
	}
	s := e.session

	var outcome Outcome
	var err error
	switch a.Verb {
	case notifier.VerbSelect:
		var slot time.Time
		slot, err = parseUnix(a.Value)
		if err == nil {
			outcome, err = s.Select(member, slot)
		}
	case notifier.VerbConfirm, notifier.VerbAccept:
		outcome, err = s.Confirm(member)
	case notifier.VerbDecline:
		outcome, err = s.Decline(member)
	default:
		err = fmt.Errorf("%w: unsupported verb %q", tournament.ErrFormat, a.Verb)
	}
	if err != nil {
		r.mu.Unlock()
		return "", err
	}
	if outcome == Pending {
		approved, total := s.Approvals(), len(s.members)
		r.mu.Unlock()
		return fmt.Sprintf("Noted. %d of %d players approved the current selection.", approved, total), nil
	}

	ended, forfeited, applyErr := r.finish(ctx, e)
	r.mu.Unlock()
	if applyErr != nil {
		r.after(ctx, ended, forfeited)
		return "", applyErr
	}
	r.announce(ctx, "Conflict settled", s)
	r.after(ctx, ended, forfeited)
	return describe(s, r.opts.Location), nil
}

// Cancel drops a session without applying any outcome. It is a no-op when
// the match has no open session.
func (r *Resolver) Cancel(ctx context.Context, actor string, matchID int) error {
	if err := access.Require(ctx, r.roles, actor, r.opts.AdminRoles); err != nil {
		return err
	}
	r.mu.Lock()
	id, ok := r.byMatch[matchID]
	if ok {
		r.drop(id)
	}
	r.mu.Unlock()
	if ok {
		log.Info("Conflict session cancelled", "matchID", matchID, "by", actor)
		r.metrics.IncConflictOutcome("cancelled")
	}
	return nil
}

func (r *Resolver) expire(id string) {
	ctx := context.Background()
	r.mu.Lock()
	e, ok := r.sessions[id]
	if !ok {
		r.mu.Unlock()
		return
	}
	e.session.Expire()
	log.Warn("Conflict session timed out", "matchID", e.session.MatchID)
	ended, forfeited, err := r.finish(ctx, e)
	r.mu.Unlock()
	if err != nil {
		log.Error("Failed to apply conflict timeout", "matchID", e.session.MatchID, "error", err)
	} else {
		r.announce(ctx, "Conflict timed out", e.session)
	}
	r.after(ctx, ended, forfeited)
}

func (r *Resolver) announce(ctx context.Context, title string, s *Session) {
	if err := r.notifier.Broadcast(ctx, notifier.Prompt{Title: title, Body: describe(s, r.opts.Location)}); err != nil {
		log.Error("Failed to announce conflict outcome", "matchID", s.MatchID, "error", err)
	}
}

// finish applies the terminal outcome of a session and removes it together
// with any session made moot by an exclusion. It must be called with r.mu held.
func (r *Resolver) finish(ctx context.Context, e *entry) (bool, []int, error) {
	s := e.session
	r.drop(s.ID)
	r.metrics.IncConflictOutcome(string(s.Outcome()))

	var forfeited []int
	var events []any
	err := r.repo.Update(ctx, func(st *tournament.State) error {
		forfeited, events = nil, nil
		switch s.Outcome() {
		case ResolvedSlot:
			return r.resolve(st, s)
		case ExcludedOne, ExcludedBoth:
			ids, err := st.ExcludeTeams(tournament.ReasonAvailabilityConflict, s.Excluded()...)
			if err != nil {
				return err
			}
			forfeited = ids
			for _, team := range s.Excluded() {
				events = append(events, pubsub.TeamExcluded{Team: team, Reason: tournament.ReasonAvailabilityConflict})
			}
			for _, id := range ids {
				m := st.Match(id)
				events = append(events, pubsub.MatchForfeited{MatchID: id, ForfeitBy: m.ForfeitBy, Winner: m.Winner, Reason: tournament.ReasonAvailabilityConflict})
			}
		}
		return nil
	})
	if err != nil {
		return len(r.sessions) == 0, nil, err
	}

	for _, ev := range events {
		r.publish(ctx, ev)
	}
	for _, id := range forfeited {
		if sid, ok := r.byMatch[id]; ok {
			log.Info("Dropping conflict session for forfeited match", "matchID", id)
			r.drop(sid)
		}
	}
	return len(r.sessions) == 0, forfeited, nil
}

func (r *Resolver) resolve(st *tournament.State, s *Session) error {
	slot := s.Slot()
	local := slot.In(r.opts.Location)
	window := availability.Around(local, r.opts.MergeWindow)
	for _, name := range []string{s.Team1, s.Team2} {
		t := st.Team(name)
		if t == nil {
			return fmt.Errorf("%w: team %q", tournament.ErrNotFound, name)
		}
		if t.Availability == nil {
			t.Availability = availability.NewWeek()
		}
		t.Availability.Extend(local.Weekday(), window)
		log.Info("Extended availability", "team", name, "day", availability.DayName(local.Weekday()), "range", window.String())
	}
	m := st.Match(s.MatchID)
	if m == nil || m.Terminal() {
		return nil
	}
	if st.SlotTaken(slot, m.ID) {
		log.Warn("Agreed slot was claimed meanwhile, leaving match for regeneration", "matchID", m.ID, "slot", slot)
		return nil
	}
	m.Schedule(slot, false)
	return nil
}

func (r *Resolver) publish(ctx context.Context, ev any) {
	var topic pubsub.EventType
	switch ev.(type) {
	case pubsub.TeamExcluded:
		topic = pubsub.EventTeamExcluded
	case pubsub.MatchForfeited:
		topic = pubsub.EventMatchForfeited
	default:
		return
	}
	if err := r.events.SendMessage(ctx, topic, ev); err != nil {
		log.Error("Failed to publish event", "topic", topic, "error", err)
	}
}

// after runs the hooks outside the lock.
func (r *Resolver) after(ctx context.Context, ended bool, forfeited []int) {
	r.mu.Lock()
	hooks := r.hooks
	r.mu.Unlock()

	if len(forfeited) > 0 && hooks.Forfeited != nil {
		hooks.Forfeited(ctx, forfeited)
	}
	if !ended || hooks.Regenerate == nil {
		return
	}
	log.Info("All conflicts settled, regenerating schedule")
	if err := hooks.Regenerate(ctx); err != nil && !errors.Is(err, tournament.ErrCapacity) {
		log.Error("Failed to regenerate schedule", "error", err)
	}
}

func (r *Resolver) drop(id string) {
	e, ok := r.sessions[id]
	if !ok {
		return
	}
	r.clock.Cancel(e.timer)
	delete(r.sessions, id)
	delete(r.byMatch, e.session.MatchID)
}

func describe(s *Session, loc *time.Location) string {
	switch s.Outcome() {
	case ResolvedSlot:
		return fmt.Sprintf("Match #%d agreed for %s.", s.MatchID, s.Slot().In(loc).Format("Monday 02.01.2006 15:04"))
	case ExcludedOne, ExcludedBoth:
		return fmt.Sprintf("Match #%d: %s excluded from the tournament.", s.MatchID, strings.Join(s.Excluded(), " and "))
	}
	return fmt.Sprintf("Match #%d is still open.", s.MatchID)
}

func parseUnix(v string) (time.Time, error) {
	sec, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: bad slot %q", tournament.ErrFormat, v)
	}
	return time.Unix(sec, 0).UTC(), nil
}

// Drop discards the sessions of matches that ended elsewhere. No outcome is
// recorded and the stored state is not touched.
func (r *Resolver) Drop(ctx context.Context, matchIDs []int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, id := range matchIDs {
		if sid, ok := r.byMatch[id]; ok {
			log.Info("Dropping conflict session of ended match", "matchID", id)
			r.drop(sid)
		}
	}
}
