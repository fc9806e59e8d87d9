package processor

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/charmbracelet/log"
	"github.com/mauv0809/tourney/internal/access"
	"github.com/mauv0809/tourney/internal/clock"
	"github.com/mauv0809/tourney/internal/conflict"
	"github.com/mauv0809/tourney/internal/metrics"
	"github.com/mauv0809/tourney/internal/notifier"
	"github.com/mauv0809/tourney/internal/pubsub"
	"github.com/mauv0809/tourney/internal/reschedule"
	"github.com/mauv0809/tourney/internal/schedule"
	"github.com/mauv0809/tourney/internal/tournament"
)

// New creates a new Processor together with its conflict resolver and
// reschedule negotiator.
func New(
	repo tournament.Repository,
	n notifier.Notifier,
	m metrics.Metrics,
	ps pubsub.PubSubClient,
	clk clock.Scheduler,
	roles access.RoleChecker,
	opts Options,
) *Processor {
	if opts.Rules.Location == nil {
		opts.Rules.Location = time.UTC
	}
	if opts.Conflict.Location == nil {
		opts.Conflict.Location = opts.Rules.Location
	}
	if opts.Reschedule.Rules.Location == nil {
		opts.Reschedule.Rules = opts.Rules
	}
	if len(opts.Conflict.AdminRoles) == 0 {
		opts.Conflict.AdminRoles = opts.AdminRoles
	}
	if len(opts.Reschedule.AdminRoles) == 0 {
		opts.Reschedule.AdminRoles = opts.AdminRoles
	}
	seed := opts.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	rng := rand.New(rand.NewSource(seed))

	p := &Processor{
		repo:       repo,
		notifier:   n,
		metrics:    m,
		pubsub:     ps,
		clock:      clk,
		roles:      roles,
		resolver:   conflict.NewResolver(repo, n, clk, m, ps, roles, opts.Conflict),
		negotiator: reschedule.NewNegotiator(repo, n, clk, m, ps, roles, opts.Reschedule),
		rng:        rng,
		names:      tournament.NewNameGenerator(rng),
		opts:       opts,
	}
	p.resolver.SetHooks(conflict.Hooks{
		Regenerate: func(ctx context.Context) error {
			_, err := p.Regenerate(ctx)
			return err
		},
		Forfeited: p.negotiator.Drop,
	})
	return p
}

// SetHistory enables recording of published schedules.
func (p *Processor) SetHistory(h History) {
	p.history = h
}

func (p *Processor) Resolver() *conflict.Resolver       { return p.resolver }
func (p *Processor) Negotiator() *reschedule.Negotiator { return p.negotiator }

// Location is the time zone schedules are rendered in.
func (p *Processor) Location() *time.Location { return p.opts.Rules.Location }

// CloseRegistration forms teams from the solo pool, creates the round robin,
// assigns every pairing a slot and starts conflict negotiations for pairings
// that could not be placed. A capacity error leaves the tournament untouched.
func (p *Processor) CloseRegistration(ctx context.Context) (*Report, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	log.Info("Closing registration...")
	start := time.Now()

	report := &Report{}
	var res *schedule.Result
	err := p.repo.Update(ctx, func(s *tournament.State) error {
		*report = Report{}
		if !s.RegistrationOpen {
			return fmt.Errorf("%w: registration is already closed", tournament.ErrInvariant)
		}
		if err := p.window(s); err != nil {
			return err
		}
		report.Dissolved = s.CleanupOrphans()
		for _, t := range s.AutoPair(p.rng, p.names) {
			report.Formed = append(report.Formed, t.Name)
		}
		if len(s.CreateRoundRobin()) == 0 {
			return fmt.Errorf("%w: fewer than two active teams", tournament.ErrCapacity)
		}
		s.RegistrationOpen = false

		var err error
		res, err = p.place(s, report)
		return err
	})
	if err != nil {
		log.Error("Failed to close registration", "error", err)
		return nil, err
	}
	p.record(res, start)

	if err := p.startConflicts(ctx, report); err != nil {
		log.Error("Failed to start conflict negotiations", "error", err)
	}
	if err := p.Publish(ctx); err != nil {
		log.Error("Failed to publish schedule", "error", err)
	}
	log.Info("Registration closed", "matches", report.Matches, "assigned", report.Assigned,
		"rescued", report.Rescued, "unassigned", len(report.Unassigned), "conflicts", report.Conflicts)
	return report, nil
}

// Regenerate assigns slots to every open match still lacking one. Existing
// placements are kept.
func (p *Processor) Regenerate(ctx context.Context) (*Report, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	log.Info("Regenerating schedule...")
	start := time.Now()

	report := &Report{}
	var res *schedule.Result
	err := p.repo.Update(ctx, func(s *tournament.State) error {
		*report = Report{}
		if s.RegistrationOpen {
			return fmt.Errorf("%w: registration is still open", tournament.ErrInvariant)
		}
		var err error
		res, err = p.place(s, report)
		return err
	})
	if err != nil {
		log.Error("Failed to regenerate schedule", "error", err)
		return nil, err
	}
	p.record(res, start)

	if err := p.startConflicts(ctx, report); err != nil {
		log.Error("Failed to start conflict negotiations", "error", err)
	}
	if err := p.Publish(ctx); err != nil {
		log.Error("Failed to publish schedule", "error", err)
	}
	return report, nil
}

func (p *Processor) window(s *tournament.State) error {
	if s.RegistrationEnd.IsZero() {
		s.RegistrationEnd = p.opts.RegistrationEnd
	}
	if s.TournamentEnd.IsZero() {
		s.TournamentEnd = p.opts.TournamentEnd
	}
	if s.RegistrationEnd.IsZero() {
		s.RegistrationEnd = p.clock.Now()
	}
	if s.TournamentEnd.IsZero() || s.TournamentEnd.Before(s.RegistrationEnd) {
		return fmt.Errorf("%w: tournament end %s is not after registration end %s", tournament.ErrCapacity,
			s.TournamentEnd.Format(tournament.DateLayout), s.RegistrationEnd.Format(tournament.DateLayout))
	}
	return nil
}

// place runs slot generation and assignment for the unscheduled matches,
// extending the tournament when the slot pool is too small.
func (p *Processor) place(s *tournament.State, report *Report) (*schedule.Result, error) {
	report.Matches = len(s.Matches)
	pending := s.Unscheduled()
	if len(pending) == 0 {
		return &schedule.Result{}, nil
	}
	rules := p.opts.Rules
	for {
		slots, err := schedule.GenerateSlots(schedule.WindowOf(s), schedule.StateStartHour(s, rules.DefaultStartHour), pairings(s), rules)
		var res *schedule.Result
		if err == nil {
			res, err = schedule.Assign(s, pending, slots, rules)
		}
		if err == nil {
			report.Assigned = len(res.Assigned)
			report.Rescued = res.Rescued()
			report.Unassigned = res.Unassigned
			return res, nil
		}
		if !errors.Is(err, tournament.ErrCapacity) || s.Extensions >= p.opts.MaxExtensions || p.opts.ExtendWeeks <= 0 {
			return nil, err
		}
		s.TournamentEnd = s.TournamentEnd.AddDate(0, 0, 7*p.opts.ExtendWeeks)
		s.Extensions++
		report.Extended++
		log.Warn("Not enough slots, extending tournament", "weeks", p.opts.ExtendWeeks, "end", s.TournamentEnd, "reason", err)
	}
}

func pairings(s *tournament.State) int {
	n := 0
	for _, m := range s.Matches {
		if m.Status != tournament.MatchForfeit {
			n++
		}
	}
	return n
}

func (p *Processor) record(res *schedule.Result, start time.Time) {
	p.metrics.IncScheduleRuns()
	for _, a := range res.Assigned {
		p.metrics.IncSlotsAssigned(a.Rescue)
	}
	p.metrics.SetUnscheduledMatches(len(res.Unassigned))
	p.metrics.ObserveSchedulingDuration(time.Since(start).Seconds())
}

func (p *Processor) startConflicts(ctx context.Context, report *Report) error {
	var conflicts []conflict.Conflict
	if err := p.repo.View(ctx, func(s *tournament.State) error {
		conflicts = conflict.Detect(s, p.opts.Rules.Location)
		return nil
	}); err != nil {
		return err
	}
	if len(conflicts) == 0 {
		return nil
	}
	started, err := p.resolver.Start(ctx, conflicts)
	report.Conflicts = started
	return err
}

// DetectConflicts scans the schedule and opens a negotiation for every new
// conflict. It returns the number of negotiations opened.
func (p *Processor) DetectConflicts(ctx context.Context) (int, error) {
	report := &Report{}
	err := p.startConflicts(ctx, report)
	return report.Conflicts, err
}

// Publish broadcasts the schedule overview and emits a schedule-published event.
func (p *Processor) Publish(ctx context.Context) error {
	var overview string
	var ev pubsub.SchedulePublished
	if err := p.repo.View(ctx, func(s *tournament.State) error {
		overview = schedule.Overview(s, p.opts.Rules.Location)
		for _, m := range s.Matches {
			if m.Terminal() {
				continue
			}
			ev.Matches++
			if m.ScheduledTime == nil {
				ev.Unscheduled++
			}
			if m.RescueAssigned {
				ev.Rescued++
			}
		}
		return nil
	}); err != nil {
		return fmt.Errorf("failed to read schedule: %w", err)
	}
	ev.At = p.clock.Now()

	if err := p.notifier.Broadcast(ctx, notifier.Prompt{Title: "Tournament schedule", Body: overview}); err != nil {
		log.Error("Failed to broadcast schedule", "error", err)
	}
	if err := p.pubsub.SendMessage(ctx, pubsub.EventSchedulePublished, ev); err != nil {
		log.Error("Failed to publish schedule event", "error", err)
	}
	if p.history != nil {
		if err := p.history.RecordPublication(ctx, ev.At, ev.Matches, ev.Unscheduled, ev.Rescued); err != nil {
			return err
		}
	}
	log.Info("Published schedule", "matches", ev.Matches, "unscheduled", ev.Unscheduled, "rescued", ev.Rescued)
	return nil
}
