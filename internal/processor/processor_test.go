package processor_test

import (
	"context"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/mauv0809/tourney/internal/access"
	"github.com/mauv0809/tourney/internal/availability"
	"github.com/mauv0809/tourney/internal/clock"
	"github.com/mauv0809/tourney/internal/conflict"
	"github.com/mauv0809/tourney/internal/metrics"
	"github.com/mauv0809/tourney/internal/notifier"
	"github.com/mauv0809/tourney/internal/processor"
	"github.com/mauv0809/tourney/internal/pubsub"
	"github.com/mauv0809/tourney/internal/reschedule"
	"github.com/mauv0809/tourney/internal/schedule"
	"github.com/mauv0809/tourney/internal/store"
	"github.com/mauv0809/tourney/internal/tournament"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	regEnd   = time.Date(2026, 11, 2, 0, 0, 0, 0, time.UTC)
	tourEnd  = time.Date(2026, 11, 15, 0, 0, 0, 0, time.UTC)
	now      = time.Date(2026, 11, 1, 12, 0, 0, 0, time.UTC)
	saturday = time.Date(2026, 11, 7, 0, 0, 0, 0, time.UTC)
	weekend  = availability.Week{"saturday": "10:00-18:00", "sunday": "10:00-18:00"}
)

type history struct {
	mu    sync.Mutex
	calls int
}

func (h *history) RecordPublication(ctx context.Context, at time.Time, matches, unscheduled, rescued int) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.calls++
	return nil
}

type fixture struct {
	repo     tournament.Repository
	clock    *clock.Fake
	notifier *notifier.Mock
	events   *pubsub.MockPubSubClient
	metrics  *metrics.Mock
	proc     *processor.Processor
}

func newFixture(t *testing.T, end time.Time) *fixture {
	t.Helper()
	f := &fixture{
		repo:     tournament.NewRepository(store.NewMemory()),
		clock:    clock.NewFake(now),
		notifier: notifier.NewMock(),
		events:   pubsub.NewMock(),
		metrics:  metrics.NewMock(),
	}
	admins := []string{"organizer"}
	f.proc = processor.New(f.repo, f.notifier, f.metrics, f.events, f.clock, access.Static{"boss": admins}, processor.Options{
		Rules:           schedule.DefaultRules(),
		RegistrationEnd: regEnd,
		TournamentEnd:   end,
		ExtendWeeks:     2,
		MaxExtensions:   1,
		AdminRoles:      admins,
		Seed:            1,
		Conflict: conflict.Options{
			Timeout:       48 * time.Hour,
			MergeWindow:   time.Hour,
			Suggestions:   10,
			StandardHours: []int{14, 18, 20},
			AdminRoles:    admins,
		},
		Reschedule: reschedule.Options{
			Timeout:    24 * time.Hour,
			Cutoff:     time.Hour,
			ExtendDays: 2,
			AdminRoles: admins,
		},
	})
	return f
}

func (f *fixture) register(t *testing.T, week availability.Week, names ...string) {
	t.Helper()
	for _, n := range names {
		require.NoError(t, f.proc.RegisterTeam(context.Background(), n, []string{n + "-a", n + "-b"}, week.Clone()))
	}
}

func (f *fixture) state(t *testing.T) *tournament.State {
	t.Helper()
	s, err := f.proc.Snapshot(context.Background())
	require.NoError(t, err)
	return s
}

func TestCloseRegistration_SchedulesEveryPairing(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, tourEnd)
	h := &history{}
	f.proc.SetHistory(h)
	f.register(t, weekend, "A", "B", "C", "D")
	require.NoError(t, f.proc.AddSolo(ctx, "solo-1", weekend.Clone()))
	require.NoError(t, f.proc.AddSolo(ctx, "solo-2", weekend.Clone()))

	report, err := f.proc.CloseRegistration(ctx)
	require.NoError(t, err)
	require.Len(t, report.Formed, 1)
	assert.Equal(t, 10, report.Matches)
	assert.Equal(t, 10, report.Assigned)
	assert.Empty(t, report.Unassigned)
	assert.Equal(t, 0, report.Conflicts)

	s := f.state(t)
	assert.False(t, s.RegistrationOpen)
	assert.Empty(t, s.Solos)
	require.NoError(t, s.Validate())
	for _, m := range s.Matches {
		assert.NotNil(t, m.ScheduledTime, "match %d", m.ID)
	}

	assert.Equal(t, 1, f.metrics.ScheduleRuns())
	total, _ := f.metrics.SlotsAssigned()
	assert.Equal(t, 10, total)
	assert.Contains(t, f.events.Topics(), pubsub.EventSchedulePublished)
	require.Len(t, f.notifier.Broadcasts(), 1)
	assert.Equal(t, "Tournament schedule", f.notifier.Broadcasts()[0].Title)
	assert.Equal(t, 1, h.calls)

	_, err = f.proc.CloseRegistration(ctx)
	assert.ErrorIs(t, err, tournament.ErrInvariant)
}

func TestCloseRegistration_CapacityIsANoOp(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, tourEnd)
	f.register(t, weekend, "A")

	_, err := f.proc.CloseRegistration(ctx)
	assert.ErrorIs(t, err, tournament.ErrCapacity)

	s := f.state(t)
	assert.True(t, s.RegistrationOpen)
	assert.Empty(t, s.Matches)
	assert.Empty(t, f.notifier.Broadcasts())
}

func TestCloseRegistration_ExtendsOnceWhenSlotsRunOut(t *testing.T) {
	ctx := context.Background()
	oneWeekend := time.Date(2026, 11, 8, 0, 0, 0, 0, time.UTC)

	t.Run("one extension is enough", func(t *testing.T) {
		f := newFixture(t, oneWeekend)
		f.register(t, weekend, "A", "B", "C", "D", "E", "F")

		report, err := f.proc.CloseRegistration(ctx)
		require.NoError(t, err)
		assert.Equal(t, 1, report.Extended)
		assert.Equal(t, 15, report.Assigned)

		s := f.state(t)
		assert.Equal(t, oneWeekend.AddDate(0, 0, 14), s.TournamentEnd)
		assert.Equal(t, 1, s.Extensions)
	})

	t.Run("still too small", func(t *testing.T) {
		f := newFixture(t, oneWeekend)
		f.register(t, weekend, "A", "B", "C", "D", "E", "F", "G")

		_, err := f.proc.CloseRegistration(ctx)
		assert.ErrorIs(t, err, tournament.ErrCapacity)
		s := f.state(t)
		assert.True(t, s.RegistrationOpen)
		assert.True(t, s.TournamentEnd.IsZero(), "the window is only persisted with a schedule")
		assert.Equal(t, 0, s.Extensions)
		assert.Empty(t, s.Matches)
	})
}

func TestCloseRegistration_ConflictAgreementRegenerates(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, tourEnd)
	f.register(t, availability.Week{"saturday": "10:00-12:00"}, "X")
	f.register(t, availability.Week{"saturday": "14:00-16:00"}, "Y")
	f.register(t, availability.Week{"saturday": "10:00-16:00"}, "Z")

	report, err := f.proc.CloseRegistration(ctx)
	require.NoError(t, err)
	assert.Equal(t, []int{1}, report.Unassigned)
	assert.Equal(t, 1, report.Conflicts)
	assert.Equal(t, []int{1}, f.proc.Resolver().Pending())

	sess, ok := f.proc.Resolver().Session(1)
	require.True(t, ok)
	slot := saturday.Add(14 * time.Hour)
	require.Contains(t, sess.Suggestions, slot)
	value := strconv.FormatInt(slot.Unix(), 10)

	var reply string
	for _, m := range []string{"X-a", "X-b", "Y-a", "Y-b"} {
		reply, err = f.proc.Respond(ctx, m, notifier.Action{Kind: notifier.KindConflict, Verb: notifier.VerbSelect, Ref: sess.ID, Value: value})
		require.NoError(t, err)
	}
	assert.Contains(t, reply, "agreed")

	s := f.state(t)
	require.NotNil(t, s.Match(1).ScheduledTime)
	assert.True(t, slot.Equal(*s.Match(1).ScheduledTime))
	assert.Empty(t, s.Unscheduled())
	assert.Equal(t, 2, f.metrics.ScheduleRuns(), "the schedule is regenerated after the last conflict")
	assert.Equal(t, 0, f.metrics.Unscheduled())
}

func TestRescheduleThroughProcessor(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, tourEnd)
	f.register(t, weekend, "A", "B", "C", "D")
	_, err := f.proc.CloseRegistration(ctx)
	require.NoError(t, err)

	free, err := f.proc.FreeSlots(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, free)
	when := free[0].Format("02.01.2006 15:04")

	reply, err := f.proc.RequestReschedule(ctx, "A-a", 1, when)
	require.NoError(t, err)
	assert.Contains(t, reply, "4 players")

	req, ok := f.proc.Negotiator().Lookup(1)
	require.True(t, ok)

	_, err = f.proc.ResetReschedule(ctx, "A-a", 1)
	assert.ErrorIs(t, err, tournament.ErrForbidden)

	for _, m := range req.Members() {
		reply, err = f.proc.Respond(ctx, m, notifier.Action{Kind: notifier.KindReschedule, Verb: notifier.VerbAccept, Ref: req.ID})
		require.NoError(t, err)
	}
	assert.Contains(t, reply, "moved")
	m := f.state(t).Match(1)
	assert.True(t, free[0].Equal(*m.ScheduledTime))
	assert.True(t, m.RescheduledOnce)

	reply, err = f.proc.ResetReschedule(ctx, "boss", 1)
	require.NoError(t, err)
	assert.Contains(t, reply, "No reschedule")
}

func TestLeaveEndsPendingReschedule(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, tourEnd)
	f.register(t, weekend, "A", "B", "C", "D")
	_, err := f.proc.CloseRegistration(ctx)
	require.NoError(t, err)
	free, err := f.proc.FreeSlots(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, free)

	_, err = f.proc.RequestReschedule(ctx, "A-a", 1, free[0].Format("02.01.2006 15:04"))
	require.NoError(t, err)

	forfeited, err := f.proc.Leave(ctx, "B-b")
	require.NoError(t, err)
	assert.Contains(t, forfeited, 1)
	assert.Empty(t, f.proc.Negotiator().Pending())
	assert.Equal(t, 0, f.clock.Pending())

	s := f.state(t)
	m := s.Match(1)
	assert.Equal(t, tournament.MatchForfeit, m.Status)
	assert.Equal(t, "A", m.Winner)
	assert.Nil(t, m.Reschedule)
	assert.Equal(t, tournament.TeamWithdrawn, s.Team("B").Status)
	assert.Contains(t, f.events.Topics(), pubsub.EventMatchForfeited)
}

func TestExclude(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, tourEnd)
	f.register(t, weekend, "A", "B", "C")
	_, err := f.proc.CloseRegistration(ctx)
	require.NoError(t, err)

	_, err = f.proc.Exclude(ctx, "A-a", "B", "")
	assert.ErrorIs(t, err, tournament.ErrForbidden)

	_, err = f.proc.Exclude(ctx, "boss", "Q", "")
	assert.ErrorIs(t, err, tournament.ErrNotFound)

	forfeited, err := f.proc.Exclude(ctx, "boss", "B", "no show")
	require.NoError(t, err)
	assert.ElementsMatch(t, []int{1, 3}, forfeited)

	s := f.state(t)
	assert.Equal(t, tournament.TeamExcluded, s.Team("B").Status)
	assert.Equal(t, "no show", s.Team("B").ExcludedReason)
	assert.Contains(t, f.events.Topics(), pubsub.EventTeamExcluded)
}

func TestRespond_UnknownKind(t *testing.T) {
	f := newFixture(t, tourEnd)
	_, err := f.proc.Respond(context.Background(), "A-a", notifier.Action{Kind: "poll", Verb: notifier.VerbAccept, Ref: "x"})
	assert.ErrorIs(t, err, tournament.ErrFormat)
}

func TestNew_NegotiationsInheritAdminRoles(t *testing.T) {
	ctx := context.Background()
	admins := []string{"organizer"}
	proc := processor.New(tournament.NewRepository(store.NewMemory()), notifier.NewMock(), metrics.NewMock(), pubsub.NewMock(),
		clock.NewFake(now), access.Static{"boss": admins}, processor.Options{
			Rules:           schedule.DefaultRules(),
			RegistrationEnd: regEnd,
			TournamentEnd:   tourEnd,
			AdminRoles:      admins,
			Seed:            1,
		})

	reply, err := proc.ResetReschedule(ctx, "boss", 1)
	require.NoError(t, err)
	assert.Contains(t, reply, "No reschedule")
	require.NoError(t, proc.CancelConflict(ctx, "boss", 1))

	_, err = proc.ResetReschedule(ctx, "nobody", 1)
	assert.ErrorIs(t, err, tournament.ErrForbidden)
	assert.ErrorIs(t, proc.CancelConflict(ctx, "nobody", 1), tournament.ErrForbidden)
}

func TestRun_RegistrationCommands(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, tourEnd)
	run := func(member, name string, args ...string) (string, error) {
		return f.proc.Run(ctx, notifier.Command{Name: name, Member: member, Args: args})
	}

	reply, err := run("s1", notifier.CommandJoin)
	require.NoError(t, err)
	assert.Contains(t, reply, "solo pool")

	reply, err = run("p1", notifier.CommandJoin, "Red", "Team", "p2")
	require.NoError(t, err)
	assert.Equal(t, "Team Red Team is registered.", reply)

	_, err = run("p3", notifier.CommandJoin, "Blue")
	assert.ErrorIs(t, err, tournament.ErrFormat)

	_, err = run("s1", notifier.CommandJoin)
	assert.ErrorIs(t, err, tournament.ErrInvariant, "already registered")

	reply, err = run("p1", notifier.CommandAvailability, "Saturday", "12:00-16:00")
	require.NoError(t, err)
	assert.Equal(t, "Availability for saturday set to 12:00-16:00.", reply)
	_, err = run("p2", notifier.CommandAvailability, "sunday", "off")
	require.NoError(t, err)
	_, err = run("p2", notifier.CommandAvailability, "2026-11-07")
	require.NoError(t, err)

	_, err = run("p1", notifier.CommandAvailability, "tomorrow")
	assert.ErrorIs(t, err, tournament.ErrFormat)
	_, err = run("p1", notifier.CommandAvailability, "saturday", "noon")
	assert.ErrorIs(t, err, tournament.ErrFormat)
	_, err = run("ghost", notifier.CommandAvailability, "saturday", "10:00-12:00")
	assert.ErrorIs(t, err, tournament.ErrNotFound)

	s := f.state(t)
	require.Len(t, s.Solos, 1)
	team := s.Team("Red Team")
	require.NotNil(t, team)
	assert.Equal(t, []string{"p1", "p2"}, team.Members)
	assert.Equal(t, "12:00-16:00", team.Availability["saturday"])
	assert.Equal(t, availability.Unavailable, team.Availability["sunday"])
	assert.Equal(t, []string{"2026-11-07"}, team.UnavailableDates)

	reply, err = run("s1", notifier.CommandLeave)
	require.NoError(t, err)
	assert.Equal(t, "You left the tournament.", reply)
	assert.Empty(t, f.state(t).Solos)

	_, err = run("s1", notifier.CommandLeave)
	assert.ErrorIs(t, err, tournament.ErrNotFound)
	_, err = run("s1", "poll")
	assert.ErrorIs(t, err, tournament.ErrFormat)
}

func TestRun_Reschedule(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, tourEnd)
	f.register(t, weekend, "A", "B", "C", "D")
	_, err := f.proc.CloseRegistration(ctx)
	require.NoError(t, err)
	free, err := f.proc.FreeSlots(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, free)

	_, err = f.proc.Run(ctx, notifier.Command{Name: notifier.CommandReschedule, Member: "A-a", Args: []string{"one"}})
	assert.ErrorIs(t, err, tournament.ErrFormat)

	reply, err := f.proc.Run(ctx, notifier.Command{
		Name:   notifier.CommandReschedule,
		Member: "A-a",
		Args:   []string{"#1", free[0].Format("02.01.2006"), free[0].Format("15:04")},
	})
	require.NoError(t, err)
	assert.Contains(t, reply, "match #1")
	_, ok := f.proc.Negotiator().Lookup(1)
	assert.True(t, ok)
}
