package processor

import (
	"math/rand"
	"sync"
	"time"

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

// Options configure a Processor and the negotiations it owns.
type Options struct {
	Rules schedule.Rules
	// RegistrationEnd and TournamentEnd seed the window of a state that has none.
	RegistrationEnd time.Time
	TournamentEnd   time.Time
	// ExtendWeeks is added to the tournament end when the slots run out,
	// at most MaxExtensions times per tournament.
	ExtendWeeks   int
	MaxExtensions int
	AdminRoles    []string
	Seed          int64

	Conflict   conflict.Options
	Reschedule reschedule.Options
}

// Report summarises one scheduling run.
type Report struct {
	Formed     []string
	Dissolved  []string
	Matches    int
	Assigned   int
	Rescued    int
	Unassigned []int
	Conflicts  int
	Extended   int
}

// Processor orchestrates closing registration, assigning slots and
// dispatching negotiation responses.
type Processor struct {
	mu sync.Mutex // serialises scheduling runs

	repo       tournament.Repository
	notifier   notifier.Notifier
	metrics    metrics.Metrics
	pubsub     pubsub.PubSubClient
	clock      clock.Scheduler
	roles      access.RoleChecker
	history    History
	resolver   *conflict.Resolver
	negotiator *reschedule.Negotiator

	rng   *rand.Rand
	names tournament.NameGenerator
	opts  Options
}
