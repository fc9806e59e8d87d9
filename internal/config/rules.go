package config

import (
	"fmt"
	"os"
	"time"
	_ "time/tzdata"

	"github.com/mauv0809/tourney/internal/conflict"
	"github.com/mauv0809/tourney/internal/processor"
	"github.com/mauv0809/tourney/internal/reschedule"
	"github.com/mauv0809/tourney/internal/schedule"
	"gopkg.in/yaml.v3"
)

// Date is a wrapper around time.Time for YAML date parsing.
type Date struct {
	Time time.Time
}

func (d *Date) UnmarshalYAML(value *yaml.Node) error {
	t, err := time.Parse("2006-01-02", value.Value)
	if err != nil {
		return fmt.Errorf("invalid date %q: %w", value.Value, err)
	}
	d.Time = t
	return nil
}

// In returns midnight of the date in loc.
func (d Date) In(loc *time.Location) time.Time {
	if d.Time.IsZero() {
		return time.Time{}
	}
	y, m, day := d.Time.Date()
	return time.Date(y, m, day, 0, 0, 0, 0, loc)
}

// Duration is a time.Duration written like "90m" or "48h".
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	v, err := time.ParseDuration(value.Value)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", value.Value, err)
	}
	d.Duration = v
	return nil
}

type Slots struct {
	Interval         Duration `yaml:"interval"`
	MaxPerDay        int      `yaml:"max_per_day"`
	DefaultStartHour int      `yaml:"default_start_hour"`
	Cooldown         Duration `yaml:"cooldown"`
}

type Extension struct {
	Weeks int `yaml:"weeks"`
	Max   int `yaml:"max"`
}

type Conflict struct {
	Timeout       Duration `yaml:"timeout"`
	MergeWindow   Duration `yaml:"merge_window"`
	Suggestions   int      `yaml:"suggestions"`
	StandardHours []int    `yaml:"standard_hours"`
}

type Reschedule struct {
	Timeout    Duration `yaml:"timeout"`
	Cutoff     Duration `yaml:"cutoff"`
	ExtendDays int      `yaml:"extend_days"`
}

// Rules is the tournament rules file.
type Rules struct {
	Timezone        string     `yaml:"timezone"`
	RegistrationEnd Date       `yaml:"registration_end"`
	TournamentEnd   Date       `yaml:"tournament_end"`
	Slots           Slots      `yaml:"slots"`
	Extension       Extension  `yaml:"extension"`
	Conflict        Conflict   `yaml:"conflict"`
	Reschedule      Reschedule `yaml:"reschedule"`
	AdminRoles      []string   `yaml:"admin_roles"`
	Seed            int64      `yaml:"seed"`

	location *time.Location
}

// DefaultRules returns the rules used for every key the file leaves out.
func DefaultRules() Rules {
	return Rules{
		Timezone: "Europe/Berlin",
		Slots: Slots{
			Interval:         Duration{2 * time.Hour},
			MaxPerDay:        3,
			DefaultStartHour: 10,
			Cooldown:         Duration{30 * time.Minute},
		},
		Extension: Extension{Weeks: 2, Max: 1},
		Conflict: Conflict{
			Timeout:       Duration{48 * time.Hour},
			MergeWindow:   Duration{time.Hour},
			Suggestions:   10,
			StandardHours: []int{14, 18, 20},
		},
		Reschedule: Reschedule{
			Timeout:    Duration{24 * time.Hour},
			Cutoff:     Duration{time.Hour},
			ExtendDays: 2,
		},
		AdminRoles: []string{"organizer"},
	}
}

// LoadRulesFromBytes parses YAML bytes over the defaults and validates the result.
func LoadRulesFromBytes(data []byte) (*Rules, error) {
	r := DefaultRules()
	if err := yaml.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("parsing rules: %w", err)
	}
	if err := r.validate(); err != nil {
		return nil, err
	}
	return &r, nil
}

// LoadRulesFromFile reads and parses a YAML rules file. An empty path yields the defaults.
func LoadRulesFromFile(path string) (*Rules, error) {
	if path == "" {
		return LoadRulesFromBytes(nil)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading rules file: %w", err)
	}
	return LoadRulesFromBytes(data)
}

func (r *Rules) validate() error {
	loc, err := time.LoadLocation(r.Timezone)
	if err != nil {
		return fmt.Errorf("unknown timezone %q: %w", r.Timezone, err)
	}
	r.location = loc

	if !r.RegistrationEnd.Time.IsZero() && !r.TournamentEnd.Time.IsZero() &&
		!r.TournamentEnd.Time.After(r.RegistrationEnd.Time) {
		return fmt.Errorf("tournament end %s must be after registration end %s",
			r.TournamentEnd.Time.Format("2006-01-02"), r.RegistrationEnd.Time.Format("2006-01-02"))
	}
	if r.Slots.Interval.Duration <= 0 {
		return fmt.Errorf("slot interval must be positive")
	}
	if r.Slots.MaxPerDay < 1 {
		return fmt.Errorf("max slots per day must be at least 1")
	}
	if r.Slots.DefaultStartHour < 0 || r.Slots.DefaultStartHour > 23 {
		return fmt.Errorf("default start hour %d is not an hour of the day", r.Slots.DefaultStartHour)
	}
	for _, h := range r.Conflict.StandardHours {
		if h < 0 || h > 23 {
			return fmt.Errorf("standard hour %d is not an hour of the day", h)
		}
	}
	if r.Conflict.Timeout.Duration <= 0 || r.Reschedule.Timeout.Duration <= 0 {
		return fmt.Errorf("negotiation timeouts must be positive")
	}
	if r.Extension.Weeks < 0 || r.Extension.Max < 0 || r.Reschedule.ExtendDays < 0 {
		return fmt.Errorf("extensions cannot be negative")
	}
	if len(r.AdminRoles) == 0 {
		return fmt.Errorf("at least one admin role is required")
	}
	return nil
}

// Location returns the tournament timezone.
func (r *Rules) Location() *time.Location {
	if r.location == nil {
		return time.UTC
	}
	return r.location
}

// Schedule returns the slot generation rules.
func (r *Rules) Schedule() schedule.Rules {
	return schedule.Rules{
		Location:         r.Location(),
		SlotInterval:     r.Slots.Interval.Duration,
		MaxSlotsPerDay:   r.Slots.MaxPerDay,
		DefaultStartHour: r.Slots.DefaultStartHour,
		Cooldown:         r.Slots.Cooldown.Duration,
	}
}

// ProcessorOptions converts the rules into processor options.
func (r *Rules) ProcessorOptions() processor.Options {
	rules := r.Schedule()
	return processor.Options{
		Rules:           rules,
		RegistrationEnd: r.RegistrationEnd.In(r.Location()),
		TournamentEnd:   r.TournamentEnd.In(r.Location()),
		ExtendWeeks:     r.Extension.Weeks,
		MaxExtensions:   r.Extension.Max,
		AdminRoles:      r.AdminRoles,
		Seed:            r.Seed,
		Conflict: conflict.Options{
			Location:      r.Location(),
			Timeout:       r.Conflict.Timeout.Duration,
			MergeWindow:   r.Conflict.MergeWindow.Duration,
			Suggestions:   r.Conflict.Suggestions,
			StandardHours: r.Conflict.StandardHours,
			AdminRoles:    r.AdminRoles,
		},
		Reschedule: reschedule.Options{
			Rules:      rules,
			Timeout:    r.Reschedule.Timeout.Duration,
			Cutoff:     r.Reschedule.Cutoff.Duration,
			ExtendDays: r.Reschedule.ExtendDays,
			AdminRoles: r.AdminRoles,
		},
	}
}
