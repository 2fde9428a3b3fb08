package sim

import (
	"errors"
	"fmt"
	"time"
)

// ErrInvalidConfig wraps every validation failure of Config.
var ErrInvalidConfig = errors.New("invalid config")

// Config holds the parameters of one simulation run.
type Config struct {
	Scenario     Scenario
	RealDuration time.Duration // wall time the 480-minute workday is compressed into
	Tick         time.Duration // arrival-process period
	Tellers      int

	ServiceMinMinutes float64 // simulated minutes
	ServiceMaxMinutes float64

	LunchStartMinute float64 // group 1 lunch start, minute-of-day
	LunchMinutes     float64 // length of each lunch window

	SpawnStagger  time.Duration // pause between customers spawned in one tick
	ArrivalCutoff time.Duration // no arrivals this close to closing time
	CloseGrace    time.Duration // time customers get to act on CLOSE
	StopTimeout   time.Duration // wait for a task to exit once stopped
	InboxPoll     time.Duration // bounded receive timeout of every task

	MailboxCapacity int
	Seed            int64
}

// DefaultConfig returns the standard run: 120 s of wall time, 0.5 s ticks,
// four tellers.
func DefaultConfig() Config {
	return Config{
		Scenario:          ScenarioNormal,
		RealDuration:      120 * time.Second,
		Tick:              500 * time.Millisecond,
		Tellers:           4,
		ServiceMinMinutes: 8,
		ServiceMaxMinutes: 22,
		LunchStartMinute:  11*60 + 30,
		LunchMinutes:      30,
		SpawnStagger:      20 * time.Millisecond,
		ArrivalCutoff:     10 * time.Second,
		CloseGrace:        500 * time.Millisecond,
		StopTimeout:       300 * time.Millisecond,
		InboxPoll:         time.Second,
		MailboxCapacity:   256,
	}
}

// Validate checks the config for values the engine cannot run with.
func (c Config) Validate() error {
	switch {
	case c.RealDuration <= 0:
		return fmt.Errorf("%w: real duration must be positive, got %s", ErrInvalidConfig, c.RealDuration)
	case c.Tick <= 0 || c.Tick >= c.RealDuration:
		return fmt.Errorf("%w: tick must be in (0, %s), got %s", ErrInvalidConfig, c.RealDuration, c.Tick)
	case c.Tellers <= 0:
		return fmt.Errorf("%w: need at least one teller, got %d", ErrInvalidConfig, c.Tellers)
	case c.ServiceMinMinutes <= 0 || c.ServiceMaxMinutes < c.ServiceMinMinutes:
		return fmt.Errorf("%w: service range [%g, %g] minutes is not valid", ErrInvalidConfig, c.ServiceMinMinutes, c.ServiceMaxMinutes)
	case c.LunchMinutes < 0:
		return fmt.Errorf("%w: lunch length must not be negative, got %g", ErrInvalidConfig, c.LunchMinutes)
	case c.SpawnStagger < 0 || c.ArrivalCutoff < 0 || c.CloseGrace < 0:
		return fmt.Errorf("%w: stagger, cutoff and grace must not be negative", ErrInvalidConfig)
	case c.StopTimeout <= 0 || c.InboxPoll <= 0:
		return fmt.Errorf("%w: stop timeout and inbox poll must be positive", ErrInvalidConfig)
	}
	if _, ok := rateProfiles[c.Scenario]; !ok {
		return fmt.Errorf("%w: unknown scenario %q", ErrInvalidConfig, c.Scenario)
	}
	return nil
}

// Schedule builds the lunch schedule described by the config.
func (c Config) Schedule() Schedule {
	return NewSchedule(c.LunchStartMinute, c.LunchMinutes)
}

// Service builds the service-duration sampler described by the config.
func (c Config) Service() ServiceSampler {
	return ServiceSampler{MinMinutes: c.ServiceMinMinutes, MaxMinutes: c.ServiceMaxMinutes}
}

// TellerIDs returns the identities of the configured tellers.
func (c Config) TellerIDs() []TellerID {
	ids := make([]TellerID, c.Tellers)
	for i := range ids {
		ids[i] = TellerID(fmt.Sprintf("teller-%d", i+1))
	}
	return ids
}
