package sim

import (
	"math"
	"math/rand"
	"time"
)

// Poisson draws a Poisson-distributed count with the given mean by
// multiplying uniform draws until the running product falls to e^-mean.
// Non-positive means return 0 without consuming randomness.
func Poisson(rng *rand.Rand, mean float64) int {
	if mean <= 0 {
		return 0
	}
	threshold := math.Exp(-mean)
	k := 0
	p := 1.0
	for p > threshold {
		k++
		p *= rng.Float64()
	}
	return k - 1
}

// ArrivalProcess decides, once per tick, how many customers arrive.
type ArrivalProcess struct {
	scenario Scenario
	tick     time.Duration
	clock    *Clock
	rng      *rand.Rand
}

// NewArrivalProcess builds an arrival process evaluated every tick of wall time.
func NewArrivalProcess(scenario Scenario, tick time.Duration, clock *Clock, rng *rand.Rand) *ArrivalProcess {
	return &ArrivalProcess{scenario: scenario, tick: tick, clock: clock, rng: rng}
}

// TickMean returns rate × minutesPerRealSecond × tickSeconds at the clock's
// current minute-of-day.
func (a *ArrivalProcess) TickMean() float64 {
	rate := a.scenario.RatePerMinute(a.clock.MinuteOfDay())
	return rate * a.clock.MinutesPerRealSecond() * a.tick.Seconds()
}

// Draw samples the number of arrivals for the current tick, capped by the
// scenario's per-tick ceiling.
func (a *ArrivalProcess) Draw() int {
	return min(Poisson(a.rng, a.TickMean()), a.scenario.ArrivalCap())
}

// ServiceSampler draws service durations uniformly over a range of simulated
// minutes.
type ServiceSampler struct {
	MinMinutes float64
	MaxMinutes float64
}

// Sample returns a service duration converted to wall time via clock.
func (s ServiceSampler) Sample(rng *rand.Rand, clock *Clock) time.Duration {
	minutes := s.MinMinutes + rng.Float64()*(s.MaxMinutes-s.MinMinutes)
	return clock.SimulatedToReal(minutes)
}
