package sim

import (
	"strings"
)

// Scenario selects the arrival-rate profile of a run.
type Scenario string

const (
	// ScenarioNormal is an ordinary business day.
	ScenarioNormal Scenario = "normal"
	// ScenarioStartOfMonth has heavier demand, especially early in the morning.
	ScenarioStartOfMonth Scenario = "start-of-month"
)

// rateStep is one segment of a time-of-day arrival profile: rate applies to
// every minute-of-day strictly below until.
type rateStep struct {
	until float64
	rate  float64
}

// Arrival rates in expected customers per simulated minute.
var rateProfiles = map[Scenario][]rateStep{
	ScenarioNormal: {
		{until: 10 * 60, rate: 0.55},
		{until: 12 * 60, rate: 0.40},
		{until: 24 * 60, rate: 0.28},
	},
	ScenarioStartOfMonth: {
		{until: 10 * 60, rate: 0.95},
		{until: 12 * 60, rate: 0.75},
		{until: 24 * 60, rate: 0.45},
	},
}

// ParseScenario maps user input onto a Scenario. Input is trimmed and
// case-insensitive; "start_of_month" and the Croatian "pocetak_mjeseca" are
// accepted as aliases. ok is false for
// unrecognized input, in which case ScenarioNormal is returned.
func ParseScenario(s string) (Scenario, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", string(ScenarioNormal):
		return ScenarioNormal, true
	case string(ScenarioStartOfMonth), "start_of_month", "pocetak_mjeseca", "pocetak-mjeseca":
		return ScenarioStartOfMonth, true
	default:
		return ScenarioNormal, false
	}
}

// RatePerMinute returns the expected arrivals per simulated minute at the
// given minute-of-day.
func (s Scenario) RatePerMinute(minuteOfDay float64) float64 {
	steps, ok := rateProfiles[s]
	if !ok {
		steps = rateProfiles[ScenarioNormal]
	}
	for _, st := range steps {
		if minuteOfDay < st.until {
			return st.rate
		}
	}
	return steps[len(steps)-1].rate
}

// ArrivalCap bounds the number of arrivals drawn in a single tick.
func (s Scenario) ArrivalCap() int {
	if s == ScenarioNormal {
		return 3
	}
	return 5
}
