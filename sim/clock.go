package sim

import (
	"sync/atomic"
	"time"
)

const (
	// WorkdayMinutes is the length of the simulated workday (08:00-16:00).
	WorkdayMinutes = 480.0
	// DayStartMinute is the simulated minute-of-day at which the workday opens.
	DayStartMinute = 8 * 60
)

// Clock maps elapsed wall time onto simulated time inside a fixed-length
// workday. It also carries the run-wide "ended" flag, the only state shared
// between tasks outside of messages.
//
// Clock is safe for concurrent use.
type Clock struct {
	start        time.Time
	realDuration time.Duration
	now          func() time.Time
	ended        atomic.Bool
}

// NewClock anchors a clock at start. now supplies wall time; nil means time.Now.
func NewClock(start time.Time, realDuration time.Duration, now func() time.Time) *Clock {
	if now == nil {
		now = time.Now
	}
	return &Clock{start: start, realDuration: realDuration, now: now}
}

// Now returns the current wall time.
func (c *Clock) Now() time.Time {
	return c.now()
}

// Start returns the wall-clock anchor.
func (c *Clock) Start() time.Time {
	return c.start
}

// RealDuration returns the wall time the workday is compressed into.
func (c *Clock) RealDuration() time.Duration {
	return c.realDuration
}

// ElapsedSimulatedMinutes returns (now - start) / realDuration * 480, never
// negative.
func (c *Clock) ElapsedSimulatedMinutes() float64 {
	elapsed := c.now().Sub(c.start)
	if elapsed < 0 {
		return 0
	}
	return elapsed.Seconds() / c.realDuration.Seconds() * WorkdayMinutes
}

// MinuteOfDay returns the simulated minute-of-day (480 = 08:00).
func (c *Clock) MinuteOfDay() float64 {
	return DayStartMinute + c.ElapsedSimulatedMinutes()
}

// MinutesPerRealSecond is the scaling constant between the two time bases.
func (c *Clock) MinutesPerRealSecond() float64 {
	return WorkdayMinutes / c.realDuration.Seconds()
}

// SimulatedToReal converts a span of simulated minutes into wall time.
func (c *Clock) SimulatedToReal(minutes float64) time.Duration {
	return time.Duration(minutes / c.MinutesPerRealSecond() * float64(time.Second))
}

// Remaining returns the wall time left until the workday closes.
func (c *Clock) Remaining() time.Duration {
	return c.start.Add(c.realDuration).Sub(c.now())
}

// IsOpen reports whether the workday is still running and the run has not
// been flagged ended.
func (c *Clock) IsOpen() bool {
	return c.ElapsedSimulatedMinutes() < WorkdayMinutes && !c.ended.Load()
}

// End flags the run as ended. It is idempotent.
func (c *Clock) End() {
	c.ended.Store(true)
}

// Ended reports whether End has been called.
func (c *Clock) Ended() bool {
	return c.ended.Load()
}

// FormatMinuteOfDay renders a minute-of-day as HH:MM.
func FormatMinuteOfDay(minute float64) string {
	m := int(minute)
	return time.Date(0, 1, 1, (m/60)%24, m%60, 0, 0, time.UTC).Format("15:04")
}
