package sim

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

// fakeNow returns a wall-clock source that tests can move by hand.
func fakeNow(start time.Time) (now func() time.Time, advance func(time.Duration)) {
	cur := start
	return func() time.Time { return cur }, func(d time.Duration) { cur = cur.Add(d) }
}

func TestClock_ElapsedAndMinuteOfDay(t *testing.T) {
	start := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	now, advance := fakeNow(start)
	clock := NewClock(start, 120*time.Second, now)

	tests := []struct {
		name        string
		advance     time.Duration
		wantElapsed float64
		wantMinute  float64
	}{
		{"at open", 0, 0, 480},
		{"15s real = 60 sim minutes (09:00)", 15 * time.Second, 60, 540},
		{"half day", 45 * time.Second, 240, 720},
		{"closing", 60 * time.Second, 480, 960},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			advance(tt.advance)
			assert.InDelta(t, tt.wantElapsed, clock.ElapsedSimulatedMinutes(), 1e-9)
			assert.InDelta(t, tt.wantMinute, clock.MinuteOfDay(), 1e-9)
		})
	}
}

func TestClock_MinutesPerRealSecond(t *testing.T) {
	clock := NewClock(time.Now(), 120*time.Second, nil)
	assert.InDelta(t, 4.0, clock.MinutesPerRealSecond(), 1e-12)
	assert.Equal(t, 2*time.Second, clock.SimulatedToReal(8))
}

func TestClock_IsOpen_ClosesAtWorkdayEndOrWhenEnded(t *testing.T) {
	start := time.Unix(1000, 0)
	now, advance := fakeNow(start)
	clock := NewClock(start, 10*time.Second, now)

	assert.True(t, clock.IsOpen())
	advance(9999 * time.Millisecond)
	assert.True(t, clock.IsOpen())
	advance(time.Millisecond)
	assert.False(t, clock.IsOpen(), "480 elapsed minutes is closed")

	other := NewClock(start, 10*time.Second, func() time.Time { return start })
	other.End()
	other.End()
	assert.True(t, other.Ended())
	assert.False(t, other.IsOpen())
}

func TestClock_Monotonic_NeverNegative(t *testing.T) {
	start := time.Unix(1000, 0)
	now, advance := fakeNow(start.Add(-time.Second))
	clock := NewClock(start, 120*time.Second, now)
	assert.Equal(t, 0.0, clock.ElapsedSimulatedMinutes())

	prev := -math.MaxFloat64
	for i := 0; i < 100; i++ {
		advance(37 * time.Millisecond)
		cur := clock.ElapsedSimulatedMinutes()
		assert.GreaterOrEqual(t, cur, prev)
		prev = cur
	}
}

func TestClock_Remaining(t *testing.T) {
	start := time.Unix(0, 0)
	now, advance := fakeNow(start)
	clock := NewClock(start, 120*time.Second, now)
	advance(110 * time.Second)
	assert.Equal(t, 10*time.Second, clock.Remaining())
}

func TestFormatMinuteOfDay(t *testing.T) {
	assert.Equal(t, "08:00", FormatMinuteOfDay(480))
	assert.Equal(t, "11:45", FormatMinuteOfDay(705.9))
	assert.Equal(t, "16:00", FormatMinuteOfDay(960))
}
