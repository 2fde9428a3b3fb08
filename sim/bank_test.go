package sim

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bank-sim/bank-sim/sim/bus"
)

// fastConfig compresses the workday into one second of wall time.
func fastConfig() Config {
	cfg := DefaultConfig()
	cfg.RealDuration = time.Second
	cfg.Tick = 20 * time.Millisecond
	cfg.SpawnStagger = time.Millisecond
	cfg.ArrivalCutoff = 100 * time.Millisecond
	cfg.CloseGrace = 100 * time.Millisecond
	cfg.StopTimeout = 200 * time.Millisecond
	cfg.InboxPoll = 20 * time.Millisecond
	cfg.Seed = 42
	return cfg
}

type captureSink struct {
	mu    sync.Mutex
	snaps []Snapshot
	err   error
}

func (s *captureSink) Persist(snap Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snaps = append(s.snaps, snap)
	return s.err
}

type countingObserver struct {
	arrived, started, completed, closed int
	maxQueue                            int
}

func (o *countingObserver) CustomerArrived()               { o.arrived++ }
func (o *countingObserver) ServiceStarted(time.Duration)   { o.started++ }
func (o *countingObserver) ServiceCompleted(time.Duration) { o.completed++ }
func (o *countingObserver) CustomerForceClosed()           { o.closed++ }
func (o *countingObserver) QueueLength(n int) {
	if n > o.maxQueue {
		o.maxQueue = n
	}
}
func (o *countingObserver) Tellers(int, int) {}

func transports() map[string]func() bus.Bus {
	return map[string]func() bus.Bus{
		"chan":      func() bus.Bus { return bus.NewChanBus(256) },
		"watermill": func() bus.Bus { return bus.NewWatermillBus(MessageCodec{}, 256) },
	}
}

func TestBank_Run_FullDayInvariants(t *testing.T) {
	for name, newBus := range transports() {
		t.Run(name, func(t *testing.T) {
			// GIVEN a compressed start-of-month day on the selected transport
			b := newBus()
			defer b.Close()
			cfg := fastConfig()
			cfg.Scenario = ScenarioStartOfMonth
			sink := &captureSink{}
			obs := &countingObserver{}
			bank, err := NewBank(cfg, b, WithSink(sink), WithObserver(obs), WithRunID("run-test"))
			require.NoError(t, err)

			// WHEN the day runs to completion
			start := time.Now()
			report, err := bank.Run(context.Background())
			elapsed := time.Since(start)

			// THEN it closes on time and the metrics are consistent
			require.NoError(t, err)
			require.NotNil(t, report)
			assert.GreaterOrEqual(t, elapsed, cfg.RealDuration)
			assert.Less(t, elapsed, cfg.RealDuration+2*time.Second)

			snap := report.Snapshot
			assert.Equal(t, "run-test", snap.RunID)
			assert.Equal(t, ScenarioStartOfMonth, snap.Scenario)
			assert.Equal(t, int64(42), snap.Seed)
			assert.NotZero(t, snap.Total(), "arrivals happened")
			assert.Equal(t, snap.Total(), obs.arrived)

			unserved := 0
			for _, rec := range snap.Customers {
				if wait, ok := rec.WaitTime(); ok {
					assert.GreaterOrEqual(t, wait, time.Duration(0), rec.ID)
					assert.NotEmpty(t, rec.Teller, rec.ID)
				}
				if !rec.End.IsZero() && !rec.ServiceStart.IsZero() {
					assert.False(t, rec.End.Before(rec.ServiceStart), rec.ID)
				}
				assert.True(t, !rec.End.IsZero() || rec.ForceClosed, "%s neither finished nor closed", rec.ID)
				if rec.ServiceStart.IsZero() || rec.End.IsZero() {
					unserved++
				}
			}
			assert.Equal(t, unserved, snap.Unserved)
			assert.Equal(t, snap.ForceClosed, obs.closed)

			require.NotEmpty(t, snap.QueueSeries)
			for _, s := range snap.QueueSeries {
				assert.GreaterOrEqual(t, s.Length, 0)
			}

			require.Len(t, sink.snaps, 1)
			assert.Equal(t, snap.Total(), sink.snaps[0].Total())
		})
	}
}

func TestBank_Run_CancelClosesEarly(t *testing.T) {
	b := bus.NewChanBus(256)
	defer b.Close()
	cfg := fastConfig()
	cfg.RealDuration = time.Minute
	bank, err := NewBank(cfg, b)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	start := time.Now()
	report, err := bank.Run(ctx)

	require.NoError(t, err)
	require.NotNil(t, report)
	assert.Less(t, time.Since(start), 5*time.Second)
	for _, rec := range report.Snapshot.Customers {
		assert.True(t, !rec.End.IsZero() || rec.ForceClosed, rec.ID)
	}
}

func TestBank_Run_PersistFailureIsReported(t *testing.T) {
	b := bus.NewChanBus(256)
	defer b.Close()
	cfg := fastConfig()
	cfg.RealDuration = 300 * time.Millisecond
	cfg.ArrivalCutoff = 50 * time.Millisecond
	boom := errors.New("disk full")
	bank, err := NewBank(cfg, b, WithSink(&captureSink{err: boom}))
	require.NoError(t, err)

	report, err := bank.Run(context.Background())

	assert.ErrorIs(t, err, boom)
	assert.NotNil(t, report)
}

func TestBank_Run_InboxAlreadyTaken(t *testing.T) {
	b := bus.NewChanBus(8)
	defer b.Close()
	_, err := b.Open(BankAddress)
	require.NoError(t, err)
	bank, err := NewBank(fastConfig(), b)
	require.NoError(t, err)

	_, err = bank.Run(context.Background())
	assert.ErrorIs(t, err, bus.ErrMailboxExists)
}

func TestNewBank_RejectsInvalidConfig(t *testing.T) {
	cfg := fastConfig()
	cfg.Tellers = 0
	_, err := NewBank(cfg, bus.NewChanBus(8))
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestNewBank_AssignsRunID(t *testing.T) {
	a, err := NewBank(fastConfig(), bus.NewChanBus(8))
	require.NoError(t, err)
	b, err := NewBank(fastConfig(), bus.NewChanBus(8))
	require.NoError(t, err)
	assert.NotEmpty(t, a.RunID())
	assert.NotEqual(t, a.RunID(), b.RunID())
}

// fakeWallClock is a wall clock that only moves when told to.
type fakeWallClock struct {
	mu sync.Mutex
	t  time.Time
}

func (f *fakeWallClock) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.t
}

func (f *fakeWallClock) Set(t time.Time) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.t = t
}

func TestBank_Tick_ArrivalCutoff(t *testing.T) {
	opened := time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)
	tests := []struct {
		name        string
		elapsed     time.Duration
		wantSpawn   bool
		wantSamples int
	}{
		{"morning", 200 * time.Millisecond, true, 10},
		{"cutoff boundary", 900 * time.Millisecond, false, 10},
		{"inside cutoff", 950 * time.Millisecond, false, 10},
		{"closed", time.Second, false, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// GIVEN a busy day whose wall clock is pinned at elapsed after opening
			cfg := fastConfig()
			cfg.Scenario = ScenarioStartOfMonth
			fake := &fakeWallClock{t: opened}
			bank, err := NewBank(cfg, bus.NewChanBus(8), WithNow(fake.Now))
			require.NoError(t, err)
			bank.clock = NewClock(bank.now(), cfg.RealDuration, bank.now)
			bank.arrivals = NewArrivalProcess(cfg.Scenario, cfg.Tick, bank.clock, bank.rng.ForSubsystem(SubsystemArrivals))
			fake.Set(opened.Add(tt.elapsed))

			// WHEN the arrival timer fires ten times
			for i := 0; i < 10; i++ {
				bank.tick()
			}

			// THEN customers are ordered only before the last ArrivalCutoff,
			// while the queue keeps being sampled until closing
			assert.Equal(t, tt.wantSpawn, len(bank.spawnCh) > 0)
			assert.Equal(t, tt.wantSpawn, bank.nextCustomer > 0)
			assert.Len(t, bank.metrics.Snapshot().QueueSeries, tt.wantSamples)
		})
	}
}

// closingOnOpenBus ends the run the moment a mailbox is opened, as if the
// closing timer fired while a customer was being created.
type closingOnOpenBus struct {
	bus.Bus
	clock *Clock
}

func (b closingOnOpenBus) Open(addr bus.Address) (bus.Mailbox, error) {
	mb, err := b.Bus.Open(addr)
	b.clock.End()
	return mb, err
}

func TestBank_SpawnLoop_NobodyEntersAfterClosing(t *testing.T) {
	tests := []struct {
		name string
		wrap func(bus.Bus, *Clock) bus.Bus
		end  bool
	}{
		{"closed before the batch is read", func(b bus.Bus, _ *Clock) bus.Bus { return b }, true},
		{"closed while the customer is created", func(b bus.Bus, c *Clock) bus.Bus { return closingOnOpenBus{Bus: b, clock: c} }, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// GIVEN a bank inbox and a batch of two customers waiting to be spawned
			transport := bus.NewChanBus(8)
			defer transport.Close()
			inbox, err := transport.Open(BankAddress)
			require.NoError(t, err)
			defer inbox.Close()

			cfg := fastConfig()
			clock := NewClock(time.Now(), cfg.RealDuration, time.Now)
			bank, err := NewBank(cfg, tt.wrap(transport, clock))
			require.NoError(t, err)
			bank.clock = clock
			if tt.end {
				clock.End()
			}
			bank.spawnCh <- []spawnOrder{
				{id: "customer-0001", service: time.Millisecond},
				{id: "customer-0002", service: time.Millisecond},
			}
			close(bank.spawnCh)

			// WHEN the spawner drains the batch
			bank.spawnLoop(context.Background())

			// THEN no customer runs, none arrives and no mailbox is left behind
			assert.True(t, clock.Ended())
			assert.Empty(t, bank.customers.Alive())
			_, got := bus.Receive(context.Background(), inbox, 50*time.Millisecond)
			assert.False(t, got, "bank received an arrival after closing")
			for _, id := range []bus.Address{"customer-0001", "customer-0002"} {
				mb, err := transport.Open(id)
				require.NoError(t, err, "%s mailbox still open", id)
				mb.Close()
			}
		})
	}
}
