package sim

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/bank-sim/bank-sim/sim/bus"
)

// Bank is the controller of a run. Its goroutine is the single writer of the
// wait queue, the teller roster and the metrics Recorder; all of them are
// touched only while it handles one inbox message or one timer at a time.
type Bank struct {
	cfg      Config
	bus      bus.Bus
	now      func() time.Time
	observer Observer
	sink     MetricsSink
	runID    string

	clock      *Clock
	inbox      bus.Mailbox
	rng        *PartitionedRNG
	arrivals   *ArrivalProcess
	service    ServiceSampler
	queue      WaitQueue
	dispatcher *Dispatcher
	metrics    *Recorder

	tellers      *supervisor
	customers    *supervisor
	spawnCh      chan []spawnOrder
	spawnerDone  chan struct{}
	nextCustomer int
}

// spawnOrder is a customer the arrival process has decided to create.
type spawnOrder struct {
	id      CustomerID
	service time.Duration
}

// Report is the outcome of a completed run.
type Report struct {
	Snapshot     Snapshot
	StopFailures []StopResult
}

// BankOption customizes a Bank.
type BankOption func(*Bank)

// WithObserver attaches live telemetry.
func WithObserver(o Observer) BankOption {
	return func(b *Bank) {
		if o != nil {
			b.observer = o
		}
	}
}

// WithSink sets where metrics are persisted at shutdown.
func WithSink(s MetricsSink) BankOption {
	return func(b *Bank) { b.sink = s }
}

// WithNow replaces the wall-clock source.
func WithNow(now func() time.Time) BankOption {
	return func(b *Bank) {
		if now != nil {
			b.now = now
		}
	}
}

// WithRunID sets the run identity instead of a random UUID.
func WithRunID(id string) BankOption {
	return func(b *Bank) { b.runID = id }
}

// NewBank validates cfg and prepares a run on transport b.
func NewBank(cfg Config, b bus.Bus, opts ...BankOption) (*Bank, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	bank := &Bank{
		cfg:         cfg,
		bus:         b,
		now:         time.Now,
		observer:    nopObserver{},
		runID:       uuid.NewString(),
		rng:         NewPartitionedRNG(cfg.Seed),
		service:     cfg.Service(),
		metrics:     NewRecorder(),
		tellers:     newSupervisor(),
		customers:   newSupervisor(),
		spawnCh:     make(chan []spawnOrder, 16),
		spawnerDone: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(bank)
	}

	ids := cfg.TellerIDs()
	groups := AssignLunchGroups(len(ids))
	roster := make([]Teller, len(ids))
	for i, id := range ids {
		roster[i] = Teller{ID: id, Group: groups[i]}
	}
	bank.dispatcher = NewDispatcher(cfg.Schedule(), roster)
	return bank, nil
}

// RunID returns the identity of this run.
func (b *Bank) RunID() string {
	return b.runID
}

// Run opens the bank, starts the tellers and processes events until the
// workday's wall-clock budget is spent or ctx is cancelled, then shuts down.
// The returned error is non-nil only when metrics could not be persisted or
// the bank could not open.
func (b *Bank) Run(ctx context.Context) (*Report, error) {
	inbox, err := b.bus.Open(BankAddress)
	if err != nil {
		return nil, fmt.Errorf("opening bank inbox: %w", err)
	}
	b.inbox = inbox
	defer inbox.Close()

	b.clock = NewClock(b.now(), b.cfg.RealDuration, b.now)
	b.arrivals = NewArrivalProcess(b.cfg.Scenario, b.cfg.Tick, b.clock, b.rng.ForSubsystem(SubsystemArrivals))

	for _, t := range b.dispatcher.Tellers() {
		actor, err := NewTellerActor(t.ID, b.bus, b.clock, b.cfg.InboxPoll)
		if err != nil {
			b.clock.End()
			b.tellers.StopAll(b.cfg.StopTimeout)
			return nil, fmt.Errorf("starting %s: %w", t.ID, err)
		}
		b.tellers.Go(ctx, string(t.ID), actor.Run)
	}
	b.dispatcher.Reconcile(b.clock.MinuteOfDay())

	logrus.WithFields(logrus.Fields{
		"run":      b.runID,
		"scenario": b.cfg.Scenario,
		"tellers":  b.cfg.Tellers,
		"opened":   b.clock.Start().Format(time.RFC3339Nano),
		"duration": b.clock.RealDuration(),
		"seed":     b.cfg.Seed,
	}).Info("bank open")

	go b.spawnLoop(ctx)

	ticker := time.NewTicker(b.cfg.Tick)
	defer ticker.Stop()
	closing := time.NewTimer(b.clock.RealDuration())
	defer closing.Stop()

loop:
	for {
		select {
		case env := <-inbox.C():
			b.handle(ctx, env)
		case <-ticker.C:
			b.tick()
		case <-closing.C:
			break loop
		case <-ctx.Done():
			logrus.Warnf("run %s cancelled, closing early", b.runID)
			break loop
		}
	}
	return b.shutdown(ctx)
}

// handle dispatches one inbox message.
func (b *Bank) handle(ctx context.Context, env bus.Envelope) {
	switch m := env.Body.(type) {
	case Arrive:
		b.onArrive(ctx, m)
	case Done:
		b.onDone(ctx, m)
	default:
		logrus.Warnf("[bank] unexpected %T from %s", env.Body, env.From)
	}
}

func (b *Bank) onArrive(ctx context.Context, m Arrive) {
	if b.clock.Ended() {
		logrus.Debugf("[bank] %s arrived after closing, ignored", m.Customer)
		return
	}
	now := b.clock.Now()
	if !b.metrics.EnsureCustomer(m.Customer, now) {
		logrus.Warnf("[bank] duplicate arrival of %s, ignored", m.Customer)
		return
	}
	b.queue.Enqueue(m.Customer)
	b.observer.CustomerArrived()
	logrus.Debugf("[bank] %s arrived at %s, queue=%d", m.Customer, FormatMinuteOfDay(b.clock.MinuteOfDay()), b.queue.Len())
	b.sampleQueue(now)
	b.dispatch(ctx)
}

func (b *Bank) onDone(ctx context.Context, m Done) {
	if b.metrics.SetEnd(m.Customer, b.clock.Now()) {
		if rec, ok := b.metrics.Customer(m.Customer); ok {
			if sys, ok := rec.SystemTime(); ok {
				b.observer.ServiceCompleted(sys)
			}
		}
	}

	ended := b.clock.Ended()
	if _, ok := b.dispatcher.Release(m.Teller, b.clock.MinuteOfDay(), !ended); !ok {
		logrus.Warnf("[bank] DONE from %s which was not serving anyone", m.Teller)
	}
	logrus.Debugf("[bank] %s finished %s (%s), free=%t", m.Teller, m.Customer, m.Duration, b.dispatcher.IsFree(m.Teller))

	b.send(ctx, bus.Address(m.Customer), Finish{})
	if !ended {
		b.dispatch(ctx)
	} else {
		b.observeTellers()
	}
}

// dispatch runs a dispatch pass to exhaustion.
func (b *Bank) dispatch(ctx context.Context) {
	b.dispatcher.Dispatch(b.clock.MinuteOfDay(), &b.queue, func(t TellerID, c CustomerID) {
		now := b.clock.Now()
		b.metrics.SetServiceStart(c, now, t)
		if rec, ok := b.metrics.Customer(c); ok {
			if wait, ok := rec.WaitTime(); ok {
				b.observer.ServiceStarted(wait)
			}
		}
		logrus.Debugf("[bank] %s -> %s", c, t)
		b.send(ctx, bus.Address(t), Serve{Customer: c})
		b.sampleQueue(now)
	})
	b.observeTellers()
}

// tick evaluates the arrival process once.
func (b *Bank) tick() {
	if !b.clock.IsOpen() {
		return
	}
	now := b.clock.Now()
	if b.clock.Remaining() <= b.cfg.ArrivalCutoff {
		b.sampleQueue(now)
		return
	}

	b.dispatcher.Reconcile(b.clock.MinuteOfDay())
	b.observeTellers()

	if k := b.arrivals.Draw(); k > 0 {
		rng := b.rng.ForSubsystem(SubsystemService)
		orders := make([]spawnOrder, k)
		for i := range orders {
			b.nextCustomer++
			orders[i] = spawnOrder{
				id:      CustomerID(fmt.Sprintf("customer-%04d", b.nextCustomer)),
				service: b.service.Sample(rng, b.clock),
			}
		}
		select {
		case b.spawnCh <- orders:
		default:
			logrus.Warnf("[bank] spawner backlogged, dropping %d arrivals", k)
		}
	}
	b.sampleQueue(now)
}

// spawnLoop creates the customers ordered by tick. It re-checks the ended
// flag around every spawn so nobody enters after closing.
func (b *Bank) spawnLoop(ctx context.Context) {
	defer close(b.spawnerDone)
	for orders := range b.spawnCh {
		for i, o := range orders {
			if b.clock.Ended() || ctx.Err() != nil {
				break
			}
			c, err := NewCustomerActor(o.id, b.bus, b.clock, b.cfg.InboxPoll, o.service)
			if err != nil {
				logrus.Warnf("[bank] could not create %s: %v", o.id, err)
				continue
			}
			if b.clock.Ended() {
				c.Teardown()
				logrus.Debugf("[bank] %s created after closing, torn down", c.ID())
				break
			}
			b.customers.Go(ctx, string(c.ID()), c.Run)

			if i < len(orders)-1 && b.cfg.SpawnStagger > 0 {
				select {
				case <-time.After(b.cfg.SpawnStagger):
				case <-ctx.Done():
				}
			}
		}
	}
}

// shutdown ends the run: stop arrivals, send everyone unfinished home, give
// them CloseGrace to leave, kill stragglers, persist metrics, stop tellers.
func (b *Bank) shutdown(parent context.Context) (*Report, error) {
	ctx := context.WithoutCancel(parent)
	b.clock.End()
	logrus.WithField("run", b.runID).Info("bank closing")

	close(b.spawnCh)
	<-b.spawnerDone
	logrus.Debugf("[bank] closing with queue %s", b.queue.String())

	for _, c := range b.closeTargets() {
		b.metrics.MarkForceClosed(c)
		b.observer.CustomerForceClosed()
		b.send(ctx, bus.Address(c), Close{})
	}
	b.drain(ctx, b.cfg.CloseGrace)

	if stragglers := b.customers.Alive(); len(stragglers) > 0 {
		logrus.Infof("[bank] %d customers still inside after the grace period: %v", len(stragglers), stragglers)
	}
	report := &Report{}
	for _, r := range b.customers.StopAll(b.cfg.StopTimeout) {
		if r.Err != nil {
			logrus.Warnf("[bank] %s: %v", r.Name, r.Err)
			report.StopFailures = append(report.StopFailures, r)
		}
	}

	snap := b.metrics.Snapshot()
	snap.RunID = b.runID
	snap.Scenario = b.cfg.Scenario
	snap.Seed = b.cfg.Seed
	report.Snapshot = snap

	var persistErr error
	if b.sink != nil {
		if err := b.sink.Persist(snap); err != nil {
			persistErr = fmt.Errorf("persisting metrics: %w", err)
		}
	}

	for _, t := range b.dispatcher.Tellers() {
		b.send(ctx, bus.Address(t.ID), Stop{})
	}
	if !b.tellers.Wait(b.cfg.StopTimeout) {
		for _, r := range b.tellers.StopAll(b.cfg.StopTimeout) {
			if r.Err != nil {
				logrus.Warnf("[bank] %s: %v", r.Name, r.Err)
				report.StopFailures = append(report.StopFailures, r)
			}
		}
	}

	logrus.WithFields(logrus.Fields{
		"run":          b.runID,
		"customers":    snap.Total(),
		"unserved":     snap.Unserved,
		"force_closed": snap.ForceClosed,
	}).Info("bank closed")
	return report, persistErr
}

// closeTargets is every customer that has not finished: unfinished records,
// the wait queue and those at a teller, in that order without duplicates.
func (b *Bank) closeTargets() []CustomerID {
	seen := make(map[CustomerID]bool)
	var out []CustomerID
	add := func(ids []CustomerID) {
		for _, id := range ids {
			if !seen[id] {
				seen[id] = true
				out = append(out, id)
			}
		}
	}
	add(b.metrics.UnfinishedCustomers())
	add(b.queue.Items())
	add(b.dispatcher.InService())
	return out
}

// drain keeps handling inbox messages for grace so completions racing the
// close are still recorded.
func (b *Bank) drain(ctx context.Context, grace time.Duration) {
	deadline := time.Now().Add(grace)
	for {
		left := time.Until(deadline)
		if left <= 0 {
			return
		}
		env, ok := bus.Receive(ctx, b.inbox, left)
		if !ok {
			return
		}
		b.handle(ctx, env)
	}
}

func (b *Bank) sampleQueue(at time.Time) {
	b.metrics.AddQueueSample(at, b.queue.Len())
	b.observer.QueueLength(b.queue.Len())
}

func (b *Bank) observeTellers() {
	b.observer.Tellers(b.dispatcher.BusyCount(), b.dispatcher.FreeCount())
}

func (b *Bank) send(ctx context.Context, to bus.Address, m Message) {
	if err := b.bus.Send(ctx, BankAddress, to, m); err != nil {
		logrus.Warnf("[bank] sending %s to %s: %v", m.Kind(), to, err)
	}
}
