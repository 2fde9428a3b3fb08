package sim

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/bank-sim/bank-sim/sim/bus"
)

// TellerState is the busy/idle state of a teller task. Availability (lunch)
// is orthogonal and tracked by the Dispatcher.
type TellerState int

const (
	TellerIdle TellerState = iota
	TellerServing
)

// TellerActor is the task behind one teller. It calls assigned customers,
// serves them for the duration they report, and tells the bank when done.
// Service is a timer, not blocking work, so STOP is honoured mid-service.
type TellerActor struct {
	id    TellerID
	bus   bus.Bus
	mb    bus.Mailbox
	clock *Clock
	poll  time.Duration

	state    TellerState
	serving  CustomerID
	duration time.Duration
	timer    *time.Timer
}

// NewTellerActor opens the teller's mailbox.
func NewTellerActor(id TellerID, b bus.Bus, clock *Clock, poll time.Duration) (*TellerActor, error) {
	mb, err := b.Open(bus.Address(id))
	if err != nil {
		return nil, err
	}
	return &TellerActor{id: id, bus: b, mb: mb, clock: clock, poll: poll}, nil
}

// State returns the teller's state. Only safe once Run has returned or from
// the Run goroutine.
func (t *TellerActor) State() TellerState {
	return t.state
}

// Run processes the inbox until STOP, cancellation, or an idle poll after the
// run has ended.
func (t *TellerActor) Run(ctx context.Context) {
	defer t.mb.Close()
	defer t.stopTimer()

	poll := time.NewTicker(t.poll)
	defer poll.Stop()

	for {
		var serviceDone <-chan time.Time
		if t.timer != nil {
			serviceDone = t.timer.C
		}
		select {
		case <-ctx.Done():
			logrus.Debugf("[%s] cancelled while %s", t.id, t.stateName())
			return
		case <-t.mb.Done():
			return
		case env := <-t.mb.C():
			if t.handle(ctx, env) {
				logrus.Debugf("[%s] STOP, shutting down", t.id)
				return
			}
		case <-serviceDone:
			t.timer = nil
			t.complete(ctx)
		case <-poll.C:
			if t.clock.Ended() && t.state == TellerIdle {
				logrus.Debugf("[%s] day over, leaving", t.id)
				return
			}
		}
	}
}

// handle applies one message and reports whether the teller must stop.
func (t *TellerActor) handle(ctx context.Context, env bus.Envelope) bool {
	switch m := env.Body.(type) {
	case Stop:
		return true
	case Serve:
		logrus.Debugf("[%s] calling %s", t.id, m.Customer)
		t.send(ctx, bus.Address(m.Customer), Call{Teller: t.id})
	case Request:
		if t.state == TellerServing {
			logrus.Warnf("[%s] REQUEST from %s while serving %s, ignored", t.id, m.Customer, t.serving)
			return false
		}
		t.state = TellerServing
		t.serving = m.Customer
		t.duration = m.Duration
		t.timer = time.NewTimer(m.Duration)
	default:
		logrus.Warnf("[%s] unexpected %T from %s", t.id, env.Body, env.From)
	}
	return false
}

// complete reports the finished service to the bank.
func (t *TellerActor) complete(ctx context.Context) {
	logrus.Debugf("[%s] done with %s after %s", t.id, t.serving, t.duration)
	t.send(ctx, BankAddress, Done{Customer: t.serving, Duration: t.duration, Teller: t.id})
	t.state = TellerIdle
	t.serving = ""
	t.duration = 0
}

func (t *TellerActor) stopTimer() {
	if t.timer != nil {
		t.timer.Stop()
		t.timer = nil
	}
}

func (t *TellerActor) stateName() string {
	if t.state == TellerServing {
		return "serving " + string(t.serving)
	}
	return "idle"
}

func (t *TellerActor) send(ctx context.Context, to bus.Address, m Message) {
	if err := t.bus.Send(ctx, bus.Address(t.id), to, m); err != nil {
		logrus.Warnf("[%s] sending %s to %s: %v", t.id, m.Kind(), to, err)
	}
}
