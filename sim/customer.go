package sim

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/bank-sim/bank-sim/sim/bus"
)

// CustomerState is a customer's position in its journey.
type CustomerState int

const (
	CustomerArriving CustomerState = iota
	CustomerWaiting
	CustomerInService
	CustomerDone
	CustomerClosed // forced out at closing time
)

func (s CustomerState) String() string {
	switch s {
	case CustomerArriving:
		return "arriving"
	case CustomerWaiting:
		return "waiting"
	case CustomerInService:
		return "in-service"
	case CustomerDone:
		return "done"
	case CustomerClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// CustomerActor is the task behind one customer: it announces its arrival,
// walks to the teller that calls it, reports its service duration and leaves
// on FINISH or CLOSE.
type CustomerActor struct {
	id      CustomerID
	bus     bus.Bus
	mb      bus.Mailbox
	clock   *Clock
	poll    time.Duration
	service time.Duration

	state  CustomerState
	teller TellerID
}

// NewCustomerActor opens the customer's mailbox. The customer is not yet
// introduced to the bank; call Run to arrive or Teardown to discard it.
func NewCustomerActor(id CustomerID, b bus.Bus, clock *Clock, poll, service time.Duration) (*CustomerActor, error) {
	mb, err := b.Open(bus.Address(id))
	if err != nil {
		return nil, err
	}
	return &CustomerActor{id: id, bus: b, mb: mb, clock: clock, poll: poll, service: service}, nil
}

// ID returns the customer's identity.
func (c *CustomerActor) ID() CustomerID {
	return c.id
}

// State returns the customer's state. Only safe once Run has returned or from
// the Run goroutine.
func (c *CustomerActor) State() CustomerState {
	return c.state
}

// Teardown discards a customer that was never introduced.
func (c *CustomerActor) Teardown() {
	c.state = CustomerClosed
	_ = c.mb.Close()
}

// Run sends ARRIVE and follows the bank's instructions until the customer
// leaves.
func (c *CustomerActor) Run(ctx context.Context) {
	defer c.mb.Close()

	if err := c.bus.Send(ctx, bus.Address(c.id), BankAddress, Arrive{Customer: c.id}); err != nil {
		logrus.Warnf("[%s] could not arrive: %v", c.id, err)
		c.state = CustomerClosed
		return
	}
	c.state = CustomerWaiting

	poll := time.NewTicker(c.poll)
	defer poll.Stop()

	for {
		select {
		case <-ctx.Done():
			c.leave(CustomerClosed, "stopped")
			return
		case <-c.mb.Done():
			return
		case env := <-c.mb.C():
			if c.handle(ctx, env) {
				return
			}
		case <-poll.C:
			if c.clock.Ended() && c.state == CustomerWaiting {
				c.leave(CustomerClosed, "bank closed while waiting")
				return
			}
		}
	}
}

// handle applies one message and reports whether the customer has left.
func (c *CustomerActor) handle(ctx context.Context, env bus.Envelope) bool {
	switch m := env.Body.(type) {
	case Call:
		if c.state != CustomerWaiting {
			logrus.Warnf("[%s] CALL from %s while %s, ignored", c.id, m.Teller, c.state)
			return false
		}
		c.state = CustomerInService
		c.teller = m.Teller
		req := Request{Customer: c.id, Duration: c.service}
		if err := c.bus.Send(ctx, bus.Address(c.id), bus.Address(m.Teller), req); err != nil {
			logrus.Warnf("[%s] sending REQUEST to %s: %v", c.id, m.Teller, err)
		}
	case Finish:
		c.leave(CustomerDone, "served by "+string(c.teller))
		return true
	case Close:
		c.leave(CustomerClosed, "bank closed")
		return true
	default:
		logrus.Warnf("[%s] unexpected %T from %s", c.id, env.Body, env.From)
	}
	return false
}

func (c *CustomerActor) leave(state CustomerState, reason string) {
	if c.state == CustomerDone || c.state == CustomerClosed {
		return
	}
	c.state = state
	logrus.Debugf("[%s] leaving (%s): %s", c.id, state, reason)
}
