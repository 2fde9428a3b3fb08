// Package bus provides addressed, asynchronous message passing between the
// entities of a simulation. Every entity owns one Mailbox; any entity may Send
// to any address. Delivery is FIFO per sender. Messages addressed to a mailbox
// that does not exist (never opened, or already closed) are dropped, matching
// the semantics of messaging an agent that has left.
package bus

import (
	"context"
	"errors"
	"time"
)

// Address names a mailbox.
type Address string

var (
	// ErrMailboxExists is returned by Open when the address already has a live mailbox.
	ErrMailboxExists = errors.New("mailbox already open")
	// ErrBusClosed is returned by Open and Send after Close.
	ErrBusClosed = errors.New("bus closed")
)

// Envelope is one delivered message.
type Envelope struct {
	From Address
	To   Address
	Body any
}

// Mailbox is the receiving end owned by a single entity.
type Mailbox interface {
	Address() Address
	// C returns the delivery channel. It is never closed; use Done to
	// observe closure.
	C() <-chan Envelope
	// Done is closed once the mailbox is closed.
	Done() <-chan struct{}
	Close() error
}

// Bus is the transport shared by all entities of a run.
type Bus interface {
	Open(addr Address) (Mailbox, error)
	Send(ctx context.Context, from, to Address, body any) error
	Close() error
}

// Codec turns message bodies into bytes and back for transports that cross a
// serialization boundary.
type Codec interface {
	Marshal(body any) ([]byte, error)
	Unmarshal(data []byte) (any, error)
}

// DefaultCapacity is the per-mailbox buffer used when a transport is created
// with a non-positive capacity.
const DefaultCapacity = 256

// Receive waits up to timeout for the next envelope. ok is false when the
// timeout expires, ctx is cancelled or the mailbox is closed.
func Receive(ctx context.Context, mb Mailbox, timeout time.Duration) (Envelope, bool) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case env := <-mb.C():
		return env, true
	case <-timer.C:
	case <-mb.Done():
	case <-ctx.Done():
	}
	return Envelope{}, false
}
