package bus

import (
	"context"
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"
)

// ChanBus delivers envelopes over buffered Go channels, one per mailbox.
type ChanBus struct {
	mu       sync.RWMutex
	boxes    map[Address]*chanMailbox
	capacity int
	closed   bool
}

// NewChanBus creates an in-process bus. capacity bounds each mailbox buffer;
// a full mailbox blocks the sender until the owner drains it.
func NewChanBus(capacity int) *ChanBus {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &ChanBus{
		boxes:    make(map[Address]*chanMailbox),
		capacity: capacity,
	}
}

type chanMailbox struct {
	addr Address
	ch   chan Envelope
	done chan struct{}
	once sync.Once
	bus  *ChanBus
}

func (m *chanMailbox) Address() Address       { return m.addr }
func (m *chanMailbox) C() <-chan Envelope     { return m.ch }
func (m *chanMailbox) Done() <-chan struct{} { return m.done }

func (m *chanMailbox) Close() error {
	m.once.Do(func() {
		close(m.done)
		m.bus.remove(m)
	})
	return nil
}

// Open registers a mailbox for addr.
func (b *ChanBus) Open(addr Address) (Mailbox, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil, ErrBusClosed
	}
	if _, ok := b.boxes[addr]; ok {
		return nil, fmt.Errorf("open %s: %w", addr, ErrMailboxExists)
	}
	mb := &chanMailbox{
		addr: addr,
		ch:   make(chan Envelope, b.capacity),
		done: make(chan struct{}),
		bus:  b,
	}
	b.boxes[addr] = mb
	return mb, nil
}

func (b *ChanBus) remove(mb *chanMailbox) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if cur, ok := b.boxes[mb.addr]; ok && cur == mb {
		delete(b.boxes, mb.addr)
	}
}

// Send delivers body to the mailbox at to. It blocks only while the target
// buffer is full.
func (b *ChanBus) Send(ctx context.Context, from, to Address, body any) error {
	b.mu.RLock()
	if b.closed {
		b.mu.RUnlock()
		return ErrBusClosed
	}
	mb, ok := b.boxes[to]
	b.mu.RUnlock()
	if !ok {
		logrus.Debugf("bus: dropping %T from %s, no mailbox at %s", body, from, to)
		return nil
	}

	select {
	case mb.ch <- Envelope{From: from, To: to, Body: body}:
		return nil
	case <-mb.done:
		logrus.Debugf("bus: dropping %T from %s, mailbox %s closed", body, from, to)
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close closes every open mailbox and rejects further traffic.
func (b *ChanBus) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	boxes := make([]*chanMailbox, 0, len(b.boxes))
	for _, mb := range b.boxes {
		boxes = append(boxes, mb)
	}
	b.mu.Unlock()

	for _, mb := range boxes {
		_ = mb.Close()
	}
	return nil
}
