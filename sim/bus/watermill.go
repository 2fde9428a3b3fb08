package bus

import (
	"context"
	"fmt"
	"sync"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/sirupsen/logrus"
)

const metadataFrom = "from"

// WatermillBus routes envelopes through an in-memory watermill gochannel
// pub/sub, one topic per address. Publishing blocks until the recipient's pump
// has taken the message, which keeps delivery FIFO per sender.
type WatermillBus struct {
	pubSub   *gochannel.GoChannel
	codec    Codec
	capacity int

	mu     sync.Mutex
	boxes  map[Address]*watermillMailbox
	closed bool
}

// NewWatermillBus creates a bus that encodes bodies with codec.
func NewWatermillBus(codec Codec, capacity int) *WatermillBus {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	pubSub := gochannel.NewGoChannel(
		gochannel.Config{
			OutputChannelBuffer:            int64(capacity),
			BlockPublishUntilSubscriberAck: true,
		},
		NewLogrusAdapter(logrus.StandardLogger()),
	)
	return &WatermillBus{
		pubSub:   pubSub,
		codec:    codec,
		capacity: capacity,
		boxes:    make(map[Address]*watermillMailbox),
	}
}

type watermillMailbox struct {
	addr   Address
	ch     chan Envelope
	done   chan struct{}
	cancel context.CancelFunc
	once   sync.Once
	bus    *WatermillBus
}

func (m *watermillMailbox) Address() Address       { return m.addr }
func (m *watermillMailbox) C() <-chan Envelope     { return m.ch }
func (m *watermillMailbox) Done() <-chan struct{} { return m.done }

func (m *watermillMailbox) Close() error {
	m.once.Do(func() {
		close(m.done)
		m.cancel()
		m.bus.remove(m)
	})
	return nil
}

// Open subscribes to the topic named by addr and starts its pump.
func (b *WatermillBus) Open(addr Address) (Mailbox, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil, ErrBusClosed
	}
	if _, ok := b.boxes[addr]; ok {
		return nil, fmt.Errorf("open %s: %w", addr, ErrMailboxExists)
	}

	ctx, cancel := context.WithCancel(context.Background())
	messages, err := b.pubSub.Subscribe(ctx, string(addr))
	if err != nil {
		cancel()
		return nil, fmt.Errorf("subscribe %s: %w", addr, err)
	}

	mb := &watermillMailbox{
		addr:   addr,
		ch:     make(chan Envelope, b.capacity),
		done:   make(chan struct{}),
		cancel: cancel,
		bus:    b,
	}
	b.boxes[addr] = mb
	go b.pump(mb, messages)
	return mb, nil
}

// pump moves decoded messages into the mailbox buffer, acking each one only
// after it has been buffered.
func (b *WatermillBus) pump(mb *watermillMailbox, messages <-chan *message.Message) {
	for {
		select {
		case <-mb.done:
			return
		case msg, ok := <-messages:
			if !ok {
				return
			}
			body, err := b.codec.Unmarshal(msg.Payload)
			if err != nil {
				logrus.Warnf("bus: undecodable message %s on %s: %v", msg.UUID, mb.addr, err)
				msg.Ack()
				continue
			}
			env := Envelope{
				From: Address(msg.Metadata.Get(metadataFrom)),
				To:   mb.addr,
				Body: body,
			}
			select {
			case mb.ch <- env:
			case <-mb.done:
				msg.Ack()
				return
			}
			msg.Ack()
		}
	}
}

func (b *WatermillBus) remove(mb *watermillMailbox) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if cur, ok := b.boxes[mb.addr]; ok && cur == mb {
		delete(b.boxes, mb.addr)
	}
}

// Send publishes body on the topic for to. Topics without a subscriber drop
// the message.
func (b *WatermillBus) Send(ctx context.Context, from, to Address, body any) error {
	b.mu.Lock()
	closed := b.closed
	b.mu.Unlock()
	if closed {
		return ErrBusClosed
	}

	payload, err := b.codec.Marshal(body)
	if err != nil {
		return fmt.Errorf("encoding %T for %s: %w", body, to, err)
	}
	msg := message.NewMessage(watermill.NewUUID(), payload)
	msg.Metadata.Set(metadataFrom, string(from))
	msg.SetContext(ctx)

	if err := b.pubSub.Publish(string(to), msg); err != nil {
		return fmt.Errorf("watermill publish to %s failed: %w", to, err)
	}
	return nil
}

// Close closes all mailboxes and the underlying pub/sub.
func (b *WatermillBus) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	boxes := make([]*watermillMailbox, 0, len(b.boxes))
	for _, mb := range b.boxes {
		boxes = append(boxes, mb)
	}
	b.mu.Unlock()

	for _, mb := range boxes {
		_ = mb.Close()
	}
	return b.pubSub.Close()
}
