package sim

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/bank-sim/bank-sim/sim/bus"
)

// CustomerID identifies a customer; it doubles as the customer's bus address.
type CustomerID string

// TellerID identifies a teller; it doubles as the teller's bus address.
type TellerID string

// BankAddress is the controller's mailbox.
const BankAddress bus.Address = "bank"

// Kind is the tag of a message on the wire.
type Kind string

const (
	KindArrive  Kind = "ARRIVE"
	KindServe   Kind = "SERVE"
	KindCall    Kind = "CALL"
	KindRequest Kind = "REQUEST"
	KindDone    Kind = "DONE"
	KindFinish  Kind = "FINISH"
	KindClose   Kind = "CLOSE"
	KindStop    Kind = "STOP"
)

// Message is implemented by every message exchanged between the bank,
// tellers and customers.
type Message interface {
	Kind() Kind
}

// Arrive is sent by a customer to the bank on entering.
type Arrive struct{ Customer CustomerID }

// Serve assigns a customer to the receiving teller.
type Serve struct{ Customer CustomerID }

// Call tells a customer which teller to go to.
type Call struct{ Teller TellerID }

// Request is sent by a customer to its teller to begin service.
type Request struct {
	Customer CustomerID
	Duration time.Duration
}

// Done reports a completed service to the bank.
type Done struct {
	Customer CustomerID
	Duration time.Duration
	Teller   TellerID
}

// Finish releases a served customer.
type Finish struct{}

// Close forces a customer out at the end of the day.
type Close struct{}

// Stop shuts a teller down.
type Stop struct{}

func (Arrive) Kind() Kind  { return KindArrive }
func (Serve) Kind() Kind   { return KindServe }
func (Call) Kind() Kind    { return KindCall }
func (Request) Kind() Kind { return KindRequest }
func (Done) Kind() Kind    { return KindDone }
func (Finish) Kind() Kind  { return KindFinish }
func (Close) Kind() Kind   { return KindClose }
func (Stop) Kind() Kind    { return KindStop }

// wireMessage is the flattened JSON form of every Message.
type wireMessage struct {
	Kind     Kind          `json:"kind"`
	Customer CustomerID    `json:"customer,omitempty"`
	Teller   TellerID      `json:"teller,omitempty"`
	Duration time.Duration `json:"duration,omitempty"`
}

// MessageCodec encodes Messages for transports that serialize bodies.
type MessageCodec struct{}

// Marshal implements bus.Codec.
func (MessageCodec) Marshal(body any) ([]byte, error) {
	var w wireMessage
	switch m := body.(type) {
	case Arrive:
		w = wireMessage{Kind: KindArrive, Customer: m.Customer}
	case Serve:
		w = wireMessage{Kind: KindServe, Customer: m.Customer}
	case Call:
		w = wireMessage{Kind: KindCall, Teller: m.Teller}
	case Request:
		w = wireMessage{Kind: KindRequest, Customer: m.Customer, Duration: m.Duration}
	case Done:
		w = wireMessage{Kind: KindDone, Customer: m.Customer, Duration: m.Duration, Teller: m.Teller}
	case Finish:
		w = wireMessage{Kind: KindFinish}
	case Close:
		w = wireMessage{Kind: KindClose}
	case Stop:
		w = wireMessage{Kind: KindStop}
	default:
		return nil, fmt.Errorf("unsupported message type %T", body)
	}
	return json.Marshal(w)
}

// Unmarshal implements bus.Codec.
func (MessageCodec) Unmarshal(data []byte) (any, error) {
	var w wireMessage
	if err := json.Unmarshal(data, &w); err != nil {
		return nil, fmt.Errorf("decoding message: %w", err)
	}
	switch w.Kind {
	case KindArrive:
		return Arrive{Customer: w.Customer}, nil
	case KindServe:
		return Serve{Customer: w.Customer}, nil
	case KindCall:
		return Call{Teller: w.Teller}, nil
	case KindRequest:
		return Request{Customer: w.Customer, Duration: w.Duration}, nil
	case KindDone:
		return Done{Customer: w.Customer, Duration: w.Duration, Teller: w.Teller}, nil
	case KindFinish:
		return Finish{}, nil
	case KindClose:
		return Close{}, nil
	case KindStop:
		return Stop{}, nil
	default:
		return nil, fmt.Errorf("unknown message kind %q", w.Kind)
	}
}
