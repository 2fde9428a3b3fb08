// Records per-customer timestamps and the queue-length time series of a run.
// Derived values (wait and system time) are only computed on read.

package sim

import (
	"time"
)

// CustomerRecord tracks one customer's visit. Zero timestamps mean "not yet".
type CustomerRecord struct {
	ID           CustomerID
	Arrival      time.Time
	ServiceStart time.Time
	End          time.Time
	Teller       TellerID
	ForceClosed  bool // sent away by the end-of-day close
}

// WaitTime returns ServiceStart - Arrival; ok is false until service starts.
func (r CustomerRecord) WaitTime() (time.Duration, bool) {
	if r.ServiceStart.IsZero() {
		return 0, false
	}
	return r.ServiceStart.Sub(r.Arrival), true
}

// SystemTime returns End - Arrival; ok is false until the customer departs.
func (r CustomerRecord) SystemTime() (time.Duration, bool) {
	if r.End.IsZero() {
		return 0, false
	}
	return r.End.Sub(r.Arrival), true
}

// QueueSample is one point of the queue-length time series.
type QueueSample struct {
	At     time.Time
	Length int
}

// Recorder is the metrics store of a run. It is a pure observer: nothing in it
// feeds back into dispatch decisions.
//
// Thread-safety: NOT thread-safe. Only the bank controller writes to it.
type Recorder struct {
	customers   map[CustomerID]*CustomerRecord
	order       []CustomerID
	queueSeries []QueueSample
}

// NewRecorder creates an empty metrics store.
func NewRecorder() *Recorder {
	return &Recorder{customers: make(map[CustomerID]*CustomerRecord)}
}

// EnsureCustomer creates the record for id on first call and reports whether
// it did. Later calls leave the original arrival untouched.
func (m *Recorder) EnsureCustomer(id CustomerID, arrival time.Time) bool {
	if _, ok := m.customers[id]; ok {
		return false
	}
	m.customers[id] = &CustomerRecord{ID: id, Arrival: arrival}
	m.order = append(m.order, id)
	return true
}

// SetServiceStart records when and where service began. Only the first call
// for a known customer has effect; timestamps before arrival are clamped.
func (m *Recorder) SetServiceStart(id CustomerID, at time.Time, teller TellerID) bool {
	rec, ok := m.customers[id]
	if !ok || !rec.ServiceStart.IsZero() {
		return false
	}
	if at.Before(rec.Arrival) {
		at = rec.Arrival
	}
	rec.ServiceStart = at
	rec.Teller = teller
	return true
}

// SetEnd records the departure. Only the first call has effect; timestamps
// before service start (or arrival) are clamped.
func (m *Recorder) SetEnd(id CustomerID, at time.Time) bool {
	rec, ok := m.customers[id]
	if !ok || !rec.End.IsZero() {
		return false
	}
	floor := rec.Arrival
	if !rec.ServiceStart.IsZero() {
		floor = rec.ServiceStart
	}
	if at.Before(floor) {
		at = floor
	}
	rec.End = at
	return true
}

// MarkForceClosed flags a customer as sent away at closing time.
func (m *Recorder) MarkForceClosed(id CustomerID) {
	if rec, ok := m.customers[id]; ok {
		rec.ForceClosed = true
	}
}

// AddQueueSample appends a point to the queue-length series.
func (m *Recorder) AddQueueSample(at time.Time, length int) {
	m.queueSeries = append(m.queueSeries, QueueSample{At: at, Length: length})
}

// Customer returns a copy of the record for id.
func (m *Recorder) Customer(id CustomerID) (CustomerRecord, bool) {
	rec, ok := m.customers[id]
	if !ok {
		return CustomerRecord{}, false
	}
	return *rec, true
}

// UnfinishedCustomers lists, in arrival order, customers without an end
// timestamp.
func (m *Recorder) UnfinishedCustomers() []CustomerID {
	var out []CustomerID
	for _, id := range m.order {
		if m.customers[id].End.IsZero() {
			out = append(out, id)
		}
	}
	return out
}

// CountUnserved counts customers lacking either a service start or an end.
func (m *Recorder) CountUnserved() int {
	n := 0
	for _, rec := range m.customers {
		if rec.ServiceStart.IsZero() || rec.End.IsZero() {
			n++
		}
	}
	return n
}

// Total returns the number of customers seen.
func (m *Recorder) Total() int {
	return len(m.order)
}

// QueueSeries returns the samples recorded so far.
func (m *Recorder) QueueSeries() []QueueSample {
	return m.queueSeries
}

// Snapshot is the finalized metrics of a run, ready for persistence.
type Snapshot struct {
	RunID       string
	Scenario    Scenario
	Seed        int64
	Customers   []CustomerRecord // arrival order
	QueueSeries []QueueSample
	Unserved    int
	ForceClosed int
}

// Total returns the number of customers in the snapshot.
func (s Snapshot) Total() int {
	return len(s.Customers)
}

// Snapshot copies the current state into a Snapshot.
func (m *Recorder) Snapshot() Snapshot {
	snap := Snapshot{
		Customers:   make([]CustomerRecord, 0, len(m.order)),
		QueueSeries: append([]QueueSample(nil), m.queueSeries...),
		Unserved:    m.CountUnserved(),
	}
	for _, id := range m.order {
		rec := *m.customers[id]
		if rec.ForceClosed {
			snap.ForceClosed++
		}
		snap.Customers = append(snap.Customers, rec)
	}
	return snap
}
