package sim

// Teller is the controller-side view of one teller.
type Teller struct {
	ID       TellerID
	Group    LunchGroup
	BusyWith CustomerID // empty while idle
}

// Busy reports whether the teller is serving someone.
func (t *Teller) Busy() bool {
	return t.BusyWith != ""
}

// Dispatcher owns the teller roster and the free set, and greedily matches
// free, available tellers to the head of the wait queue.
//
// Free tellers are always picked in roster order (lowest index first), which
// keeps dispatch deterministic for a given sequence of events.
//
// Thread-safety: NOT thread-safe. Owned by the bank controller.
type Dispatcher struct {
	schedule Schedule
	tellers  []*Teller
	byID     map[TellerID]*Teller
	free     map[TellerID]bool
}

// NewDispatcher creates a dispatcher where every teller starts free; call
// Reconcile before the first dispatch to apply the schedule.
func NewDispatcher(schedule Schedule, tellers []Teller) *Dispatcher {
	d := &Dispatcher{
		schedule: schedule,
		byID:     make(map[TellerID]*Teller, len(tellers)),
		free:     make(map[TellerID]bool, len(tellers)),
	}
	for _, t := range tellers {
		t := t
		d.tellers = append(d.tellers, &t)
		d.byID[t.ID] = &t
		d.free[t.ID] = !t.Busy()
	}
	return d
}

// Tellers returns copies of the roster in order.
func (d *Dispatcher) Tellers() []Teller {
	out := make([]Teller, len(d.tellers))
	for i, t := range d.tellers {
		out[i] = *t
	}
	return out
}

// IsAvailable reports whether teller id is outside its lunch window.
func (d *Dispatcher) IsAvailable(id TellerID, minute float64) bool {
	t, ok := d.byID[id]
	return ok && d.schedule.IsAvailable(t.Group, minute)
}

// IsFree reports whether id is in the free set.
func (d *Dispatcher) IsFree(id TellerID) bool {
	return d.free[id]
}

// FreeCount returns the size of the free set.
func (d *Dispatcher) FreeCount() int {
	n := 0
	for _, f := range d.free {
		if f {
			n++
		}
	}
	return n
}

// BusyCount returns the number of tellers serving a customer.
func (d *Dispatcher) BusyCount() int {
	n := 0
	for _, t := range d.tellers {
		if t.Busy() {
			n++
		}
	}
	return n
}

// InService lists the customers currently at a teller, in roster order.
func (d *Dispatcher) InService() []CustomerID {
	var out []CustomerID
	for _, t := range d.tellers {
		if t.Busy() {
			out = append(out, t.BusyWith)
		}
	}
	return out
}

// Reconcile synchronizes the free set with the schedule: unavailable tellers
// leave it even when idle, available idle tellers join it.
func (d *Dispatcher) Reconcile(minute float64) {
	for _, t := range d.tellers {
		if !d.schedule.IsAvailable(t.Group, minute) {
			delete(d.free, t.ID)
		} else if !t.Busy() {
			d.free[t.ID] = true
		}
	}
}

// Release marks the teller idle after a completion and returns the customer
// it was serving. The teller rejoins the free set only if rejoin is true and
// it is available at minute.
func (d *Dispatcher) Release(id TellerID, minute float64, rejoin bool) (CustomerID, bool) {
	t, ok := d.byID[id]
	if !ok {
		return "", false
	}
	served := t.BusyWith
	t.BusyWith = ""
	if rejoin && d.schedule.IsAvailable(t.Group, minute) {
		d.free[id] = true
	}
	return served, served != ""
}

// acquire removes and returns the first free teller that is still available,
// evicting stale entries it passes over.
func (d *Dispatcher) acquire(minute float64) (*Teller, bool) {
	for _, t := range d.tellers {
		if !d.free[t.ID] {
			continue
		}
		delete(d.free, t.ID)
		if !d.schedule.IsAvailable(t.Group, minute) {
			continue
		}
		return t, true
	}
	return nil, false
}

// Dispatch runs one dispatch pass at minute: reconcile, then assign the queue
// head to a free teller until either runs out. assign is called once per
// match, after the teller has left the free set and the customer the queue.
// It returns the number of assignments made.
func (d *Dispatcher) Dispatch(minute float64, q *WaitQueue, assign func(TellerID, CustomerID)) int {
	d.Reconcile(minute)
	n := 0
	for {
		c, ok := q.Peek()
		if !ok {
			break
		}
		t, ok := d.acquire(minute)
		if !ok {
			break
		}
		q.Dequeue()
		t.BusyWith = c
		n++
		if assign != nil {
			assign(t.ID, c)
		}
	}
	return n
}
