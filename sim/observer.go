package sim

import "time"

// Observer receives live notifications of lifecycle transitions. Calls come
// from the bank controller goroutine only. It never influences dispatch.
type Observer interface {
	CustomerArrived()
	ServiceStarted(wait time.Duration)
	ServiceCompleted(system time.Duration)
	CustomerForceClosed()
	QueueLength(n int)
	Tellers(busy, free int)
}

type nopObserver struct{}

func (nopObserver) CustomerArrived()               {}
func (nopObserver) ServiceStarted(time.Duration)   {}
func (nopObserver) ServiceCompleted(time.Duration) {}
func (nopObserver) CustomerForceClosed()           {}
func (nopObserver) QueueLength(int)                {}
func (nopObserver) Tellers(int, int)               {}

// MetricsSink persists the finalized metrics of a run.
type MetricsSink interface {
	Persist(snap Snapshot) error
}
