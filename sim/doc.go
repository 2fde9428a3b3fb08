// Package sim provides the discrete-event simulation engine for a bank's
// service counter over a compressed virtual workday.
//
// # Reading Guide
//
// Start with these files to understand the simulation kernel:
//   - clock.go: maps wall-clock time onto the 08:00-16:00 simulated workday
//   - arrival.go: time-varying Poisson arrivals per tick, capped per scenario
//   - schedule.go: back-to-back lunch windows for two teller groups
//   - dispatcher.go: greedy FIFO matching of free, available tellers to customers
//   - bank.go: the controller; the single writer of queue, teller and metrics state
//
// # Architecture
//
// Every entity (bank controller, each teller, each customer) runs as its own
// goroutine and talks to the others only through addressed messages on a
// bus.Bus (see sim/bus). The controller processes its inbox one message at a
// time, so the wait queue, the free-teller set and the metrics Recorder are
// mutated without locks. Tellers and customers only produce and consume
// messages.
//
// Persistence (sim/results) and live telemetry (sim/telemetry) plug in through
// the MetricsSink and Observer interfaces.
package sim
