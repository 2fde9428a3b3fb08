// Package telemetry exposes the live state of a run as Prometheus metrics.
// A Collector is attached to the bank as its sim.Observer; its Registry can be
// served over HTTP or pushed to a Pushgateway once the run is over.
package telemetry

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/push"

	"github.com/bank-sim/bank-sim/sim"
)

const namespace = "bank"

// Wait and system times are wall-clock seconds; a 120 s day maps one
// simulated hour to 15 s.
var durationBuckets = []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 4, 8, 15, 30, 60}

// Collector implements sim.Observer on a private registry.
type Collector struct {
	Registry *prometheus.Registry

	arrived     prometheus.Counter
	started     prometheus.Counter
	completed   prometheus.Counter
	forceClosed prometheus.Counter
	queueLength prometheus.Gauge
	tellers     *prometheus.GaugeVec
	waitTime    prometheus.Histogram
	systemTime  prometheus.Histogram
}

var _ sim.Observer = (*Collector)(nil)

// NewCollector registers the bank metrics on a fresh registry. Every series
// carries the run's scenario as a constant label.
func NewCollector(scenario sim.Scenario) *Collector {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)
	labels := prometheus.Labels{"scenario": string(scenario)}

	return &Collector{
		Registry: reg,
		arrived: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "customers_arrived_total",
			Help: "Customers admitted to the wait queue", ConstLabels: labels,
		}),
		started: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "services_started_total",
			Help: "Customers assigned to a teller", ConstLabels: labels,
		}),
		completed: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "services_completed_total",
			Help: "Customers whose service finished", ConstLabels: labels,
		}),
		forceClosed: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "customers_force_closed_total",
			Help: "Customers sent away at closing time", ConstLabels: labels,
		}),
		queueLength: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "queue_length",
			Help: "Customers currently waiting", ConstLabels: labels,
		}),
		tellers: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace, Name: "tellers",
			Help: "Tellers by state (busy, free)", ConstLabels: labels,
		}, []string{"state"}),
		waitTime: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace, Name: "wait_seconds",
			Help:    "Wall time from arrival to service start",
			Buckets: durationBuckets, ConstLabels: labels,
		}),
		systemTime: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace, Name: "system_seconds",
			Help:    "Wall time from arrival to departure after service",
			Buckets: durationBuckets, ConstLabels: labels,
		}),
	}
}

func (c *Collector) CustomerArrived()     { c.arrived.Inc() }
func (c *Collector) CustomerForceClosed() { c.forceClosed.Inc() }
func (c *Collector) QueueLength(n int)    { c.queueLength.Set(float64(n)) }

func (c *Collector) ServiceStarted(wait time.Duration) {
	c.started.Inc()
	c.waitTime.Observe(wait.Seconds())
}

func (c *Collector) ServiceCompleted(system time.Duration) {
	c.completed.Inc()
	c.systemTime.Observe(system.Seconds())
}

func (c *Collector) Tellers(busy, free int) {
	c.tellers.WithLabelValues("busy").Set(float64(busy))
	c.tellers.WithLabelValues("free").Set(float64(free))
}

// Push sends the current values to a Pushgateway under job, grouped by run.
func (c *Collector) Push(url, job, runID string) error {
	if err := push.New(url, job).Grouping("run", runID).Gatherer(c.Registry).Push(); err != nil {
		return fmt.Errorf("pushing metrics to %s: %w", url, err)
	}
	return nil
}
