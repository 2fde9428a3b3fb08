// Package results persists the metrics of a finished run and derives the
// end-of-run summary from them.
package results

import (
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/bank-sim/bank-sim/sim"
)

// Distribution describes how long a group of customers spent in one phase of
// their visit. All fields except Count are in wall-clock seconds.
type Distribution struct {
	Mean  float64
	P50   float64
	P95   float64
	Min   float64
	Max   float64
	Count int
}

// NewDistribution orders a copy of durations and reads off its statistics.
// No durations (nobody reached that phase) gives the zero Distribution.
func NewDistribution(durations []time.Duration) Distribution {
	if len(durations) == 0 {
		return Distribution{}
	}
	secs := make([]float64, len(durations))
	total := 0.0
	for i, d := range durations {
		secs[i] = d.Seconds()
		total += secs[i]
	}
	sort.Float64s(secs)

	return Distribution{
		Mean:  total / float64(len(secs)),
		P50:   quantile(secs, 0.50),
		P95:   quantile(secs, 0.95),
		Min:   secs[0],
		Max:   secs[len(secs)-1],
		Count: len(secs),
	}
}

// quantile reads the q-quantile (0 <= q <= 1) of ascending secs, interpolating
// between the two neighbouring customers when q falls between ranks.
func quantile(secs []float64, q float64) float64 {
	pos := q * float64(len(secs)-1)
	lo := int(pos)
	if lo+1 >= len(secs) {
		return secs[lo]
	}
	return secs[lo] + (pos-float64(lo))*(secs[lo+1]-secs[lo])
}

// Summary is the aggregate view of a run. Times are in wall-clock seconds.
type Summary struct {
	RunID       string
	Scenario    sim.Scenario
	Seed        int64
	Total       int
	Served      int
	Unserved    int
	ForceClosed int
	Wait        Distribution
	System      Distribution
}

// Summarize aggregates a snapshot. Served counts customers with both a
// service start and an end.
func Summarize(snap sim.Snapshot) Summary {
	var waits, systems []time.Duration
	served := 0
	for _, rec := range snap.Customers {
		wait, hasWait := rec.WaitTime()
		if hasWait {
			waits = append(waits, wait)
		}
		if sys, ok := rec.SystemTime(); ok && hasWait {
			systems = append(systems, sys)
			served++
		}
	}
	return Summary{
		RunID:       snap.RunID,
		Scenario:    snap.Scenario,
		Seed:        snap.Seed,
		Total:       snap.Total(),
		Served:      served,
		Unserved:    snap.Unserved,
		ForceClosed: snap.ForceClosed,
		Wait:        NewDistribution(waits),
		System:      NewDistribution(systems),
	}
}

// Print writes a human-readable report of the summary.
func (s Summary) Print(w io.Writer) {
	fmt.Fprintln(w, "=== Bank Simulation Summary ===")
	fmt.Fprintf(w, "Run                  : %s\n", s.RunID)
	fmt.Fprintf(w, "Scenario             : %s (seed %d)\n", s.Scenario, s.Seed)
	fmt.Fprintf(w, "Total Customers      : %d\n", s.Total)
	fmt.Fprintf(w, "Served Customers     : %d\n", s.Served)
	fmt.Fprintf(w, "Unserved Customers   : %d\n", s.Unserved)
	fmt.Fprintf(w, "Force-closed         : %d\n", s.ForceClosed)
	if s.Wait.Count > 0 {
		fmt.Fprintf(w, "Wait Time (s)        : mean %.3f  p50 %.3f  p95 %.3f  max %.3f\n", s.Wait.Mean, s.Wait.P50, s.Wait.P95, s.Wait.Max)
	}
	if s.System.Count > 0 {
		fmt.Fprintf(w, "System Time (s)      : mean %.3f  p50 %.3f  p95 %.3f  max %.3f\n", s.System.Mean, s.System.P50, s.System.P95, s.System.Max)
	}
}
