package results

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/bank-sim/bank-sim/sim"
)

// File names written by WriteCSV.
const (
	CustomersFile   = "customers.csv"
	QueueSeriesFile = "queue_series.csv"
	SummaryFile     = "summary.csv"
)

var customerColumns = []string{
	"customer_id", "arrival_ts", "start_service_ts", "end_ts",
	"teller_id", "wait_time", "system_time", "force_closed",
}

// WriteCSV writes the customers, queue series and summary tables of snap
// into dir, creating it if needed. Timestamps are Unix seconds; unset values
// are empty cells.
func WriteCSV(dir string, snap sim.Snapshot) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("creating output dir: %w", err)
	}

	customers := make([][]string, 0, len(snap.Customers))
	for _, rec := range snap.Customers {
		wait, hasWait := rec.WaitTime()
		sys, hasSys := rec.SystemTime()
		customers = append(customers, []string{
			string(rec.ID),
			formatTimestamp(rec.Arrival),
			formatTimestamp(rec.ServiceStart),
			formatTimestamp(rec.End),
			string(rec.Teller),
			formatSeconds(wait, hasWait),
			formatSeconds(sys, hasSys),
			strconv.FormatBool(rec.ForceClosed),
		})
	}
	if err := writeTable(filepath.Join(dir, CustomersFile), customerColumns, customers); err != nil {
		return err
	}

	queue := make([][]string, 0, len(snap.QueueSeries))
	for _, s := range snap.QueueSeries {
		queue = append(queue, []string{formatTimestamp(s.At), strconv.Itoa(s.Length)})
	}
	if err := writeTable(filepath.Join(dir, QueueSeriesFile), []string{"ts", "queue_len"}, queue); err != nil {
		return err
	}

	summary := [][]string{
		{"unserved_customers", strconv.Itoa(snap.Unserved)},
		{"total_customers", strconv.Itoa(snap.Total())},
		{"force_closed_customers", strconv.Itoa(snap.ForceClosed)},
	}
	return writeTable(filepath.Join(dir, SummaryFile), []string{"metric", "value"}, summary)
}

func writeTable(path string, header []string, rows [][]string) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating %s: %w", filepath.Base(path), err)
	}
	defer func() { _ = file.Close() }()

	writer := csv.NewWriter(file)
	if err := writer.Write(header); err != nil {
		return fmt.Errorf("writing %s header: %w", filepath.Base(path), err)
	}
	if err := writer.WriteAll(rows); err != nil {
		return fmt.Errorf("writing %s rows: %w", filepath.Base(path), err)
	}
	return file.Close()
}

func formatTimestamp(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return strconv.FormatFloat(float64(t.UnixNano())/1e9, 'f', 6, 64)
}

func formatSeconds(d time.Duration, ok bool) string {
	if !ok {
		return ""
	}
	return strconv.FormatFloat(d.Seconds(), 'f', 6, 64)
}
