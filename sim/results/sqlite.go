package results

import (
	"database/sql"
	"fmt"
	"time"

	// SQLite driver
	_ "github.com/mattn/go-sqlite3"

	"github.com/bank-sim/bank-sim/sim"
)

// DatabaseFile is the SQLite file name used by the sqlite format.
const DatabaseFile = "bank.sqlite3"

var schema = []string{
	`CREATE TABLE IF NOT EXISTS runs (
		run_id       TEXT PRIMARY KEY,
		scenario     TEXT NOT NULL,
		seed         INTEGER NOT NULL,
		total        INTEGER NOT NULL,
		unserved     INTEGER NOT NULL,
		force_closed INTEGER NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS customers (
		run_id           TEXT NOT NULL,
		customer_id      TEXT NOT NULL,
		arrival_ts       REAL NOT NULL,
		start_service_ts REAL,
		end_ts           REAL,
		teller_id        TEXT,
		wait_time        REAL,
		system_time      REAL,
		force_closed     INTEGER NOT NULL,
		PRIMARY KEY (run_id, customer_id)
	)`,
	`CREATE TABLE IF NOT EXISTS queue_series (
		run_id    TEXT NOT NULL,
		ts        REAL NOT NULL,
		queue_len INTEGER NOT NULL
	)`,
}

// WriteSQLite appends snap to the database at path as one transaction.
// Several runs can share a file; rows are keyed by run ID.
func WriteSQLite(path string, snap sim.Snapshot) error {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return fmt.Errorf("opening %s: %w", path, err)
	}
	defer db.Close()

	for _, stmt := range schema {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("creating schema: %w", err)
		}
	}

	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	if err := insertSnapshot(tx, snap); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing run %s: %w", snap.RunID, err)
	}
	return nil
}

func insertSnapshot(tx *sql.Tx, snap sim.Snapshot) error {
	if _, err := tx.Exec(
		`INSERT INTO runs (run_id, scenario, seed, total, unserved, force_closed) VALUES (?, ?, ?, ?, ?, ?)`,
		snap.RunID, string(snap.Scenario), snap.Seed, snap.Total(), snap.Unserved, snap.ForceClosed,
	); err != nil {
		return fmt.Errorf("inserting run %s: %w", snap.RunID, err)
	}

	custStmt, err := tx.Prepare(`INSERT INTO customers
		(run_id, customer_id, arrival_ts, start_service_ts, end_ts, teller_id, wait_time, system_time, force_closed)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("preparing customer insert: %w", err)
	}
	defer custStmt.Close()
	for _, rec := range snap.Customers {
		wait, hasWait := rec.WaitTime()
		sys, hasSys := rec.SystemTime()
		teller := sql.NullString{String: string(rec.Teller), Valid: rec.Teller != ""}
		if _, err := custStmt.Exec(
			snap.RunID, string(rec.ID), unixSeconds(rec.Arrival),
			nullTime(rec.ServiceStart), nullTime(rec.End), teller,
			nullDuration(wait, hasWait), nullDuration(sys, hasSys), rec.ForceClosed,
		); err != nil {
			return fmt.Errorf("inserting customer %s: %w", rec.ID, err)
		}
	}

	queueStmt, err := tx.Prepare(`INSERT INTO queue_series (run_id, ts, queue_len) VALUES (?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("preparing queue insert: %w", err)
	}
	defer queueStmt.Close()
	for _, s := range snap.QueueSeries {
		if _, err := queueStmt.Exec(snap.RunID, unixSeconds(s.At), s.Length); err != nil {
			return fmt.Errorf("inserting queue sample: %w", err)
		}
	}
	return nil
}

func unixSeconds(t time.Time) float64 {
	return float64(t.UnixNano()) / 1e9
}

func nullTime(t time.Time) sql.NullFloat64 {
	if t.IsZero() {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: unixSeconds(t), Valid: true}
}

func nullDuration(d time.Duration, ok bool) sql.NullFloat64 {
	return sql.NullFloat64{Float64: d.Seconds(), Valid: ok}
}
