package results

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/bank-sim/bank-sim/sim"
)

// Format selects which persistence backends a Sink writes.
type Format string

const (
	FormatCSV    Format = "csv"
	FormatSQLite Format = "sqlite"
	FormatBoth   Format = "both"
)

// DefaultDir is where results land when no directory is given.
const DefaultDir = "results"

// ParseFormat validates a user-supplied format name.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case FormatCSV, FormatSQLite, FormatBoth:
		return f, nil
	case "":
		return FormatCSV, nil
	default:
		return "", fmt.Errorf("unknown output format %q (want csv, sqlite or both)", s)
	}
}

// Sink persists snapshots into Dir using Format. It implements sim.MetricsSink.
type Sink struct {
	Dir    string
	Format Format
}

var _ sim.MetricsSink = (*Sink)(nil)

// NewSink creates a sink; an empty dir means DefaultDir.
func NewSink(dir string, format Format) *Sink {
	if dir == "" {
		dir = DefaultDir
	}
	return &Sink{Dir: dir, Format: format}
}

// Persist writes snap in every configured format.
func (s *Sink) Persist(snap sim.Snapshot) error {
	if err := os.MkdirAll(s.Dir, 0755); err != nil {
		return fmt.Errorf("creating output dir: %w", err)
	}
	if s.Format == FormatCSV || s.Format == FormatBoth {
		if err := WriteCSV(s.Dir, snap); err != nil {
			return err
		}
		logrus.Infof("Wrote %s, %s and %s to %s", CustomersFile, QueueSeriesFile, SummaryFile, s.Dir)
	}
	if s.Format == FormatSQLite || s.Format == FormatBoth {
		path := filepath.Join(s.Dir, DatabaseFile)
		if err := WriteSQLite(path, snap); err != nil {
			return err
		}
		logrus.Infof("Recorded run %s in %s", snap.RunID, path)
	}
	return nil
}
