package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/bank-sim/bank-sim/sim"
	"github.com/bank-sim/bank-sim/sim/results"
	"github.com/bank-sim/bank-sim/sim/telemetry"
)

var (
	// CLI flags for the run
	seed         int64         // Seed for arrivals and service times (0 = from wall clock)
	logLevel     string        // Log verbosity level
	configPath   string        // Optional YAML run config
	realDuration time.Duration // Wall time of the simulated workday
	tick         time.Duration // Arrival-process period
	tellers      int           // Number of tellers

	// CLI flags for outputs
	outDir       string // Directory for persisted metrics
	outputFormat string // csv, sqlite or both
	transport    string // chan or watermill
	metricsAddr  string // Address serving /metrics and /healthz
	pushURL      string // Pushgateway URL for the final metrics
)

// pushJob is the Pushgateway job name of every run.
const pushJob = "bank_sim"

// rootCmd is the base command for the CLI
var rootCmd = &cobra.Command{
	Use:   "bank-sim",
	Short: "Concurrent simulation of a bank service counter",
}

// runCmd simulates one compressed workday
var runCmd = &cobra.Command{
	Use:   "run [normal|start-of-month]",
	Short: "Simulate one workday at the counter",
	Args:  cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		// Set up logging
		level, err := logrus.ParseLevel(logLevel)
		if err != nil {
			logrus.Fatalf("Invalid log level: %s", logLevel)
		}
		logrus.SetLevel(level)

		cfg, err := resolveConfig(configPath, args, overridesFrom(cmd))
		if err != nil {
			logrus.Fatalf("Invalid run configuration: %v", err)
		}
		if cfg.Seed == 0 {
			cfg.Seed = time.Now().UnixNano()
			logrus.Infof("No seed given, using %d", cfg.Seed)
		}

		format, err := results.ParseFormat(outputFormat)
		if err != nil {
			logrus.Fatalf("%v", err)
		}

		b, err := newBus(transport, cfg.MailboxCapacity)
		if err != nil {
			logrus.Fatalf("%v", err)
		}
		defer b.Close()

		collector := telemetry.NewCollector(cfg.Scenario)
		if metricsAddr != "" {
			srv := serveMetrics(metricsAddr, collector.Registry)
			defer shutdownServer(srv)
		}

		bank, err := sim.NewBank(cfg, b,
			sim.WithObserver(collector),
			sim.WithSink(results.NewSink(outDir, format)),
		)
		if err != nil {
			logrus.Fatalf("%v", err)
		}

		logrus.Infof("Starting %s day: %d tellers, %s of wall time, tick %s, transport %s",
			cfg.Scenario, cfg.Tellers, cfg.RealDuration, cfg.Tick, transport)

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		report, err := bank.Run(ctx)
		if err != nil {
			logrus.Fatalf("Simulation failed: %v", err)
		}
		for _, f := range report.StopFailures {
			logrus.Warnf("%s did not stop cleanly: %v", f.Name, f.Err)
		}
		results.Summarize(report.Snapshot).Print(os.Stdout)

		if pushURL != "" {
			if err := collector.Push(pushURL, pushJob, bank.RunID()); err != nil {
				logrus.Warnf("%v", err)
			}
		}
		logrus.Info("Simulation complete.")
	},
}

// Execute runs the CLI root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// init sets up CLI flags and subcommands
func init() {
	defaults := sim.DefaultConfig()

	runCmd.Flags().Int64Var(&seed, "seed", 0, "Seed for arrivals and service times (0 seeds from the wall clock)")
	runCmd.Flags().StringVar(&logLevel, "log", "info", "Log level (trace, debug, info, warn, error, fatal, panic)")
	runCmd.Flags().StringVar(&configPath, "config", "", "YAML run configuration; explicit flags take precedence")

	// Workday
	runCmd.Flags().DurationVar(&realDuration, "duration", defaults.RealDuration, "Wall time the 08:00-16:00 workday is compressed into")
	runCmd.Flags().DurationVar(&tick, "tick", defaults.Tick, "Period of the arrival process")
	runCmd.Flags().IntVar(&tellers, "tellers", defaults.Tellers, "Number of tellers at the counter")

	// Outputs
	runCmd.Flags().StringVar(&outDir, "out", results.DefaultDir, "Directory for persisted metrics")
	runCmd.Flags().StringVar(&outputFormat, "format", string(results.FormatCSV), "Persistence format (csv, sqlite, both)")
	runCmd.Flags().StringVar(&transport, "transport", transportChan, "Message transport between tasks (chan, watermill)")
	runCmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "Serve Prometheus /metrics and /healthz on this address during the run")
	runCmd.Flags().StringVar(&pushURL, "push-url", "", "Pushgateway URL to push the final metrics to")

	// Attach `run` as a subcommand to `root`
	rootCmd.AddCommand(runCmd)
}
