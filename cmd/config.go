package cmd

import (
	"bytes"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/bank-sim/bank-sim/sim"
	"github.com/bank-sim/bank-sim/sim/bus"
)

// RunFile is the YAML form of a run configuration. Empty fields keep the
// built-in defaults. Durations use Go syntax ("120s", "500ms").
// All fields must be listed to satisfy KnownFields(true) strict parsing.
type RunFile struct {
	Scenario        string       `yaml:"scenario"`
	Duration        string       `yaml:"duration"`
	Tick            string       `yaml:"tick"`
	Tellers         int          `yaml:"tellers"`
	Seed            int64        `yaml:"seed"`
	Service         ServiceRange `yaml:"service"`
	Lunch           LunchConfig  `yaml:"lunch"`
	SpawnStagger    string       `yaml:"spawn_stagger"`
	ArrivalCutoff   string       `yaml:"arrival_cutoff"`
	CloseGrace      string       `yaml:"close_grace"`
	StopTimeout     string       `yaml:"stop_timeout"`
	InboxPoll       string       `yaml:"inbox_poll"`
	MailboxCapacity int          `yaml:"mailbox_capacity"`
}

// ServiceRange bounds service durations, in simulated minutes.
type ServiceRange struct {
	MinMinutes float64 `yaml:"min_minutes"`
	MaxMinutes float64 `yaml:"max_minutes"`
}

// LunchConfig places the first lunch window; the second follows it.
type LunchConfig struct {
	Start   string  `yaml:"start"` // HH:MM
	Minutes float64 `yaml:"minutes"`
}

// flagOverrides holds the flags set explicitly on the command line; nil
// fields were not given.
type flagOverrides struct {
	Seed     *int64
	Duration *time.Duration
	Tick     *time.Duration
	Tellers  *int
}

func overridesFrom(cmd *cobra.Command) flagOverrides {
	var o flagOverrides
	if cmd.Flags().Changed("seed") {
		o.Seed = &seed
	}
	if cmd.Flags().Changed("duration") {
		o.Duration = &realDuration
	}
	if cmd.Flags().Changed("tick") {
		o.Tick = &tick
	}
	if cmd.Flags().Changed("tellers") {
		o.Tellers = &tellers
	}
	return o
}

// loadRunFile parses a run configuration with strict field checking.
func loadRunFile(path string) (RunFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return RunFile{}, fmt.Errorf("reading run config: %w", err)
	}
	var rf RunFile
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&rf); err != nil {
		return RunFile{}, fmt.Errorf("parsing run config %s: %w", path, err)
	}
	return rf, nil
}

// apply copies every non-empty field onto cfg.
func (rf RunFile) apply(cfg *sim.Config) error {
	if rf.Scenario != "" {
		sc, ok := sim.ParseScenario(rf.Scenario)
		if !ok {
			return fmt.Errorf("%w: unknown scenario %q", sim.ErrInvalidConfig, rf.Scenario)
		}
		cfg.Scenario = sc
	}
	durations := []struct {
		name  string
		value string
		dst   *time.Duration
	}{
		{"duration", rf.Duration, &cfg.RealDuration},
		{"tick", rf.Tick, &cfg.Tick},
		{"spawn_stagger", rf.SpawnStagger, &cfg.SpawnStagger},
		{"arrival_cutoff", rf.ArrivalCutoff, &cfg.ArrivalCutoff},
		{"close_grace", rf.CloseGrace, &cfg.CloseGrace},
		{"stop_timeout", rf.StopTimeout, &cfg.StopTimeout},
		{"inbox_poll", rf.InboxPoll, &cfg.InboxPoll},
	}
	for _, d := range durations {
		if d.value == "" {
			continue
		}
		v, err := time.ParseDuration(d.value)
		if err != nil {
			return fmt.Errorf("%w: %s: %v", sim.ErrInvalidConfig, d.name, err)
		}
		*d.dst = v
	}
	if rf.Tellers != 0 {
		cfg.Tellers = rf.Tellers
	}
	if rf.Seed != 0 {
		cfg.Seed = rf.Seed
	}
	if rf.Service.MinMinutes != 0 {
		cfg.ServiceMinMinutes = rf.Service.MinMinutes
	}
	if rf.Service.MaxMinutes != 0 {
		cfg.ServiceMaxMinutes = rf.Service.MaxMinutes
	}
	if rf.Lunch.Start != "" {
		m, err := parseMinuteOfDay(rf.Lunch.Start)
		if err != nil {
			return fmt.Errorf("%w: lunch.start: %v", sim.ErrInvalidConfig, err)
		}
		cfg.LunchStartMinute = m
	}
	if rf.Lunch.Minutes != 0 {
		cfg.LunchMinutes = rf.Lunch.Minutes
	}
	if rf.MailboxCapacity != 0 {
		cfg.MailboxCapacity = rf.MailboxCapacity
	}
	return nil
}

// parseMinuteOfDay turns "HH:MM" into minutes since midnight.
func parseMinuteOfDay(s string) (float64, error) {
	hh, mm, ok := strings.Cut(s, ":")
	if !ok {
		return 0, fmt.Errorf("want HH:MM, got %q", s)
	}
	h, err := strconv.Atoi(hh)
	if err != nil || h < 0 || h > 23 {
		return 0, fmt.Errorf("bad hour in %q", s)
	}
	m, err := strconv.Atoi(mm)
	if err != nil || m < 0 || m > 59 {
		return 0, fmt.Errorf("bad minute in %q", s)
	}
	return float64(h*60 + m), nil
}

// resolveConfig layers defaults, the optional YAML file, explicit flags and
// the positional scenario, in that order, and validates the result. An
// unrecognized positional scenario falls back to normal with a warning.
func resolveConfig(path string, args []string, o flagOverrides) (sim.Config, error) {
	cfg := sim.DefaultConfig()
	if path != "" {
		rf, err := loadRunFile(path)
		if err != nil {
			return sim.Config{}, err
		}
		if err := rf.apply(&cfg); err != nil {
			return sim.Config{}, err
		}
	}

	if o.Seed != nil {
		cfg.Seed = *o.Seed
	}
	if o.Duration != nil {
		cfg.RealDuration = *o.Duration
	}
	if o.Tick != nil {
		cfg.Tick = *o.Tick
	}
	if o.Tellers != nil {
		cfg.Tellers = *o.Tellers
	}

	if len(args) > 0 {
		sc, ok := sim.ParseScenario(args[0])
		if !ok {
			logrus.Warnf("Unknown scenario %q, running %s", args[0], sim.ScenarioNormal)
		}
		cfg.Scenario = sc
	}

	if err := cfg.Validate(); err != nil {
		return sim.Config{}, err
	}
	return cfg, nil
}

// Transports accepted by --transport.
const (
	transportChan      = "chan"
	transportWatermill = "watermill"
)

func newBus(name string, capacity int) (bus.Bus, error) {
	switch strings.ToLower(name) {
	case transportChan:
		return bus.NewChanBus(capacity), nil
	case transportWatermill:
		return bus.NewWatermillBus(sim.MessageCodec{}, capacity), nil
	default:
		return nil, fmt.Errorf("unknown transport %q (want %s or %s)", name, transportChan, transportWatermill)
	}
}
