package cmd

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bank-sim/bank-sim/sim"
	"github.com/bank-sim/bank-sim/sim/bus"
)

func writeRunFile(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "run.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0644))
	return path
}

func TestResolveConfig_DefaultsWithoutFileOrFlags(t *testing.T) {
	cfg, err := resolveConfig("", nil, flagOverrides{})
	require.NoError(t, err)
	assert.Equal(t, sim.DefaultConfig(), cfg)
}

func TestResolveConfig_Scenario(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want sim.Scenario
	}{
		{"no argument", nil, sim.ScenarioNormal},
		{"normal", []string{"normal"}, sim.ScenarioNormal},
		{"start of month", []string{"start-of-month"}, sim.ScenarioStartOfMonth},
		{"underscore alias", []string{"START_OF_MONTH"}, sim.ScenarioStartOfMonth},
		{"croatian alias", []string{"pocetak_mjeseca"}, sim.ScenarioStartOfMonth},
		{"unknown falls back to normal", []string{"payday"}, sim.ScenarioNormal},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := resolveConfig("", tt.args, flagOverrides{})
			require.NoError(t, err)
			assert.Equal(t, tt.want, cfg.Scenario)
		})
	}
}

func TestResolveConfig_FileThenFlags(t *testing.T) {
	// GIVEN a file that sets duration, tellers and lunch
	path := writeRunFile(t, `
scenario: start-of-month
duration: 60s
tellers: 6
seed: 11
lunch:
  start: "11:00"
  minutes: 20
inbox_poll: 250ms
`)
	// WHEN --tellers is also given explicitly
	n := 2
	cfg, err := resolveConfig(path, nil, flagOverrides{Tellers: &n})

	// THEN the flag wins and the rest comes from the file
	require.NoError(t, err)
	assert.Equal(t, sim.ScenarioStartOfMonth, cfg.Scenario)
	assert.Equal(t, 60*time.Second, cfg.RealDuration)
	assert.Equal(t, 2, cfg.Tellers)
	assert.Equal(t, int64(11), cfg.Seed)
	assert.Equal(t, 660.0, cfg.LunchStartMinute)
	assert.Equal(t, 20.0, cfg.LunchMinutes)
	assert.Equal(t, 250*time.Millisecond, cfg.InboxPoll)
	assert.Equal(t, 500*time.Millisecond, cfg.Tick, "unset fields keep defaults")
}

func TestResolveConfig_PositionalScenarioBeatsFile(t *testing.T) {
	path := writeRunFile(t, "scenario: start-of-month\n")
	cfg, err := resolveConfig(path, []string{"normal"}, flagOverrides{})
	require.NoError(t, err)
	assert.Equal(t, sim.ScenarioNormal, cfg.Scenario)
}

func TestResolveConfig_Errors(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"unknown field", "tellerz: 3\n"},
		{"bad duration", "tick: soon\n"},
		{"unknown scenario in file", "scenario: payday\n"},
		{"bad lunch start", "lunch:\n  start: noon\n"},
		{"invalid result", "tick: 5m\nduration: 1m\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := resolveConfig(writeRunFile(t, tt.body), nil, flagOverrides{})
			assert.Error(t, err)
		})
	}

	_, err := resolveConfig(filepath.Join(t.TempDir(), "missing.yaml"), nil, flagOverrides{})
	assert.ErrorContains(t, err, "reading run config")

	zero := 0
	_, err = resolveConfig("", nil, flagOverrides{Tellers: &zero})
	assert.ErrorIs(t, err, sim.ErrInvalidConfig)
}

func TestResolveConfig_ShippedExample(t *testing.T) {
	cfg, err := resolveConfig(filepath.Join("..", "configs", "start-of-month.yaml"), nil, flagOverrides{})
	require.NoError(t, err)
	assert.Equal(t, sim.ScenarioStartOfMonth, cfg.Scenario)
	assert.Equal(t, 6, cfg.Tellers)
}

func TestParseMinuteOfDay(t *testing.T) {
	m, err := parseMinuteOfDay("11:30")
	require.NoError(t, err)
	assert.Equal(t, 690.0, m)

	for _, bad := range []string{"1130", "25:00", "11:75", "aa:bb"} {
		_, err := parseMinuteOfDay(bad)
		assert.Error(t, err, bad)
	}
}

func TestNewBus(t *testing.T) {
	b, err := newBus("chan", 8)
	require.NoError(t, err)
	assert.IsType(t, &bus.ChanBus{}, b)
	require.NoError(t, b.Close())

	b, err = newBus("Watermill", 8)
	require.NoError(t, err)
	assert.IsType(t, &bus.WatermillBus{}, b)
	require.NoError(t, b.Close())

	_, err = newBus("carrier-pigeon", 8)
	assert.Error(t, err)
}
