package hivesim

import (
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/urfave/cli/v2"

	"github.com/ethereum-optimism/infra/op-hivesim/flags"
)

func TestConfigCheck(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Config)
		err    string
	}{
		{"default", func(*Config) {}, ""},
		{"no simulator", func(c *Config) { c.SimulatorURL = "" }, "HIVE_SIMULATOR"},
		{"bad port", func(c *Config) { c.RPCPort = 70000 }, "invalid client RPC port 70000"},
		{"bad engine port", func(c *Config) { c.EnginePort = 0 }, "invalid client engine API port 0"},
		{"negative delay", func(c *Config) { c.RetryDelay = -time.Second }, "negative API retry delay"},
		{"bad pattern", func(c *Config) { c.TestPattern = "sim/te(st" }, `invalid test pattern "te(st"`},
		{"bad suite pattern", func(c *Config) { c.TestPattern = "[sim" }, "invalid suite pattern"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig("http://127.0.0.1:3000")
			tt.modify(cfg)
			err := cfg.Check()
			if tt.err == "" {
				require.NoError(t, err)
				return
			}
			require.ErrorContains(t, err, tt.err)
			require.True(t, IsConfigError(err))

			_, err = New(cfg)
			require.True(t, IsConfigError(err))
		})
	}
}

// Must run before TestNewConfigFromEnvironment: env values stick to the shared flags.
func TestNewConfigMissingSimulator(t *testing.T) {
	var cfgErr error
	app := &cli.App{
		Flags: flags.Flags,
		Action: func(ctx *cli.Context) error {
			_, cfgErr = NewConfig(ctx, log.NewLogger(log.DiscardHandler()))
			return nil
		},
	}
	require.NoError(t, app.Run([]string{"sim"}))
	require.True(t, IsConfigError(cfgErr))
	require.ErrorContains(t, cfgErr, "flag simulator is required")
}

func TestNewConfigFromEnvironment(t *testing.T) {
	t.Setenv("HIVE_SIMULATOR", "http://10.0.0.1:3000")
	t.Setenv("HIVE_TEST_PATTERN", "rpc/")
	t.Setenv("HIVE_CLIENT_RPC_PORT", "8645")
	t.Setenv("HIVE_API_RETRIES", "5")
	t.Setenv("HIVE_API_RETRY_DELAY", "1s")
	t.Setenv("HIVE_CLIENT_ENGINE_PORT", "9551")
	t.Setenv("HIVE_COLLECT_ONLY", "true")

	var cfg *Config
	app := &cli.App{
		Flags: flags.Flags,
		Action: func(ctx *cli.Context) error {
			var err error
			cfg, err = NewConfig(ctx, log.NewLogger(log.DiscardHandler()))
			return err
		},
	}
	require.NoError(t, app.Run([]string{"sim"}))
	assert.Equal(t, "http://10.0.0.1:3000", cfg.SimulatorURL)
	assert.Equal(t, "rpc/", cfg.TestPattern)
	assert.Equal(t, 8645, cfg.RPCPort)
	assert.Equal(t, uint64(5), cfg.RetryAttempts)
	assert.Equal(t, time.Second, cfg.RetryDelay)
	assert.Empty(t, cfg.MetricsAddr)
	assert.Equal(t, 9551, cfg.EnginePort)
	assert.True(t, cfg.CollectOnly)
}

func TestSetTestPattern(t *testing.T) {
	sim := offlineSim(t)
	_, ok := sim.TestPattern()
	require.False(t, ok)
	require.True(t, sim.matcher().Match("anything", "at all"))

	require.NoError(t, sim.SetTestPattern("eth/sync"))
	p, ok := sim.TestPattern()
	require.True(t, ok)
	require.Equal(t, "eth/sync", p)
	require.False(t, sim.matcher().Match("eth", "rpc"))

	require.True(t, IsConfigError(sim.SetTestPattern("(")))
	p, _ = sim.TestPattern()
	require.Equal(t, "eth/sync", p)
}
