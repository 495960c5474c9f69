package hivesim

import (
	"time"

	"github.com/ethereum/go-ethereum/log"
	"github.com/urfave/cli/v2"

	"github.com/ethereum-optimism/infra/op-hivesim/flags"
	"github.com/ethereum-optimism/infra/op-hivesim/simapi"
	"github.com/ethereum-optimism/infra/op-hivesim/testmatch"
)

const (
	DefaultRPCPort    = 8545
	DefaultEnginePort = 8551
)

// Config holds the simulator configuration. It is read once at startup and not
// modified afterwards.
type Config struct {
	SimulatorURL  string        // Base URL of the simulation API
	TestPattern   string        // Suite/test selection pattern, empty matches everything
	RPCPort       int           // JSON-RPC port of client containers
	EnginePort    int           // Authenticated engine API port of client containers
	RetryAttempts uint64        // Retries of transient simulation API failures
	RetryDelay    time.Duration // Initial retry backoff
	MetricsAddr   string        // Listen address of the metrics server, empty disables it
	// CollectOnly registers all tests without running their bodies, unless they
	// are marked AlwaysRun. Used to list the tests of a simulator.
	CollectOnly bool
	Log         log.Logger
}

// DefaultConfig returns a configuration for the simulation API at the given URL.
func DefaultConfig(url string) *Config {
	return &Config{
		SimulatorURL:  url,
		RPCPort:       DefaultRPCPort,
		EnginePort:    DefaultEnginePort,
		RetryAttempts: simapi.DefaultRetries,
		RetryDelay:    simapi.DefaultRetryDelay,
		Log:           log.Root(),
	}
}

// NewConfig creates a new Config from cli context
func NewConfig(ctx *cli.Context, log log.Logger) (*Config, error) {
	if err := flags.CheckRequired(ctx); err != nil {
		return nil, &ConfigError{Err: err}
	}
	cfg := &Config{
		SimulatorURL:  ctx.String(flags.Simulator.Name),
		TestPattern:   ctx.String(flags.TestPattern.Name),
		RPCPort:       ctx.Int(flags.ClientRPCPort.Name),
		EnginePort:    ctx.Int(flags.ClientEnginePort.Name),
		RetryAttempts: ctx.Uint64(flags.APIRetries.Name),
		RetryDelay:    ctx.Duration(flags.APIRetryDelay.Name),
		MetricsAddr:   ctx.String(flags.MetricsAddr.Name),
		CollectOnly:   ctx.Bool(flags.CollectOnly.Name),
		Log:           log,
	}
	if err := cfg.Check(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Check validates the configuration. All errors are of type *ConfigError.
func (c *Config) Check() error {
	if c.SimulatorURL == "" {
		return NewConfigError("simulation API URL is not set (HIVE_SIMULATOR)")
	}
	if c.RPCPort <= 0 || c.RPCPort > 65535 {
		return NewConfigError("invalid client RPC port %d", c.RPCPort)
	}
	if c.EnginePort <= 0 || c.EnginePort > 65535 {
		return NewConfigError("invalid client engine API port %d", c.EnginePort)
	}
	if c.RetryDelay < 0 {
		return NewConfigError("negative API retry delay %v", c.RetryDelay)
	}
	if _, err := testmatch.Parse(c.TestPattern); err != nil {
		return &ConfigError{Err: err}
	}
	return nil
}
