package hivesim

import (
	"context"
	"net"
	"strconv"
	"sync/atomic"

	"github.com/ethereum/go-ethereum/log"
	"github.com/ethereum/go-ethereum/rpc"
	"github.com/google/uuid"

	"github.com/ethereum-optimism/infra/op-hivesim/simapi"
	"github.com/ethereum-optimism/infra/op-hivesim/testmatch"
	"github.com/ethereum-optimism/infra/op-hivesim/types"
)

// Simulation is a session with the hive simulation API. It is safe for concurrent use.
type Simulation struct {
	api     *simapi.Client
	cfg     Config
	log     log.Logger
	runID   string
	m       atomic.Pointer[testmatch.Matcher]
	summary *Summary
}

// New creates a simulation session from the configuration.
func New(cfg *Config) (*Simulation, error) {
	if err := cfg.Check(); err != nil {
		return nil, err
	}
	logger := cfg.Log
	if logger == nil {
		logger = log.Root()
	}
	sim := &Simulation{
		cfg:     *cfg,
		runID:   uuid.New().String(),
		summary: newSummary(),
	}
	sim.log = logger.New("run_id", sim.runID)
	sim.api = simapi.New(cfg.SimulatorURL,
		simapi.WithLogger(sim.log),
		simapi.WithRetry(cfg.RetryAttempts, cfg.RetryDelay),
	)
	if err := sim.SetTestPattern(cfg.TestPattern); err != nil {
		return nil, err
	}
	return sim, nil
}

// SetTestPattern replaces the suite/test selection pattern. An empty pattern
// matches everything.
func (sim *Simulation) SetTestPattern(pattern string) error {
	if pattern == "" {
		sim.m.Store(nil)
		return nil
	}
	m, err := testmatch.Parse(pattern)
	if err != nil {
		return &ConfigError{Err: err}
	}
	sim.m.Store(m)
	return nil
}

// TestPattern returns the selection pattern and whether one is set.
func (sim *Simulation) TestPattern() (string, bool) {
	m := sim.m.Load()
	if m == nil {
		return "", false
	}
	return m.Pattern(), true
}

func (sim *Simulation) matcher() *testmatch.Matcher {
	return sim.m.Load()
}

// ClientTypes returns the client types available to this simulator run.
func (sim *Simulation) ClientTypes(ctx context.Context) ([]*types.ClientDefinition, error) {
	return sim.api.ClientTypes(ctx)
}

// API returns the underlying simulation API client.
func (sim *Simulation) API() *simapi.Client {
	return sim.api
}

// RunID identifies this simulator process in logs and metrics.
func (sim *Simulation) RunID() string {
	return sim.runID
}

// Summary returns the results recorded by this session so far.
func (sim *Simulation) Summary() *Summary {
	return sim.summary
}

// Log returns the logger of the session. Records carry the run ID.
func (sim *Simulation) Log() log.Logger {
	return sim.log
}

// dialRPC creates the JSON-RPC client of a client container.
func (sim *Simulation) dialRPC(ctx context.Context, ip net.IP) (*rpc.Client, error) {
	url := "http://" + net.JoinHostPort(ip.String(), strconv.Itoa(sim.cfg.RPCPort))
	return rpc.DialOptions(ctx, url)
}
