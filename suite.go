package hivesim

import (
	"context"
	"fmt"
	"os"

	"github.com/ethereum-optimism/infra/op-hivesim/exitcodes"
	"github.com/ethereum-optimism/infra/op-hivesim/metrics"
	"github.com/ethereum-optimism/infra/op-hivesim/simapi"
	"github.com/ethereum-optimism/infra/op-hivesim/types"
)

// Suite is the description of a test suite.
type Suite struct {
	Name        string
	Description string
	Tests       []TestCase

	sharedDefs []sharedClientDef
	// shared holds the running shared clients while the suite runs.
	shared map[string]*Client
}

type sharedClientDef struct {
	id         string
	clientType string
	options    []simapi.StartOption
}

// Add adds a test case to the suite. It panics with a *ConfigError if the test case
// is invalid.
func (s *Suite) Add(tc TestCase) *Suite {
	if err := validate(tc); err != nil {
		panic(err)
	}
	s.Tests = append(s.Tests, tc)
	return s
}

// AddSharedClient registers a client which is started once when the suite begins and
// is available to all tests of the suite through T.GetSharedClient. The container is
// removed by hive when the suite ends.
func (s *Suite) AddSharedClient(id, clientType string, options ...simapi.StartOption) *Suite {
	for _, def := range s.sharedDefs {
		if def.id == id {
			panic(NewConfigError("suite %q: duplicate shared client %q", s.Name, id))
		}
	}
	s.sharedDefs = append(s.sharedDefs, sharedClientDef{
		id:         id,
		clientType: clientType,
		options:    append([]simapi.StartOption(nil), options...),
	})
	return s
}

// Run executes all given test suites, in order. It stops at the first configuration
// error or simulation API failure.
func Run(ctx context.Context, sim *Simulation, suites ...Suite) error {
	for _, s := range suites {
		if err := RunSuite(ctx, sim, s); err != nil {
			return err
		}
	}
	return nil
}

// MustRun is like Run, but exits the process if there is a problem.
func MustRun(ctx context.Context, sim *Simulation, suites ...Suite) {
	if err := Run(ctx, sim, suites...); err != nil {
		sim.log.Error("Simulation failed", "err", err)
		fmt.Fprintln(os.Stderr, err)
		os.Exit(exitcodes.RuntimeErr)
	}
}

// RunSuite runs all tests in a suite. Suites which do not match the test pattern
// are skipped without contacting the simulation API.
func RunSuite(ctx context.Context, sim *Simulation, suite Suite) error {
	if !sim.matcher().Match(suite.Name, "") {
		sim.log.Debug("Skipping suite", "suite", suite.Name)
		metrics.RecordSuite(sim.runID, suite.Name, "skip")
		return nil
	}
	for i, tc := range suite.Tests {
		if err := validate(tc); err != nil {
			return fmt.Errorf("suite %q, test case %d: %w", suite.Name, i, err)
		}
	}

	suiteID, err := sim.api.StartSuite(ctx, types.TestRequest{Name: suite.Name, Description: suite.Description})
	if err != nil {
		return NewRuntimeError(fmt.Errorf("failed to start suite %q: %w", suite.Name, err))
	}
	log := sim.log.New("suite", suite.Name, "suite_id", suiteID)
	log.Info("Suite started", "tests", len(suite.Tests))
	metrics.RecordSuite(sim.runID, suite.Name, "run")

	abort := func(err error) error {
		// Let hive clean up the suite's containers before aborting.
		if endErr := sim.api.EndSuite(ctx, suiteID); endErr != nil {
			log.Warn("Failed to end aborted suite", "err", endErr)
		}
		return err
	}
	suite.shared = make(map[string]*Client, len(suite.sharedDefs))
	defer closeShared(suite.shared)
	for _, def := range suite.sharedDefs {
		client, err := sim.startSharedClient(ctx, suiteID, def)
		if err != nil {
			return abort(err)
		}
		suite.shared[def.id] = client
		log.Info("Shared client started", "id", def.id, "client", def.clientType, "container", client.Container)
	}

	for _, tc := range suite.Tests {
		if err := sim.dispatch(ctx, suiteID, suite, tc); err != nil {
			return abort(err)
		}
	}
	if err := sim.api.EndSuite(ctx, suiteID); err != nil {
		return NewRuntimeError(fmt.Errorf("failed to end suite %q: %w", suite.Name, err))
	}
	log.Info("Suite finished")
	return nil
}

func (sim *Simulation) startSharedClient(ctx context.Context, suiteID types.SuiteID, def sharedClientDef) (*Client, error) {
	container, ip, err := sim.api.StartSharedClient(ctx, suiteID, def.clientType, def.options...)
	if err != nil {
		return nil, NewRuntimeError(fmt.Errorf("failed to start shared client %q (type %s): %w", def.id, def.clientType, err))
	}
	rpcClient, err := sim.dialRPC(ctx, ip)
	if err != nil {
		return nil, NewRuntimeError(fmt.Errorf("can't create RPC client for shared client %q: %w", def.id, err))
	}
	client := newClient(sim, nil, def.clientType, container, ip, rpcClient)
	client.shared = true
	return client, nil
}

func closeShared(clients map[string]*Client) {
	for _, c := range clients {
		c.closeRPC()
	}
}
