package hivesim

import (
	"testing"
	"time"

	"github.com/ethereum-optimism/optimism/op-service/testlog"
	"github.com/ethereum/go-ethereum/log"
	"github.com/stretchr/testify/require"

	"github.com/ethereum-optimism/infra/op-hivesim/fakehive"
	"github.com/ethereum-optimism/infra/op-hivesim/types"
)

var testClients = []*types.ClientDefinition{
	{Name: "go-ethereum", Version: "1.15", Meta: types.ClientMetadata{Roles: []string{"eth1"}}},
	{Name: "fluffy", Version: "0.1", Meta: types.ClientMetadata{Roles: []string{"portal"}}},
	{Name: "besu", Version: "25.1", Meta: types.ClientMetadata{Roles: []string{"eth1"}}},
}

func newTestSim(t *testing.T, pattern string, hooks fakehive.Hooks) (*Simulation, *fakehive.Server) {
	t.Helper()
	fake := fakehive.New(testClients, hooks)
	srv := fake.Start()
	t.Cleanup(srv.Close)

	cfg := DefaultConfig(srv.URL)
	cfg.TestPattern = pattern
	cfg.RetryDelay = time.Millisecond
	cfg.Log = testlog.Logger(t, log.LevelInfo)
	sim, err := New(cfg)
	require.NoError(t, err)
	return sim, fake
}

// offlineSim creates a session that never reaches a simulation API.
func offlineSim(t require.TestingT) *Simulation {
	cfg := DefaultConfig("http://127.0.0.1:1")
	cfg.Log = log.NewLogger(log.DiscardHandler())
	sim, err := New(cfg)
	require.NoError(t, err)
	return sim
}

// testsOf returns the recorded tests of the only suite.
func testsOf(t *testing.T, fake *fakehive.Server) []*fakehive.Test {
	t.Helper()
	suites := fake.Suites()
	require.Len(t, suites, 1)
	return suites[0].TestList()
}
