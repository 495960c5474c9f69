// Command hivesim-example is a minimal hive simulator. It checks that every eth1
// client answers JSON-RPC requests, that two clients can be started side by side and
// that a suite-level client is reachable from its tests.
package main

import (
	"context"
	"os"

	"github.com/ethereum/go-ethereum/common/hexutil"

	hivesim "github.com/ethereum-optimism/infra/op-hivesim"
	"github.com/ethereum-optimism/infra/op-hivesim/types"
	"github.com/ethereum-optimism/optimism/op-service/ctxinterrupt"
)

var (
	Version   = "v0.1.0"
	GitCommit = ""
	GitDate   = ""
)

var clientParams = types.Params{
	"HIVE_NETWORK_ID": "1337",
	"HIVE_CHAIN_ID":   "1337",
}

func main() {
	app := hivesim.NewApp("hivesim-example", "Example hive simulator", run)
	app.Version = Version + "-" + GitCommit + "-" + GitDate

	ctx := ctxinterrupt.WithSignalWaiterMain(context.Background())
	if err := app.RunContext(ctx, os.Args); err != nil {
		os.Exit(hivesim.ExitCode(err))
	}
}

func run(ctx context.Context, sim *hivesim.Simulation) error {
	rpc := hivesim.Suite{
		Name:        "rpc",
		Description: "Checks the JSON-RPC endpoint of all eth1 clients.",
	}
	rpc.Add(hivesim.ClientTestSpec{
		Name:        "chain id (CLIENT)",
		Description: "eth_chainId returns the configured chain ID.",
		Role:        "eth1",
		Parameters:  clientParams,
		Run:         chainIDTest,
	})

	defs, err := sim.ClientTypes(ctx)
	if err != nil {
		return hivesim.NewRuntimeError(err)
	}
	pair := hivesim.Suite{
		Name:        "pair",
		Description: "Starts two clients in one test.",
	}
	if len(defs) > 0 {
		pair.Add(hivesim.NClientTestSpec{
			Name:         "two clients",
			Description:  "Both clients report the same chain ID.",
			Clients:      []types.ClientDefinition{*defs[0], *defs[0]},
			Environments: []types.Params{clientParams, clientParams.Set("HIVE_LOGLEVEL", "4")},
			Run:          pairTest,
		})
		pair.AddSharedClient("shared", defs[0].Name, hivesim.WithEnvironment(clientParams))
		pair.Add(hivesim.TestSpec{
			Name:        "shared client",
			Description: "The suite-level client keeps serving across tests.",
			Run:         sharedTest,
		})
	}
	return hivesim.Run(ctx, sim, rpc, pair)
}

func chainID(t *hivesim.T, c *hivesim.Client) hexutil.Uint64 {
	var id hexutil.Uint64
	if err := c.RPC().CallContext(t.Context(), &id, "eth_chainId"); err != nil {
		t.Fatalf("eth_chainId on %s failed: %v", c.Type, err)
	}
	return id
}

func chainIDTest(t *hivesim.T, c *hivesim.Client) {
	if id := chainID(t, c); id != 1337 {
		t.Errorf("wrong chain ID %d, want 1337", id)
	}
}

func pairTest(t *hivesim.T, clients []*hivesim.Client, _ any) {
	a, b := chainID(t, clients[0]), chainID(t, clients[1])
	t.Logf("chain IDs: %d, %d", a, b)
	if a != b {
		t.Errorf("chain ID mismatch: %d != %d", a, b)
	}
}

func sharedTest(t *hivesim.T, _ *hivesim.Client) {
	c := t.GetSharedClient("shared")
	if c == nil {
		t.Fatal("shared client is not running")
	}
	chainIDTest(t, c)
}
