package hivesim

import (
	"context"
	"fmt"
	"runtime"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/log"

	"github.com/ethereum-optimism/infra/op-hivesim/simapi"
	"github.com/ethereum-optimism/infra/op-hivesim/types"
)

// T is a running test. This is a lot like testing.T, but has some additional methods
// for launching clients.
//
// All test log output (via t.Log, t.Logf) goes to the 'details' section of the test
// report.
type T struct {
	Sim     *Simulation
	SuiteID types.SuiteID
	TestID  types.TestID
	Suite   Suite // snapshot of the owning suite

	ctx  context.Context
	name string
	log  log.Logger

	mu     sync.Mutex
	result types.TestResult
}

func newT(ctx context.Context, sim *Simulation, suiteID types.SuiteID, testID types.TestID, suite Suite, name string) *T {
	return &T{
		Sim:     sim,
		SuiteID: suiteID,
		TestID:  testID,
		Suite:   suite,
		ctx:     ctx,
		name:    name,
		log:     sim.log.New("suite", suite.Name, "test", name, "test_id", testID),
		result:  types.TestResult{Pass: true},
	}
}

// Context returns the context of the simulator run.
func (t *T) Context() context.Context {
	return t.ctx
}

// Name returns the name of the test.
func (t *T) Name() string {
	return t.name
}

// StartClient starts a client instance. If the client cannot be started, the test
// fails immediately.
func (t *T) StartClient(clientType string, options ...simapi.StartOption) *Client {
	container, ip, err := t.Sim.api.StartClient(t.ctx, t.SuiteID, t.TestID, clientType, options...)
	if err != nil {
		t.Fatalf("can't launch node (type %s): %v", clientType, err)
	}
	rpcClient, err := t.Sim.dialRPC(t.ctx, ip)
	if err != nil {
		t.Fatalf("can't create RPC client for %s (%s): %v", clientType, container, err)
	}
	t.log.Info("Client started", "client", clientType, "container", container, "ip", ip)
	return newClient(t.Sim, t, clientType, container, ip, rpcClient)
}

// GetSharedClient returns the shared client of the suite registered under id, bound
// to this test. The client is attached to the test in hive so that its logs are shown
// with the test. It returns nil if the suite has no such client.
func (t *T) GetSharedClient(id string) *Client {
	shared, ok := t.Suite.shared[id]
	if !ok {
		t.Logf("shared client %q not found", id)
		return nil
	}
	if err := t.Sim.api.RegisterSharedClient(t.ctx, t.SuiteID, t.TestID, shared.Type, shared.Container); err != nil {
		t.log.Warn("Failed to register shared client with test", "id", id, "err", err)
	}
	client := *shared
	client.test = t
	return &client
}

// Run runs a subtest of this test. It waits for the subtest to complete before
// continuing. Subtests are reported to hive as separate tests of the same suite.
func (t *T) Run(tc TestCase) {
	if err := validate(tc); err != nil {
		t.Fatalf("invalid subtest: %v", err)
	}
	if err := t.Sim.dispatch(t.ctx, t.SuiteID, t.Suite, tc); err != nil {
		t.Errorf("subtest failed to run: %v", err)
	}
}

// RunClient runs the given client test against a single client type.
func (t *T) RunClient(clientType string, spec ClientTestSpec) {
	if err := spec.Validate(); err != nil {
		t.Fatalf("invalid subtest: %v", err)
	}
	if err := t.Sim.runClientTest(t.ctx, t.SuiteID, t.Suite, clientType, spec); err != nil {
		t.Errorf("subtest failed to run: %v", err)
	}
}

// RunAllClients runs the given client test against all available client types.
func (t *T) RunAllClients(spec ClientTestSpec) {
	t.Run(spec)
}

// Log formats its arguments using fmt.Sprintln and adds them to the test details.
func (t *T) Log(values ...any) {
	t.appendDetails(fmt.Sprintln(values...))
}

// Logf formats its arguments using fmt.Sprintf and adds them to the test details.
func (t *T) Logf(format string, values ...any) {
	t.appendDetails(fmt.Sprintf(format, values...))
}

func (t *T) appendDetails(line string) {
	if !strings.HasSuffix(line, "\n") {
		line += "\n"
	}
	t.log.Info(strings.TrimSuffix(line, "\n"))
	t.mu.Lock()
	defer t.mu.Unlock()
	t.result.Details += line
}

// Error is like testing.T.Error.
func (t *T) Error(values ...any) {
	t.Log(values...)
	t.Fail()
}

// Errorf is like testing.T.Errorf.
func (t *T) Errorf(format string, values ...any) {
	t.Logf(format, values...)
	t.Fail()
}

// Fatal is like testing.T.Fatal. It fails the test immediately.
func (t *T) Fatal(values ...any) {
	t.Log(values...)
	t.FailNow()
}

// Fatalf is like testing.T.Fatalf. It fails the test immediately.
func (t *T) Fatalf(format string, values ...any) {
	t.Logf(format, values...)
	t.FailNow()
}

// Fail marks the test as failed.
func (t *T) Fail() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.result.Pass = false
}

// FailNow marks the test as failed and stops its execution. As with
// testing.T.FailNow, it must be called from the goroutine running the test.
func (t *T) FailNow() {
	t.Fail()
	runtime.Goexit()
}

// Failed reports whether the test has failed.
func (t *T) Failed() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return !t.result.Pass
}

// Result returns the current test result. A failed result always has details.
func (t *T) Result() types.TestResult {
	t.mu.Lock()
	defer t.mu.Unlock()
	return finalize(t.result)
}

func (t *T) failPanic(v any, stack []byte) {
	msg := panicMessage(v)
	t.log.Error("Test panicked", "panic", msg)
	t.mu.Lock()
	defer t.mu.Unlock()
	t.result.Pass = false
	t.result.Details += fmt.Sprintf("panic: %s\n\n%s", msg, stack)
}
