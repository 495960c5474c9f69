package hivesim

import (
	"context"
	"strings"

	"github.com/ethereum-optimism/infra/op-hivesim/simapi"
	"github.com/ethereum-optimism/infra/op-hivesim/types"
)

// TestCase is one of TestSpec, NClientTestSpec or ClientTestSpec.
type TestCase interface {
	Validate() error
	testCase()
}

var (
	_ TestCase = TestSpec{}
	_ TestCase = NClientTestSpec{}
	_ TestCase = ClientTestSpec{}
)

// TestSpec is a test case against zero or one pre-started client.
type TestSpec struct {
	Name        string
	Description string

	// If AlwaysRun is true, the test runs even if Name does not match the test
	// pattern. This is useful for tests that launch a client instance and then
	// perform further tests against it.
	AlwaysRun bool

	// Run is invoked with Client, which may be nil.
	Run    func(t *T, c *Client)
	Client *Client
}

func (TestSpec) testCase() {}

func (spec TestSpec) Validate() error {
	if spec.Name == "" {
		return NewConfigError("test has no name")
	}
	if spec.Run == nil {
		return NewConfigError("test %q has no Run function", spec.Name)
	}
	return nil
}

// NClientTestSpec is a test case against a fixed list of clients which are started,
// in order, before Run is invoked.
type NClientTestSpec struct {
	Name        string
	Description string
	AlwaysRun   bool

	// Run receives the started clients in the order of Clients, and TestData.
	Run func(t *T, clients []*Client, data any)

	// Environments holds per-client environment variables, matched to Clients by
	// index. It may be shorter than Clients; missing entries are empty.
	Environments []types.Params
	TestData     any
	Clients      []types.ClientDefinition
}

func (NClientTestSpec) testCase() {}

func (spec NClientTestSpec) Validate() error {
	if spec.Name == "" {
		return NewConfigError("test has no name")
	}
	if spec.Run == nil {
		return NewConfigError("test %q has no Run function", spec.Name)
	}
	if len(spec.Environments) > len(spec.Clients) {
		return NewConfigError("test %q has %d environments for %d clients", spec.Name, len(spec.Environments), len(spec.Clients))
	}
	for i, c := range spec.Clients {
		if c.Name == "" {
			return NewConfigError("test %q: client %d has no name", spec.Name, i)
		}
	}
	return nil
}

// provision starts the clients of the test. A client that cannot be started fails
// the test immediately.
func (spec NClientTestSpec) provision(t *T) []*Client {
	clients := make([]*Client, 0, len(spec.Clients))
	for i, def := range spec.Clients {
		var env types.Params
		if i < len(spec.Environments) {
			env = spec.Environments[i]
		}
		clients = append(clients, t.StartClient(def.Name, simapi.WithEnvironment(env)))
	}
	return clients
}

// ClientTestSpec is a test against a single client. When used as a test case in a
// suite, it runs once for every available client type with the given Role, or for all
// client types if Role is empty.
//
// If the Name of the test contains "CLIENT", it is replaced by the client type.
type ClientTestSpec struct {
	Name        string
	Description string
	AlwaysRun   bool

	// Role filters client types.
	Role string

	// Parameters and Files are launch options of the client.
	Parameters types.Params
	Files      map[string]string

	Run func(t *T, c *Client)
}

func (ClientTestSpec) testCase() {}

func (spec ClientTestSpec) Validate() error {
	if spec.Run == nil {
		return NewConfigError("test %q has no Run function", spec.Name)
	}
	return nil
}

func (spec ClientTestSpec) startOptions() simapi.StartOption {
	return simapi.Bundle(simapi.WithEnvironment(spec.Parameters), simapi.WithStaticFiles(spec.Files))
}

// ClientTestName ensures that name contains the client type.
func ClientTestName(name, clientType string) string {
	if name == "" {
		return clientType
	}
	if strings.Contains(name, "CLIENT") {
		return strings.ReplaceAll(name, "CLIENT", clientType)
	}
	return name + " (" + clientType + ")"
}

// validate checks a test case of any variant. Only the value forms of the variants
// can be dispatched, so pointers and nil are rejected here.
func validate(tc TestCase) error {
	switch tc.(type) {
	case TestSpec, NClientTestSpec, ClientTestSpec:
		return tc.Validate()
	case nil:
		return NewConfigError("nil test case")
	default:
		return NewConfigError("unsupported test case type %T", tc)
	}
}

type testInfo struct {
	name      string
	desc      string
	alwaysRun bool
}

// dispatch runs a test case of any variant within the suite.
func (sim *Simulation) dispatch(ctx context.Context, suiteID types.SuiteID, suite Suite, tc TestCase) error {
	switch tc := tc.(type) {
	case TestSpec:
		info := testInfo{name: tc.Name, desc: tc.Description, alwaysRun: tc.AlwaysRun}
		return sim.runTest(ctx, suiteID, suite, info, func(t *T) {
			tc.Run(t, tc.Client)
		})
	case NClientTestSpec:
		info := testInfo{name: tc.Name, desc: tc.Description, alwaysRun: tc.AlwaysRun}
		return sim.runTest(ctx, suiteID, suite, info, func(t *T) {
			clients := tc.provision(t)
			tc.Run(t, clients, tc.TestData)
		})
	case ClientTestSpec:
		return sim.runClientTests(ctx, suiteID, suite, tc)
	default:
		return NewConfigError("unsupported test case type %T", tc)
	}
}

func (sim *Simulation) runClientTests(ctx context.Context, suiteID types.SuiteID, suite Suite, spec ClientTestSpec) error {
	defs, err := sim.api.ClientTypes(ctx)
	if err != nil {
		return NewRuntimeError(err)
	}
	for _, def := range defs {
		if spec.Role != "" && !def.HasRole(spec.Role) {
			continue
		}
		if err := sim.runClientTest(ctx, suiteID, suite, def.Name, spec); err != nil {
			return err
		}
	}
	return nil
}

func (sim *Simulation) runClientTest(ctx context.Context, suiteID types.SuiteID, suite Suite, clientType string, spec ClientTestSpec) error {
	info := testInfo{
		name:      ClientTestName(spec.Name, clientType),
		desc:      spec.Description,
		alwaysRun: spec.AlwaysRun,
	}
	return sim.runTest(ctx, suiteID, suite, info, func(t *T) {
		client := t.StartClient(clientType, spec.startOptions())
		spec.Run(t, client)
	})
}
