package hivesim

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/node"
	"github.com/ethereum/go-ethereum/p2p/enode"
	"github.com/ethereum/go-ethereum/rpc"

	"github.com/ethereum-optimism/infra/op-hivesim/types"
)

const (
	defaultP2PPort = 30303
	bridgeNetwork  = "bridge"
)

// EngineAPISecret is the JWT secret hive configures on clients for the engine API.
var EngineAPISecret = [32]byte([]byte("secretsecretsecretsecretsecretse"))

var (
	errSharedClient = errors.New("shared clients are owned by the suite and can't be stopped by a test")
	errClientClosed = errors.New("client is closed")
)

// Client represents a running client container.
type Client struct {
	Type      string
	Container string
	IP        net.IP

	rpc    *rpc.Client
	engine *engineConn
	sim    *Simulation
	test   *T
	shared bool
}

// engineConn is dialed on first use and shared by all handles of a container.
type engineConn struct {
	mu     sync.Mutex
	client *rpc.Client
	closed bool
}

func newClient(sim *Simulation, t *T, clientType, container string, ip net.IP, rpcClient *rpc.Client) *Client {
	return &Client{
		Type:      clientType,
		Container: container,
		IP:        ip,
		rpc:       rpcClient,
		engine:    new(engineConn),
		sim:       sim,
		test:      t,
	}
}

// RPC returns an RPC client connected to the client's RPC server.
func (c *Client) RPC() *rpc.Client {
	return c.rpc
}

// EngineAPI returns an RPC client connected to the engine API server of an
// execution-layer client. Requests are authenticated with EngineAPISecret.
func (c *Client) EngineAPI() (*rpc.Client, error) {
	e := c.engine
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return nil, errClientClosed
	}
	if e.client == nil {
		url := "http://" + net.JoinHostPort(c.IP.String(), strconv.Itoa(c.sim.cfg.EnginePort))
		client, err := rpc.DialOptions(c.context(), url, rpc.WithHTTPAuth(node.NewJWTAuth(EngineAPISecret)))
		if err != nil {
			return nil, err
		}
		e.client = client
	}
	return e.client, nil
}

func (c *Client) context() context.Context {
	if c.test != nil {
		return c.test.ctx
	}
	return context.Background()
}

// T returns the test which started the client, or the test which retrieved it when
// the client is shared.
func (c *Client) T() *T {
	return c.test
}

// Shared reports whether the client belongs to the suite.
func (c *Client) Shared() bool {
	return c.shared
}

// Exec runs a script in the client container.
func (c *Client) Exec(command ...string) (*types.ExecInfo, error) {
	t := c.test
	return t.Sim.api.ClientExec(t.ctx, t.SuiteID, t.TestID, c.Container, command)
}

// Pause pauses the client container.
func (c *Client) Pause() error {
	t := c.test
	return t.Sim.api.PauseClient(t.ctx, t.SuiteID, t.TestID, c.Container)
}

// Unpause resumes the paused client container.
func (c *Client) Unpause() error {
	t := c.test
	return t.Sim.api.UnpauseClient(t.ctx, t.SuiteID, t.TestID, c.Container)
}

// Stop stops the client container and closes its RPC clients. Shared clients can't
// be stopped.
func (c *Client) Stop() error {
	if c.shared {
		return errSharedClient
	}
	t := c.test
	c.closeRPC()
	return t.Sim.api.StopClient(t.ctx, t.SuiteID, t.TestID, c.Container)
}

func (c *Client) closeRPC() {
	if c.rpc != nil {
		c.rpc.Close()
	}
	e := c.engine
	e.mu.Lock()
	defer e.mu.Unlock()
	e.closed = true
	if e.client != nil {
		e.client.Close()
	}
}

// EnodeURL returns the peer-to-peer endpoint of the client on the default network.
func (c *Client) EnodeURL() (string, error) {
	return c.EnodeURLNetwork(bridgeNetwork)
}

// EnodeURLNetwork returns the peer-to-peer endpoint of the client on a specific
// network. The node key is read from the container's enode.sh script, the IP is the
// container address on the network.
func (c *Client) EnodeURLNetwork(network string) (string, error) {
	info, err := c.Exec("enode.sh")
	if err != nil {
		return "", err
	}
	if info.ExitCode != 0 {
		return "", fmt.Errorf("unexpected exit code %d for enode.sh", info.ExitCode)
	}
	n, err := enode.ParseV4(strings.TrimSpace(info.Stdout))
	if err != nil {
		return "", fmt.Errorf("invalid enode URL from %s: %w", c.Container, err)
	}
	tcp, udp := n.TCP(), n.UDP()
	if tcp == 0 {
		tcp = defaultP2PPort
	}
	if udp == 0 {
		udp = defaultP2PPort
	}

	t := c.test
	ipStr, err := t.Sim.api.ContainerNetworkIP(t.ctx, t.SuiteID, network, c.Container)
	if err != nil {
		return "", err
	}
	ip := net.ParseIP(ipStr)
	if ip == nil {
		return "", errors.New("invalid container IP " + ipStr)
	}
	return enode.NewV4(n.Pubkey(), ip, tcp, udp).URLv4(), nil
}
