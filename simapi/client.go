// Package simapi is a thin client of the hive simulation HTTP API: suite and test
// bookkeeping, client containers and networks.
package simapi

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/log"
	"github.com/pkg/errors"

	"github.com/ethereum-optimism/infra/op-hivesim/metrics"
	"github.com/ethereum-optimism/infra/op-hivesim/types"
)

const (
	DefaultRetries    = 3
	DefaultRetryDelay = 250 * time.Millisecond
)

// Client wraps the simulation API. It holds no mutable state and is safe for
// concurrent use.
type Client struct {
	url        string
	http       *http.Client
	log        log.Logger
	retries    uint64
	retryDelay time.Duration
}

type Option func(*Client)

// WithHTTPClient sets the HTTP client used for API requests.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

func WithLogger(l log.Logger) Option {
	return func(c *Client) { c.log = l }
}

// WithRetry configures how often transient failures are retried and the initial
// backoff delay. Zero retries disables retrying.
func WithRetry(retries uint64, delay time.Duration) Option {
	return func(c *Client) {
		c.retries = retries
		if delay > 0 {
			c.retryDelay = delay
		}
	}
}

// New creates a client of the API at the given base URL.
func New(url string, opts ...Option) *Client {
	c := &Client{
		url:        strings.TrimSuffix(url, "/"),
		http:       http.DefaultClient,
		log:        log.Root(),
		retries:    DefaultRetries,
		retryDelay: DefaultRetryDelay,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// URL returns the API base URL.
func (c *Client) URL() string {
	return c.url
}

// StartSuite signals the start of a test suite.
func (c *Client) StartSuite(ctx context.Context, req types.TestRequest) (types.SuiteID, error) {
	var resp types.SuiteID
	r, err := c.newRequest(http.MethodPost, c.url+"/testsuite", &req)
	if err != nil {
		return 0, err
	}
	err = c.do(ctx, "start_suite", r, &resp)
	return resp, err
}

// EndSuite signals the end of a test suite.
func (c *Client) EndSuite(ctx context.Context, suite types.SuiteID) error {
	url := fmt.Sprintf("%s/testsuite/%d", c.url, suite)
	return c.do(ctx, "end_suite", c.newRawRequest(http.MethodDelete, url, "", nil), nil)
}

// StartTest starts a new test case, returning the test ID.
func (c *Client) StartTest(ctx context.Context, suite types.SuiteID, req types.TestRequest) (types.TestID, error) {
	var resp types.TestID
	url := fmt.Sprintf("%s/testsuite/%d/test", c.url, suite)
	r, err := c.newRequest(http.MethodPost, url, &req)
	if err != nil {
		return 0, err
	}
	err = c.do(ctx, "start_test", r, &resp)
	return resp, err
}

// EndTest reports the result of a test case.
func (c *Client) EndTest(ctx context.Context, suite types.SuiteID, test types.TestID, result types.TestResult) error {
	url := fmt.Sprintf("%s/testsuite/%d/test/%d", c.url, suite, test)
	r, err := c.newRequest(http.MethodPost, url, &result)
	if err != nil {
		return err
	}
	return c.do(ctx, "end_test", r, nil)
}

// StartClient starts a client container of the given type and returns its container ID
// and IP address. The call returns once the container is running.
func (c *Client) StartClient(ctx context.Context, suite types.SuiteID, test types.TestID, clientType string, options ...StartOption) (string, net.IP, error) {
	url := fmt.Sprintf("%s/testsuite/%d/test/%d/node", c.url, suite, test)
	return c.startNode(ctx, "start_client", url, clientType, options)
}

// StartSharedClient starts a client container which belongs to the suite instead of a
// single test. It lives until the suite ends.
func (c *Client) StartSharedClient(ctx context.Context, suite types.SuiteID, clientType string, options ...StartOption) (string, net.IP, error) {
	url := fmt.Sprintf("%s/testsuite/%d/node", c.url, suite)
	return c.startNode(ctx, "start_shared_client", url, clientType, options)
}

// RegisterSharedClient attaches a running shared client to a test, so that hive
// lists it among the clients of the test. No container is started.
func (c *Client) RegisterSharedClient(ctx context.Context, suite types.SuiteID, test types.TestID, clientType, container string) error {
	setup := newClientSetup(clientType)
	setup.config.SharedClientID = container
	body, contentType, err := setup.encode()
	if err != nil {
		return errors.Wrap(err, "encoding client setup")
	}
	url := fmt.Sprintf("%s/testsuite/%d/test/%d/node", c.url, suite, test)
	var resp types.StartNodeResponse
	return c.do(ctx, "register_shared_client", c.newRawRequest(http.MethodPost, url, contentType, body), &resp)
}

func (c *Client) startNode(ctx context.Context, op, url, clientType string, options []StartOption) (string, net.IP, error) {
	setup := newClientSetup(clientType)
	for _, opt := range options {
		if opt != nil {
			opt.apply(setup)
		}
	}
	body, contentType, err := setup.encode()
	if err != nil {
		return "", nil, errors.Wrap(err, "encoding client setup")
	}

	var resp types.StartNodeResponse
	if err := c.do(ctx, op, c.newRawRequest(http.MethodPost, url, contentType, body), &resp); err != nil {
		return "", nil, err
	}
	ip := net.ParseIP(resp.IP)
	if ip == nil {
		return resp.ID, nil, fmt.Errorf("no IP address returned for container %q", resp.ID)
	}
	metrics.RecordClientStarted(clientType)
	return resp.ID, ip, nil
}

// StopClient signals that the client container is no longer required.
func (c *Client) StopClient(ctx context.Context, suite types.SuiteID, test types.TestID, container string) error {
	url := fmt.Sprintf("%s/testsuite/%d/test/%d/node/%s", c.url, suite, test, container)
	return c.do(ctx, "stop_client", c.newRawRequest(http.MethodDelete, url, "", nil), nil)
}

// PauseClient pauses the client container.
func (c *Client) PauseClient(ctx context.Context, suite types.SuiteID, test types.TestID, container string) error {
	url := fmt.Sprintf("%s/testsuite/%d/test/%d/node/%s/pause", c.url, suite, test, container)
	return c.do(ctx, "pause_client", c.newRawRequest(http.MethodPost, url, "", nil), nil)
}

// UnpauseClient resumes a paused client container.
func (c *Client) UnpauseClient(ctx context.Context, suite types.SuiteID, test types.TestID, container string) error {
	url := fmt.Sprintf("%s/testsuite/%d/test/%d/node/%s/pause", c.url, suite, test, container)
	return c.do(ctx, "unpause_client", c.newRawRequest(http.MethodDelete, url, "", nil), nil)
}

// ClientExec runs a command in a running client container.
func (c *Client) ClientExec(ctx context.Context, suite types.SuiteID, test types.TestID, container string, command []string) (*types.ExecInfo, error) {
	url := fmt.Sprintf("%s/testsuite/%d/test/%d/node/%s/exec", c.url, suite, test, container)
	r, err := c.newRequest(http.MethodPost, url, &types.ExecRequest{Command: command})
	if err != nil {
		return nil, err
	}
	var resp types.ExecInfo
	if err := c.do(ctx, "client_exec", r, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// ClientTypes returns all client types available to this simulator run. This depends on
// both the available client set and the command line filters of hive.
func (c *Client) ClientTypes(ctx context.Context) ([]*types.ClientDefinition, error) {
	var resp []*types.ClientDefinition
	err := c.do(ctx, "client_types", c.newRawRequest(http.MethodGet, c.url+"/clients", "", nil), &resp)
	return resp, err
}

// CreateNetwork creates a docker network by the given name.
func (c *Client) CreateNetwork(ctx context.Context, suite types.SuiteID, network string) error {
	url := fmt.Sprintf("%s/testsuite/%d/network/%s", c.url, suite, network)
	return c.do(ctx, "create_network", c.newRawRequest(http.MethodPost, url, "", nil), nil)
}

// RemoveNetwork removes the given network.
func (c *Client) RemoveNetwork(ctx context.Context, suite types.SuiteID, network string) error {
	url := fmt.Sprintf("%s/testsuite/%d/network/%s", c.url, suite, network)
	return c.do(ctx, "remove_network", c.newRawRequest(http.MethodDelete, url, "", nil), nil)
}

// ConnectContainer connects the container to the network.
func (c *Client) ConnectContainer(ctx context.Context, suite types.SuiteID, network, container string) error {
	url := fmt.Sprintf("%s/testsuite/%d/network/%s/%s", c.url, suite, network, container)
	return c.do(ctx, "connect_container", c.newRawRequest(http.MethodPost, url, "", nil), nil)
}

// DisconnectContainer disconnects the container from the network.
func (c *Client) DisconnectContainer(ctx context.Context, suite types.SuiteID, network, container string) error {
	url := fmt.Sprintf("%s/testsuite/%d/network/%s/%s", c.url, suite, network, container)
	return c.do(ctx, "disconnect_container", c.newRawRequest(http.MethodDelete, url, "", nil), nil)
}

// ContainerNetworkIP returns the IP address of a container on the given network. If the
// container ID is "simulation", it returns the IP address of the simulator container.
func (c *Client) ContainerNetworkIP(ctx context.Context, suite types.SuiteID, network, container string) (string, error) {
	var (
		url  = fmt.Sprintf("%s/testsuite/%d/network/%s/%s", c.url, suite, network, container)
		resp string
	)
	err := c.do(ctx, "container_ip", c.newRawRequest(http.MethodGet, url, "", nil), &resp)
	return resp, err
}
