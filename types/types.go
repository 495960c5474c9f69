package types

import (
	"slices"
	"strconv"
)

// SuiteID identifies a test suite registered with the simulation API.
type SuiteID uint32

func (id SuiteID) String() string {
	return strconv.FormatUint(uint64(id), 10)
}

// TestID identifies a test case registered with the simulation API.
type TestID uint32

func (id TestID) String() string {
	return strconv.FormatUint(uint64(id), 10)
}

// TestResult describes the outcome of a test.
type TestResult struct {
	Pass    bool   `json:"pass"`
	Details string `json:"details"`
}

// TestRequest is the body sent when starting a suite or a test.
type TestRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

// NodeConfig contains the launch parameters for a client container.
type NodeConfig struct {
	Client      string            `json:"client"`
	Networks    []string          `json:"networks,omitempty"`
	Environment map[string]string `json:"environment"`
	// SharedClientID is set when an already running suite-level client is attached
	// to a test. It holds the container ID of that client.
	SharedClientID string `json:"sharedClientId,omitempty"`
}

// StartNodeResponse is returned by the client startup endpoint.
type StartNodeResponse struct {
	ID string `json:"id"` // Container ID.
	IP string `json:"ip"` // IP address in bridge network
}

// ClientMetadata is part of the ClientDefinition and lists metadata.
type ClientMetadata struct {
	Roles []string `json:"roles"`
}

// ClientDefinition is served by the /clients API endpoint to list the available clients.
type ClientDefinition struct {
	Name    string         `json:"name"`
	Version string         `json:"version"`
	Meta    ClientMetadata `json:"meta"`
}

// HasRole reports whether the client has the given role.
func (m *ClientDefinition) HasRole(role string) bool {
	return slices.Contains(m.Meta.Roles, role)
}

// ExecRequest is the body of a command execution request.
type ExecRequest struct {
	Command []string `json:"command"`
}

// ExecInfo is the result of running a command in a client container.
type ExecInfo struct {
	Stdout   string `json:"stdout"`
	Stderr   string `json:"stderr"`
	ExitCode int    `json:"exitCode"`
}

// APIError is the error object returned by the simulation API.
type APIError struct {
	Error string `json:"error"`
}
