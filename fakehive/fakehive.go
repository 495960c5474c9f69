// Package fakehive is an in-memory stand-in for the hive simulation API. It records
// suites, tests and client containers so that simulator code can be tested without
// docker.
package fakehive

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sort"
	"strconv"
	"sync"

	"github.com/gorilla/mux"

	"github.com/ethereum-optimism/infra/op-hivesim/types"
)

// Hooks customizes how the fake answers client requests. Nil hooks use defaults.
type Hooks struct {
	// StartContainer returns the container ID and IP of a new client.
	StartContainer func(cfg types.NodeConfig, files map[string][]byte) (string, string, error)
	// ExecContainer answers exec requests.
	ExecContainer func(container string, cmd []string) (*types.ExecInfo, error)
	// NetworkIP answers container IP queries.
	NetworkIP func(network, container string) (string, error)
}

// Suite is a recorded test suite.
type Suite struct {
	ID          types.SuiteID
	Name        string
	Description string
	Ended       bool
	Tests       map[types.TestID]*Test
	// SharedClients are the suite-level clients, in start order.
	SharedClients []*Node
}

// Test is a recorded test case.
type Test struct {
	ID          types.TestID
	Name        string
	Description string
	Result      *types.TestResult
	Clients     []*Node
}

// Node is a recorded client container.
type Node struct {
	ID       string
	IP       string
	Config   types.NodeConfig
	Files    map[string][]byte
	Paused   bool
	Stopped  bool
	Networks []string
}

// Server is the fake simulation API.
type Server struct {
	clients []*types.ClientDefinition
	hooks   Hooks
	router  *mux.Router

	mu        sync.Mutex
	nextSuite types.SuiteID
	nextTest  types.TestID
	nextNode  int
	suites    map[types.SuiteID]*Suite
	networks  map[string]map[string]bool // network -> containers
	failNext  int
	failCode  int
	requests  int
}

// New creates a fake serving the given client definitions.
func New(clients []*types.ClientDefinition, hooks Hooks) *Server {
	s := &Server{
		clients:  clients,
		hooks:    hooks,
		suites:   make(map[types.SuiteID]*Suite),
		networks: map[string]map[string]bool{"bridge": {}},
	}
	r := mux.NewRouter()
	r.Use(s.failureMiddleware)
	r.HandleFunc("/clients", s.handleClients).Methods(http.MethodGet)
	r.HandleFunc("/testsuite", s.startSuite).Methods(http.MethodPost)
	r.HandleFunc("/testsuite/{suite}", s.endSuite).Methods(http.MethodDelete)
	r.HandleFunc("/testsuite/{suite}/node", s.startSharedNode).Methods(http.MethodPost)
	r.HandleFunc("/testsuite/{suite}/test", s.startTest).Methods(http.MethodPost)
	r.HandleFunc("/testsuite/{suite}/test/{test}", s.endTest).Methods(http.MethodPost)
	r.HandleFunc("/testsuite/{suite}/test/{test}/node", s.startNode).Methods(http.MethodPost)
	r.HandleFunc("/testsuite/{suite}/test/{test}/node/{node}", s.stopNode).Methods(http.MethodDelete)
	r.HandleFunc("/testsuite/{suite}/test/{test}/node/{node}/pause", s.pauseNode).Methods(http.MethodPost, http.MethodDelete)
	r.HandleFunc("/testsuite/{suite}/test/{test}/node/{node}/exec", s.execNode).Methods(http.MethodPost)
	r.HandleFunc("/testsuite/{suite}/network/{network}", s.network).Methods(http.MethodPost, http.MethodDelete)
	r.HandleFunc("/testsuite/{suite}/network/{network}/{container}", s.networkContainer).Methods(http.MethodPost, http.MethodDelete, http.MethodGet)
	s.router = r
	return s
}

// Start serves the fake on a local httptest server. Close the returned server when done.
func (s *Server) Start() *httptest.Server {
	return httptest.NewServer(s)
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// FailNext makes the next n requests fail with the given status code.
func (s *Server) FailNext(n int, status int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failNext, s.failCode = n, status
}

// Requests returns the number of requests received so far.
func (s *Server) Requests() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.requests
}

// Suites returns the recorded suites ordered by ID.
func (s *Server) Suites() []*Suite {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*Suite, 0, len(s.suites))
	for _, suite := range s.suites {
		out = append(out, suite)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// TestList returns the tests of a suite ordered by ID.
func (suite *Suite) TestList() []*Test {
	out := make([]*Test, 0, len(suite.Tests))
	for _, t := range suite.Tests {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (s *Server) failureMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		s.requests++
		fail := s.failNext > 0
		code := s.failCode
		if fail {
			s.failNext--
		}
		s.mu.Unlock()
		if fail {
			http.Error(w, "injected failure", code)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleClients(w http.ResponseWriter, r *http.Request) {
	serveJSON(w, s.clients)
}

func (s *Server) startSuite(w http.ResponseWriter, r *http.Request) {
	var req types.TestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		serveError(w, http.StatusBadRequest, "invalid suite request: %v", err)
		return
	}
	s.mu.Lock()
	id := s.nextSuite
	s.nextSuite++
	s.suites[id] = &Suite{ID: id, Name: req.Name, Description: req.Description, Tests: make(map[types.TestID]*Test)}
	s.mu.Unlock()
	serveJSON(w, id)
}

func (s *Server) endSuite(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	suite, ok := s.suiteLocked(w, r)
	if !ok {
		return
	}
	if suite.Ended {
		serveError(w, http.StatusBadRequest, "suite %d already ended", suite.ID)
		return
	}
	suite.Ended = true
}

func (s *Server) startTest(w http.ResponseWriter, r *http.Request) {
	var req types.TestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		serveError(w, http.StatusBadRequest, "invalid test request: %v", err)
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	suite, ok := s.suiteLocked(w, r)
	if !ok {
		return
	}
	if suite.Ended {
		serveError(w, http.StatusBadRequest, "suite %d already ended", suite.ID)
		return
	}
	id := s.nextTest
	s.nextTest++
	suite.Tests[id] = &Test{ID: id, Name: req.Name, Description: req.Description}
	serveJSON(w, id)
}

func (s *Server) endTest(w http.ResponseWriter, r *http.Request) {
	var res types.TestResult
	if err := json.NewDecoder(r.Body).Decode(&res); err != nil {
		serveError(w, http.StatusBadRequest, "invalid test result: %v", err)
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	test, ok := s.testLocked(w, r)
	if !ok {
		return
	}
	if test.Result != nil {
		serveError(w, http.StatusBadRequest, "test %d already ended", test.ID)
		return
	}
	test.Result = &res
}

func (s *Server) startNode(w http.ResponseWriter, r *http.Request) {
	cfg, files, ok := readNodeForm(w, r)
	if !ok {
		return
	}
	if cfg.SharedClientID == "" && !s.knownClient(cfg.Client) {
		serveError(w, http.StatusBadRequest, "unknown client type %q", cfg.Client)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	test, ok := s.testLocked(w, r)
	if !ok {
		return
	}
	if cfg.SharedClientID != "" {
		suite, _ := s.suiteLocked(w, r)
		for _, node := range suite.SharedClients {
			if node.ID == cfg.SharedClientID {
				test.Clients = append(test.Clients, node)
				serveJSON(w, &types.StartNodeResponse{ID: node.ID, IP: node.IP})
				return
			}
		}
		serveError(w, http.StatusNotFound, "no such shared client %s", cfg.SharedClientID)
		return
	}
	node, err := s.launchLocked(cfg, files)
	if err != nil {
		serveError(w, http.StatusInternalServerError, "%v", err)
		return
	}
	test.Clients = append(test.Clients, node)
	serveJSON(w, &types.StartNodeResponse{ID: node.ID, IP: node.IP})
}

func (s *Server) startSharedNode(w http.ResponseWriter, r *http.Request) {
	cfg, files, ok := readNodeForm(w, r)
	if !ok {
		return
	}
	if !s.knownClient(cfg.Client) {
		serveError(w, http.StatusBadRequest, "unknown client type %q", cfg.Client)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	suite, ok := s.suiteLocked(w, r)
	if !ok {
		return
	}
	if suite.Ended {
		serveError(w, http.StatusBadRequest, "suite %d already ended", suite.ID)
		return
	}
	node, err := s.launchLocked(cfg, files)
	if err != nil {
		serveError(w, http.StatusInternalServerError, "%v", err)
		return
	}
	suite.SharedClients = append(suite.SharedClients, node)
	serveJSON(w, &types.StartNodeResponse{ID: node.ID, IP: node.IP})
}

func (s *Server) launchLocked(cfg types.NodeConfig, files map[string][]byte) (*Node, error) {
	s.nextNode++
	id, ip := fmt.Sprintf("%s-%d", cfg.Client, s.nextNode), fmt.Sprintf("172.17.0.%d", 1+s.nextNode)
	if s.hooks.StartContainer != nil {
		var err error
		if id, ip, err = s.hooks.StartContainer(cfg, files); err != nil {
			return nil, err
		}
	}
	return &Node{ID: id, IP: ip, Config: cfg, Files: files, Networks: cfg.Networks}, nil
}

func readNodeForm(w http.ResponseWriter, r *http.Request) (types.NodeConfig, map[string][]byte, bool) {
	var cfg types.NodeConfig
	if err := r.ParseMultipartForm(1 << 20); err != nil {
		serveError(w, http.StatusBadRequest, "invalid multipart form: %v", err)
		return cfg, nil, false
	}
	if err := json.Unmarshal([]byte(r.FormValue("config")), &cfg); err != nil {
		serveError(w, http.StatusBadRequest, "invalid 'config' parameter: %v", err)
		return cfg, nil, false
	}
	files := make(map[string][]byte)
	for name, headers := range r.MultipartForm.File {
		f, err := headers[0].Open()
		if err != nil {
			serveError(w, http.StatusBadRequest, "can't open file %s: %v", name, err)
			return cfg, nil, false
		}
		data, err := io.ReadAll(f)
		f.Close()
		if err != nil {
			serveError(w, http.StatusBadRequest, "can't read file %s: %v", name, err)
			return cfg, nil, false
		}
		files[name] = data
	}
	return cfg, files, true
}

func (s *Server) stopNode(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if node, ok := s.nodeLocked(w, r); ok {
		node.Stopped = true
	}
}

func (s *Server) pauseNode(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if node, ok := s.nodeLocked(w, r); ok {
		node.Paused = r.Method == http.MethodPost
	}
}

func (s *Server) execNode(w http.ResponseWriter, r *http.Request) {
	var req types.ExecRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		serveError(w, http.StatusBadRequest, "invalid exec request: %v", err)
		return
	}
	s.mu.Lock()
	node, ok := s.nodeLocked(w, r)
	s.mu.Unlock()
	if !ok {
		return
	}
	info := &types.ExecInfo{}
	if s.hooks.ExecContainer != nil {
		var err error
		if info, err = s.hooks.ExecContainer(node.ID, req.Command); err != nil {
			serveError(w, http.StatusInternalServerError, "%v", err)
			return
		}
	}
	serveJSON(w, info)
}

func (s *Server) network(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.suiteLocked(w, r); !ok {
		return
	}
	name := mux.Vars(r)["network"]
	switch r.Method {
	case http.MethodPost:
		if _, exists := s.networks[name]; exists {
			serveError(w, http.StatusBadRequest, "network %s already exists", name)
			return
		}
		s.networks[name] = make(map[string]bool)
	case http.MethodDelete:
		if _, exists := s.networks[name]; !exists {
			serveError(w, http.StatusNotFound, "no such network %s", name)
			return
		}
		delete(s.networks, name)
	}
}

func (s *Server) networkContainer(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	network, container := vars["network"], vars["container"]

	s.mu.Lock()
	if _, ok := s.suiteLocked(w, r); !ok {
		s.mu.Unlock()
		return
	}
	members, exists := s.networks[network]
	if !exists {
		s.mu.Unlock()
		serveError(w, http.StatusNotFound, "no such network %s", network)
		return
	}
	switch r.Method {
	case http.MethodPost:
		members[container] = true
	case http.MethodDelete:
		delete(members, container)
	}
	s.mu.Unlock()

	if r.Method == http.MethodGet {
		ip := "192.168.0.2"
		if s.hooks.NetworkIP != nil {
			var err error
			if ip, err = s.hooks.NetworkIP(network, container); err != nil {
				serveError(w, http.StatusInternalServerError, "%v", err)
				return
			}
		}
		serveJSON(w, ip)
	}
}

// NetworkMembers returns the containers connected to a network.
func (s *Server) NetworkMembers(network string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []string
	for c := range s.networks[network] {
		out = append(out, c)
	}
	sort.Strings(out)
	return out
}

func (s *Server) knownClient(name string) bool {
	for _, c := range s.clients {
		if c.Name == name {
			return true
		}
	}
	return false
}

func (s *Server) suiteLocked(w http.ResponseWriter, r *http.Request) (*Suite, bool) {
	id, err := strconv.ParseUint(mux.Vars(r)["suite"], 10, 32)
	if err != nil {
		serveError(w, http.StatusBadRequest, "invalid suite ID")
		return nil, false
	}
	suite, ok := s.suites[types.SuiteID(id)]
	if !ok {
		serveError(w, http.StatusNotFound, "no such suite %d", id)
		return nil, false
	}
	return suite, true
}

func (s *Server) testLocked(w http.ResponseWriter, r *http.Request) (*Test, bool) {
	suite, ok := s.suiteLocked(w, r)
	if !ok {
		return nil, false
	}
	id, err := strconv.ParseUint(mux.Vars(r)["test"], 10, 32)
	if err != nil {
		serveError(w, http.StatusBadRequest, "invalid test ID")
		return nil, false
	}
	test, ok := suite.Tests[types.TestID(id)]
	if !ok {
		serveError(w, http.StatusNotFound, "no such test %d", id)
		return nil, false
	}
	return test, true
}

func (s *Server) nodeLocked(w http.ResponseWriter, r *http.Request) (*Node, bool) {
	test, ok := s.testLocked(w, r)
	if !ok {
		return nil, false
	}
	id := mux.Vars(r)["node"]
	for _, n := range test.Clients {
		if n.ID == id {
			return n, true
		}
	}
	serveError(w, http.StatusNotFound, "no such node %s", id)
	return nil, false
}

func serveJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v) //nolint:errcheck
}

func serveError(w http.ResponseWriter, status int, format string, args ...any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(&types.APIError{Error: fmt.Sprintf(format, args...)}) //nolint:errcheck
}
