// Package testutil provides test utilities including a mock Jira agile API server.
package testutil

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
)

// MockJiraServer is a test server that simulates the Jira agile REST API.
type MockJiraServer struct {
	Server *httptest.Server

	mu        sync.RWMutex
	responses map[string]any       // path -> response body
	errors    map[string]mockError // path -> error to return
	gates     map[string]chan struct{}
	calls     []Call // recorded calls for assertions
}

type mockError struct {
	status  int
	message string
}

// Call records a request for test assertions.
type Call struct {
	Method        string
	Path          string
	Query         url.Values
	Authorization string
}

// NewMockJiraServer creates a new mock server ready for use.
func NewMockJiraServer() *MockJiraServer {
	m := &MockJiraServer{
		responses: make(map[string]any),
		errors:    make(map[string]mockError),
		gates:     make(map[string]chan struct{}),
	}

	m.Server = httptest.NewServer(http.HandlerFunc(m.handleRequest))
	return m
}

// URL returns the test server's URL for use as the Jira base URL.
func (m *MockJiraServer) URL() string {
	return m.Server.URL
}

// Close shuts down the test server.
func (m *MockJiraServer) Close() {
	m.mu.Lock()
	for path, gate := range m.gates {
		close(gate)
		delete(m.gates, path)
	}
	m.mu.Unlock()
	m.Server.Close()
}

// SetResponse configures the JSON body returned for a path.
func (m *MockJiraServer) SetResponse(path string, data any) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.responses[path] = data
}

// SetError configures the mock to fail a path with the given status.
func (m *MockJiraServer) SetError(path string, status int, message string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errors[path] = mockError{status: status, message: message}
}

// Hold makes requests for path block until the returned func is called.
func (m *MockJiraServer) Hold(path string) (release func()) {
	gate := make(chan struct{})
	m.mu.Lock()
	m.gates[path] = gate
	m.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			m.mu.Lock()
			if m.gates[path] == gate {
				delete(m.gates, path)
				close(gate)
			}
			m.mu.Unlock()
		})
	}
}

// Calls returns all recorded calls for assertions.
func (m *MockJiraServer) Calls() []Call {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]Call{}, m.calls...)
}

// CallCount returns how many requests hit path.
func (m *MockJiraServer) CallCount(path string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	n := 0
	for _, c := range m.calls {
		if c.Path == path {
			n++
		}
	}
	return n
}

// Reset clears all responses, errors, and recorded calls.
func (m *MockJiraServer) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.responses = make(map[string]any)
	m.errors = make(map[string]mockError)
	m.calls = nil
}

func (m *MockJiraServer) handleRequest(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	m.mu.Lock()
	m.calls = append(m.calls, Call{
		Method:        r.Method,
		Path:          r.URL.Path,
		Query:         r.URL.Query(),
		Authorization: r.Header.Get("Authorization"),
	})
	gate := m.gates[r.URL.Path]
	m.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-r.Context().Done():
			return
		}
	}

	m.mu.RLock()
	if e, ok := m.errors[r.URL.Path]; ok {
		m.mu.RUnlock()
		writeJSON(w, e.status, map[string]any{
			"errorMessages": []string{e.message},
			"errors":        map[string]string{},
		})
		return
	}
	data, ok := m.responses[r.URL.Path]
	m.mu.RUnlock()

	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]any{
			"errorMessages": []string{fmt.Sprintf("no mock for %s", r.URL.Path)},
		})
		return
	}
	writeJSON(w, http.StatusOK, data)
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}
