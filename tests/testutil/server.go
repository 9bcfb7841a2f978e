// Package testutil provides a fake API server for client tests. It
// speaks the same response envelope as the real server and lets tests
// script per-route handlers.
package testutil

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
)

// Envelope mirrors the server's response wrapper.
type Envelope struct {
	Success    bool                `json:"success"`
	Message    string              `json:"message,omitempty"`
	Data       interface{}         `json:"data,omitempty"`
	Pagination interface{}         `json:"pagination,omitempty"`
	Errors     map[string][]string `json:"errors,omitempty"`
}

// Server wraps an httptest.Server with envelope helpers and a request
// counter per route.
type Server struct {
	*httptest.Server

	mu       sync.Mutex
	handlers map[string]http.HandlerFunc
	hits     map[string]int
}

// NewServer starts a fake API server. It is closed automatically when
// the test completes.
func NewServer(t *testing.T) *Server {
	t.Helper()

	s := &Server{
		handlers: make(map[string]http.HandlerFunc),
		hits:     make(map[string]int),
	}
	s.Server = httptest.NewServer(http.HandlerFunc(s.route))
	t.Cleanup(s.Close)
	return s
}

// Handle registers a handler for "METHOD /path". The path is matched
// exactly, query string excluded.
func (s *Server) Handle(method, path string, h http.HandlerFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handlers[method+" "+path] = h
}

// Hits reports how many requests reached "METHOD /path".
func (s *Server) Hits(method, path string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hits[method+" "+path]
}

func (s *Server) route(w http.ResponseWriter, r *http.Request) {
	key := r.Method + " " + r.URL.Path

	s.mu.Lock()
	s.hits[key]++
	h := s.handlers[key]
	s.mu.Unlock()

	if h == nil {
		WriteError(w, http.StatusNotFound, "Not found")
		return
	}
	h(w, r)
}

// WriteSuccess writes a success envelope with the given data payload.
func WriteSuccess(w http.ResponseWriter, data interface{}) {
	writeJSON(w, http.StatusOK, Envelope{Success: true, Data: data})
}

// WritePage writes a success envelope with data and pagination.
func WritePage(w http.ResponseWriter, data, pagination interface{}) {
	writeJSON(w, http.StatusOK, Envelope{
		Success:    true,
		Data:       data,
		Pagination: pagination,
	})
}

// WriteError writes a failure envelope with the given message.
func WriteError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, Envelope{Success: false, Message: message})
}

// WriteFieldErrors writes a failure envelope with per-field
// validation errors.
func WriteFieldErrors(w http.ResponseWriter, status int, message string, fields map[string][]string) {
	writeJSON(w, status, Envelope{Success: false, Message: message, Errors: fields})
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
