package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gagents/gagents/pkg/manager"
	"github.com/gagents/gagents/pkg/metrics"
)

// HealthServer provides HTTP health-check and metrics endpoints for an
// agent host process.
type HealthServer struct {
	factory *manager.ActorFactory
	mux     *http.ServeMux
}

// NewHealthServer creates a health check HTTP server backed by factory.
func NewHealthServer(factory *manager.ActorFactory) *HealthServer {
	mux := http.NewServeMux()
	hs := &HealthServer{
		factory: factory,
		mux:     mux,
	}

	mux.HandleFunc("/health", hs.healthHandler)
	mux.HandleFunc("/ready", hs.readyHandler)
	mux.Handle("/metrics", metrics.Handler())

	return hs
}

// Start starts the health check HTTP server.
func (hs *HealthServer) Start(addr string) error {
	server := &http.Server{
		Addr:         addr,
		Handler:      hs.mux,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return server.ListenAndServe()
}

// HealthResponse is the /health response body.
type HealthResponse struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
}

// ReadyResponse is the /ready response body.
type ReadyResponse struct {
	Status       string    `json:"status"`
	Timestamp    time.Time `json:"timestamp"`
	ActiveAgents int       `json:"active_agents"`
}

// healthHandler is a liveness check: 200 if the process is alive.
func (hs *HealthServer) healthHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	response := HealthResponse{Status: "healthy", Timestamp: time.Now()}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(response)
}

// readyHandler is a readiness check: the ActorFactory must be present
// and reachable (this process always reports ready once the factory
// exists, since there's no leader-election gate in a single-process
// agent host).
func (hs *HealthServer) readyHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	statusCode := http.StatusOK
	status := "ready"
	active := 0
	if hs.factory == nil {
		statusCode = http.StatusServiceUnavailable
		status = "not ready"
	} else {
		active = hs.factory.Len()
	}

	response := ReadyResponse{Status: status, Timestamp: time.Now(), ActiveAgents: active}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(response)
}

// GetHandler returns the HTTP handler for embedding in another server.
func (hs *HealthServer) GetHandler() http.Handler {
	return hs.mux
}
