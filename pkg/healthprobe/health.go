// Package healthprobe serves liveness and readiness endpoints. Readiness is
// gated on named components, each of which reports itself ready
// independently (for example "markets" once exchange markets are loaded).
package healthprobe

import (
	"net/http"
	"sort"
	"sync"
	"time"

	json "github.com/goccy/go-json"
)

// HealthChecker provides health and readiness checks.
type HealthChecker struct {
	startTime time.Time

	mu         sync.RWMutex
	components map[string]bool
}

// New creates a HealthChecker waiting on the named components. With no
// components it is not ready until SetReady(true).
func New(components ...string) *HealthChecker {
	h := &HealthChecker{
		startTime:  time.Now(),
		components: make(map[string]bool),
	}
	if len(components) == 0 {
		components = []string{"app"}
	}
	for _, c := range components {
		h.components[c] = false
	}
	return h
}

// SetReady marks every component ready or not ready.
func (h *HealthChecker) SetReady(ready bool) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for c := range h.components {
		h.components[c] = ready
	}
}

// SetComponentReady marks one component, registering it if unknown.
func (h *HealthChecker) SetComponentReady(component string, ready bool) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.components[component] = ready
}

// IsReady reports whether every component is ready.
func (h *HealthChecker) IsReady() bool {
	ready, _ := h.snapshot()
	return ready
}

func (h *HealthChecker) snapshot() (bool, []string) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	var pending []string
	for c, ok := range h.components {
		if !ok {
			pending = append(pending, c)
		}
	}
	sort.Strings(pending)
	return len(pending) == 0, pending
}

// HealthResponse represents the health check response.
type HealthResponse struct {
	Status  string   `json:"status"`
	Uptime  string   `json:"uptime,omitempty"`
	Message string   `json:"message,omitempty"`
	Pending []string `json:"pending,omitempty"`
}

// Health returns an HTTP handler for liveness checks.
// Always returns 200 OK if the application is running.
func (h *HealthChecker) Health() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, HealthResponse{
			Status: "healthy",
			Uptime: time.Since(h.startTime).String(),
		})
	}
}

// Ready returns an HTTP handler for readiness checks.
// Returns 200 OK if ready, 503 Service Unavailable if not.
func (h *HealthChecker) Ready() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ready, pending := h.snapshot()
		if !ready {
			writeJSON(w, http.StatusServiceUnavailable, HealthResponse{
				Status:  "not_ready",
				Message: "application is starting",
				Pending: pending,
			})
			return
		}

		writeJSON(w, http.StatusOK, HealthResponse{
			Status: "ready",
			Uptime: time.Since(h.startTime).String(),
		})
	}
}

func writeJSON(w http.ResponseWriter, status int, resp HealthResponse) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(resp)
}
