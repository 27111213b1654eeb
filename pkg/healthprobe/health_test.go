package healthprobe

import (
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	json "github.com/goccy/go-json"
)

func decode(t *testing.T, rec *httptest.ResponseRecorder) HealthResponse {
	t.Helper()

	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q, want application/json", ct)
	}

	var resp HealthResponse
	err := json.Unmarshal(rec.Body.Bytes(), &resp)
	if err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return resp
}

func TestNew(t *testing.T) {
	hc := New()

	if hc == nil {
		t.Fatal("New() returned nil")
	}

	// Verify start time is recent
	if time.Since(hc.startTime) > 1*time.Second {
		t.Errorf("Start time is too old: %v", hc.startTime)
	}

	if hc.IsReady() {
		t.Error("HealthChecker should not be ready by default")
	}
}

func TestSetReady(t *testing.T) {
	tests := []struct {
		name       string
		components []string
		setReady   bool
		expected   bool
	}{
		{name: "default_true", setReady: true, expected: true},
		{name: "default_false", setReady: false, expected: false},
		{name: "components_true", components: []string{"markets", "storage"}, setReady: true, expected: true},
		{name: "components_false", components: []string{"markets", "storage"}, setReady: false, expected: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hc := New(tt.components...)
			hc.SetReady(tt.setReady)

			if hc.IsReady() != tt.expected {
				t.Errorf("SetReady(%v): ready = %v, want %v", tt.setReady, hc.IsReady(), tt.expected)
			}
		})
	}
}

func TestSetComponentReady(t *testing.T) {
	hc := New("markets", "storage")

	hc.SetComponentReady("storage", true)
	if hc.IsReady() {
		t.Error("should wait for markets")
	}

	hc.SetComponentReady("markets", true)
	if !hc.IsReady() {
		t.Error("should be ready once every component is")
	}

	// late registration gates readiness again
	hc.SetComponentReady("campaigns", false)
	if hc.IsReady() {
		t.Error("should wait for newly registered component")
	}
}

func TestHealth(t *testing.T) {
	for _, ready := range []bool{false, true} {
		hc := New()
		hc.SetReady(ready)

		rec := httptest.NewRecorder()
		hc.Health()(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

		if rec.Code != http.StatusOK {
			t.Errorf("ready=%v: status = %d, want %d", ready, rec.Code, http.StatusOK)
		}
		resp := decode(t, rec)
		if resp.Status != "healthy" {
			t.Errorf("ready=%v: status = %q, want healthy", ready, resp.Status)
		}
		if resp.Uptime == "" {
			t.Error("uptime should be set")
		}
	}
}

func TestReady_NotReady(t *testing.T) {
	hc := New("storage", "markets")
	hc.SetComponentReady("storage", true)

	rec := httptest.NewRecorder()
	hc.Ready()(rec, httptest.NewRequest(http.MethodGet, "/ready", nil))

	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusServiceUnavailable)
	}

	resp := decode(t, rec)
	if resp.Status != "not_ready" {
		t.Errorf("status = %q, want not_ready", resp.Status)
	}
	if len(resp.Pending) != 1 || resp.Pending[0] != "markets" {
		t.Errorf("pending = %v, want [markets]", resp.Pending)
	}
}

func TestReady_Ready(t *testing.T) {
	hc := New("markets")
	hc.SetComponentReady("markets", true)

	rec := httptest.NewRecorder()
	hc.Ready()(rec, httptest.NewRequest(http.MethodGet, "/ready", nil))

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusOK)
	}

	resp := decode(t, rec)
	if resp.Status != "ready" {
		t.Errorf("status = %q, want ready", resp.Status)
	}
	if len(resp.Pending) != 0 {
		t.Errorf("pending = %v, want none", resp.Pending)
	}
}

func TestConcurrentAccess(t *testing.T) {
	hc := New("a", "b")

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func(i int) {
			defer wg.Done()
			hc.SetComponentReady("a", i%2 == 0)
		}(i)
		go func() {
			defer wg.Done()
			rec := httptest.NewRecorder()
			hc.Ready()(rec, httptest.NewRequest(http.MethodGet, "/ready", nil))
		}()
	}
	wg.Wait()
}
