package httpserver

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	json "github.com/goccy/go-json"
	"github.com/mselser95/mm-oracle/pkg/healthprobe"
	"github.com/mselser95/mm-oracle/pkg/types"
	"go.uber.org/zap"
)

func newTestServer(hc *healthprobe.HealthChecker) *Server {
	return New(&Config{
		Port:          "0",
		Logger:        zap.NewNop(),
		HealthChecker: hc,
	})
}

func serve(s *Server, method, path string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	w := httptest.NewRecorder()
	s.server.Handler.ServeHTTP(w, req)
	return w
}

func TestNew(t *testing.T) {
	hc := healthprobe.New()
	server := newTestServer(hc)

	if server.server == nil {
		t.Fatal("New() server.server is nil")
	}
	if server.healthChecker != hc {
		t.Error("New() healthChecker not set correctly")
	}
	if server.server.Addr != ":0" {
		t.Errorf("Addr = %q, want %q", server.server.Addr, ":0")
	}
	if server.server.ReadTimeout != 15*time.Second || server.server.WriteTimeout != 15*time.Second {
		t.Errorf("unexpected timeouts read=%v write=%v", server.server.ReadTimeout, server.server.WriteTimeout)
	}
}

func TestProbeRoutes(t *testing.T) {
	tests := []struct {
		name   string
		method string
		path   string
		status int
	}{
		{name: "health", method: http.MethodGet, path: "/health", status: http.StatusOK},
		{name: "metrics", method: http.MethodGet, path: "/metrics", status: http.StatusOK},
		{name: "ready_while_starting", method: http.MethodGet, path: "/ready", status: http.StatusServiceUnavailable},
		{name: "unknown_route", method: http.MethodGet, path: "/orderbook", status: http.StatusNotFound},
		{name: "exchanges_without_catalog", method: http.MethodGet, path: "/exchanges", status: http.StatusNotFound},
	}

	server := newTestServer(healthprobe.New("storage", "markets"))

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := serve(server, tt.method, tt.path)
			if w.Code != tt.status {
				t.Errorf("%s %s status = %d, want %d", tt.method, tt.path, w.Code, tt.status)
			}
		})
	}
}

func TestMetricsEndpoint_ExposesExposition(t *testing.T) {
	w := serve(newTestServer(healthprobe.New()), http.MethodGet, "/metrics")

	if w.Header().Get("Content-Type") == "" {
		t.Error("metrics endpoint missing Content-Type header")
	}
	if !strings.Contains(w.Body.String(), "go_goroutines") {
		t.Error("metrics body missing default collectors")
	}
}

func TestReadyEndpoint_Components(t *testing.T) {
	hc := healthprobe.New("storage", "markets")
	server := newTestServer(hc)

	decode := func(t *testing.T, w *httptest.ResponseRecorder) healthprobe.HealthResponse {
		t.Helper()
		var resp healthprobe.HealthResponse
		err := json.Unmarshal(w.Body.Bytes(), &resp)
		if err != nil {
			t.Fatalf("decode ready body: %v", err)
		}
		return resp
	}

	w := serve(server, http.MethodGet, "/ready")
	resp := decode(t, w)
	if w.Code != http.StatusServiceUnavailable || len(resp.Pending) != 2 {
		t.Fatalf("status = %d pending = %v, want 503 with both components", w.Code, resp.Pending)
	}

	hc.SetComponentReady("storage", true)
	w = serve(server, http.MethodGet, "/ready")
	resp = decode(t, w)
	if w.Code != http.StatusServiceUnavailable || len(resp.Pending) != 1 || resp.Pending[0] != "markets" {
		t.Fatalf("status = %d pending = %v, want 503 waiting on markets", w.Code, resp.Pending)
	}

	hc.SetComponentReady("markets", true)
	w = serve(server, http.MethodGet, "/ready")
	resp = decode(t, w)
	if w.Code != http.StatusOK || resp.Status != "ready" {
		t.Errorf("status = %d body = %+v, want 200 ready", w.Code, resp)
	}
}

func TestServer_StartAndShutdown(t *testing.T) {
	server := newTestServer(healthprobe.New())

	serverDone := make(chan error, 1)
	go func() {
		serverDone <- server.Start()
	}()

	time.Sleep(100 * time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err := server.Shutdown(ctx)
	if err != nil {
		t.Errorf("Shutdown() error = %v", err)
	}

	select {
	case err := <-serverDone:
		if err != nil {
			t.Errorf("Start() returned error after shutdown: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Start() did not return after shutdown")
	}
}

func testCatalog() []types.ExchangeInfo {
	return []types.ExchangeInfo{
		{Name: "binance", DisplayName: "Binance", Type: types.ExchangeTypeCEX, URL: "https://www.binance.com"},
		{Name: "hyperliquid", DisplayName: "Hyperliquid", Type: types.ExchangeTypeDEX, URL: "https://app.hyperliquid.xyz"},
		{Name: "mexc", DisplayName: "MEXC", Type: types.ExchangeTypeCEX, URL: "https://www.mexc.com"},
	}
}

func TestExchangesEndpoint_List(t *testing.T) {
	server := New(&Config{
		Port:          "0",
		Logger:        zap.NewNop(),
		HealthChecker: healthprobe.New(),
		Catalog:       testCatalog,
	})

	tests := []struct {
		name           string
		query          string
		expectedStatus int
		expectedNames  []string
	}{
		{
			name:           "all",
			expectedStatus: http.StatusOK,
			expectedNames:  []string{"binance", "hyperliquid", "mexc"},
		},
		{
			name:           "cex_only",
			query:          "?type=cex",
			expectedStatus: http.StatusOK,
			expectedNames:  []string{"binance", "mexc"},
		},
		{
			name:           "dex_only",
			query:          "?type=DEX",
			expectedStatus: http.StatusOK,
			expectedNames:  []string{"hyperliquid"},
		},
		{
			name:           "bad_type",
			query:          "?type=otc",
			expectedStatus: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/exchanges"+tt.query, nil)
			w := httptest.NewRecorder()

			server.server.Handler.ServeHTTP(w, req)

			if w.Code != tt.expectedStatus {
				t.Fatalf("status = %d, want %d", w.Code, tt.expectedStatus)
			}
			if tt.expectedStatus != http.StatusOK {
				return
			}

			var resp ExchangesResponse
			err := json.Unmarshal(w.Body.Bytes(), &resp)
			if err != nil {
				t.Fatalf("decode response: %v", err)
			}

			if len(resp.Exchanges) != len(tt.expectedNames) {
				t.Fatalf("got %d exchanges, want %d", len(resp.Exchanges), len(tt.expectedNames))
			}
			for i, name := range tt.expectedNames {
				if resp.Exchanges[i].Name != name {
					t.Errorf("exchange[%d] = %q, want %q", i, resp.Exchanges[i].Name, name)
				}
			}
		})
	}
}

func TestExchangesEndpoint_Get(t *testing.T) {
	server := New(&Config{
		Port:          "0",
		Logger:        zap.NewNop(),
		HealthChecker: healthprobe.New(),
		Catalog:       testCatalog,
	})

	req := httptest.NewRequest(http.MethodGet, "/exchanges/MEXC", nil)
	w := httptest.NewRecorder()
	server.server.Handler.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}

	var info types.ExchangeInfo
	err := json.Unmarshal(w.Body.Bytes(), &info)
	if err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if info.DisplayName != "MEXC" || info.Type != types.ExchangeTypeCEX {
		t.Errorf("got %+v", info)
	}

	req = httptest.NewRequest(http.MethodGet, "/exchanges/xt", nil)
	w = httptest.NewRecorder()
	server.server.Handler.ServeHTTP(w, req)

	if w.Code != http.StatusNotFound {
		t.Errorf("unknown exchange status = %d, want %d", w.Code, http.StatusNotFound)
	}
}

func TestExchangesEndpoint_OnlyWithCatalog(t *testing.T) {
	server := New(&Config{
		Port:          "0",
		Logger:        zap.NewNop(),
		HealthChecker: healthprobe.New(),
	})

	req := httptest.NewRequest(http.MethodGet, "/exchanges", nil)
	w := httptest.NewRecorder()
	server.server.Handler.ServeHTTP(w, req)

	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want %d", w.Code, http.StatusNotFound)
	}
}

func TestExchangesEndpoint_MethodNotAllowed(t *testing.T) {
	server := New(&Config{
		Port:          "0",
		Logger:        zap.NewNop(),
		HealthChecker: healthprobe.New(),
		Catalog:       testCatalog,
	})

	req := httptest.NewRequest(http.MethodPost, "/exchanges", nil)
	w := httptest.NewRecorder()
	server.server.Handler.ServeHTTP(w, req)

	if w.Code != http.StatusMethodNotAllowed {
		t.Errorf("status = %d, want %d", w.Code, http.StatusMethodNotAllowed)
	}
}
