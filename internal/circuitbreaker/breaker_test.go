package circuitbreaker

import (
	"errors"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"
)

func TestNew(t *testing.T) {
	t.Parallel()

	logger := zaptest.NewLogger(t)

	tests := []struct {
		name    string
		config  *Config
		wantErr bool
		errMsg  string
	}{
		{
			name:    "valid-config",
			config:  DefaultConfig("binance", logger),
			wantErr: false,
		},
		{
			name:    "nil-config",
			config:  nil,
			wantErr: true,
			errMsg:  "config cannot be nil",
		},
		{
			name: "empty-name",
			config: &Config{
				FailureRatio: 0.5,
				Logger:       logger,
			},
			wantErr: true,
			errMsg:  "name cannot be empty",
		},
		{
			name: "nil-logger",
			config: &Config{
				Name:         "binance",
				FailureRatio: 0.5,
			},
			wantErr: true,
			errMsg:  "logger cannot be nil",
		},
		{
			name: "bad-ratio",
			config: &Config{
				Name:         "binance",
				FailureRatio: 1.5,
				Logger:       logger,
			},
			wantErr: true,
			errMsg:  "failure ratio must be in (0, 1]",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			breaker, err := New(tt.config)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error, got nil")
				}
				if err.Error() != tt.errMsg {
					t.Errorf("expected error %q, got %q", tt.errMsg, err.Error())
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if breaker.State() != "closed" {
				t.Errorf("expected closed breaker, got %s", breaker.State())
			}
		})
	}
}

func TestBreaker_TripsAfterFailures(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig("trip-test", zaptest.NewLogger(t))
	cfg.MinRequests = 3
	cfg.FailureRatio = 0.5
	cfg.Timeout = time.Hour

	breaker, err := New(cfg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	remoteErr := errors.New("503 service unavailable")
	for i := 0; i < 3; i++ {
		err = breaker.Execute(func() error { return remoteErr })
		if !errors.Is(err, remoteErr) {
			t.Fatalf("call %d: expected remote error, got %v", i, err)
		}
	}

	if breaker.State() != "open" {
		t.Fatalf("expected open breaker, got %s", breaker.State())
	}

	called := false
	err = breaker.Execute(func() error {
		called = true
		return nil
	})
	if !errors.Is(err, ErrOpen) {
		t.Errorf("expected ErrOpen, got %v", err)
	}
	if called {
		t.Error("open breaker must not call through")
	}
}

func TestBreaker_IgnoredErrorsDoNotTrip(t *testing.T) {
	t.Parallel()

	authErr := errors.New("401 unauthorized")

	cfg := DefaultConfig("ignore-test", zaptest.NewLogger(t))
	cfg.MinRequests = 2
	cfg.FailureRatio = 0.5
	cfg.Counts = func(err error) bool { return !errors.Is(err, authErr) }

	breaker, err := New(cfg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	for i := 0; i < 10; i++ {
		err = breaker.Execute(func() error { return authErr })
		if !errors.Is(err, authErr) {
			t.Fatalf("expected auth error passed through, got %v", err)
		}
	}

	if breaker.State() != "closed" {
		t.Errorf("expected closed breaker, got %s", breaker.State())
	}
}

func TestBreaker_HalfOpenRecovers(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig("recover-test", zaptest.NewLogger(t))
	cfg.MinRequests = 1
	cfg.FailureRatio = 1
	cfg.Timeout = 10 * time.Millisecond

	breaker, err := New(cfg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	_ = breaker.Execute(func() error { return errors.New("down") })
	if breaker.State() != "open" {
		t.Fatalf("expected open breaker, got %s", breaker.State())
	}

	time.Sleep(20 * time.Millisecond)

	if err := breaker.Execute(func() error { return nil }); err != nil {
		t.Fatalf("expected half-open probe to pass, got %v", err)
	}
	if breaker.State() != "closed" {
		t.Errorf("expected closed breaker after recovery, got %s", breaker.State())
	}
}
