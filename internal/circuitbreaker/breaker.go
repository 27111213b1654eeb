package circuitbreaker

import (
	"errors"
	"fmt"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"
)

// ErrOpen is returned while the breaker rejects calls.
var ErrOpen = errors.New("circuit breaker open")

// Breaker guards calls to one exchange API. It trips when enough requests
// failed in the current interval and the failure ratio is high enough.
type Breaker struct {
	name   string
	cb     *gobreaker.CircuitBreaker
	counts func(err error) bool
	logger *zap.Logger
}

// Config holds circuit breaker configuration.
type Config struct {
	Name         string
	MinRequests  uint32        // requests seen before the ratio is considered
	FailureRatio float64       // trip when failures/requests reaches this
	Interval     time.Duration // closed-state counter reset period
	Timeout      time.Duration // open-state duration before half-open
	MaxHalfOpen  uint32        // requests allowed while half-open

	// Counts reports whether err is a failure of the remote side.
	// Errors it rejects are returned to the caller without tripping the breaker.
	Counts func(err error) bool

	Logger *zap.Logger
}

// DefaultConfig returns the settings used for exchange HTTP calls.
func DefaultConfig(name string, logger *zap.Logger) *Config {
	return &Config{
		Name:         name,
		MinRequests:  10,
		FailureRatio: 0.6,
		Interval:     time.Minute,
		Timeout:      30 * time.Second,
		MaxHalfOpen:  1,
		Logger:       logger,
	}
}

// New creates a breaker from cfg.
func New(cfg *Config) (breaker *Breaker, err error) {
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}
	if cfg.Name == "" {
		return nil, fmt.Errorf("name cannot be empty")
	}
	if cfg.Logger == nil {
		return nil, fmt.Errorf("logger cannot be nil")
	}
	if cfg.FailureRatio <= 0 || cfg.FailureRatio > 1 {
		return nil, fmt.Errorf("failure ratio must be in (0, 1]")
	}

	breaker = &Breaker{
		name:   cfg.Name,
		counts: cfg.Counts,
		logger: cfg.Logger,
	}

	minRequests := cfg.MinRequests
	ratio := cfg.FailureRatio

	breaker.cb = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        cfg.Name,
		MaxRequests: cfg.MaxHalfOpen,
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < minRequests {
				return false
			}
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return failureRatio >= ratio
		},
		OnStateChange: breaker.onStateChange,
	})

	BreakerState.WithLabelValues(cfg.Name).Set(stateValue(gobreaker.StateClosed))

	return breaker, nil
}

// Execute runs fn through the breaker. While the breaker is open fn is not
// called and the returned error wraps ErrOpen.
func (b *Breaker) Execute(fn func() error) error {
	var callErr error

	_, err := b.cb.Execute(func() (interface{}, error) {
		callErr = fn()
		if callErr != nil && (b.counts == nil || b.counts(callErr)) {
			return nil, callErr
		}
		return nil, nil
	})

	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		BreakerRejectionsTotal.WithLabelValues(b.name).Inc()
		return fmt.Errorf("%s: %w", b.name, ErrOpen)
	}

	return callErr
}

// State returns the current state name: closed, half-open or open.
func (b *Breaker) State() string {
	return b.cb.State().String()
}

func (b *Breaker) onStateChange(name string, from gobreaker.State, to gobreaker.State) {
	BreakerState.WithLabelValues(name).Set(stateValue(to))
	BreakerStateChanges.WithLabelValues(name, to.String()).Inc()

	if to == gobreaker.StateOpen {
		b.logger.Warn("circuit-breaker-opened",
			zap.String("breaker", name),
			zap.String("from", from.String()))
		return
	}

	b.logger.Info("circuit-breaker-state-changed",
		zap.String("breaker", name),
		zap.String("from", from.String()),
		zap.String("to", to.String()))
}

func stateValue(state gobreaker.State) float64 {
	switch state {
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return 0
	}
}
