// Package factory builds per-user exchange clients and keeps the market
// snapshots shared between them fresh.
package factory

import (
	"context"
	"sync"
	"time"

	"github.com/mselser95/mm-oracle/internal/circuitbreaker"
	"github.com/mselser95/mm-oracle/internal/exchanges"
	"github.com/mselser95/mm-oracle/internal/exchanges/bigone"
	"github.com/mselser95/mm-oracle/internal/exchanges/cex"
	"github.com/mselser95/mm-oracle/internal/exchanges/hyperliquid"
	"github.com/mselser95/mm-oracle/internal/exchanges/pancakeswap"
	"github.com/mselser95/mm-oracle/internal/exchanges/unified"
	"github.com/mselser95/mm-oracle/pkg/types"
	"github.com/mselser95/mm-oracle/pkg/wallet"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"
)

// DefaultPreloadInterval is the pause between two market preload rounds.
const DefaultPreloadInterval = 25 * time.Minute

// Config holds factory configuration.
type Config struct {
	Enabled         []string
	Sandbox         bool
	PreloadInterval time.Duration
	HTTPTimeout     time.Duration

	LogPermissionErrors bool

	PancakeswapSubgraphURL    string
	PancakeswapSubgraphAPIKey string
	// BSCWallet reads PancakeSwap balances; optional.
	BSCWallet *wallet.Client

	// BaseURLs overrides exchange endpoints by name.
	BaseURLs map[string]string

	// OnPreloaded runs once, after the first preload round.
	OnPreloaded func()

	Logger *zap.Logger
}

// ClientOptions are the per-user inputs of Create.
type ClientOptions struct {
	UserID string

	// CEX key pair.
	APIKey string
	Secret string

	// DEX wallet.
	UserEvmAddress string
}

// Factory creates exchange clients.
type Factory struct {
	cfg      Config
	enabled  map[string]bool
	breakers map[string]*circuitbreaker.Breaker
	logger   *zap.Logger

	group singleflight.Group

	mu      sync.RWMutex
	markets map[string]unified.Markets

	preloadedOnce sync.Once
}

// New creates a factory. Unknown names in cfg.Enabled are ignored.
func New(cfg Config) (*Factory, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.PreloadInterval <= 0 {
		cfg.PreloadInterval = DefaultPreloadInterval
	}

	f := &Factory{
		cfg:      cfg,
		enabled:  make(map[string]bool, len(cfg.Enabled)),
		breakers: make(map[string]*circuitbreaker.Breaker),
		logger:   logger,
		markets:  make(map[string]unified.Markets),
	}

	for _, name := range cfg.Enabled {
		if _, ok := exchanges.Lookup(name); !ok {
			logger.Warn("unknown-exchange-ignored", zap.String("exchange", name))
			continue
		}
		f.enabled[name] = true

		if !unified.Supported(name) {
			continue
		}
		breaker, err := unified.NewBreaker(name, logger)
		if err != nil {
			return nil, err
		}
		f.breakers[name] = breaker
	}

	return f, nil
}

// Enabled lists the enabled catalogue entries.
func (f *Factory) Enabled() []types.ExchangeInfo {
	infos := make([]types.ExchangeInfo, 0, len(f.enabled))
	for _, info := range exchanges.Catalog() {
		if f.enabled[info.Name] {
			infos = append(infos, info)
		}
	}
	return infos
}

// IsEnabled reports whether name is a known, enabled exchange.
func (f *Factory) IsEnabled(name string) bool {
	return f.enabled[name]
}

// Create returns a new client for one user on exchange name.
func (f *Factory) Create(name string, opts ClientOptions) (exchanges.Client, error) {
	if !f.enabled[name] {
		return nil, &types.ArgumentError{Argument: "exchange", Message: "exchange not supported: " + name}
	}

	logger := f.logger
	baseURL := f.cfg.BaseURLs[name]

	switch name {
	case exchanges.BigONE:
		client, err := bigone.New(bigone.Config{
			UserID:              opts.UserID,
			APIKey:              opts.APIKey,
			Secret:              opts.Secret,
			BaseURL:             baseURL,
			Timeout:             f.cfg.HTTPTimeout,
			LogPermissionErrors: f.cfg.LogPermissionErrors,
			Logger:              logger,
		})
		return clientOrNil(client, err)

	case exchanges.Hyperliquid:
		client, err := hyperliquid.New(hyperliquid.Config{
			UserID:         opts.UserID,
			UserEvmAddress: opts.UserEvmAddress,
			Sandbox:        f.cfg.Sandbox,
			Markets:        f.Markets(name),
			Breaker:        f.breakers[name],
			Timeout:        f.cfg.HTTPTimeout,
			BaseURL:        baseURL,
			Logger:         logger,
		})
		return clientOrNil(client, err)

	case exchanges.PancakeSwap:
		subgraphURL := f.cfg.PancakeswapSubgraphURL
		if baseURL != "" {
			subgraphURL = baseURL
		}
		client, err := pancakeswap.New(pancakeswap.Config{
			UserID:         opts.UserID,
			UserEvmAddress: opts.UserEvmAddress,
			SubgraphURL:    subgraphURL,
			SubgraphAPIKey: f.cfg.PancakeswapSubgraphAPIKey,
			Timeout:        f.cfg.HTTPTimeout,
			Wallet:         f.cfg.BSCWallet,
			Logger:         logger,
		})
		return clientOrNil(client, err)

	default:
		client, err := cex.New(cex.Config{
			Exchange:            name,
			UserID:              opts.UserID,
			APIKey:              opts.APIKey,
			Secret:              opts.Secret,
			Sandbox:             f.cfg.Sandbox,
			Markets:             f.Markets(name),
			Breaker:             f.breakers[name],
			Timeout:             f.cfg.HTTPTimeout,
			BaseURL:             baseURL,
			LogPermissionErrors: f.cfg.LogPermissionErrors,
			Logger:              logger,
		})
		return clientOrNil(client, err)
	}
}

// clientOrNil keeps a nil pointer from becoming a non-nil interface.
func clientOrNil[T exchanges.Client](client T, err error) (exchanges.Client, error) {
	if err != nil {
		return nil, err
	}
	return client, nil
}

// Markets returns the preloaded snapshot of name, or nil.
func (f *Factory) Markets(name string) unified.Markets {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.markets[name]
}

// Run preloads markets, then again PreloadInterval after each round
// finishes, until ctx is done.
func (f *Factory) Run(ctx context.Context) error {
	f.logger.Info("markets-preloader-starting",
		zap.Duration("interval", f.cfg.PreloadInterval),
		zap.Bool("sandbox", f.cfg.Sandbox))

	for {
		f.PreloadAll(ctx)
		f.preloadedOnce.Do(func() {
			if f.cfg.OnPreloaded != nil {
				f.cfg.OnPreloaded()
			}
		})

		timer := time.NewTimer(f.cfg.PreloadInterval)
		select {
		case <-ctx.Done():
			timer.Stop()
			f.logger.Info("markets-preloader-stopping")
			return ctx.Err()
		case <-timer.C:
		}
	}
}

// PreloadAll runs one preload round over every enabled library-backed
// exchange. Failures are logged.
func (f *Factory) PreloadAll(ctx context.Context) {
	var g errgroup.Group
	for name := range f.enabled {
		if !unified.Supported(name) {
			continue
		}
		if f.cfg.Sandbox && !unified.HasSandbox(name) {
			f.logger.Debug("markets-preload-skipped",
				zap.String("exchange", name),
				zap.String("reason", "no sandbox"))
			continue
		}

		name := name
		g.Go(func() error {
			err := f.Preload(ctx, name)
			if err != nil {
				f.logger.Warn("markets-preload-failed",
					zap.String("exchange", name),
					zap.Error(err))
			}
			return nil
		})
	}
	_ = g.Wait()
}

// Preload refreshes the snapshot of name. Concurrent calls for one
// exchange share a single load.
func (f *Factory) Preload(ctx context.Context, name string) error {
	_, err, _ := f.group.Do(name, func() (interface{}, error) {
		start := time.Now()
		defer func() {
			PreloadDuration.WithLabelValues(name).Observe(time.Since(start).Seconds())
		}()

		lib, err := unified.New(name, unified.Options{
			Sandbox: f.cfg.Sandbox,
			BaseURL: f.cfg.BaseURLs[name],
			Timeout: f.cfg.HTTPTimeout,
			Breaker: f.breakers[name],
			Logger:  f.logger,
		})
		if err != nil {
			PreloadsTotal.WithLabelValues(name, "error").Inc()
			return nil, err
		}

		markets, err := lib.LoadMarkets(ctx, true)
		if err != nil {
			PreloadsTotal.WithLabelValues(name, "error").Inc()
			return nil, err
		}

		f.mu.Lock()
		f.markets[name] = markets
		f.mu.Unlock()

		PreloadsTotal.WithLabelValues(name, "success").Inc()
		PreloadedMarkets.WithLabelValues(name).Set(float64(len(markets)))
		f.logger.Debug("markets-preloaded",
			zap.String("exchange", name),
			zap.Int("markets", len(markets)),
			zap.Duration("duration", time.Since(start)))
		return nil, nil
	})
	return err
}

// Close drops the market snapshots.
func (f *Factory) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.markets = make(map[string]unified.Markets)
}
