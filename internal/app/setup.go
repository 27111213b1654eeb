package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/mselser95/mm-oracle/internal/campaign"
	"github.com/mselser95/mm-oracle/internal/connectivity"
	"github.com/mselser95/mm-oracle/internal/credentials"
	"github.com/mselser95/mm-oracle/internal/factory"
	"github.com/mselser95/mm-oracle/internal/storage"
	"github.com/mselser95/mm-oracle/pkg/cache"
	"github.com/mselser95/mm-oracle/pkg/config"
	"github.com/mselser95/mm-oracle/pkg/healthprobe"
	"github.com/mselser95/mm-oracle/pkg/httpserver"
	"github.com/mselser95/mm-oracle/pkg/wallet"
	"go.uber.org/zap"
)

// New creates a new application instance.
func New(cfg *config.Config, logger *zap.Logger, opts *Options) (*App, error) {
	if opts == nil {
		opts = &Options{}
	}

	ctx, cancel := context.WithCancel(context.Background())

	healthChecker := setupHealthChecker()

	bscWallet, err := setupBSCWallet(cfg, logger)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("setup bsc wallet: %w", err)
	}

	a := &App{
		cfg:           cfg,
		logger:        logger,
		healthChecker: healthChecker,
		ctx:           ctx,
		cancel:        cancel,
	}

	a.factory, err = setupFactory(cfg, logger, bscWallet, opts, func() {
		a.onMarketsPreloaded()
	})
	if err != nil {
		cancel()
		return nil, fmt.Errorf("setup factory: %w", err)
	}

	a.repo, err = setupStorage(ctx, cfg, logger)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("setup storage: %w", err)
	}
	healthChecker.SetComponentReady(componentStorage, true)

	a.keys, err = setupCredentialStore(cfg, logger, a.repo, a.factory)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("setup credential store: %w", err)
	}
	if a.keys != nil {
		a.connectivity = connectivity.NewService(a.keys, a.factory, logger)
	}

	a.manifestCache, err = setupCache(logger)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("setup cache: %w", err)
	}

	a.fetcher = campaign.NewFetcher(campaign.FetcherConfig{
		Cache:    a.manifestCache,
		CacheTTL: cfg.ManifestCacheTTL,
		Logger:   logger,
	})

	a.httpServer = setupHTTPServer(cfg, logger, healthChecker, a.factory)

	return a, nil
}

func setupHealthChecker() *healthprobe.HealthChecker {
	return healthprobe.New(componentStorage, componentMarkets)
}

func setupHTTPServer(
	cfg *config.Config,
	logger *zap.Logger,
	healthChecker *healthprobe.HealthChecker,
	f *factory.Factory,
) *httpserver.Server {
	return httpserver.New(&httpserver.Config{
		Port:          cfg.HTTPPort,
		Logger:        logger,
		HealthChecker: healthChecker,
		Catalog:       f.Enabled,
	})
}

func setupCache(logger *zap.Logger) (cache.Cache, error) {
	return cache.NewRistrettoCache(&cache.RistrettoConfig{
		Name:        "manifests",
		NumCounters: 10000, // 10x expected max items
		MaxCost:     1000,  // Maximum 1000 manifests in cache
		BufferItems: 64,    // Buffer size for Get operations
		Logger:      logger,
	})
}

func setupBSCWallet(cfg *config.Config, logger *zap.Logger) (*wallet.Client, error) {
	if cfg.BSCRPCURL == "" {
		logger.Info("bsc-wallet-disabled",
			zap.String("note", "BSC_RPC_URL not set, PancakeSwap balances unavailable"))
		return nil, nil
	}
	return wallet.NewClient(cfg.BSCRPCURL, logger)
}

func setupFactory(
	cfg *config.Config,
	logger *zap.Logger,
	bscWallet *wallet.Client,
	opts *Options,
	onPreloaded func(),
) (*factory.Factory, error) {
	return factory.New(factory.Config{
		Enabled:                   cfg.ExchangesEnabled,
		Sandbox:                   cfg.ExchangesSandbox,
		PreloadInterval:           cfg.MarketsPreloadInterval,
		HTTPTimeout:               cfg.ExchangeHTTPTimeout,
		LogPermissionErrors:       cfg.LogExchangePermissionErrors,
		PancakeswapSubgraphURL:    cfg.PancakeswapSubgraphURL,
		PancakeswapSubgraphAPIKey: cfg.PancakeswapSubgraphAPIKey,
		BSCWallet:                 bscWallet,
		BaseURLs:                  opts.BaseURLs,
		OnPreloaded:               onPreloaded,
		Logger:                    logger,
	})
}

func setupStorage(ctx context.Context, cfg *config.Config, logger *zap.Logger) (storage.Repository, error) {
	if cfg.StorageMode == "postgres" {
		repo, err := storage.NewPostgresRepository(ctx, &storage.PostgresConfig{
			Host:     cfg.PostgresHost,
			Port:     cfg.PostgresPort,
			User:     cfg.PostgresUser,
			Password: cfg.PostgresPass,
			Database: cfg.PostgresDB,
			SSLMode:  cfg.PostgresSSL,
			Logger:   logger,
		})
		if err != nil {
			return nil, fmt.Errorf("create postgres repository: %w", err)
		}
		return repo, nil
	}

	return storage.NewMemoryRepository(logger), nil
}

func setupCredentialStore(
	cfg *config.Config,
	logger *zap.Logger,
	repo storage.Repository,
	f *factory.Factory,
) (*credentials.Store, error) {
	cipher, err := credentials.NewCipher(cfg.EncryptionSecret, cfg.EncryptionSalt)
	if errors.Is(err, credentials.ErrMissingSecret) {
		logger.Warn("credential-store-disabled",
			zap.String("note", "ENCRYPTION_SECRET not set, API keys cannot be enrolled or used"))
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return credentials.NewStore(repo, cipher, f, logger), nil
}
