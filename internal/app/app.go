package app

import (
	"context"
	"errors"
	"sync"

	"github.com/mselser95/mm-oracle/internal/campaign"
	"github.com/mselser95/mm-oracle/internal/connectivity"
	"github.com/mselser95/mm-oracle/internal/credentials"
	"github.com/mselser95/mm-oracle/internal/factory"
	"github.com/mselser95/mm-oracle/internal/storage"
	"github.com/mselser95/mm-oracle/pkg/cache"
	"github.com/mselser95/mm-oracle/pkg/config"
	"github.com/mselser95/mm-oracle/pkg/healthprobe"
	"github.com/mselser95/mm-oracle/pkg/httpserver"
	"go.uber.org/zap"
)

// Readiness components.
const (
	componentStorage = "storage"
	componentMarkets = "markets"
)

// ErrCredentialsDisabled is returned by accessors that need the credential
// store when no ENCRYPTION_SECRET is configured.
var ErrCredentialsDisabled = errors.New("credential store disabled: ENCRYPTION_SECRET is not set")

// App is the main application orchestrator.
type App struct {
	cfg           *config.Config
	logger        *zap.Logger
	healthChecker *healthprobe.HealthChecker
	httpServer    *httpserver.Server
	factory       *factory.Factory
	repo          storage.Repository
	keys          *credentials.Store
	connectivity  *connectivity.Service
	manifestCache cache.Cache
	fetcher       *campaign.Fetcher
	ctx           context.Context
	cancel        context.CancelFunc
	wg            sync.WaitGroup
	closeOnce     sync.Once
}

// Options holds application options.
type Options struct {
	// BaseURLs overrides exchange endpoints by name.
	BaseURLs map[string]string
}

// Factory returns the exchange client factory.
func (a *App) Factory() *factory.Factory {
	return a.factory
}

// Fetcher returns the campaign document fetcher.
func (a *App) Fetcher() *campaign.Fetcher {
	return a.fetcher
}

// Keys returns the credential store.
func (a *App) Keys() (*credentials.Store, error) {
	if a.keys == nil {
		return nil, ErrCredentialsDisabled
	}
	return a.keys, nil
}

// Connectivity returns the per-user exchange data service.
func (a *App) Connectivity() (*connectivity.Service, error) {
	if a.connectivity == nil {
		return nil, ErrCredentialsDisabled
	}
	return a.connectivity, nil
}
