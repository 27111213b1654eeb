// Package cex implements exchanges.Client for centralized exchanges served
// by the unified library. Exchange differences live in the profile table.
package cex

import (
	"context"
	"fmt"
	"time"

	"github.com/mselser95/mm-oracle/internal/circuitbreaker"
	"github.com/mselser95/mm-oracle/internal/exchanges"
	"github.com/mselser95/mm-oracle/internal/exchanges/unified"
	"github.com/mselser95/mm-oracle/pkg/types"
	"go.uber.org/zap"
)

// Probe targets used by CheckRequiredAccess.
const (
	probeCurrency = "ETH"
	probeSymbol   = "ETH/USDT"
)

// Config holds the inputs of one per-user client.
type Config struct {
	Exchange string
	UserID   string
	APIKey   string
	Secret   string

	Sandbox bool
	// Markets is an optional preloaded market snapshot.
	Markets unified.Markets
	Breaker *circuitbreaker.Breaker
	Timeout time.Duration
	// BaseURL overrides the exchange endpoint.
	BaseURL string

	LogPermissionErrors bool
	Logger              *zap.Logger
}

// Client is a per-user CEX client.
type Client struct {
	exchange string
	userID   string
	sandbox  bool
	apiKey   string
	secret   string

	lib     unified.Exchange
	profile Profile
	guard   exchanges.AccessGuard
	logger  *zap.Logger
}

// New creates a client. It fails with *types.ArgumentError when the
// exchange has no library driver or the user id is empty.
func New(cfg Config) (client *Client, err error) {
	if !unified.Supported(cfg.Exchange) {
		return nil, &types.ArgumentError{Argument: "exchange", Message: "exchange not supported: " + cfg.Exchange}
	}
	if cfg.UserID == "" {
		return nil, &types.ArgumentError{Argument: "userId", Message: "userId is missing"}
	}

	profile, ok := ProfileFor(cfg.Exchange)
	if !ok {
		return nil, &types.ArgumentError{Argument: "exchange", Message: "no client profile for " + cfg.Exchange}
	}

	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.With(
		zap.String("exchange", cfg.Exchange),
		zap.Bool("sandbox", cfg.Sandbox),
		zap.String("user-id", cfg.UserID),
		zap.String("api-key-hash", exchanges.KeyFingerprint(cfg.APIKey)))

	lib, err := unified.New(cfg.Exchange, unified.Options{
		Credentials: unified.Credentials{APIKey: cfg.APIKey, Secret: cfg.Secret},
		Sandbox:     cfg.Sandbox,
		BaseURL:     cfg.BaseURL,
		Timeout:     cfg.Timeout,
		Breaker:     cfg.Breaker,
		Markets:     cfg.Markets,
		Logger:      logger,
	})
	if err != nil {
		return nil, &types.ArgumentError{Argument: "exchange", Message: err.Error()}
	}

	client = &Client{
		exchange: cfg.Exchange,
		userID:   cfg.UserID,
		sandbox:  cfg.Sandbox,
		apiKey:   cfg.APIKey,
		secret:   cfg.Secret,
		lib:      lib,
		profile:  profile,
		logger:   logger,
		guard: exchanges.AccessGuard{
			Exchange:            cfg.Exchange,
			Classify:            profile.IsAccessError,
			Logger:              logger,
			LogPermissionErrors: cfg.LogPermissionErrors,
		},
	}
	return client, nil
}

// ExchangeName implements exchanges.Client.
func (c *Client) ExchangeName() string {
	return c.exchange
}

// CheckRequiredCredentials implements exchanges.Client.
func (c *Client) CheckRequiredCredentials() bool {
	ok := c.apiKey != "" && c.secret != ""
	if !ok {
		c.logger.Debug("incomplete-required-credentials",
			zap.Strings("required", []string{"apiKey", "secret"}))
	}
	return ok
}

// CheckRequiredAccess implements exchanges.Client.
func (c *Client) CheckRequiredAccess(ctx context.Context, permissions []types.Permission) (types.AccessCheckResult, error) {
	probes := map[types.Permission]exchanges.Probe{
		types.PermissionViewAccountBalance: func(ctx context.Context) error {
			_, err := c.FetchBalance(ctx)
			return err
		},
		types.PermissionViewDepositAddress: func(ctx context.Context) error {
			_, err := c.FetchDepositAddress(ctx, probeCurrency)
			return err
		},
		types.PermissionViewSpotTradingHistory: func(ctx context.Context) error {
			now := time.Now().UnixMilli()
			it, err := c.FetchMyTrades(ctx, probeSymbol, now-1, now)
			if err != nil {
				return err
			}
			_, err = exchanges.FirstBatch(ctx, it)
			return err
		},
	}

	result, err := exchanges.CheckRequiredAccess(ctx, c.exchange, permissions, probes)
	if err != nil && types.IsClientError(err) {
		c.logger.Error("access-check-failed", zap.Error(err))
	}
	return result, err
}

// FetchMyTrades implements exchanges.Client. Pages follow the profile's
// pagination mode and hold only trades in [since, until).
func (c *Client) FetchMyTrades(ctx context.Context, symbol string, since, until int64) (exchanges.TradeIterator, error) {
	err := exchanges.ValidateWindow(since, until, exchanges.DefaultMaxLookback)
	if err != nil {
		return nil, err
	}
	_, _, err = exchanges.SplitSymbol(symbol)
	if err != nil {
		return nil, err
	}

	fetch := func(ctx context.Context, pageSince int64, limit int, params unified.TradeParams) (unified.TradePage, error) {
		return guarded(c, "fetchMyTrades", types.PermissionViewSpotTradingHistory, func() (unified.TradePage, error) {
			return c.lib.FetchMyTrades(ctx, symbol, pageSince, limit, params)
		})
	}

	state := newPageState(c.profile, window{since: since, until: until}, fetch)
	return exchanges.NewPageIterator(c.exchange, state.next), nil
}

// FetchBalance implements exchanges.Client.
func (c *Client) FetchBalance(ctx context.Context) (types.AccountBalance, error) {
	return guarded(c, "fetchBalance", types.PermissionViewAccountBalance, func() (types.AccountBalance, error) {
		return c.lib.FetchBalance(ctx)
	})
}

// FetchDepositAddress implements exchanges.Client.
func (c *Client) FetchDepositAddress(ctx context.Context, symbol string) (string, error) {
	return guarded(c, "fetchDepositAddress", types.PermissionViewDepositAddress, func() (string, error) {
		network, err := c.depositNetwork(ctx, symbol)
		if err != nil {
			return "", err
		}
		return c.lib.FetchDepositAddress(ctx, symbol, network)
	})
}

func (c *Client) depositNetwork(ctx context.Context, symbol string) (string, error) {
	if !(c.sandbox && c.profile.SandboxDepositNetwork) {
		return c.profile.DepositNetwork, nil
	}

	currencies, err := c.lib.FetchCurrencies(ctx)
	if err != nil {
		return "", err
	}

	currency, ok := currencies[symbol]
	if !ok || len(currency.Networks) == 0 {
		return "", fmt.Errorf("no networks supported for %s", symbol)
	}

	networks := currency.DepositNetworks()
	if len(networks) == 0 {
		return "", fmt.Errorf("no deposit network for %s", symbol)
	}

	c.logger.Debug("deposit-network-resolved",
		zap.String("symbol", symbol),
		zap.String("network", networks[0]))

	return networks[0], nil
}

// guarded reclassifies access failures and turns library network failures
// into *types.ClientError. Anything else is returned unchanged.
func guarded[T any](c *Client, method string, permission types.Permission, fn func() (T, error)) (T, error) {
	result, err := exchanges.CatchAccessErrors(c.guard, method, permission, fn)
	if err == nil || types.IsAccessError(err) {
		return result, err
	}

	if unified.IsNetworkKind(err) {
		var zero T
		return zero, &types.ClientError{Exchange: c.exchange, Message: method + " failed", Err: err}
	}
	return result, err
}

var _ exchanges.Client = (*Client)(nil)
