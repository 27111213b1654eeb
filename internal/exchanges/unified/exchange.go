// Package unified is a small multi-exchange REST library. Every driver
// exposes the same Exchange interface: market metadata, account trades,
// balances and deposit addresses, with failures reported as *Error values
// of a fixed set of kinds.
package unified

import (
	"context"
	"fmt"
	"net/http"
	"sort"
	"time"

	"github.com/mselser95/mm-oracle/internal/circuitbreaker"
	"github.com/mselser95/mm-oracle/pkg/types"
	"go.uber.org/zap"
)

// Feature is an optional driver capability.
type Feature string

const (
	FeatureSandbox         Feature = "sandbox"
	FeatureFetchCurrencies Feature = "fetchCurrencies"
	FeatureDepositAddress  Feature = "fetchDepositAddress"
)

// Market is spot market metadata keyed by unified symbol BASE/QUOTE.
type Market struct {
	Symbol string `json:"symbol"`
	ID     string `json:"id"` // exchange-native identifier
	Base   string `json:"base"`
	Quote  string `json:"quote"`
	Active bool   `json:"active"`
}

// Markets maps unified symbol to market.
type Markets map[string]Market

// Network is one deposit/withdrawal chain of a currency.
type Network struct {
	ID      string `json:"id"`
	Deposit bool   `json:"deposit"`
}

// Currency holds the networks a currency can move on.
type Currency struct {
	Code     string    `json:"code"`
	Networks []Network `json:"networks"`
}

// DepositNetworks returns the networks open for deposits, sorted by id.
func (c Currency) DepositNetworks() []string {
	var ids []string
	for _, n := range c.Networks {
		if n.Deposit {
			ids = append(ids, n.ID)
		}
	}
	sort.Strings(ids)
	return ids
}

// Credentials authenticate private endpoints. CEX drivers use the key pair,
// wallet-addressed drivers use WalletAddress.
type Credentials struct {
	APIKey        string
	Secret        string
	WalletAddress string
}

// TradeParams carries the paging inputs a driver may honour.
type TradeParams struct {
	Until  int64  // ms, exclusive; 0 means unset
	Cursor string // opaque cursor from the previous page
	Page   int    // 1-based page number for page-numbered endpoints
	User   string // account address for wallet-addressed drivers
}

// TradePage is one page of account trades.
type TradePage struct {
	Trades     []types.Trade
	NextCursor string
}

// Exchange is the driver interface.
type Exchange interface {
	ID() string
	Has(feature Feature) bool

	// LoadMarkets fetches spot markets once and caches them; reload refetches.
	LoadMarkets(ctx context.Context, reload bool) (Markets, error)
	// SetMarkets installs a preloaded snapshot.
	SetMarkets(markets Markets)

	FetchMyTrades(ctx context.Context, symbol string, since int64, limit int, params TradeParams) (TradePage, error)
	FetchBalance(ctx context.Context) (types.AccountBalance, error)
	FetchDepositAddress(ctx context.Context, code string, network string) (string, error)
	FetchCurrencies(ctx context.Context) (map[string]Currency, error)
}

// Options configures a driver instance.
type Options struct {
	Credentials Credentials
	Sandbox     bool

	// BaseURL overrides the production or sandbox endpoint.
	BaseURL string

	Timeout    time.Duration
	HTTPClient *http.Client

	// Breaker is shared by all instances of one exchange.
	Breaker *circuitbreaker.Breaker

	// Markets is an optional preloaded snapshot.
	Markets Markets

	Logger *zap.Logger
}

type driverSpec struct {
	id             string
	baseURL        string
	sandboxURL     string
	requestsPerSec float64
	burst          int
	features       []Feature
	build          func(b *base) Exchange
}

//nolint:gochecknoglobals // driver registry
var drivers = map[string]driverSpec{}

func register(spec driverSpec) {
	drivers[spec.id] = spec
}

// Supported reports whether a driver exists for id.
func Supported(id string) bool {
	_, ok := drivers[id]
	return ok
}

// SupportedIDs lists driver ids in sorted order.
func SupportedIDs() []string {
	ids := make([]string, 0, len(drivers))
	for id := range drivers {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// HasSandbox reports whether the driver for id can run against a sandbox.
func HasSandbox(id string) bool {
	spec, ok := drivers[id]
	return ok && spec.sandboxURL != ""
}

// New builds the driver for id.
func New(id string, opts Options) (Exchange, error) {
	spec, ok := drivers[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownExchange, id)
	}

	if opts.Sandbox && spec.sandboxURL == "" && opts.BaseURL == "" {
		return nil, newError(id, KindNotSupported, 0, "sandbox mode is not supported")
	}

	b := newBase(spec, opts)
	return spec.build(b), nil
}

// NewBreaker returns a circuit breaker for one exchange that only counts
// network-class failures.
func NewBreaker(id string, logger *zap.Logger) (*circuitbreaker.Breaker, error) {
	cfg := circuitbreaker.DefaultConfig(id, logger)
	cfg.Counts = IsNetworkKind
	return circuitbreaker.New(cfg)
}
