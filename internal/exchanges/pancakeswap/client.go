// Package pancakeswap implements exchanges.Client for PancakeSwap on BSC.
// Trades are read from the exchange subgraph; swaps are always taker fills.
package pancakeswap

import (
	"context"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/mselser95/mm-oracle/internal/exchanges"
	"github.com/mselser95/mm-oracle/pkg/types"
	"github.com/mselser95/mm-oracle/pkg/wallet"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const defaultTimeout = 30 * time.Second

// Config holds the inputs of one per-user client.
type Config struct {
	UserID         string
	UserEvmAddress string

	SubgraphURL    string
	SubgraphAPIKey string
	Timeout        time.Duration
	HTTPClient     *http.Client

	// Wallet reads on-chain balances; FetchBalance is not supported without it.
	Wallet *wallet.Client

	Logger *zap.Logger
}

// Client is a per-user PancakeSwap client.
type Client struct {
	userID  string
	address common.Address

	subgraph *subgraphClient
	wallet   *wallet.Client
	logger   *zap.Logger
}

// New creates a client.
func New(cfg Config) (*Client, error) {
	if cfg.UserID == "" {
		return nil, &types.ArgumentError{Argument: "userId", Message: "userId is missing"}
	}
	if !common.IsHexAddress(cfg.UserEvmAddress) {
		return nil, &types.ArgumentError{Argument: "userEvmAddress", Message: "not a hex EVM address"}
	}
	if cfg.SubgraphURL == "" {
		return nil, &types.ArgumentError{Argument: "subgraphUrl", Message: "subgraph url is missing"}
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = defaultTimeout
		}
		httpClient = &http.Client{Timeout: timeout}
	}

	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Client{
		userID:  cfg.UserID,
		address: common.HexToAddress(cfg.UserEvmAddress),
		subgraph: &subgraphClient{
			url:        cfg.SubgraphURL,
			apiKey:     cfg.SubgraphAPIKey,
			httpClient: httpClient,
			limiter:    rate.NewLimiter(rate.Limit(5), 5),
		},
		wallet: cfg.Wallet,
		logger: logger.With(
			zap.String("exchange", exchanges.PancakeSwap),
			zap.String("user-id", cfg.UserID)),
	}, nil
}

// ExchangeName implements exchanges.Client.
func (c *Client) ExchangeName() string {
	return exchanges.PancakeSwap
}

// CheckRequiredCredentials implements exchanges.Client. The wallet address
// was checked at construction.
func (c *Client) CheckRequiredCredentials() bool {
	return true
}

// CheckRequiredAccess implements exchanges.Client. Subgraph data is
// public, so every check succeeds.
func (c *Client) CheckRequiredAccess(ctx context.Context, permissions []types.Permission) (types.AccessCheckResult, error) {
	return types.AccessCheckResult{Success: true}, nil
}

// direction is one side of a pair: swaps from tokenIn into tokenOut.
type direction struct {
	side      types.Side
	tokenIn   string
	tokenOut  string
	skip      int
	exhausted bool
}

// FetchMyTrades implements exchanges.Client. Each page queries both swap
// directions until each comes back empty. A stale or broken subgraph fails
// the scan before the first page.
func (c *Client) FetchMyTrades(ctx context.Context, symbol string, since, until int64) (exchanges.TradeIterator, error) {
	err := exchanges.ValidateWindow(since, until, exchanges.DefaultMaxLookback)
	if err != nil {
		return nil, err
	}

	baseSymbol, quoteSymbol, err := exchanges.SplitSymbol(symbol)
	if err != nil {
		return nil, err
	}
	baseToken, ok := TokenFor(baseSymbol)
	if !ok {
		return nil, &types.ArgumentError{Argument: "symbol", Message: "missing token address for base token " + baseSymbol}
	}
	quoteToken, ok := TokenFor(quoteSymbol)
	if !ok {
		return nil, &types.ArgumentError{Argument: "symbol", Message: "missing token address for quote token " + quoteSymbol}
	}

	base := subgraphID(baseToken.Address)
	quote := subgraphID(quoteToken.Address)
	directions := []*direction{
		{side: types.SideBuy, tokenIn: quote, tokenOut: base},
		{side: types.SideSell, tokenIn: base, tokenOut: quote},
	}

	// trades are stamped in whole seconds
	sinceSec := ceilDiv(since, 1000)
	untilSec := ceilDiv(until, 1000)
	account := subgraphID(c.address)
	checked := false

	fetch := func(ctx context.Context) ([]types.Trade, bool, error) {
		if !checked {
			err := c.assertSubgraphFresh(ctx, until)
			if err != nil {
				return nil, true, err
			}
			checked = true
		}

		var trades []types.Trade
		for _, d := range directions {
			if d.exhausted {
				continue
			}

			swaps, err := c.subgraph.swaps(ctx, account, d.tokenIn, d.tokenOut, sinceSec, untilSec, d.skip)
			if err != nil {
				c.logger.Error("fetch-trades-failed",
					zap.String("symbol", symbol),
					zap.String("side", string(d.side)),
					zap.Int("skip", d.skip),
					zap.Error(err))
				return nil, true, &types.ClientError{Exchange: exchanges.PancakeSwap, Message: "Failed to fetch trades", Err: err}
			}

			if len(swaps) == 0 {
				d.exhausted = true
				continue
			}
			d.skip += len(swaps)

			for _, swap := range swaps {
				trade, err := mapSwap(swap, symbol, d.side)
				if err != nil {
					return nil, true, &types.ClientError{Exchange: exchanges.PancakeSwap, Message: "malformed swap", Err: err}
				}
				if trade.Timestamp >= since && trade.Timestamp < until {
					trades = append(trades, trade)
				}
			}
		}

		sort.SliceStable(trades, func(i, j int) bool {
			return trades[i].Timestamp < trades[j].Timestamp
		})

		done := true
		for _, d := range directions {
			if !d.exhausted {
				done = false
			}
		}
		return trades, done, nil
	}

	return exchanges.NewPageIterator(exchanges.PancakeSwap, fetch), nil
}

// assertSubgraphFresh fails when the subgraph has indexing errors or has
// not indexed up to until.
func (c *Client) assertSubgraphFresh(ctx context.Context, until int64) error {
	meta, err := c.subgraph.meta(ctx)
	if err != nil {
		c.logger.Error("subgraph-meta-failed", zap.Error(err))
		return &types.ClientError{Exchange: exchanges.PancakeSwap, Message: "Failed to fetch subgraph meta", Err: err}
	}
	if meta.HasIndexingErrors {
		return &types.ClientError{Exchange: exchanges.PancakeSwap, Message: "Subgraph has indexing errors"}
	}

	indexedUntil := int64(meta.Block.Timestamp) * 1000
	if indexedUntil < until {
		c.logger.Warn("subgraph-stale",
			zap.Int64("indexed-until", indexedUntil),
			zap.Int64("until", until),
			zap.Int64("block", int64(meta.Block.Number)))
		return &types.ClientError{
			Exchange: exchanges.PancakeSwap,
			Message:  fmt.Sprintf("Subgraph is stale: indexed until %d", indexedUntil),
		}
	}
	return nil
}

func mapSwap(swap subgraphSwap, symbol string, side types.Side) (types.Trade, error) {
	amountIn, err := formatUnits(swap.AmountIn, int32(swap.TokenIn.Decimals))
	if err != nil {
		return types.Trade{}, fmt.Errorf("amountIn: %w", err)
	}
	amountOut, err := formatUnits(swap.AmountOut, int32(swap.TokenOut.Decimals))
	if err != nil {
		return types.Trade{}, fmt.Errorf("amountOut: %w", err)
	}

	amount, cost := amountIn, amountOut
	if side == types.SideBuy {
		amount, cost = amountOut, amountIn
	}

	price := decimal.Zero
	if !amount.IsZero() {
		price = cost.Div(amount)
	}

	return types.Trade{
		ID:           swap.Hash,
		Timestamp:    int64(swap.Timestamp) * 1000,
		Symbol:       symbol,
		Side:         side,
		TakerOrMaker: types.Taker,
		Price:        price.InexactFloat64(),
		Amount:       amount.InexactFloat64(),
		Cost:         cost.InexactFloat64(),
	}, nil
}

// formatUnits scales a raw integer amount down by decimals.
func formatUnits(raw string, decimals int32) (decimal.Decimal, error) {
	value, err := decimal.NewFromString(strings.TrimSpace(raw))
	if err != nil {
		return decimal.Zero, err
	}
	return value.Shift(-decimals), nil
}

func ceilDiv(a, b int64) int64 {
	q := a / b
	if a%b != 0 && a > 0 {
		q++
	}
	return q
}

// FetchBalance implements exchanges.Client from on-chain ERC-20 balances of
// the token table.
func (c *Client) FetchBalance(ctx context.Context) (types.AccountBalance, error) {
	if c.wallet == nil {
		return nil, fmt.Errorf("%s fetchBalance: %w", exchanges.PancakeSwap, types.ErrNotSupported)
	}

	balances, err := c.wallet.TokenBalances(ctx, c.address, Tokens())
	if err != nil {
		return nil, &types.ClientError{Exchange: exchanges.PancakeSwap, Message: "Failed to fetch balance", Err: err}
	}

	result := make(types.AccountBalance, len(balances))
	for _, b := range balances {
		total := b.Amount.InexactFloat64()
		result[b.Token.Symbol] = types.AssetBalance{Free: total, Total: total}
	}
	return result, nil
}

// FetchDepositAddress implements exchanges.Client. A DEX has no deposit
// addresses.
func (c *Client) FetchDepositAddress(ctx context.Context, symbol string) (string, error) {
	return "", fmt.Errorf("%s fetchDepositAddress: %w", exchanges.PancakeSwap, types.ErrNotSupported)
}

var _ exchanges.Client = (*Client)(nil)
