// Package hyperliquid implements exchanges.Client for Hyperliquid spot.
// Accounts are addressed by EVM wallet; no API key is involved.
package hyperliquid

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/mselser95/mm-oracle/internal/circuitbreaker"
	"github.com/mselser95/mm-oracle/internal/exchanges"
	"github.com/mselser95/mm-oracle/internal/exchanges/unified"
	"github.com/mselser95/mm-oracle/pkg/types"
	"go.uber.org/zap"
)

// PageLimit is the most fills one userFillsByTime response carries.
const PageLimit = 2000

// Config holds the inputs of one per-user client.
type Config struct {
	UserID         string
	UserEvmAddress string

	Sandbox bool
	Markets unified.Markets
	Breaker *circuitbreaker.Breaker
	Timeout time.Duration
	BaseURL string
	// PageSize caps fills per request; defaults to PageLimit.
	PageSize int

	Logger *zap.Logger
}

// Client is a per-user Hyperliquid client.
type Client struct {
	userID   string
	address  string
	pageSize int
	lib      unified.Exchange
	logger   *zap.Logger
}

// New creates a client. Both the user id and a hex wallet address are
// required.
func New(cfg Config) (*Client, error) {
	if cfg.UserID == "" {
		return nil, &types.ArgumentError{Argument: "userId", Message: "userId is missing"}
	}
	if cfg.UserEvmAddress == "" {
		return nil, &types.ArgumentError{Argument: "userEvmAddress", Message: "userEvmAddress is missing"}
	}
	if !common.IsHexAddress(cfg.UserEvmAddress) {
		return nil, &types.ArgumentError{Argument: "userEvmAddress", Message: "not a hex EVM address"}
	}

	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.With(
		zap.String("exchange", exchanges.Hyperliquid),
		zap.Bool("sandbox", cfg.Sandbox),
		zap.String("user-id", cfg.UserID))

	lib, err := unified.New(exchanges.Hyperliquid, unified.Options{
		Credentials: unified.Credentials{WalletAddress: cfg.UserEvmAddress},
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

	pageSize := cfg.PageSize
	if pageSize <= 0 || pageSize > PageLimit {
		pageSize = PageLimit
	}

	return &Client{
		userID:   cfg.UserID,
		address:  cfg.UserEvmAddress,
		pageSize: pageSize,
		lib:      lib,
		logger:   logger,
	}, nil
}

// ExchangeName implements exchanges.Client.
func (c *Client) ExchangeName() string {
	return exchanges.Hyperliquid
}

// CheckRequiredCredentials implements exchanges.Client.
func (c *Client) CheckRequiredCredentials() bool {
	return c.userID != "" && c.address != ""
}

// CheckRequiredAccess implements exchanges.Client. Public wallet data needs
// no permission, so every check succeeds.
func (c *Client) CheckRequiredAccess(ctx context.Context, permissions []types.Permission) (types.AccessCheckResult, error) {
	return types.AccessCheckResult{Success: true}, nil
}

// FetchMyTrades implements exchanges.Client. The cursor advances to one
// millisecond past the last fill of each page. A full page may have cut a
// millisecond short, so the next request restarts at that millisecond and
// skips the fills already yielded there. Fills older than the cursor are
// dropped and the cursor never moves back.
func (c *Client) FetchMyTrades(ctx context.Context, symbol string, since, until int64) (exchanges.TradeIterator, error) {
	err := exchanges.ValidateWindow(since, until, exchanges.DefaultMaxLookback)
	if err != nil {
		return nil, err
	}

	cursor := since
	seenAtCursor := map[string]bool{}
	fetch := func(ctx context.Context) ([]types.Trade, bool, error) {
		if cursor >= until {
			return nil, true, nil
		}

		page, err := c.lib.FetchMyTrades(ctx, symbol, cursor, c.pageSize, unified.TradeParams{
			User:  c.address,
			Until: until,
		})
		if err != nil {
			c.logger.Error("fetch-trades-failed",
				zap.String("symbol", symbol),
				zap.Int64("since", since),
				zap.Int64("until", until),
				zap.Error(err))
			return nil, true, &types.ClientError{Exchange: exchanges.Hyperliquid, Message: "Failed to fetch trades", Err: err}
		}

		if len(page.Trades) == 0 {
			// the response may still have held fills of other coins
			next, ok := parseCursor(page.NextCursor)
			if !ok || next+1 <= cursor {
				return nil, true, nil
			}
			cursor = next + 1
			seenAtCursor = map[string]bool{}
			return nil, false, nil
		}

		trades := make([]types.Trade, len(page.Trades))
		copy(trades, page.Trades)
		sort.SliceStable(trades, func(i, j int) bool {
			return trades[i].Timestamp < trades[j].Timestamp
		})

		if trades[0].Timestamp >= until {
			return nil, true, nil
		}

		fresh := make([]types.Trade, 0, len(trades))
		for _, t := range trades {
			if t.Timestamp < cursor || (t.Timestamp == cursor && seenAtCursor[t.ID]) {
				continue
			}
			fresh = append(fresh, t)
		}

		full := len(page.Trades) >= c.pageSize
		last := trades[len(trades)-1].Timestamp
		next := last + 1
		if full {
			next = last
		} else if read, ok := parseCursor(page.NextCursor); ok && read+1 > next {
			next = read + 1
		}

		if len(fresh) == 0 && next <= cursor {
			if !full {
				return nil, true, nil
			}
			// a whole page inside one millisecond; move past it
			next = cursor + 1
		}
		if next > cursor {
			cursor = next
			seenAtCursor = map[string]bool{}
		}
		for _, t := range fresh {
			if t.Timestamp == cursor {
				seenAtCursor[t.ID] = true
			}
		}

		kept := make([]types.Trade, 0, len(fresh))
		for _, t := range fresh {
			if t.Timestamp >= since && t.Timestamp < until {
				kept = append(kept, t)
			}
		}
		return kept, cursor >= until, nil
	}

	return exchanges.NewPageIterator(exchanges.Hyperliquid, fetch), nil
}

func parseCursor(cursor string) (int64, bool) {
	if cursor == "" {
		return 0, false
	}
	ts, err := strconv.ParseInt(cursor, 10, 64)
	if err != nil {
		return 0, false
	}
	return ts, true
}

// FetchBalance implements exchanges.Client from the spot clearinghouse state.
func (c *Client) FetchBalance(ctx context.Context) (types.AccountBalance, error) {
	balance, err := c.lib.FetchBalance(ctx)
	if err != nil {
		return nil, &types.ClientError{Exchange: exchanges.Hyperliquid, Message: "Failed to fetch balance", Err: err}
	}
	return balance, nil
}

// FetchDepositAddress implements exchanges.Client. Hyperliquid has no
// per-account deposit addresses.
func (c *Client) FetchDepositAddress(ctx context.Context, symbol string) (string, error) {
	return "", fmt.Errorf("%s fetchDepositAddress: %w", exchanges.Hyperliquid, types.ErrNotSupported)
}

var _ exchanges.Client = (*Client)(nil)
