// Package exchanges defines the exchange client contract and the utilities
// shared by every exchange adapter: trade iteration, permission probing,
// access-error classification and input checks.
package exchanges

import (
	"context"

	"github.com/mselser95/mm-oracle/pkg/types"
)

// Client is implemented by every exchange adapter.
//
// Every method fails with *types.AccessError, *types.ClientError or
// *types.ArgumentError. Errors the adapter does not recognize are returned
// unchanged.
type Client interface {
	// ExchangeName returns the catalogue name of the exchange.
	ExchangeName() string

	// CheckRequiredCredentials is a local check that the supplied key
	// fields are present and well formed. It never does I/O.
	CheckRequiredCredentials() bool

	// CheckRequiredAccess probes the exchange once per permission.
	CheckRequiredAccess(ctx context.Context, permissions []types.Permission) (types.AccessCheckResult, error)

	// FetchMyTrades returns the account's trades for symbol with
	// since <= timestamp < until (ms). Each batch is in ascending timestamp
	// order. Batches follow one another in ascending order too, except for
	// exchanges that only page newest first (bigone), whose batches walk
	// back in time.
	FetchMyTrades(ctx context.Context, symbol string, since, until int64) (TradeIterator, error)

	// FetchBalance returns the account balance snapshot.
	FetchBalance(ctx context.Context) (types.AccountBalance, error)

	// FetchDepositAddress returns the account's deposit address for symbol.
	FetchDepositAddress(ctx context.Context, symbol string) (string, error)
}
