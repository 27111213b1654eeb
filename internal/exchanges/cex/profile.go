package cex

import (
	"strings"

	"github.com/mselser95/mm-oracle/internal/exchanges/unified"
)

// Pagination is how an exchange pages its trade history.
type Pagination int

const (
	// PaginationSinceLimit advances a since timestamp by the last trade seen.
	PaginationSinceLimit Pagination = iota
	// PaginationPageNumber walks numbered pages of a fixed window.
	PaginationPageNumber
	// PaginationCursor follows an opaque cursor returned with each page.
	PaginationCursor
)

func (p Pagination) String() string {
	switch p {
	case PaginationPageNumber:
		return "page-number"
	case PaginationCursor:
		return "cursor"
	default:
		return "since-limit"
	}
}

// AccessPattern marks a library error as an access error. An empty Kind
// matches any kind.
type AccessPattern struct {
	Kind     unified.Kind
	Contains string
}

// Matches reports whether err fits the pattern.
func (p AccessPattern) Matches(err error) bool {
	if err == nil {
		return false
	}
	if p.Kind != "" && unified.KindOf(err) != p.Kind {
		return false
	}
	return strings.Contains(err.Error(), p.Contains)
}

// Profile holds the per-exchange differences of the library-backed client.
type Profile struct {
	Exchange   string
	Pagination Pagination
	PageSize   int
	MaxPages   int // page-number mode only
	// MaxLimit caps the widened since-limit request; 0 means no cap.
	MaxLimit int

	// DepositNetwork is passed when fetching deposit addresses.
	DepositNetwork string
	// SandboxDepositNetwork resolves the network through FetchCurrencies
	// when running against a sandbox.
	SandboxDepositNetwork bool

	AccessPatterns []AccessPattern
}

// IsAccessError reports whether err means the key lacks access, either by
// library kind or by one of the profile's patterns.
func (p Profile) IsAccessError(err error) bool {
	if unified.IsAccessKind(err) {
		return true
	}
	for _, pattern := range p.AccessPatterns {
		if pattern.Matches(err) {
			return true
		}
	}
	return false
}

//nolint:gochecknoglobals // static profile table
var profiles = map[string]Profile{
	"binance": {
		Exchange:   "binance",
		Pagination: PaginationSinceLimit,
		PageSize:   500,
		MaxLimit:   1000,
	},
	"mexc": {
		Exchange:   "mexc",
		Pagination: PaginationSinceLimit,
		PageSize:   50,
		MaxLimit:   100,
		AccessPatterns: []AccessPattern{
			// api key removed; it stays valid on their side for a while
			{Contains: "10072"},
			// key has an IP whitelist without our address
			{Contains: "700006"},
			// user has not created a deposit address yet
			{Kind: unified.KindInvalidAddress, Contains: "cannot find a deposit address"},
		},
	},
	"gate": {
		Exchange:       "gate",
		Pagination:     PaginationPageNumber,
		PageSize:       100,
		MaxPages:       100,
		DepositNetwork: "ERC20",
		AccessPatterns: []AccessPattern{
			{Kind: unified.KindInvalidAddress, Contains: "address is undefined"},
		},
	},
	"bybit": {
		Exchange:              "bybit",
		Pagination:            PaginationCursor,
		PageSize:              100,
		SandboxDepositNetwork: true,
	},
	"bigone": {
		Exchange:       "bigone",
		PageSize:       200,
		DepositNetwork: "Ethereum",
	},
	"xt": {
		Exchange:       "xt",
		Pagination:     PaginationSinceLimit,
		PageSize:       50,
		MaxLimit:       100,
		DepositNetwork: "ETH",
	},
}

// ProfileFor returns the profile of exchange.
func ProfileFor(exchange string) (Profile, bool) {
	p, ok := profiles[exchange]
	return p, ok
}
