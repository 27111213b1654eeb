package cex

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/mselser95/mm-oracle/internal/exchanges"
	"github.com/mselser95/mm-oracle/internal/exchanges/unified"
	"github.com/mselser95/mm-oracle/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func newTestClient(t *testing.T, exchange string, sandbox bool, handler http.HandlerFunc) *Client {
	t.Helper()

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client, err := New(Config{
		Exchange:            exchange,
		UserID:              "user-1",
		APIKey:              "key",
		Secret:              "secret",
		Sandbox:             sandbox,
		BaseURL:             server.URL,
		Timeout:             5 * time.Second,
		LogPermissionErrors: true,
		Logger:              zaptest.NewLogger(t),
	})
	require.NoError(t, err)
	return client
}

func TestNew_Validation(t *testing.T) {
	t.Parallel()

	var argErr *types.ArgumentError

	_, err := New(Config{Exchange: "xt", UserID: "u"})
	require.ErrorAs(t, err, &argErr)
	assert.Contains(t, argErr.Message, "exchange not supported")

	_, err = New(Config{Exchange: "binance"})
	require.ErrorAs(t, err, &argErr)
	assert.Equal(t, "userId is missing", argErr.Message)

	client, err := New(Config{Exchange: "binance", UserID: "u"})
	require.NoError(t, err)
	assert.False(t, client.CheckRequiredCredentials())
}

func TestFetchBalance_ErrorMapping(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		exchange   string
		status     int
		body       string
		wantAccess bool
		wantClient bool
	}{
		{"binance-auth", "binance", 401, `{"code":-2015,"msg":"Invalid API-key"}`, true, false},
		{"mexc-removed-key", "mexc", 400, `{"code":10072,"msg":"Api key info invalid"}`, true, false},
		{"mexc-ip-whitelist", "mexc", 400, `{"code":700006,"msg":"ip not in whitelist"}`, true, false},
		{"binance-unavailable", "binance", 503, `maintenance`, false, true},
		{"binance-generic", "binance", 400, `{"code":-9999,"msg":"odd"}`, false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := newTestClient(t, tt.exchange, false, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = io.WriteString(w, tt.body)
			})

			_, err := client.FetchBalance(context.Background())
			require.Error(t, err)
			assert.Equal(t, tt.wantAccess, types.IsAccessError(err), "access: %v", err)
			assert.Equal(t, tt.wantClient, types.IsClientError(err), "client: %v", err)

			if tt.wantAccess {
				var accessErr *types.AccessError
				require.ErrorAs(t, err, &accessErr)
				assert.Equal(t, types.PermissionViewAccountBalance, accessErr.Permission)
			}
			if !tt.wantAccess && !tt.wantClient {
				assert.NotEmpty(t, unified.KindOf(err), "library error should pass through unchanged")
			}
		})
	}
}

func TestFetchDepositAddress_PatternsPerExchange(t *testing.T) {
	t.Parallel()

	gate := newTestClient(t, "gate", false, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"currency":"ETH","address":"","multichain_addresses":[]}`)
	})
	_, err := gate.FetchDepositAddress(context.Background(), "ETH")
	assert.True(t, types.IsAccessError(err), "gate undefined address should be an access error: %v", err)

	binance := newTestClient(t, "binance", false, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"coin":"ETH","address":""}`)
	})
	_, err = binance.FetchDepositAddress(context.Background(), "ETH")
	assert.False(t, types.IsAccessError(err), "binance has no invalid-address pattern: %v", err)
	assert.True(t, errors.Is(err, unified.ErrInvalidAddress))
}

func TestFetchDepositAddress_BybitSandboxNetwork(t *testing.T) {
	t.Parallel()

	client := newTestClient(t, "bybit", true, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/v5/asset/coin/query-info":
			_, _ = io.WriteString(w, `{"retCode":0,"retMsg":"OK","result":{"rows":[{"coin":"ETH","chains":[
				{"chain":"OP","chainDeposit":"1"},
				{"chain":"ARBI","chainDeposit":"1"},
				{"chain":"AAA","chainDeposit":"0"}
			]}]}}`)
		case "/v5/asset/deposit/query-address":
			if got := r.URL.Query().Get("chainType"); got != "ARBI" {
				t.Errorf("expected first sorted deposit network ARBI, got %q", got)
			}
			_, _ = io.WriteString(w, `{"retCode":0,"retMsg":"OK","result":{"coin":"ETH","chains":[{"chainType":"ARBI","chain":"ARBI","addressDeposit":"0xabc"}]}}`)
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
		}
	})

	addr, err := client.FetchDepositAddress(context.Background(), "ETH")
	require.NoError(t, err)
	assert.Equal(t, "0xabc", addr)
}

func TestFetchMyTrades_Binance(t *testing.T) {
	t.Parallel()

	base := time.Now().Add(-time.Hour).UnixMilli()
	calls := 0
	client := newTestClient(t, "binance", false, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/v3/exchangeInfo":
			_, _ = io.WriteString(w, `{"symbols":[{"symbol":"ETHUSDT","status":"TRADING","baseAsset":"ETH","quoteAsset":"USDT"}]}`)
		case "/api/v3/myTrades":
			calls++
			_, _ = fmt.Fprintf(w, `[
				{"id":2,"price":"10","qty":"1","quoteQty":"10","time":%d,"isBuyer":true,"isMaker":false},
				{"id":1,"price":"10","qty":"1","quoteQty":"10","time":%d,"isBuyer":true,"isMaker":false},
				{"id":3,"price":"10","qty":"1","quoteQty":"10","time":%d,"isBuyer":false,"isMaker":true}
			]`, base+1000, base, base+2000)
		}
	})

	it, err := client.FetchMyTrades(context.Background(), "ETH/USDT", base, base+2000)
	require.NoError(t, err)

	trades, err := exchanges.Collect(context.Background(), it)
	require.NoError(t, err)
	require.Len(t, trades, 2)
	assert.Equal(t, base, trades[0].Timestamp)
	assert.Equal(t, base+1000, trades[1].Timestamp)
	assert.Equal(t, 1, calls)
}

func TestFetchMyTrades_RejectsBadArguments(t *testing.T) {
	t.Parallel()

	now := time.Now().UnixMilli()
	tests := []struct {
		name     string
		symbol   string
		since    int64
		until    int64
		argument string
	}{
		{name: "until_before_since", symbol: "ETH/USDT", since: now - 1000, until: now - 2000, argument: "until"},
		{name: "since_too_old", symbol: "ETH/USDT", since: 1000, until: now, argument: "since"},
		{name: "until_in_future", symbol: "ETH/USDT", since: now - 1000, until: now + time.Hour.Milliseconds(), argument: "until"},
		{name: "symbol_without_quote", symbol: "ETHUSDT", since: now - 1000, until: now, argument: "symbol"},
		{name: "lowercase_symbol", symbol: "eth/usdt", since: now - 1000, until: now, argument: "symbol"},
	}

	client := newTestClient(t, "binance", false, func(w http.ResponseWriter, r *http.Request) {
		t.Errorf("unexpected request to %s", r.URL.Path)
	})

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := client.FetchMyTrades(context.Background(), tt.symbol, tt.since, tt.until)
			var argErr *types.ArgumentError
			require.ErrorAs(t, err, &argErr)
			assert.Equal(t, tt.argument, argErr.Argument)
		})
	}
}

func TestCheckRequiredAccess_DepositMissing(t *testing.T) {
	t.Parallel()

	client := newTestClient(t, "mexc", false, func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.URL.Path == "/api/v3/account":
			_, _ = io.WriteString(w, `{"balances":[{"asset":"ETH","free":"1","locked":"0"}]}`)
		case r.URL.Path == "/api/v3/exchangeInfo":
			_, _ = io.WriteString(w, `{"symbols":[{"symbol":"ETHUSDT","status":"1","baseAsset":"ETH","quoteAsset":"USDT"}]}`)
		case r.URL.Path == "/api/v3/myTrades":
			_, _ = io.WriteString(w, `[]`)
		case strings.HasSuffix(r.URL.Path, "/deposit/address"):
			_, _ = io.WriteString(w, `[]`)
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
		}
	})

	result, err := client.CheckRequiredAccess(context.Background(), types.AllPermissions())
	require.NoError(t, err)
	assert.False(t, result.Success)
	assert.Equal(t, []types.Permission{types.PermissionViewDepositAddress}, result.Missing)
}

func TestCheckRequiredAccess_NetworkFailure(t *testing.T) {
	t.Parallel()

	client := newTestClient(t, "binance", false, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})

	_, err := client.CheckRequiredAccess(context.Background(), []types.Permission{types.PermissionViewAccountBalance})
	var clientErr *types.ClientError
	require.ErrorAs(t, err, &clientErr)
	assert.Equal(t, "error while checking exchange access", clientErr.Message)
}

func TestProfiles(t *testing.T) {
	t.Parallel()

	gate, ok := ProfileFor("gate")
	require.True(t, ok)
	assert.Equal(t, "ERC20", gate.DepositNetwork)
	assert.Equal(t, PaginationPageNumber, gate.Pagination)
	assert.Equal(t, 100, gate.MaxPages)

	xt, ok := ProfileFor("xt")
	require.True(t, ok)
	assert.Equal(t, "ETH", xt.DepositNetwork)

	bigone, ok := ProfileFor("bigone")
	require.True(t, ok)
	assert.Equal(t, "Ethereum", bigone.DepositNetwork)

	mexc, _ := ProfileFor("mexc")
	assert.True(t, mexc.IsAccessError(errors.New("mexc ExchangeError: 10072 Api key info invalid")))
	assert.False(t, mexc.IsAccessError(errors.New("mexc ExchangeError: 30004 insufficient balance")))
}
