package hyperliquid

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	json "github.com/goccy/go-json"
	"github.com/mselser95/mm-oracle/internal/exchanges"
	"github.com/mselser95/mm-oracle/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

const wallet = "0x1111111111111111111111111111111111111111"

type fill struct {
	coin string
	time int64
	tid  int
}

// fillServer answers spotMeta and userFillsByTime from fills, honouring
// startTime and endTime.
func fillServer(t *testing.T, fills []fill, starts *[]int64) *httptest.Server {
	t.Helper()

	var mu sync.Mutex
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		var req struct {
			Type      string `json:"type"`
			User      string `json:"user"`
			StartTime int64  `json:"startTime"`
			EndTime   int64  `json:"endTime"`
		}
		_ = json.Unmarshal(body, &req)

		switch req.Type {
		case "spotMeta":
			_, _ = io.WriteString(w, `{"universe":[{"name":"@1","tokens":[1,0]}],"tokens":[{"name":"USDC","index":0},{"name":"HYPE","index":1}]}`)
		case "userFillsByTime":
			assert.Equal(t, wallet, req.User)
			mu.Lock()
			*starts = append(*starts, req.StartTime)
			mu.Unlock()

			var out []string
			for _, f := range fills {
				if f.time >= req.StartTime && (req.EndTime == 0 || f.time <= req.EndTime) {
					out = append(out, fmt.Sprintf(`{"coin":%q,"px":"2","sz":"3","side":"B","time":%d,"hash":"0x%d","tid":%d,"crossed":true}`,
						f.coin, f.time, f.tid, f.tid))
				}
			}
			_, _ = io.WriteString(w, "["+strings.Join(out, ",")+"]")
		case "spotClearinghouseState":
			_, _ = io.WriteString(w, `{"balances":[{"coin":"HYPE","hold":"1","total":"4"}]}`)
		default:
			w.WriteHeader(http.StatusBadRequest)
		}
	}))
	t.Cleanup(server.Close)
	return server
}

func newTestClient(t *testing.T, baseURL string) *Client {
	t.Helper()

	client, err := New(Config{
		UserID:         "user-1",
		UserEvmAddress: wallet,
		BaseURL:        baseURL,
		Timeout:        5 * time.Second,
		Logger:         zaptest.NewLogger(t),
	})
	require.NoError(t, err)
	return client
}

func TestNew_Validation(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		cfg      Config
		argument string
	}{
		{"missing-user", Config{UserEvmAddress: wallet}, "userId"},
		{"missing-address", Config{UserID: "u"}, "userEvmAddress"},
		{"malformed-address", Config{UserID: "u", UserEvmAddress: "0x123"}, "userEvmAddress"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			_, err := New(tt.cfg)
			var argErr *types.ArgumentError
			require.ErrorAs(t, err, &argErr)
			assert.Equal(t, tt.argument, argErr.Argument)
		})
	}

	client, err := New(Config{UserID: "u", UserEvmAddress: wallet})
	require.NoError(t, err)
	assert.True(t, client.CheckRequiredCredentials())

	result, err := client.CheckRequiredAccess(context.Background(), types.AllPermissions())
	require.NoError(t, err)
	assert.True(t, result.Success)
}

func TestFetchMyTrades_AdvancesCursor(t *testing.T) {
	t.Parallel()

	now := time.Now().UnixMilli()
	since := now - 10_000
	until := now - 1_000

	fills := []fill{
		{"@1", since - 5, 1},
		{"@1", since + 100, 2},
		{"ETH", since + 150, 3},
		{"@1", since + 200, 4},
	}

	var starts []int64
	server := fillServer(t, fills, &starts)
	client := newTestClient(t, server.URL)

	it, err := client.FetchMyTrades(context.Background(), "HYPE/USDC", since, until)
	require.NoError(t, err)

	trades, err := exchanges.Collect(context.Background(), it)
	require.NoError(t, err)

	require.Len(t, trades, 2)
	assert.Equal(t, "2", trades[0].ID)
	assert.Equal(t, "4", trades[1].ID)
	assert.Equal(t, types.SideBuy, trades[0].Side)
	assert.Equal(t, types.Taker, trades[0].TakerOrMaker)

	assert.Equal(t, []int64{since, since + 201}, starts, "cursor should move past the last fill read")
}

func tradeIDs(trades []types.Trade) []string {
	ids := make([]string, 0, len(trades))
	for _, t := range trades {
		ids = append(ids, t.ID)
	}
	return ids
}

func TestFetchMyTrades_TieAcrossFullPage(t *testing.T) {
	t.Parallel()

	now := time.Now().UnixMilli()
	since := now - 10_000
	until := now - 1_000

	fills := []fill{
		{"@1", since + 100, 1},
		{"@1", since + 200, 2},
		{"@1", since + 200, 3},
		{"@1", since + 300, 4},
	}

	var starts []int64
	server := fillServer(t, fills, &starts)
	client, err := New(Config{
		UserID:         "user-1",
		UserEvmAddress: wallet,
		BaseURL:        server.URL,
		Timeout:        5 * time.Second,
		PageSize:       2,
		Logger:         zaptest.NewLogger(t),
	})
	require.NoError(t, err)

	it, err := client.FetchMyTrades(context.Background(), "HYPE/USDC", since, until)
	require.NoError(t, err)

	trades, err := exchanges.Collect(context.Background(), it)
	require.NoError(t, err)

	assert.Equal(t, []string{"1", "2", "3", "4"}, tradeIDs(trades))
	assert.Equal(t, []int64{since, since + 200, since + 200, since + 201, since + 301}, starts,
		"a full page restarts at its last millisecond")
}

func TestFetchMyTrades_ServerIgnoresStartTime(t *testing.T) {
	t.Parallel()

	now := time.Now().UnixMilli()
	since := now - 10_000
	until := now - 1_000

	var mu sync.Mutex
	requests := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		switch {
		case strings.Contains(string(body), "spotMeta"):
			_, _ = io.WriteString(w, `{"universe":[{"name":"@1","tokens":[1,0]}],"tokens":[{"name":"USDC","index":0},{"name":"HYPE","index":1}]}`)
		case strings.Contains(string(body), "userFillsByTime"):
			mu.Lock()
			requests++
			mu.Unlock()
			// always the same fills, whatever the requested start
			_, _ = fmt.Fprintf(w, `[
				{"coin":"@1","px":"2","sz":"3","side":"B","time":%d,"hash":"0x1","tid":1,"crossed":true},
				{"coin":"@1","px":"2","sz":"3","side":"A","time":%d,"hash":"0x2","tid":2,"crossed":false}
			]`, since+100, since+200)
		default:
			w.WriteHeader(http.StatusBadRequest)
		}
	}))
	t.Cleanup(server.Close)
	client := newTestClient(t, server.URL)

	it, err := client.FetchMyTrades(context.Background(), "HYPE/USDC", since, until)
	require.NoError(t, err)

	done := make(chan struct{})
	var trades []types.Trade
	go func() {
		defer close(done)
		trades, err = exchanges.Collect(context.Background(), it)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("pagination did not terminate")
	}

	require.NoError(t, err)
	assert.Equal(t, []string{"1", "2"}, tradeIDs(trades))
	assert.Equal(t, 2, requests)
}

func TestFetchMyTrades_Window(t *testing.T) {
	t.Parallel()

	client, err := New(Config{UserID: "u", UserEvmAddress: wallet})
	require.NoError(t, err)

	now := time.Now().UnixMilli()
	_, err = client.FetchMyTrades(context.Background(), "HYPE/USDC", now, now-1)
	var argErr *types.ArgumentError
	require.ErrorAs(t, err, &argErr)

	_, err = client.FetchMyTrades(context.Background(), "HYPE/USDC", now-1000, now+60_000)
	require.ErrorAs(t, err, &argErr)
	assert.Equal(t, "until", argErr.Argument)
}

func TestFetchMyTrades_LibraryFailure(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	t.Cleanup(server.Close)
	client := newTestClient(t, server.URL)

	now := time.Now().UnixMilli()
	it, err := client.FetchMyTrades(context.Background(), "HYPE/USDC", now-1000, now)
	require.NoError(t, err)

	_, err = it.Next(context.Background())
	var clientErr *types.ClientError
	require.ErrorAs(t, err, &clientErr)
	assert.Equal(t, "Failed to fetch trades", clientErr.Message)
}

func TestFetchBalanceAndDepositAddress(t *testing.T) {
	t.Parallel()

	var starts []int64
	server := fillServer(t, nil, &starts)
	client := newTestClient(t, server.URL)

	balance, err := client.FetchBalance(context.Background())
	require.NoError(t, err)
	assert.Equal(t, types.AssetBalance{Free: 3, Used: 1, Total: 4}, balance["HYPE"])

	_, err = client.FetchDepositAddress(context.Background(), "HYPE")
	assert.True(t, errors.Is(err, types.ErrNotSupported))
}
