package testutil

import (
	"strconv"

	"github.com/mselser95/mm-oracle/pkg/types"
)

// CreateTestTrades returns n buy trades of 1 unit at price 10, stamped
// start, start+step, ...
func CreateTestTrades(symbol string, n int, start, step int64) []types.Trade {
	trades := make([]types.Trade, 0, n)
	for i := 0; i < n; i++ {
		trades = append(trades, types.Trade{
			ID:           strconv.Itoa(i + 1),
			Timestamp:    start + int64(i)*step,
			Symbol:       symbol,
			Side:         types.SideBuy,
			TakerOrMaker: types.Taker,
			Price:        10,
			Amount:       1,
			Cost:         10,
		})
	}
	return trades
}

// TestManifestJSON is a valid MARKET_MAKING manifest.
const TestManifestJSON = `{
	"type": "MARKET_MAKING",
	"exchange": "binance",
	"pair": "ETH/USDT",
	"daily_volume_target": 1000,
	"start_date": "2026-01-01T00:00:00Z",
	"end_date": "2026-01-05T00:00:00Z"
}`
