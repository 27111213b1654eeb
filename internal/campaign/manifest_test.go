package campaign

import (
	"strings"
	"testing"
	"time"

	"github.com/mselser95/mm-oracle/pkg/types"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseManifest_MarketMaking(t *testing.T) {
	t.Parallel()

	m, err := ParseManifest([]byte(`{
		"type": "MARKET_MAKING",
		"exchange": "mexc",
		"pair": "HMT/USDT",
		"daily_volume_target": 1500.5,
		"start_date": "2025-01-01T00:00:00Z",
		"end_date": "2025-01-04T01:00:00Z",
		"fund_token": "USDT",
		"unknown": {"nested": true}
	}`))
	require.NoError(t, err)

	assert.Equal(t, TypeMarketMaking, m.Type)
	assert.Equal(t, "HMT/USDT", m.Market())
	assert.True(t, m.DailyTarget().Equal(decimal.RequireFromString("1500.5")))
	assert.Equal(t, int64(4), m.DurationDays())
}

func TestParseManifest_Holding(t *testing.T) {
	t.Parallel()

	m, err := ParseManifest([]byte(`{
		"type": "HOLDING",
		"exchange": "gate",
		"symbol": "HMT",
		"daily_balance_target": "250",
		"start_date": "2025-03-01T00:00:00Z",
		"end_date": "2025-03-08T00:00:00Z"
	}`))
	require.NoError(t, err)

	assert.Equal(t, "HMT", m.Market())
	assert.True(t, m.DailyTarget().Equal(decimal.NewFromInt(250)))
	assert.Equal(t, int64(7), m.DurationDays())
}

func TestParseManifest_Invalid(t *testing.T) {
	t.Parallel()

	valid := map[string]string{
		"type":                `"MARKET_MAKING"`,
		"exchange":            `"binance"`,
		"pair":                `"ETH/USDT"`,
		"daily_volume_target": `1000`,
		"start_date":          `"2025-01-01T00:00:00Z"`,
		"end_date":            `"2025-01-02T00:00:00Z"`,
	}

	build := func(overrides map[string]string) []byte {
		fields := make([]string, 0, len(valid))
		for k, v := range valid {
			if o, ok := overrides[k]; ok {
				if o == "" {
					continue
				}
				v = o
			}
			fields = append(fields, `"`+k+`":`+v)
		}
		return []byte("{" + strings.Join(fields, ",") + "}")
	}

	tests := []struct {
		name      string
		overrides map[string]string
		field     string
	}{
		{"missing-type", map[string]string{"type": ""}, "type"},
		{"unknown-type", map[string]string{"type": `"THRESHOLD"`}, "type"},
		{"missing-exchange", map[string]string{"exchange": ""}, "exchange"},
		{"missing-pair", map[string]string{"pair": ""}, "pair"},
		{"lowercase-pair", map[string]string{"pair": `"eth/usdt"`}, "pair"},
		{"token-as-pair", map[string]string{"pair": `"ETH"`}, "pair"},
		{"long-symbol", map[string]string{"pair": `"ABCDEFGHIJK/USDT"`}, "pair"},
		{"missing-target", map[string]string{"daily_volume_target": ""}, "daily_volume_target"},
		{"null-target", map[string]string{"daily_volume_target": "null"}, "daily_volume_target"},
		{"zero-target", map[string]string{"daily_volume_target": "0"}, "daily_volume_target"},
		{"missing-start", map[string]string{"start_date": ""}, "start_date"},
		{"missing-end", map[string]string{"end_date": ""}, "end_date"},
		{"end-equals-start", map[string]string{"end_date": `"2025-01-01T00:00:00Z"`}, "end_date"},
		{"end-before-start", map[string]string{"end_date": `"2024-12-31T00:00:00Z"`}, "end_date"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			_, err := ParseManifest(build(tt.overrides))
			var validationErr *types.ValidationError
			require.ErrorAs(t, err, &validationErr)
			assert.Equal(t, tt.field, validationErr.Field)
		})
	}
}

func TestParseManifest_Malformed(t *testing.T) {
	t.Parallel()

	for _, raw := range []string{`not json`, `{"exchange": 5}`, `[]`, `{"start_date": "yesterday"}`} {
		_, err := ParseManifest([]byte(raw))
		var validationErr *types.ValidationError
		assert.ErrorAs(t, err, &validationErr, raw)
	}
}

func TestDurationDays(t *testing.T) {
	t.Parallel()

	start := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name string
		end  time.Time
		want int64
	}{
		{"one-hour", start.Add(time.Hour), 1},
		{"exactly-one-day", start.Add(24 * time.Hour), 1},
		{"twenty-five-hours", start.Add(25 * time.Hour), 2},
		{"three-days-one-hour", start.Add(73 * time.Hour), 4},
		{"thirty-days", start.AddDate(0, 0, 30), 30},
		{"empty", start, 0},
		{"negative", start.Add(-time.Hour), 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, DurationDays(start, tt.end))
		})
	}
}
