package exchanges

import (
	"errors"
	"testing"
	"time"

	"github.com/mselser95/mm-oracle/pkg/types"
)

func TestIsAcceptableTimestamp(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	nowMs := now.UnixMilli()

	tests := []struct {
		name string
		ts   int64
		want bool
	}{
		{"now", nowMs, true},
		{"future", nowMs + 1, false},
		{"one-day-ago", nowMs - (24 * time.Hour).Milliseconds(), true},
		{"at-lookback-edge", nowMs - (90 * 24 * time.Hour).Milliseconds(), true},
		{"beyond-lookback", nowMs - (90*24*time.Hour).Milliseconds() - 1, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := isAcceptableTimestampAt(tt.ts, 90*24*time.Hour, now); got != tt.want {
				t.Errorf("expected %v, got %v", tt.want, got)
			}
		})
	}
}

func TestValidateWindow(t *testing.T) {
	t.Parallel()

	now := time.Now().UnixMilli()
	hour := time.Hour.Milliseconds()

	if err := ValidateWindow(now-hour, now-1, DefaultMaxLookback); err != nil {
		t.Errorf("unexpected error: %v", err)
	}

	var argErr *types.ArgumentError

	err := ValidateWindow(now-1, now-hour, DefaultMaxLookback)
	if !errors.As(err, &argErr) || argErr.Argument != "until" {
		t.Errorf("expected until ArgumentError, got %v", err)
	}

	err = ValidateWindow(now-400*24*hour, now-1, DefaultMaxLookback)
	if !errors.As(err, &argErr) || argErr.Argument != "since" {
		t.Errorf("expected since ArgumentError, got %v", err)
	}

	err = ValidateWindow(now-hour, now+hour, DefaultMaxLookback)
	if !errors.As(err, &argErr) || argErr.Argument != "until" {
		t.Errorf("expected until ArgumentError for future until, got %v", err)
	}
}

func TestSplitSymbol(t *testing.T) {
	t.Parallel()

	base, quote, err := SplitSymbol("ETH/USDT")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if base != "ETH" || quote != "USDT" {
		t.Errorf("expected ETH/USDT, got %s/%s", base, quote)
	}

	for _, bad := range []string{"", "ETHUSDT", "eth/usdt", "ETH/", "ETH/USDT/BTC"} {
		if _, _, err := SplitSymbol(bad); err == nil {
			t.Errorf("expected error for %q", bad)
		}
	}
}

func TestCatalog(t *testing.T) {
	t.Parallel()

	infos := Catalog()
	if len(infos) != 7 {
		t.Fatalf("expected 7 exchanges, got %d", len(infos))
	}
	for i := 1; i < len(infos); i++ {
		if infos[i-1].Name >= infos[i].Name {
			t.Errorf("catalogue not sorted at %d", i)
		}
	}

	info, ok := Lookup(PancakeSwap)
	if !ok || info.Type != types.ExchangeTypeDEX {
		t.Errorf("expected pancakeswap DEX entry, got %+v", info)
	}
	if _, ok := Lookup(XT); ok {
		t.Error("xt has no client and must not be in the catalogue")
	}
}
