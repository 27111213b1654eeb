package exchanges

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/mselser95/mm-oracle/pkg/types"
)

func makeTrades(timestamps ...int64) []types.Trade {
	trades := make([]types.Trade, 0, len(timestamps))
	for _, ts := range timestamps {
		trades = append(trades, types.Trade{ID: string(rune('a' + len(trades))), Timestamp: ts, Symbol: "ETH/USDT"})
	}
	return trades
}

// pagedFetch serves trades in pages of size, the way exchanges page by limit.
func pagedFetch(trades []types.Trade, size int) PageFunc {
	offset := 0
	return func(ctx context.Context) ([]types.Trade, bool, error) {
		end := offset + size
		if end > len(trades) {
			end = len(trades)
		}
		page := trades[offset:end]
		offset = end
		return page, len(page) < size || offset == len(trades), nil
	}
}

func TestPageIterator_BatchSizes(t *testing.T) {
	t.Parallel()

	trades := makeTrades(1, 2, 3, 4, 5)
	it := NewPageIterator("test", pagedFetch(trades, 2))

	var sizes []int
	for {
		batch, err := it.Next(context.Background())
		if errors.Is(err, ErrNoMoreTrades) {
			break
		}
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		sizes = append(sizes, len(batch))
	}

	want := []int{2, 2, 1}
	if len(sizes) != len(want) {
		t.Fatalf("expected batches %v, got %v", want, sizes)
	}
	for i := range want {
		if sizes[i] != want[i] {
			t.Errorf("batch %d: expected %d trades, got %d", i, want[i], sizes[i])
		}
	}
}

func TestPageIterator_PaginatedEqualsUnpaginated(t *testing.T) {
	t.Parallel()

	trades := makeTrades(10, 20, 30, 40, 50, 60, 70)

	for _, size := range []int{1, 2, 3, 7, 100} {
		all, err := Collect(context.Background(), NewPageIterator("test", pagedFetch(trades, size)))
		if err != nil {
			t.Fatalf("size %d: unexpected error: %v", size, err)
		}
		if len(all) != len(trades) {
			t.Fatalf("size %d: expected %d trades, got %d", size, len(trades), len(all))
		}
		for i := range trades {
			if all[i].Timestamp != trades[i].Timestamp {
				t.Errorf("size %d: trade %d: expected ts %d, got %d", size, i, trades[i].Timestamp, all[i].Timestamp)
			}
		}
	}
}

func TestPageIterator_SkipsEmptyPages(t *testing.T) {
	t.Parallel()

	calls := 0
	it := NewPageIterator("test", func(ctx context.Context) ([]types.Trade, bool, error) {
		calls++
		switch calls {
		case 1, 2:
			return nil, false, nil
		default:
			return makeTrades(5), true, nil
		}
	})

	batch, err := it.Next(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(batch) != 1 {
		t.Errorf("expected 1 trade, got %d", len(batch))
	}
	if it.Pages() != 3 {
		t.Errorf("expected 3 pages, got %d", it.Pages())
	}

	_, err = it.Next(context.Background())
	if !errors.Is(err, ErrNoMoreTrades) {
		t.Errorf("expected ErrNoMoreTrades, got %v", err)
	}
}

func TestPageIterator_ErrorIsTerminal(t *testing.T) {
	t.Parallel()

	pageErr := errors.New("boom")
	calls := 0
	it := NewPageIterator("test", func(ctx context.Context) ([]types.Trade, bool, error) {
		calls++
		if calls == 2 {
			return nil, false, pageErr
		}
		return makeTrades(int64(calls)), false, nil
	})

	_, err := it.Next(context.Background())
	if err != nil {
		t.Fatalf("unexpected error on first page: %v", err)
	}

	for i := 0; i < 2; i++ {
		_, err = it.Next(context.Background())
		if !errors.Is(err, pageErr) {
			t.Fatalf("expected page error, got %v", err)
		}
	}
	if calls != 2 {
		t.Errorf("expected no fetch after failure, got %d calls", calls)
	}
}

func TestPageIterator_Close(t *testing.T) {
	t.Parallel()

	closed := 0
	it := NewPageIterator("test", pagedFetch(makeTrades(1, 2, 3), 1))
	it.OnClose(func() { closed++ })

	_, err := it.Next(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	_ = it.Close()
	_ = it.Close()

	if closed != 1 {
		t.Errorf("expected close hook to run once, ran %d times", closed)
	}

	_, err = it.Next(context.Background())
	if !errors.Is(err, ErrNoMoreTrades) {
		t.Errorf("expected ErrNoMoreTrades after close, got %v", err)
	}
}

func TestPageIterator_CloseCancelsPageInFlight(t *testing.T) {
	t.Parallel()

	started := make(chan struct{})
	it := NewPageIterator("test", func(ctx context.Context) ([]types.Trade, bool, error) {
		close(started)
		<-ctx.Done()
		return nil, true, ctx.Err()
	})

	result := make(chan error, 1)
	go func() {
		_, err := it.Next(context.Background())
		result <- err
	}()

	<-started
	closed := make(chan struct{})
	go func() {
		_ = it.Close()
		close(closed)
	}()

	select {
	case <-closed:
	case <-time.After(2 * time.Second):
		t.Fatal("Close blocked on the page in flight")
	}

	select {
	case err := <-result:
		if !errors.Is(err, ErrNoMoreTrades) {
			t.Errorf("expected ErrNoMoreTrades after close, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Next did not return after Close")
	}

	if it.Pages() != 0 {
		t.Errorf("cancelled page counted: %d", it.Pages())
	}
}

func TestPageIterator_CancelledContext(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	it := NewPageIterator("test", pagedFetch(makeTrades(1), 1))
	_, err := it.Next(ctx)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestFirstBatch(t *testing.T) {
	t.Parallel()

	batch, err := FirstBatch(context.Background(), NewSliceIterator())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if batch != nil {
		t.Errorf("expected nil batch for exhausted iterator, got %v", batch)
	}

	accessErr := &types.AccessError{Exchange: "test", Permission: types.PermissionViewSpotTradingHistory}
	_, err = FirstBatch(context.Background(), NewPageIterator("test", func(ctx context.Context) ([]types.Trade, bool, error) {
		return nil, false, accessErr
	}))
	if !types.IsAccessError(err) {
		t.Errorf("expected access error to survive wrapping, got %v", err)
	}
}
