package exchanges

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/mselser95/mm-oracle/pkg/types"
)

// ErrNoMoreTrades is returned by TradeIterator.Next once the window is exhausted.
var ErrNoMoreTrades = errors.New("no more trades")

// TradeIterator is a finite, non-restartable sequence of trade batches.
// Consumers that stop early must call Close.
type TradeIterator interface {
	// Next returns the next non-empty batch, or ErrNoMoreTrades.
	Next(ctx context.Context) ([]types.Trade, error)

	// Close releases the iterator. It is safe to call more than once.
	Close() error
}

// PageFunc fetches one page. done reports that no further page exists;
// a page may be empty without ending the scan.
type PageFunc func(ctx context.Context) (trades []types.Trade, done bool, err error)

// PageIterator drives a PageFunc until it reports done or fails.
// A failed page ends the scan: the error is returned from every later Next.
// Close cancels a page fetch in flight.
type PageIterator struct {
	exchange string
	fetch    PageFunc

	// nextMu serializes Next; mu guards the fields below and is not held
	// while a page is fetched.
	nextMu sync.Mutex

	mu      sync.Mutex
	done    bool
	closed  bool
	err     error
	pages   int
	cancel  context.CancelFunc
	onClose []func()
}

// NewPageIterator creates an iterator over fetch.
func NewPageIterator(exchange string, fetch PageFunc) *PageIterator {
	return &PageIterator{
		exchange: exchange,
		fetch:    fetch,
	}
}

// OnClose registers fn to run once when the iterator is closed.
func (it *PageIterator) OnClose(fn func()) {
	it.mu.Lock()
	defer it.mu.Unlock()
	it.onClose = append(it.onClose, fn)
}

// Next implements TradeIterator.
func (it *PageIterator) Next(ctx context.Context) ([]types.Trade, error) {
	it.nextMu.Lock()
	defer it.nextMu.Unlock()

	for {
		fetchCtx, err := it.begin(ctx)
		if err != nil {
			return nil, err
		}

		trades, done, err := it.fetch(fetchCtx)

		it.mu.Lock()
		it.cancel()
		it.cancel = nil
		if it.closed {
			it.mu.Unlock()
			return nil, ErrNoMoreTrades
		}
		it.pages++
		TradePagesTotal.WithLabelValues(it.exchange).Inc()
		if err != nil {
			it.err = err
			it.done = true
			it.mu.Unlock()
			return nil, err
		}
		it.done = done
		it.mu.Unlock()

		if len(trades) == 0 {
			continue
		}

		TradesFetchedTotal.WithLabelValues(it.exchange).Add(float64(len(trades)))
		return trades, nil
	}
}

// begin checks the scan state and registers a cancellable context for the
// next page.
func (it *PageIterator) begin(ctx context.Context) (context.Context, error) {
	it.mu.Lock()
	defer it.mu.Unlock()

	if it.err != nil {
		return nil, it.err
	}
	if it.done {
		return nil, ErrNoMoreTrades
	}
	err := ctx.Err()
	if err != nil {
		return nil, err
	}

	fetchCtx, cancel := context.WithCancel(ctx)
	it.cancel = cancel
	return fetchCtx, nil
}

// Pages returns the number of pages fetched so far.
func (it *PageIterator) Pages() int {
	it.mu.Lock()
	defer it.mu.Unlock()
	return it.pages
}

// Close implements TradeIterator. A Next blocked on a page returns
// ErrNoMoreTrades.
func (it *PageIterator) Close() error {
	it.mu.Lock()
	hooks := it.onClose
	it.onClose = nil
	it.done = true
	it.closed = true
	cancel := it.cancel
	it.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	for _, fn := range hooks {
		fn()
	}
	return nil
}

// SliceIterator yields prepared batches. Useful for adapters that
// materialize a window in one go and for tests.
type SliceIterator struct {
	batches [][]types.Trade
	pos     int
}

// NewSliceIterator creates an iterator over batches, skipping empty ones.
func NewSliceIterator(batches ...[]types.Trade) *SliceIterator {
	nonEmpty := make([][]types.Trade, 0, len(batches))
	for _, b := range batches {
		if len(b) > 0 {
			nonEmpty = append(nonEmpty, b)
		}
	}
	return &SliceIterator{batches: nonEmpty}
}

// Next implements TradeIterator.
func (s *SliceIterator) Next(ctx context.Context) ([]types.Trade, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s.pos >= len(s.batches) {
		return nil, ErrNoMoreTrades
	}
	batch := s.batches[s.pos]
	s.pos++
	return batch, nil
}

// Close implements TradeIterator.
func (s *SliceIterator) Close() error {
	s.pos = len(s.batches)
	return nil
}

// Collect drains it into one slice and closes it.
func Collect(ctx context.Context, it TradeIterator) ([]types.Trade, error) {
	defer it.Close()

	var all []types.Trade
	for {
		batch, err := it.Next(ctx)
		if errors.Is(err, ErrNoMoreTrades) {
			return all, nil
		}
		if err != nil {
			return nil, err
		}
		all = append(all, batch...)
	}
}

// FirstBatch consumes a single batch and closes it. An exhausted iterator
// yields an empty batch without error.
func FirstBatch(ctx context.Context, it TradeIterator) ([]types.Trade, error) {
	defer it.Close()

	batch, err := it.Next(ctx)
	if errors.Is(err, ErrNoMoreTrades) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("first batch: %w", err)
	}
	return batch, nil
}
