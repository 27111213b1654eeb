package cex

import (
	"context"
	"sort"

	"github.com/mselser95/mm-oracle/internal/exchanges/unified"
	"github.com/mselser95/mm-oracle/pkg/types"
)

// fetchPage calls the library for one page of at most limit trades.
type fetchPage func(ctx context.Context, since int64, limit int, params unified.TradeParams) (unified.TradePage, error)

// window is the half-open range [since, until) in ms.
type window struct {
	since int64
	until int64
}

func (w window) contains(ts int64) bool {
	return ts >= w.since && ts < w.until
}

// pageState walks one exchange's trade history for a window.
type pageState struct {
	profile Profile
	window  window
	fetch   fetchPage

	// since-limit
	cursor   int64
	seenAtTs map[string]bool

	// page-number
	page int

	// cursor mode
	nextCursor string
	started    bool
}

func newPageState(profile Profile, w window, fetch fetchPage) *pageState {
	return &pageState{
		profile:  profile,
		window:   w,
		fetch:    fetch,
		cursor:   w.since,
		seenAtTs: map[string]bool{},
		page:     1,
	}
}

// next has the exchanges.PageFunc signature.
func (s *pageState) next(ctx context.Context) ([]types.Trade, bool, error) {
	switch s.profile.Pagination {
	case PaginationPageNumber:
		return s.nextNumbered(ctx)
	case PaginationCursor:
		return s.nextCursored(ctx)
	default:
		return s.nextSince(ctx)
	}
}

// nextSince re-requests from the last yielded timestamp, so trades already
// seen at that millisecond come back first. The limit is widened by their
// count, up to MaxLimit, to keep PageSize new trades per page.
func (s *pageState) nextSince(ctx context.Context) ([]types.Trade, bool, error) {
	limit := s.profile.PageSize + len(s.seenAtTs)
	if s.profile.MaxLimit > 0 && limit > s.profile.MaxLimit {
		limit = s.profile.MaxLimit
	}
	page, err := s.fetch(ctx, s.cursor, limit, unified.TradeParams{Until: s.window.until})
	if err != nil {
		return nil, true, err
	}

	raw := sortedByTime(page.Trades)
	done := len(raw) < limit || reachesUntil(raw, s.window.until)

	fresh := make([]types.Trade, 0, len(raw))
	for _, t := range raw {
		if t.Timestamp == s.cursor && s.seenAtTs[t.ID] {
			continue
		}
		fresh = append(fresh, t)
	}
	if len(fresh) == 0 {
		if !done && raw[0].Timestamp == s.cursor {
			// a full page inside one millisecond; skip past it
			s.cursor++
			s.seenAtTs = map[string]bool{}
			return nil, false, nil
		}
		return nil, true, nil
	}

	last := fresh[len(fresh)-1].Timestamp
	if last != s.cursor {
		s.cursor = last
		s.seenAtTs = map[string]bool{}
	}
	for _, t := range fresh {
		if t.Timestamp == s.cursor {
			s.seenAtTs[t.ID] = true
		}
	}

	return s.window.filter(fresh), done, nil
}

func (s *pageState) nextNumbered(ctx context.Context) ([]types.Trade, bool, error) {
	page, err := s.fetch(ctx, s.window.since, s.profile.PageSize, unified.TradeParams{Until: s.window.until, Page: s.page})
	if err != nil {
		return nil, true, err
	}

	raw := sortedByTime(page.Trades)
	done := len(raw) < s.profile.PageSize || (s.profile.MaxPages > 0 && s.page >= s.profile.MaxPages)
	s.page++

	return s.window.filter(raw), done, nil
}

func (s *pageState) nextCursored(ctx context.Context) ([]types.Trade, bool, error) {
	params := unified.TradeParams{Until: s.window.until, Cursor: s.nextCursor}
	since := int64(0)
	if !s.started {
		since = s.window.since
		s.started = true
	}

	page, err := s.fetch(ctx, since, s.profile.PageSize, params)
	if err != nil {
		return nil, true, err
	}

	raw := sortedByTime(page.Trades)
	s.nextCursor = page.NextCursor
	done := len(raw) == 0 || page.NextCursor == "" || reachesUntil(raw, s.window.until)

	return s.window.filter(raw), done, nil
}

func (w window) filter(trades []types.Trade) []types.Trade {
	kept := make([]types.Trade, 0, len(trades))
	for _, t := range trades {
		if w.contains(t.Timestamp) {
			kept = append(kept, t)
		}
	}
	return kept
}

func sortedByTime(trades []types.Trade) []types.Trade {
	sorted := make([]types.Trade, len(trades))
	copy(sorted, trades)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Timestamp < sorted[j].Timestamp
	})
	return sorted
}

func reachesUntil(sorted []types.Trade, until int64) bool {
	return len(sorted) > 0 && sorted[len(sorted)-1].Timestamp >= until
}
