package watchlist

import (
	"sort"
	"time"

	"KabuSentinel/internal/market"
	"KabuSentinel/internal/model"
)

// DefaultMaxAge is how many business days an entry stays on the list.
const DefaultMaxAge = 4

// Selection is the set of tickers picked in one interactive session. It only
// becomes durable once turned into entries and saved.
type Selection struct {
	order  []string
	chosen map[string]bool
}

func NewSelection(tickers ...string) *Selection {
	s := &Selection{chosen: make(map[string]bool)}
	for _, t := range tickers {
		s.Select(t)
	}
	return s
}

func (s *Selection) Select(ticker string) {
	if ticker == "" || s.chosen[ticker] {
		return
	}
	s.chosen[ticker] = true
	s.order = append(s.order, ticker)
}

func (s *Selection) Deselect(ticker string) {
	if !s.chosen[ticker] {
		return
	}
	delete(s.chosen, ticker)
	for i, t := range s.order {
		if t == ticker {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
}

// Toggle flips the ticker and reports whether it is now selected.
func (s *Selection) Toggle(ticker string) bool {
	if s.chosen[ticker] {
		s.Deselect(ticker)
		return false
	}
	s.Select(ticker)
	return s.chosen[ticker]
}

func (s *Selection) Has(ticker string) bool { return s.chosen[ticker] }

// Tickers returns the selected tickers in selection order.
func (s *Selection) Tickers() []string {
	return append([]string(nil), s.order...)
}

// Entries converts the selection into watchlist rows stamped with now.
func (s *Selection) Entries(reason string, now time.Time) []model.WatchlistEntry {
	out := make([]model.WatchlistEntry, 0, len(s.order))
	for _, t := range s.order {
		out = append(out, model.WatchlistEntry{Ticker: t, Reason: reason, AddedAt: now})
	}
	return out
}

// Merge adds entries to existing, one row per ticker. When a ticker is already
// present the earlier added_at wins and blank fields are filled from the newer row.
func Merge(existing, added []model.WatchlistEntry) []model.WatchlistEntry {
	out := make([]model.WatchlistEntry, 0, len(existing)+len(added))
	index := make(map[string]int, len(existing)+len(added))
	for _, e := range append(append([]model.WatchlistEntry(nil), existing...), added...) {
		i, ok := index[e.Ticker]
		if !ok {
			index[e.Ticker] = len(out)
			out = append(out, e)
			continue
		}
		cur := &out[i]
		if e.AddedAt.Before(cur.AddedAt) {
			cur.AddedAt = e.AddedAt
		}
		if cur.Name == "" {
			cur.Name = e.Name
		}
		if cur.Reason == "" {
			cur.Reason = e.Reason
		}
	}
	return out
}

// Prune drops entries that have been listed for more than maxAge business days.
// It returns the kept entries and the removed ones. maxAge <= 0 keeps everything.
func Prune(entries []model.WatchlistEntry, now time.Time, cal *market.Calendar, maxAge int) (kept, removed []model.WatchlistEntry) {
	if maxAge <= 0 {
		return entries, nil
	}
	kept = make([]model.WatchlistEntry, 0, len(entries))
	for _, e := range entries {
		if !e.AddedAt.IsZero() && cal.BusinessDaysBetween(e.AddedAt, now) > maxAge {
			removed = append(removed, e)
			continue
		}
		kept = append(kept, e)
	}
	return kept, removed
}

// Remove drops the given tickers.
func Remove(entries []model.WatchlistEntry, tickers ...string) []model.WatchlistEntry {
	drop := make(map[string]bool, len(tickers))
	for _, t := range tickers {
		drop[t] = true
	}
	out := make([]model.WatchlistEntry, 0, len(entries))
	for _, e := range entries {
		if !drop[e.Ticker] {
			out = append(out, e)
		}
	}
	return out
}

// Tickers lists the entry tickers sorted by when they were added.
func Tickers(entries []model.WatchlistEntry) []string {
	sorted := append([]model.WatchlistEntry(nil), entries...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].AddedAt.Before(sorted[j].AddedAt) })
	out := make([]string, len(sorted))
	for i, e := range sorted {
		out[i] = e.Ticker
	}
	return out
}
