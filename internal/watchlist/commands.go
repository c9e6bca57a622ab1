package watchlist

import (
	"fmt"
	"strings"
	"time"

	"KabuSentinel/internal/market"
	"KabuSentinel/internal/model"
	"KabuSentinel/internal/universe"
)

// DefaultReason tags entries added by hand.
const DefaultReason = "手動"

// Manager applies the manual selection commands to a Store.
type Manager struct {
	Store    Store
	Calendar *market.Calendar
	MaxAge   int
	Now      func() time.Time
}

func (m *Manager) now() time.Time {
	if m.Now != nil {
		return m.Now()
	}
	return time.Now()
}

// List returns the stored entries.
func (m *Manager) List() ([]model.WatchlistEntry, error) {
	return m.Store.Load()
}

// Add normalizes the tickers and merges them into the list.
func (m *Manager) Add(reason string, tickers ...string) ([]model.WatchlistEntry, error) {
	if reason == "" {
		reason = DefaultReason
	}
	entries, err := m.Store.Load()
	if err != nil {
		return nil, err
	}
	sel := NewSelection(universe.Normalize(tickers)...)
	merged := Merge(entries, sel.Entries(reason, m.now()))
	return merged, m.Store.Save(merged)
}

// Remove drops the tickers from the list.
func (m *Manager) Remove(tickers ...string) ([]model.WatchlistEntry, error) {
	entries, err := m.Store.Load()
	if err != nil {
		return nil, err
	}
	kept := Remove(entries, universe.Normalize(tickers)...)
	return kept, m.Store.Save(kept)
}

// Clear empties the list.
func (m *Manager) Clear() error {
	return m.Store.Save(nil)
}

// Prune ages out old entries and returns the removed ones. A zero MaxAge keeps everything.
func (m *Manager) Prune() ([]model.WatchlistEntry, error) {
	entries, err := m.Store.Load()
	if err != nil {
		return nil, err
	}
	kept, removed := Prune(entries, m.now(), m.Calendar, m.MaxAge)
	if len(removed) == 0 {
		return nil, nil
	}
	return removed, m.Store.Save(kept)
}

// Handle runs a chat command ("list", "add 7203 reason=押し目", "remove 7203", "clear",
// "prune") and returns the reply text.
func (m *Manager) Handle(cmd string, args []string) string {
	var (
		entries []model.WatchlistEntry
		err     error
	)
	switch cmd {
	case "list":
		entries, err = m.List()
	case "add":
		reason, tickers := splitReason(args)
		if len(tickers) == 0 {
			return "usage: /add 7203 [reason=...]"
		}
		entries, err = m.Add(reason, tickers...)
	case "remove":
		if len(args) == 0 {
			return "usage: /remove 7203"
		}
		entries, err = m.Remove(args...)
	case "clear":
		err = m.Clear()
	case "prune":
		var removed []model.WatchlistEntry
		if removed, err = m.Prune(); err == nil {
			return fmt.Sprintf("pruned %d", len(removed))
		}
	default:
		return ""
	}
	if err != nil {
		return "watchlist error: " + err.Error()
	}
	return Format(entries)
}

func splitReason(args []string) (string, []string) {
	var reason string
	tickers := make([]string, 0, len(args))
	for _, a := range args {
		if r, ok := strings.CutPrefix(a, "reason="); ok {
			reason = r
			continue
		}
		tickers = append(tickers, a)
	}
	return reason, tickers
}

// Format renders entries one per line, oldest first.
func Format(entries []model.WatchlistEntry) string {
	if len(entries) == 0 {
		return "watchlist is empty"
	}
	byTicker := make(map[string]model.WatchlistEntry, len(entries))
	for _, e := range entries {
		byTicker[e.Ticker] = e
	}
	var b strings.Builder
	for _, t := range Tickers(entries) {
		e := byTicker[t]
		fmt.Fprintf(&b, "%s\t%s\t【%s】\t%s\n", e.Ticker, e.Name, e.Reason, e.AddedAt.Format("2006-01-02"))
	}
	return strings.TrimRight(b.String(), "\n")
}
