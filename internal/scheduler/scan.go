package scheduler

import (
	"context"
	"time"

	"KabuSentinel/internal/model"
	"KabuSentinel/internal/strategy"
	"KabuSentinel/internal/watchlist"
)

// Scan evaluates the universe on daily bars and adds tickers with a buy signal to the
// watchlist, tagged with the first matching rule's label. It returns the new entries.
func (s *Scheduler) Scan(ctx context.Context, now time.Time) ([]model.WatchlistEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	uni := s.Universe(ctx)
	labels := make(map[string]string, len(s.Options.Rules))
	for _, r := range s.Options.Rules {
		labels[r.ID] = r.Label
	}

	params := s.Options.Params(model.ModeSwing)
	run := &model.RunSummary{Mode: model.ModeSwing}
	var added []model.WatchlistEntry
	for _, ticker := range uni.Tickers {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		signals, err := s.evaluate(ctx, target{ticker: ticker}, model.ModeSwing, params)
		if err != nil {
			s.classify(s.logger, run, ticker, err)
			continue
		}
		if !strategy.HasBuy(signals) {
			continue
		}
		for _, sig := range signals {
			if sig.Direction != model.DirectionBuy {
				continue
			}
			reason := s.Options.ScanReason
			if reason == "" {
				reason = labels[sig.RuleID]
			}
			added = append(added, model.WatchlistEntry{Ticker: ticker, Name: sig.Name, Reason: reason, AddedAt: now})
			break
		}
	}

	if len(added) == 0 || s.Watchlist == nil {
		s.logger.Info().Int("scanned", len(uni.Tickers)).Int("added", len(added)).Msg("scan finished")
		return added, nil
	}
	entries, err := s.Watchlist.Load()
	if err != nil {
		return nil, err
	}
	if err := s.Watchlist.Save(watchlist.Merge(entries, added)); err != nil {
		return nil, err
	}
	s.logger.Info().Int("scanned", len(uni.Tickers)).Strs("added", watchlist.Tickers(added)).Msg("scan finished")
	return added, nil
}
