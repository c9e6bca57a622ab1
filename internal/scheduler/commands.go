package scheduler

import (
	"context"
	"fmt"
	"time"

	"KabuSentinel/internal/notifier"
	"KabuSentinel/internal/watchlist"
)

const helpText = `commands:
/list - show the watchlist
/add 7203 [reason=...] - add tickers
/remove 7203 - remove tickers
/clear - empty the watchlist
/prune - drop aged entries
/run - evaluate now
/scan - scan the universe for buy setups`

// Commands returns the chat command handler: watchlist edits plus on-demand passes.
func (s *Scheduler) Commands(ctx context.Context, mgr *watchlist.Manager) notifier.CommandHandler {
	return func(cmd string, args []string) string {
		switch cmd {
		case "run":
			run := s.RunOnce(ctx, time.Now())
			if run.Closed {
				return "market is closed"
			}
			return fmt.Sprintf("%s %s: %d tickers, %d signals, %d skipped, %d failed",
				run.Mode.Icon(), run.Mode, run.Tickers, run.Signals, run.Skipped, run.Failed)
		case "scan":
			added, err := s.Scan(ctx, time.Now())
			if err != nil {
				return "scan failed: " + err.Error()
			}
			return fmt.Sprintf("scan added %d\n%s", len(added), watchlist.Format(added))
		}
		if reply := s.handleLocked(mgr, cmd, args); reply != "" {
			return reply
		}
		return helpText
	}
}

func (s *Scheduler) handleLocked(mgr *watchlist.Manager, cmd string, args []string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return mgr.Handle(cmd, args)
}
