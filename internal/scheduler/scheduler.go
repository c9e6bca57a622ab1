// Package scheduler runs evaluation passes: gate, load, fetch, evaluate, alert, record.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"KabuSentinel/internal/collector"
	"KabuSentinel/internal/cooldown"
	"KabuSentinel/internal/market"
	"KabuSentinel/internal/model"
	"KabuSentinel/internal/notifier"
	"KabuSentinel/internal/recorder"
	"KabuSentinel/internal/strategy"
	"KabuSentinel/internal/universe"
	"KabuSentinel/internal/watchlist"
)

// UniverseFunc supplies the tickers and mode for a pass.
type UniverseFunc func(ctx context.Context) *universe.Universe

// Options tune a Scheduler.
type Options struct {
	Rules      []strategy.Rule
	Params     func(model.Mode) strategy.Params
	MaxAge     int  // watchlist business days, 0 keeps entries forever
	Force      bool // evaluate outside trading hours
	ScanReason string
}

// Scheduler wires the pipeline and owns the optional cron timer.
type Scheduler struct {
	Cron      *cron.Cron
	Collector *collector.Collector
	Calendar  *market.Calendar
	Universe  UniverseFunc
	Watchlist watchlist.Store
	Cooldown  cooldown.Store
	Notifier  notifier.Notifier
	Recorder  recorder.Recorder
	Options   Options

	// mu serializes passes, scans and chat edits; each is a load-modify-save of the watchlist.
	mu     sync.Mutex
	logger zerolog.Logger
}

// NewScheduler creates a Scheduler. Nil Cooldown and Recorder are replaced by no-op versions.
func NewScheduler(col *collector.Collector, cal *market.Calendar, uni UniverseFunc, wl watchlist.Store,
	cd cooldown.Store, n notifier.Notifier, rec recorder.Recorder, opts Options) *Scheduler {
	if cd == nil {
		cd = cooldown.NewMemoryStore(0)
	}
	if rec == nil {
		rec = recorder.NewNoopRecorder()
	}
	if opts.Rules == nil {
		opts.Rules = strategy.DefaultRules()
	}
	if opts.Params == nil {
		opts.Params = strategy.DefaultParams
	}
	return &Scheduler{
		Cron:      cron.New(cron.WithSeconds(), cron.WithLocation(cal.Location)),
		Collector: col,
		Calendar:  cal,
		Universe:  uni,
		Watchlist: wl,
		Cooldown:  cd,
		Notifier:  n,
		Recorder:  rec,
		Options:   opts,
		logger:    log.With().Str("component", "scheduler").Logger(),
	}
}

// Register adds the pass and scan jobs. An empty spec skips that job.
// Overlapping runs of the same job are skipped.
func (s *Scheduler) Register(ctx context.Context, passSpec, scanSpec string) error {
	wrap := cron.NewChain(cron.SkipIfStillRunning(cron.DiscardLogger))
	if passSpec != "" {
		job := wrap.Then(cron.FuncJob(func() { s.RunOnce(ctx, time.Now()) }))
		if _, err := s.Cron.AddJob(passSpec, job); err != nil {
			return fmt.Errorf("register pass: %w", err)
		}
	}
	if scanSpec != "" {
		job := wrap.Then(cron.FuncJob(func() {
			if _, err := s.Scan(ctx, time.Now()); err != nil {
				s.logger.Error().Err(err).Msg("scan failed")
			}
		}))
		if _, err := s.Cron.AddJob(scanSpec, job); err != nil {
			return fmt.Errorf("register scan: %w", err)
		}
	}
	return nil
}

// Start starts the cron timer.
func (s *Scheduler) Start() {
	s.Cron.Start()
	s.logger.Info().Int("jobs", len(s.Cron.Entries())).Msg("scheduler started")
}

// Stop stops the timer and waits for a running job to finish.
func (s *Scheduler) Stop() {
	<-s.Cron.Stop().Done()
	s.logger.Info().Msg("scheduler stopped")
}

type target struct {
	ticker string
	reason string
}

// RunOnce performs one evaluation pass at now. Per-ticker failures are logged and
// skipped; the pass itself never fails. It waits for a running pass or scan.
func (s *Scheduler) RunOnce(ctx context.Context, now time.Time) *model.RunSummary {
	s.mu.Lock()
	defer s.mu.Unlock()

	started := time.Now()
	run := &model.RunSummary{ID: uuid.NewString(), Mode: model.ModeSwing, StartedAt: now}
	logger := s.logger.With().Str("run_id", run.ID).Logger()

	if !s.Options.Force && !s.Calendar.IsOpen(now) {
		run.Closed = true
		run.FinishedAt = now
		logger.Debug().Time("now", now).Msg("market closed, skipping pass")
		return run
	}

	uni := s.Universe(ctx)
	run.Mode = uni.Mode
	targets := s.targets(uni, s.loadWatchlist(now))
	run.Tickers = len(targets)
	logger.Info().Str("mode", string(run.Mode)).Int("tickers", run.Tickers).Msg("pass started")

	params := s.Options.Params(run.Mode)
	var alerts []model.Signal
	for _, t := range targets {
		if ctx.Err() != nil {
			logger.Warn().Err(ctx.Err()).Msg("pass cancelled")
			break
		}
		signals, err := s.evaluate(ctx, t, run.Mode, params)
		if err != nil {
			s.classify(logger, run, t.ticker, err)
			continue
		}
		run.Signals += len(signals)
		alerts = append(alerts, s.throttle(ctx, logger, signals, now)...)
	}

	if report := notifier.FormatReport(run.Mode, alerts); report != "" && s.Notifier != nil {
		if err := s.Notifier.Send(ctx, report); err != nil {
			logger.Error().Err(err).Msg("send report")
		} else {
			run.Sent = true
			s.mark(ctx, logger, alerts, now)
		}
	}

	run.FinishedAt = now.Add(time.Since(started))
	if err := s.Recorder.RecordRun(run); err != nil {
		logger.Error().Err(err).Msg("record run")
	}
	if err := s.Recorder.RecordSignals(run.ID, alerts); err != nil {
		logger.Error().Err(err).Msg("record signals")
	}
	logger.Info().Int("signals", run.Signals).Int("alerts", len(alerts)).Int("skipped", run.Skipped).
		Int("failed", run.Failed).Bool("sent", run.Sent).Dur("took", time.Since(started)).Msg("pass finished")
	return run
}

// loadWatchlist reads the list and ages out stale entries, saving only when something changed.
func (s *Scheduler) loadWatchlist(now time.Time) []model.WatchlistEntry {
	if s.Watchlist == nil {
		return nil
	}
	entries, err := s.Watchlist.Load()
	if err != nil {
		s.logger.Warn().Err(err).Msg("load watchlist")
		return nil
	}
	kept, removed := watchlist.Prune(entries, now, s.Calendar, s.Options.MaxAge)
	if len(removed) > 0 {
		if err := s.Watchlist.Save(kept); err != nil {
			s.logger.Warn().Err(err).Msg("save pruned watchlist")
		} else {
			s.logger.Info().Strs("removed", watchlist.Tickers(removed)).Msg("watchlist aged out")
		}
	}
	return kept
}

// targets lists universe tickers first, then watchlist-only tickers. A ticker on
// the watchlist carries its reason either way.
func (s *Scheduler) targets(uni *universe.Universe, entries []model.WatchlistEntry) []target {
	reasons := make(map[string]string, len(entries))
	for _, e := range entries {
		reasons[e.Ticker] = e.Reason
	}
	seen := make(map[string]bool)
	var out []target
	for _, t := range uni.Tickers {
		if !seen[t] {
			seen[t] = true
			out = append(out, target{ticker: t, reason: reasons[t]})
		}
	}
	for _, t := range watchlist.Tickers(entries) {
		if !seen[t] {
			seen[t] = true
			out = append(out, target{ticker: t, reason: reasons[t]})
		}
	}
	return out
}

// evaluate fetches one ticker and runs the rule table. A panic becomes an error.
func (s *Scheduler) evaluate(ctx context.Context, t target, mode model.Mode, p strategy.Params) (signals []model.Signal, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic evaluating %s: %v\n%s", t.ticker, r, debug.Stack())
		}
	}()

	series, err := s.Collector.Collect(ctx, t.ticker, mode)
	if err != nil {
		return nil, err
	}
	frame, err := strategy.NewFrame(series.Bars, p)
	if err != nil {
		return nil, err
	}
	signals = strategy.Evaluate(t.ticker, frame, s.Options.Rules)
	for i := range signals {
		signals[i].Name = series.Name
		signals[i].Reason = t.reason
	}
	return signals, nil
}

func (s *Scheduler) classify(logger zerolog.Logger, run *model.RunSummary, ticker string, err error) {
	switch {
	case errors.Is(err, collector.ErrInsufficientData):
		run.Skipped++
		logger.Debug().Err(err).Str("ticker", ticker).Msg("skipped")
	case errors.Is(err, collector.ErrFetch):
		run.Failed++
		logger.Warn().Err(err).Str("ticker", ticker).Msg("fetch failed")
	default:
		run.Failed++
		logger.Error().Err(err).Str("ticker", ticker).Msg("evaluation failed")
	}
}

// throttle keeps signals whose cooldown allows them. A cooldown store error lets the signal through.
// Nothing is marked here; see mark.
func (s *Scheduler) throttle(ctx context.Context, logger zerolog.Logger, signals []model.Signal, now time.Time) []model.Signal {
	var out []model.Signal
	for _, sig := range signals {
		ok, err := s.Cooldown.Allow(ctx, cooldown.Key(sig), now)
		if err != nil {
			logger.Warn().Err(err).Str("key", cooldown.Key(sig)).Msg("cooldown unavailable")
			ok = true
		}
		if ok {
			out = append(out, sig)
		}
	}
	return out
}

// mark starts the cooldown for alerts that were delivered.
func (s *Scheduler) mark(ctx context.Context, logger zerolog.Logger, alerts []model.Signal, now time.Time) {
	for _, sig := range alerts {
		if err := s.Cooldown.Mark(ctx, cooldown.Key(sig), now); err != nil {
			logger.Warn().Err(err).Str("key", cooldown.Key(sig)).Msg("cooldown mark failed")
		}
	}
}
