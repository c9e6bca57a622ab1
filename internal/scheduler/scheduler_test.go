package scheduler

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"KabuSentinel/internal/collector"
	"KabuSentinel/internal/cooldown"
	"KabuSentinel/internal/market"
	"KabuSentinel/internal/model"
	"KabuSentinel/internal/universe"
	"KabuSentinel/internal/watchlist"
)

var jst = time.FixedZone("JST", 9*60*60)

// 2026-10-19 is a Monday.
var (
	openTime   = time.Date(2026, 10, 19, 10, 0, 0, 0, jst)
	lunchTime  = time.Date(2026, 10, 19, 12, 0, 0, 0, jst)
	eveningRun = time.Date(2026, 10, 19, 20, 0, 0, 0, jst)
)

type stubFetcher struct {
	bars map[string][]model.OHLCV
	errs map[string]error
	hits map[string]int
}

func (f *stubFetcher) Name() string { return "stub" }

func (f *stubFetcher) FetchBars(_ context.Context, req model.BarRequest) (*model.PriceSeries, error) {
	if f.hits == nil {
		f.hits = map[string]int{}
	}
	f.hits[req.Symbol]++
	if err := f.errs[req.Symbol]; err != nil {
		return nil, err
	}
	return &model.PriceSeries{Symbol: req.Symbol, Name: "name " + req.Symbol, Bars: f.bars[req.Symbol]}, nil
}

func trend(n int, start, step float64) []model.OHLCV {
	bars := make([]model.OHLCV, n)
	t0 := time.Date(2026, 1, 5, 0, 0, 0, 0, jst)
	for i := range bars {
		c := start + step*float64(i)
		bars[i] = model.OHLCV{Time: t0.AddDate(0, 0, i), Open: c, High: c + 0.5, Low: c - 0.5, Close: c, Volume: 1000}
	}
	return bars
}

type recordingNotifier struct {
	sent []string
	err  error
}

func (r *recordingNotifier) Name() string { return "recording" }

func (r *recordingNotifier) Send(_ context.Context, text string) error {
	if r.err != nil {
		return r.err
	}
	r.sent = append(r.sent, text)
	return nil
}

type recordingRecorder struct {
	runs    []*model.RunSummary
	signals int
}

func (r *recordingRecorder) RecordRun(run *model.RunSummary) error { r.runs = append(r.runs, run); return nil }
func (r *recordingRecorder) RecordSignals(_ string, s []model.Signal) error {
	r.signals += len(s)
	return nil
}
func (r *recordingRecorder) Close() error { return nil }

type fixture struct {
	sched    *Scheduler
	fetcher  *stubFetcher
	notifier *recordingNotifier
	recorder *recordingRecorder
	store    *watchlist.FileStore
}

func newFixture(t *testing.T, tickers ...string) *fixture {
	t.Helper()
	f := &fixture{
		fetcher: &stubFetcher{
			bars: map[string][]model.OHLCV{
				"1111.T": trend(32, 500, -2), // RSI 0
				"2222.T": trend(32, 500, 2),  // RSI 100
				"3333.T": trend(10, 500, 1),
			},
			errs: map[string]error{"4444.T": errors.New("connection reset")},
		},
		notifier: &recordingNotifier{},
		recorder: &recordingRecorder{},
		store:    watchlist.NewFileStore(filepath.Join(t.TempDir(), "wl.json")),
	}
	uni := func(context.Context) *universe.Universe {
		return &universe.Universe{Mode: model.ModeSwing, Tickers: tickers}
	}
	f.sched = NewScheduler(collector.NewCollector(f.fetcher, nil), market.TokyoCalendar(), uni, f.store,
		cooldown.NewMemoryStore(time.Hour), f.notifier, f.recorder, Options{MaxAge: watchlist.DefaultMaxAge})
	return f
}

func TestRunOnce_ClosedMarket(t *testing.T) {
	f := newFixture(t, "1111.T")
	for _, now := range []time.Time{lunchTime, eveningRun, time.Date(2026, 10, 18, 10, 0, 0, 0, jst)} {
		run := f.sched.RunOnce(context.Background(), now)
		if !run.Closed {
			t.Errorf("%v: expected closed", now)
		}
	}
	if len(f.fetcher.hits) != 0 || len(f.notifier.sent) != 0 {
		t.Error("closed market must not fetch or notify")
	}
}

func TestRunOnce_Force(t *testing.T) {
	f := newFixture(t, "1111.T")
	f.sched.Options.Force = true
	if run := f.sched.RunOnce(context.Background(), eveningRun); run.Closed || run.Tickers != 1 {
		t.Errorf("run = %+v", run)
	}
}

func TestRunOnce_ErrorTaxonomy(t *testing.T) {
	f := newFixture(t, "1111.T", "2222.T", "3333.T", "4444.T")
	run := f.sched.RunOnce(context.Background(), openTime)

	if run.Closed || run.Tickers != 4 || run.Skipped != 1 || run.Failed != 1 {
		t.Errorf("run = %+v", run)
	}
	if run.Signals == 0 || !run.Sent {
		t.Fatalf("run = %+v", run)
	}
	if len(f.notifier.sent) != 1 {
		t.Fatalf("sent %d reports, want one aggregated report", len(f.notifier.sent))
	}
	report := f.notifier.sent[0]
	if !strings.HasPrefix(report, "🐢 ") || !strings.Contains(report, "1111.T") || !strings.Contains(report, "2222.T") {
		t.Errorf("report = %q", report)
	}
	if strings.Contains(report, "3333.T") || strings.Contains(report, "4444.T") {
		t.Errorf("skipped tickers reported: %q", report)
	}
	if len(f.recorder.runs) != 1 || f.recorder.signals == 0 {
		t.Errorf("recorded runs=%d signals=%d", len(f.recorder.runs), f.recorder.signals)
	}
}

func TestRunOnce_Cooldown(t *testing.T) {
	f := newFixture(t, "1111.T")
	ctx := context.Background()
	f.sched.RunOnce(ctx, openTime)
	f.sched.RunOnce(ctx, openTime.Add(5*time.Minute))
	if len(f.notifier.sent) != 1 {
		t.Errorf("sent %d reports within the cooldown", len(f.notifier.sent))
	}
	f.sched.RunOnce(ctx, openTime.Add(time.Hour))
	if len(f.notifier.sent) != 2 {
		t.Errorf("sent %d reports after the cooldown", len(f.notifier.sent))
	}
}

func TestRunOnce_NotifierFailure(t *testing.T) {
	f := newFixture(t, "1111.T")
	f.notifier.err = errors.New("webhook down")
	run := f.sched.RunOnce(context.Background(), openTime)
	if run.Sent || run.Signals == 0 {
		t.Errorf("run = %+v", run)
	}
	if len(f.recorder.runs) != 1 {
		t.Error("run should still be recorded")
	}
}

func TestRunOnce_FailedSendKeepsAlertPending(t *testing.T) {
	f := newFixture(t, "1111.T")
	ctx := context.Background()
	f.notifier.err = errors.New("webhook down")
	if run := f.sched.RunOnce(ctx, openTime); run.Sent {
		t.Fatalf("first run = %+v", run)
	}

	f.notifier.err = nil
	run := f.sched.RunOnce(ctx, openTime.Add(5*time.Minute))
	if !run.Sent || len(f.notifier.sent) != 1 {
		t.Fatalf("second run = %+v, reports = %d", run, len(f.notifier.sent))
	}

	if run := f.sched.RunOnce(ctx, openTime.Add(10*time.Minute)); run.Sent {
		t.Error("cooldown not started after the delivered report")
	}
}

func TestRunOnce_WatchlistReasonAndAging(t *testing.T) {
	f := newFixture(t)
	entries := []model.WatchlistEntry{
		{Ticker: "1111.T", Reason: "押し目", AddedAt: openTime.AddDate(0, 0, -1)},
		{Ticker: "2222.T", Reason: "古い", AddedAt: openTime.AddDate(0, 0, -14)},
	}
	if err := f.store.Save(entries); err != nil {
		t.Fatal(err)
	}

	run := f.sched.RunOnce(context.Background(), openTime)
	if run.Tickers != 1 {
		t.Errorf("tickers = %d, want the aged entry dropped", run.Tickers)
	}
	if len(f.notifier.sent) != 1 || !strings.Contains(f.notifier.sent[0], "【押し目】1111.T") {
		t.Errorf("sent = %q", f.notifier.sent)
	}
	kept, _ := f.store.Load()
	if len(kept) != 1 || kept[0].Ticker != "1111.T" {
		t.Errorf("stored = %+v", kept)
	}
}

func TestRunOnce_Panic(t *testing.T) {
	f := newFixture(t, "1111.T", "2222.T")
	f.sched.Options.Rules = append(f.sched.Options.Rules, strategyPanics())
	run := f.sched.RunOnce(context.Background(), openTime)
	if run.Failed != 2 || run.Sent {
		t.Errorf("run = %+v", run)
	}
}

func TestScan(t *testing.T) {
	f := newFixture(t, "1111.T", "2222.T", "3333.T", "4444.T")
	added, err := f.sched.Scan(context.Background(), eveningRun)
	if err != nil {
		t.Fatal(err)
	}
	if len(added) != 1 || added[0].Ticker != "1111.T" || added[0].Reason == "" {
		t.Fatalf("added = %+v", added)
	}
	stored, _ := f.store.Load()
	if len(stored) != 1 || stored[0].Name != "name 1111.T" {
		t.Errorf("stored = %+v", stored)
	}
}

func TestCommands(t *testing.T) {
	f := newFixture(t, "1111.T")
	mgr := &watchlist.Manager{Store: f.store, Calendar: f.sched.Calendar}
	handle := f.sched.Commands(context.Background(), mgr)

	if got := handle("help", nil); !strings.Contains(got, "/scan") {
		t.Errorf("help = %q", got)
	}
	if got := handle("add", []string{"7203"}); !strings.Contains(got, "7203.T") {
		t.Errorf("add = %q", got)
	}
	if got := handle("scan", nil); !strings.HasPrefix(got, "scan added 1") {
		t.Errorf("scan = %q", got)
	}
}

func TestCommands_WaitForRunningPass(t *testing.T) {
	f := newFixture(t, "1111.T")
	mgr := &watchlist.Manager{Store: f.store, Calendar: f.sched.Calendar}
	handle := f.sched.Commands(context.Background(), mgr)

	f.sched.mu.Lock() // a pass in flight
	done := make(chan string)
	go func() { done <- handle("add", []string{"7203"}) }()

	select {
	case got := <-done:
		t.Fatalf("add ran during a pass: %q", got)
	case <-time.After(50 * time.Millisecond):
	}
	f.sched.mu.Unlock()

	select {
	case got := <-done:
		if !strings.Contains(got, "7203.T") {
			t.Errorf("add = %q", got)
		}
	case <-time.After(time.Second):
		t.Fatal("add never ran after the pass finished")
	}
}
