package collector

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"KabuSentinel/internal/calculator"
	"KabuSentinel/internal/model"
)

var (
	// ErrInsufficientData means the source returned fewer bars than the plan needs.
	ErrInsufficientData = errors.New("insufficient history")
	// ErrFetch wraps any failure talking to the price source.
	ErrFetch = errors.New("fetch failed")
)

// Plan describes how bars are fetched for one mode.
type Plan struct {
	Period     string         `yaml:"period"`
	Interval   model.Interval `yaml:"interval"`
	ResampleBy int            `yaml:"resample_by"`
	MinBars    int            `yaml:"min_bars"`
}

// DefaultPlans returns a year of daily bars for SWING and five days of 1-minute bars folded
// into 3-minute bars for DAY.
func DefaultPlans() map[model.Mode]Plan {
	return map[model.Mode]Plan{
		model.ModeSwing: {Period: "1y", Interval: model.Interval1d, ResampleBy: 1, MinBars: 30},
		model.ModeDay:   {Period: "5d", Interval: model.Interval1m, ResampleBy: 3, MinBars: 30},
	}
}

// MockFetcher returns controllable fixed data for development and testing.
type MockFetcher struct {
	Price float64
	Bars  []model.OHLCV
	Err   error
	Count int // bars generated when Bars is nil
	Calls []model.BarRequest
}

func (m *MockFetcher) Name() string { return "mock" }

func (m *MockFetcher) FetchBars(_ context.Context, req model.BarRequest) (*model.PriceSeries, error) {
	m.Calls = append(m.Calls, req)
	if m.Err != nil {
		return nil, m.Err
	}
	bars := m.Bars
	if bars == nil {
		count := m.Count
		if count == 0 {
			count = 300
		}
		bars = generateMockBars(m.Price, count, intervalStep(req.Interval))
	}
	return &model.PriceSeries{Symbol: req.Symbol, Name: "mock " + req.Symbol, Interval: req.Interval, Bars: bars, FetchedAt: time.Now()}, nil
}

func generateMockBars(basePrice float64, count int, step time.Duration) []model.OHLCV {
	bars := make([]model.OHLCV, count)
	end := time.Now().Truncate(step)
	for i := 0; i < count; i++ {
		p := basePrice * (1 + float64(i-count/2)*0.001)
		bars[i] = model.OHLCV{
			Time:   end.Add(-time.Duration(count-i) * step),
			Open:   p * 0.999,
			High:   p * 1.005,
			Low:    p * 0.995,
			Close:  p,
			Volume: 1000000,
		}
	}
	return bars
}

func intervalStep(iv model.Interval) time.Duration {
	switch iv {
	case model.Interval1m:
		return time.Minute
	case model.Interval3m:
		return 3 * time.Minute
	case model.Interval5m:
		return 5 * time.Minute
	default:
		return 24 * time.Hour
	}
}

func scaleInterval(iv model.Interval, n int) model.Interval {
	step := intervalStep(iv) * time.Duration(n)
	if step < 24*time.Hour {
		return model.Interval(fmt.Sprintf("%dm", int(step/time.Minute)))
	}
	return model.Interval(fmt.Sprintf("%s*%d", iv, n))
}

// Collector fetches bars per mode and shapes them for the strategy.
type Collector struct {
	Fetcher Fetcher
	Plans   map[model.Mode]Plan
	logger  zerolog.Logger
}

// NewCollector creates a new Collector. Modes missing from plans use DefaultPlans.
func NewCollector(fetcher Fetcher, plans map[model.Mode]Plan) *Collector {
	merged := DefaultPlans()
	for m, p := range plans {
		merged[m] = p
	}
	return &Collector{
		Fetcher: fetcher,
		Plans:   merged,
		logger:  log.With().Str("component", "collector").Logger(),
	}
}

// Collect fetches bars for symbol according to the mode's plan, resamples them and checks
// the minimum history. Failures are either ErrFetch or ErrInsufficientData.
func (c *Collector) Collect(ctx context.Context, symbol string, mode model.Mode) (*model.PriceSeries, error) {
	plan, ok := c.Plans[mode]
	if !ok {
		return nil, fmt.Errorf("no fetch plan for mode %s", mode)
	}
	series, err := c.Fetcher.FetchBars(ctx, model.BarRequest{Symbol: symbol, Period: plan.Period, Interval: plan.Interval})
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrFetch, symbol, err)
	}
	if series == nil {
		series = &model.PriceSeries{Symbol: symbol, Interval: plan.Interval}
	}

	if plan.ResampleBy > 1 {
		resampled, err := calculator.Resample(series.Bars, plan.ResampleBy)
		if err != nil {
			return nil, err
		}
		c.logger.Debug().Str("symbol", symbol).Int("from", len(series.Bars)).Int("to", len(resampled)).Msg("resampled bars")
		series.Bars = resampled
		series.Interval = scaleInterval(plan.Interval, plan.ResampleBy)
	}

	if len(series.Bars) < plan.MinBars {
		return series, fmt.Errorf("%w: %s has %d bars, need %d", ErrInsufficientData, symbol, len(series.Bars), plan.MinBars)
	}
	return series, nil
}
