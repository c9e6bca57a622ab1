package collector

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/piquette/finance-go/chart"
	"github.com/piquette/finance-go/datetime"
	"github.com/shopspring/decimal"

	"KabuSentinel/internal/model"
)

// FinanceGoFetcher implements Fetcher with the piquette/finance-go chart client.
type FinanceGoFetcher struct {
	now func() time.Time
}

func NewFinanceGoFetcher() *FinanceGoFetcher {
	return &FinanceGoFetcher{now: time.Now}
}

func (f *FinanceGoFetcher) Name() string { return "finance-go" }

func (f *FinanceGoFetcher) FetchBars(ctx context.Context, req model.BarRequest) (*model.PriceSeries, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	end := f.now()
	start, err := periodStart(end, req.Period)
	if err != nil {
		return nil, err
	}

	params := &chart.Params{
		Symbol:   req.Symbol,
		Start:    datetime.New(&start),
		End:      datetime.New(&end),
		Interval: datetime.Interval(req.Interval),
	}

	series := &model.PriceSeries{Symbol: req.Symbol, Interval: req.Interval, FetchedAt: end}
	iter := chart.Get(params)
	for iter.Next() {
		b := iter.Bar()
		series.Bars = append(series.Bars, model.OHLCV{
			Time:   time.Unix(int64(b.Timestamp), 0),
			Open:   toFloat(b.Open),
			High:   toFloat(b.High),
			Low:    toFloat(b.Low),
			Close:  toFloat(b.Close),
			Volume: float64(b.Volume),
		})
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("finance-go chart %s: %w", req.Symbol, err)
	}
	return series, nil
}

func toFloat(d decimal.Decimal) float64 {
	v, _ := d.Float64()
	return v
}

// periodStart converts a range such as "5d", "3mo" or "1y" into a start time before end.
func periodStart(end time.Time, period string) (time.Time, error) {
	p := strings.ToLower(strings.TrimSpace(period))
	for _, unit := range []string{"mo", "d", "y", "wk"} {
		if !strings.HasSuffix(p, unit) {
			continue
		}
		n, err := strconv.Atoi(strings.TrimSuffix(p, unit))
		if err != nil || n <= 0 {
			return time.Time{}, fmt.Errorf("invalid period %q", period)
		}
		switch unit {
		case "d":
			return end.AddDate(0, 0, -n), nil
		case "wk":
			return end.AddDate(0, 0, -7*n), nil
		case "mo":
			return end.AddDate(0, -n, 0), nil
		default:
			return end.AddDate(-n, 0, 0), nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid period %q", period)
}
