package calculator

import (
	"errors"
	"math"

	"KabuSentinel/internal/model"
)

// ErrInvalidPeriod is returned when a window length is not positive.
var ErrInvalidPeriod = errors.New("period must be positive")

// SMA computes the rolling simple moving average. Positions before the first full window are NaN.
func SMA(values []float64, period int) ([]float64, error) {
	if period <= 0 {
		return nil, ErrInvalidPeriod
	}
	out := nanSeries(len(values))
	sum := 0.0
	valid := 0
	for i, v := range values {
		if math.IsNaN(v) {
			// a gap restarts the window
			sum, valid = 0, 0
			continue
		}
		sum += v
		valid++
		if valid > period {
			sum -= values[i-period]
			valid = period
		}
		if valid == period {
			out[i] = sum / float64(period)
		}
	}
	return out, nil
}

// EMA computes the exponential moving average seeded with the SMA of the first period values.
// Leading NaNs are skipped, so an EMA of another indicator series starts where that series does.
func EMA(values []float64, period int) ([]float64, error) {
	if period <= 0 {
		return nil, ErrInvalidPeriod
	}
	out := nanSeries(len(values))
	start := 0
	for start < len(values) && math.IsNaN(values[start]) {
		start++
	}
	if len(values)-start < period {
		return out, nil
	}

	sum := 0.0
	for i := start; i < start+period; i++ {
		sum += values[i]
	}
	ema := sum / float64(period)
	out[start+period-1] = ema

	k := 2.0 / float64(period+1)
	for i := start + period; i < len(values); i++ {
		if math.IsNaN(values[i]) {
			continue
		}
		ema = (values[i]-ema)*k + ema
		out[i] = ema
	}
	return out, nil
}

// Slope returns v[i] - v[i-lag], a trend-direction proxy for a moving average.
func Slope(series []float64, lag int) ([]float64, error) {
	if lag <= 0 {
		return nil, ErrInvalidPeriod
	}
	out := nanSeries(len(series))
	for i := lag; i < len(series); i++ {
		out[i] = series[i] - series[i-lag] // NaN propagates
	}
	return out, nil
}

// Last returns the final element of a series, or NaN if it is empty.
func Last(series []float64) float64 {
	if len(series) == 0 {
		return math.NaN()
	}
	return series[len(series)-1]
}

// Prev returns the second-to-last element of a series, or NaN if there is none.
func Prev(series []float64) float64 {
	if len(series) < 2 {
		return math.NaN()
	}
	return series[len(series)-2]
}

// Defined reports whether none of the values is NaN.
func Defined(values ...float64) bool {
	for _, v := range values {
		if math.IsNaN(v) {
			return false
		}
	}
	return true
}

func Closes(bars []model.OHLCV) []float64 {
	out := make([]float64, len(bars))
	for i, b := range bars {
		out[i] = b.Close
	}
	return out
}

func Highs(bars []model.OHLCV) []float64 {
	out := make([]float64, len(bars))
	for i, b := range bars {
		out[i] = b.High
	}
	return out
}

func Lows(bars []model.OHLCV) []float64 {
	out := make([]float64, len(bars))
	for i, b := range bars {
		out[i] = b.Low
	}
	return out
}

func nanSeries(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = math.NaN()
	}
	return out
}
