package calculator

import "KabuSentinel/internal/model"

// Resample aggregates groups of n consecutive bars into one bar: open of the first, max high,
// min low, close of the last and summed volume. The group timestamp is that of its first bar.
// An incomplete trailing group is dropped.
func Resample(bars []model.OHLCV, n int) ([]model.OHLCV, error) {
	if n <= 0 {
		return nil, ErrInvalidPeriod
	}
	if n == 1 {
		out := make([]model.OHLCV, len(bars))
		copy(out, bars)
		return out, nil
	}
	out := make([]model.OHLCV, 0, len(bars)/n)
	for start := 0; start+n <= len(bars); start += n {
		group := bars[start : start+n]
		agg := group[0]
		for _, b := range group[1:] {
			if b.High > agg.High {
				agg.High = b.High
			}
			if b.Low < agg.Low {
				agg.Low = b.Low
			}
			agg.Volume += b.Volume
		}
		agg.Close = group[n-1].Close
		out = append(out, agg)
	}
	return out, nil
}
