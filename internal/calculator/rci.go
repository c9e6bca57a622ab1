package calculator

import "sort"

// RCI computes the rank correlation index over a trailing window of period closes.
//
// Time rank counts from the newest bar (1) backwards and price rank from the highest close (1)
// downwards. Ranks are ordinal: equal closes are ranked newest first and no tie correction is
// applied, so a flat window reads +100 rather than 0.
func RCI(closes []float64, period int) ([]float64, error) {
	if period <= 0 {
		return nil, ErrInvalidPeriod
	}
	out := nanSeries(len(closes))
	if period == 1 {
		// n(n²-1) is zero; a single bar has no ordering to correlate
		return out, nil
	}
	denom := float64(period * (period*period - 1))

	idx := make([]int, period)
	for end := period - 1; end < len(closes); end++ {
		window := closes[end-period+1 : end+1]
		if !Defined(window...) {
			continue
		}
		for i := range idx {
			// newest first: idx[0] is the last bar of the window
			idx[i] = period - 1 - i
		}
		sort.SliceStable(idx, func(a, b int) bool {
			return window[idx[a]] > window[idx[b]]
		})

		d := 0.0
		for priceRank0, pos := range idx {
			timeRank := period - pos
			diff := float64(timeRank - (priceRank0 + 1))
			d += diff * diff
		}
		out[end] = (1 - 6*d/denom) * 100
	}
	return out, nil
}
