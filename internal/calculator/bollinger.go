package calculator

import "math"

// Bands holds aligned Bollinger band series.
type Bands struct {
	Upper  []float64
	Middle []float64
	Lower  []float64
}

// Bollinger computes SMA(period) ± k standard deviations. The deviation is the sample one
// (n-1 denominator), matching the rolling std of the charting tools the alerts were tuned on.
func Bollinger(closes []float64, period int, k float64) (*Bands, error) {
	if period <= 1 {
		return nil, ErrInvalidPeriod
	}
	mid, err := SMA(closes, period)
	if err != nil {
		return nil, err
	}
	b := &Bands{
		Upper:  nanSeries(len(closes)),
		Middle: mid,
		Lower:  nanSeries(len(closes)),
	}
	for i := period - 1; i < len(closes); i++ {
		if math.IsNaN(mid[i]) {
			continue
		}
		var ss float64
		for j := i - period + 1; j <= i; j++ {
			d := closes[j] - mid[i]
			ss += d * d
		}
		sd := math.Sqrt(ss / float64(period-1))
		b.Upper[i] = mid[i] + k*sd
		b.Lower[i] = mid[i] - k*sd
	}
	return b, nil
}
