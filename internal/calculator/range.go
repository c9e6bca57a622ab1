package calculator

import "math"

// CountAtOrAbove counts how many of the last window positions have values[i] >= ref[i].
// Positions where either side is NaN never count.
func CountAtOrAbove(values, ref []float64, window int) int {
	return countTouches(values, ref, window, func(v, r float64) bool { return v >= r })
}

// CountAtOrBelow counts how many of the last window positions have values[i] <= ref[i].
func CountAtOrBelow(values, ref []float64, window int) int {
	return countTouches(values, ref, window, func(v, r float64) bool { return v <= r })
}

func countTouches(values, ref []float64, window int, hit func(v, r float64) bool) int {
	n := len(values)
	if len(ref) < n {
		n = len(ref)
	}
	start := n - window
	if start < 0 {
		start = 0
	}
	count := 0
	for i := start; i < n; i++ {
		if math.IsNaN(values[i]) || math.IsNaN(ref[i]) {
			continue
		}
		if hit(values[i], ref[i]) {
			count++
		}
	}
	return count
}
