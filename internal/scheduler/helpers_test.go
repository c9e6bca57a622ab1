package scheduler

import (
	"KabuSentinel/internal/model"
	"KabuSentinel/internal/strategy"
)

func strategyPanics() strategy.Rule {
	return strategy.Rule{
		ID:        "broken",
		Direction: model.DirectionWarn,
		Label:     "broken",
		Match:     func(f *strategy.Frame) bool { panic("index out of range") },
	}
}
