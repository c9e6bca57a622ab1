package strategy

import (
	"fmt"

	"KabuSentinel/internal/model"
)

// Evaluate runs every rule against the latest bars of the frame and returns all matches.
// It is pure: no memory of previous calls, no ordering between rules beyond the table order.
func Evaluate(ticker string, f *Frame, rules []Rule) []model.Signal {
	if f == nil || f.Len() == 0 {
		return nil
	}
	last := f.Last()
	strong := f.Strong()
	snap := f.Snapshot()

	var signals []model.Signal
	for _, r := range rules {
		if !r.Match(f) {
			continue
		}
		msg := r.Label
		if r.Detail != nil {
			msg = fmt.Sprintf("%s (%s)", r.Label, r.Detail(f))
		}
		signals = append(signals, model.Signal{
			Ticker:    ticker,
			RuleID:    r.ID,
			Direction: r.Direction,
			Message:   msg,
			Strong:    strong,
			BarTime:   last.Time,
			Snapshot:  snap,
		})
	}
	return signals
}

// HasBuy reports whether any signal carries a buy bias.
func HasBuy(signals []model.Signal) bool {
	for _, s := range signals {
		if s.Direction == model.DirectionBuy {
			return true
		}
	}
	return false
}
