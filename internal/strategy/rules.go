package strategy

import (
	"fmt"

	"KabuSentinel/internal/calculator"
	"KabuSentinel/internal/model"
)

// Rule is one row of the signal table: a predicate over the latest bars of a Frame and the
// text to emit when it holds. Predicates must return false when any input is undefined.
type Rule struct {
	ID        string
	Direction model.Direction
	Label     string
	Match     func(f *Frame) bool
	Detail    func(f *Frame) string
}

// DefaultRules returns the full rule table in display order.
func DefaultRules() []Rule {
	return []Rule{
		{
			ID: "bb_overextension", Direction: model.DirectionSell, Label: "BB+2σ 過熱",
			Match: func(f *Frame) bool {
				last := f.Last()
				ma := calculator.Last(f.MAFast)
				if !calculator.Defined(ma, calculator.Last(f.Inner.Upper)) || last.Close <= ma {
					return false
				}
				return calculator.CountAtOrAbove(f.Highs, f.Inner.Upper, f.Params.TouchWindow) >= f.Params.TouchMin
			},
			Detail: func(f *Frame) string {
				n := calculator.CountAtOrAbove(f.Highs, f.Inner.Upper, f.Params.TouchWindow)
				return fmt.Sprintf("+2σ touched %d/%d", n, f.Params.TouchWindow)
			},
		},
		{
			ID: "ma60_support", Direction: model.DirectionBuy, Label: "MA60 押し目",
			Match: func(f *Frame) bool {
				last := f.Last()
				ma := calculator.Last(f.MAFast)
				return calculator.Defined(ma) && last.Close > ma && last.Low <= ma
			},
			Detail: func(f *Frame) string { return fmt.Sprintf("MA60 %.1f", calculator.Last(f.MAFast)) },
		},
		{
			ID: "ma60_reversal", Direction: model.DirectionBuy, Label: "MA60 上抜け",
			Match: func(f *Frame) bool {
				if f.Len() < 2 {
					return false
				}
				prevClose := f.Closes[f.Len()-2]
				prevMA, ma := calculator.Prev(f.MAFast), calculator.Last(f.MAFast)
				return calculator.Defined(prevMA, ma) && prevClose < prevMA && f.Last().Close > ma
			},
			Detail: func(f *Frame) string { return fmt.Sprintf("MA60 %.1f", calculator.Last(f.MAFast)) },
		},
		{
			ID: "ma200_resistance", Direction: model.DirectionSell, Label: "MA200 抵抗",
			Match: func(f *Frame) bool {
				last := f.Last()
				fast, slow := calculator.Last(f.MAFast), calculator.Last(f.MASlow)
				return calculator.Defined(fast, slow) && slow > fast && last.High >= slow && last.Close < slow
			},
			Detail: func(f *Frame) string { return fmt.Sprintf("MA200 %.1f", calculator.Last(f.MASlow)) },
		},
		{
			ID: "bb3_oversold", Direction: model.DirectionBuy, Label: "BB-3σ 売られすぎ",
			Match: func(f *Frame) bool {
				last := f.Last()
				ma, lower := calculator.Last(f.MAFast), calculator.Last(f.Outer.Lower)
				return calculator.Defined(ma, lower) && last.Close < ma && last.Low <= lower
			},
			Detail: func(f *Frame) string { return fmt.Sprintf("-3σ %.1f", calculator.Last(f.Outer.Lower)) },
		},
		{
			ID: "rsi_oversold", Direction: model.DirectionBuy, Label: "RSI 売られすぎ",
			Match: func(f *Frame) bool {
				rsi := calculator.Last(f.RSI)
				return calculator.Defined(rsi) && rsi <= f.Params.RSILow
			},
			Detail: func(f *Frame) string { return fmt.Sprintf("RSI:%.1f", calculator.Last(f.RSI)) },
		},
		{
			ID: "rsi_overbought", Direction: model.DirectionSell, Label: "RSI 買われすぎ",
			Match: func(f *Frame) bool {
				rsi := calculator.Last(f.RSI)
				return calculator.Defined(rsi) && rsi >= f.Params.RSIHigh
			},
			Detail: func(f *Frame) string { return fmt.Sprintf("RSI:%.1f", calculator.Last(f.RSI)) },
		},
		{
			ID: "macd_golden_cross", Direction: model.DirectionBuy, Label: "MACD ゴールデンクロス",
			Match: func(f *Frame) bool {
				prev, cur := calculator.Prev(f.MACD.Hist), calculator.Last(f.MACD.Hist)
				return calculator.Defined(prev, cur) && prev <= 0 && cur > 0
			},
			Detail: macdDetail,
		},
		{
			ID: "macd_dead_cross", Direction: model.DirectionSell, Label: "MACD デッドクロス",
			Match: func(f *Frame) bool {
				prev, cur := calculator.Prev(f.MACD.Hist), calculator.Last(f.MACD.Hist)
				return calculator.Defined(prev, cur) && prev >= 0 && cur < 0
			},
			Detail: macdDetail,
		},
		{
			ID: "rci_bottom_reversal", Direction: model.DirectionBuy, Label: "RCI 底打ち",
			Match: func(f *Frame) bool {
				prev, cur := calculator.Prev(f.RCI), calculator.Last(f.RCI)
				return calculator.Defined(prev, cur) && prev < -f.Params.RCIExtreme && cur > prev
			},
			Detail: rciDetail,
		},
		{
			ID: "rci_top_reversal", Direction: model.DirectionSell, Label: "RCI 天井",
			Match: func(f *Frame) bool {
				prev, cur := calculator.Prev(f.RCI), calculator.Last(f.RCI)
				return calculator.Defined(prev, cur) && prev > f.Params.RCIExtreme && cur < prev
			},
			Detail: rciDetail,
		},
		{
			ID: "sma_golden_cross", Direction: model.DirectionBuy, Label: "ゴールデンクロス",
			Match: func(f *Frame) bool {
				ps, pl := calculator.Prev(f.CrossShort), calculator.Prev(f.CrossLong)
				s, l := calculator.Last(f.CrossShort), calculator.Last(f.CrossLong)
				return calculator.Defined(ps, pl, s, l) && ps < pl && s > l
			},
			Detail: crossDetail,
		},
		{
			ID: "sma_dead_cross", Direction: model.DirectionSell, Label: "デッドクロス",
			Match: func(f *Frame) bool {
				ps, pl := calculator.Prev(f.CrossShort), calculator.Prev(f.CrossLong)
				s, l := calculator.Last(f.CrossShort), calculator.Last(f.CrossLong)
				return calculator.Defined(ps, pl, s, l) && ps > pl && s < l
			},
			Detail: crossDetail,
		},
	}
}

// RuleSet returns the default table without the disabled rule IDs.
func RuleSet(disabled []string) []Rule {
	off := make(map[string]bool, len(disabled))
	for _, id := range disabled {
		off[id] = true
	}
	var rules []Rule
	for _, r := range DefaultRules() {
		if !off[r.ID] {
			rules = append(rules, r)
		}
	}
	return rules
}

func macdDetail(f *Frame) string {
	return fmt.Sprintf("hist %+.2f", calculator.Last(f.MACD.Hist))
}

func rciDetail(f *Frame) string {
	out := fmt.Sprintf("RCI%d %.0f→%.0f", f.Params.RCIPeriod, calculator.Prev(f.RCI), calculator.Last(f.RCI))
	if mid, long := calculator.Last(f.RCIMid), calculator.Last(f.RCILong); calculator.Defined(mid, long) {
		out += fmt.Sprintf(" (%d:%.0f %d:%.0f)", f.Params.RCIMid, mid, f.Params.RCILong, long)
	}
	return out
}

func crossDetail(f *Frame) string {
	return fmt.Sprintf("SMA%d/%d", f.Params.CrossShort, f.Params.CrossLong)
}
