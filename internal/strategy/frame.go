package strategy

import (
	"fmt"

	"KabuSentinel/internal/calculator"
	"KabuSentinel/internal/model"
)

// Params holds every indicator window and threshold the rule table reads.
type Params struct {
	MAFast      int     `yaml:"ma_fast"`
	MASlow      int     `yaml:"ma_slow"`
	SlopeLag    int     `yaml:"slope_lag"`
	BBPeriod    int     `yaml:"bb_period"`
	BBInner     float64 `yaml:"bb_inner"`
	BBOuter     float64 `yaml:"bb_outer"`
	TouchWindow int     `yaml:"touch_window"`
	TouchMin    int     `yaml:"touch_min"`
	RSIPeriod   int     `yaml:"rsi_period"`
	RSIWilder   bool    `yaml:"rsi_wilder"`
	RSILow      float64 `yaml:"rsi_low"`
	RSIHigh     float64 `yaml:"rsi_high"`
	MACDFast    int     `yaml:"macd_fast"`
	MACDSlow    int     `yaml:"macd_slow"`
	MACDSignal  int     `yaml:"macd_signal"`
	RCIPeriod   int     `yaml:"rci_period"`
	RCIMid      int     `yaml:"rci_mid"`
	RCILong     int     `yaml:"rci_long"`
	RCIExtreme  float64 `yaml:"rci_extreme"`
	CrossShort  int     `yaml:"cross_short"`
	CrossLong   int     `yaml:"cross_long"`
}

// DefaultParams returns the windows used by the intraday monitor and the RSI thresholds for mode.
func DefaultParams(mode model.Mode) Params {
	p := Params{
		MAFast:      60,
		MASlow:      200,
		SlopeLag:    20,
		BBPeriod:    20,
		BBInner:     2,
		BBOuter:     3,
		TouchWindow: 10,
		TouchMin:    3,
		RSIPeriod:   14,
		RSILow:      30,
		RSIHigh:     70,
		MACDFast:    12,
		MACDSlow:    26,
		MACDSignal:  9,
		RCIPeriod:   9,
		RCIMid:      26,
		RCILong:     52,
		RCIExtreme:  80,
		CrossShort:  25,
		CrossLong:   75,
	}
	if mode == model.ModeDay {
		p.RSILow = 25
		p.RSIHigh = 75
	}
	return p
}

// Frame holds the bars of one ticker and every indicator series aligned to them.
type Frame struct {
	Bars   []model.OHLCV
	Closes []float64
	Highs  []float64
	Lows   []float64

	MAFast     []float64
	MASlow     []float64
	SlopeFast  []float64
	SlopeSlow  []float64
	Inner      *calculator.Bands
	Outer      *calculator.Bands
	RSI        []float64
	MACD       *calculator.MACDResult
	RCI        []float64
	RCIMid     []float64
	RCILong    []float64
	CrossShort []float64
	CrossLong  []float64

	Params Params
}

// NewFrame computes all indicator series once for the given bars. Short series are not an
// error: the affected positions are NaN and the rules reading them do not match.
func NewFrame(bars []model.OHLCV, p Params) (*Frame, error) {
	f := &Frame{
		Bars:   bars,
		Closes: calculator.Closes(bars),
		Highs:  calculator.Highs(bars),
		Lows:   calculator.Lows(bars),
		Params: p,
	}
	var err error
	if f.MAFast, err = calculator.SMA(f.Closes, p.MAFast); err != nil {
		return nil, fmt.Errorf("ma fast: %w", err)
	}
	if f.MASlow, err = calculator.SMA(f.Closes, p.MASlow); err != nil {
		return nil, fmt.Errorf("ma slow: %w", err)
	}
	if f.SlopeFast, err = calculator.Slope(f.MAFast, p.SlopeLag); err != nil {
		return nil, fmt.Errorf("slope fast: %w", err)
	}
	if f.SlopeSlow, err = calculator.Slope(f.MASlow, p.SlopeLag); err != nil {
		return nil, fmt.Errorf("slope slow: %w", err)
	}
	if f.Inner, err = calculator.Bollinger(f.Closes, p.BBPeriod, p.BBInner); err != nil {
		return nil, fmt.Errorf("bollinger inner: %w", err)
	}
	if f.Outer, err = calculator.Bollinger(f.Closes, p.BBPeriod, p.BBOuter); err != nil {
		return nil, fmt.Errorf("bollinger outer: %w", err)
	}
	rsi := calculator.RSI
	if p.RSIWilder {
		rsi = calculator.WilderRSI
	}
	if f.RSI, err = rsi(f.Closes, p.RSIPeriod); err != nil {
		return nil, fmt.Errorf("rsi: %w", err)
	}
	if f.MACD, err = calculator.MACD(f.Closes, p.MACDFast, p.MACDSlow, p.MACDSignal); err != nil {
		return nil, fmt.Errorf("macd: %w", err)
	}
	if f.RCI, err = calculator.RCI(f.Closes, p.RCIPeriod); err != nil {
		return nil, fmt.Errorf("rci: %w", err)
	}
	if f.RCIMid, err = calculator.RCI(f.Closes, p.RCIMid); err != nil {
		return nil, fmt.Errorf("rci mid: %w", err)
	}
	if f.RCILong, err = calculator.RCI(f.Closes, p.RCILong); err != nil {
		return nil, fmt.Errorf("rci long: %w", err)
	}
	if f.CrossShort, err = calculator.SMA(f.Closes, p.CrossShort); err != nil {
		return nil, fmt.Errorf("cross short: %w", err)
	}
	if f.CrossLong, err = calculator.SMA(f.Closes, p.CrossLong); err != nil {
		return nil, fmt.Errorf("cross long: %w", err)
	}
	return f, nil
}

// Last returns the latest bar. Callers check Len first.
func (f *Frame) Last() model.OHLCV { return f.Bars[len(f.Bars)-1] }

func (f *Frame) Len() int { return len(f.Bars) }

// Strong reports whether the fast and slow moving averages slope the same way over the lag.
func (f *Frame) Strong() bool {
	a, b := calculator.Last(f.SlopeFast), calculator.Last(f.SlopeSlow)
	return calculator.Defined(a, b) && a*b > 0
}

// Snapshot captures the indicator values at the latest bar.
func (f *Frame) Snapshot() model.Snapshot {
	if f.Len() == 0 {
		return model.Snapshot{}
	}
	last := f.Last()
	return model.Snapshot{
		Close:    last.Close,
		High:     last.High,
		Low:      last.Low,
		MA60:     calculator.Last(f.MAFast),
		MA200:    calculator.Last(f.MASlow),
		Upper2:   calculator.Last(f.Inner.Upper),
		Lower2:   calculator.Last(f.Inner.Lower),
		Lower3:   calculator.Last(f.Outer.Lower),
		RSI:      calculator.Last(f.RSI),
		MACDHist: calculator.Last(f.MACD.Hist),
		RCI9:     calculator.Last(f.RCI),
		RCI26:    calculator.Last(f.RCIMid),
		RCI52:    calculator.Last(f.RCILong),
	}
}
