package model

import (
	"strings"
	"time"
)

// OHLCV represents a single candlestick bar.
type OHLCV struct {
	Time   time.Time
	Open   float64
	High   float64
	Low    float64
	Close  float64
	Volume float64
}

// Interval is a bar granularity in the price source's notation ("1m", "5m", "1d").
type Interval string

const (
	Interval1m Interval = "1m"
	Interval3m Interval = "3m"
	Interval5m Interval = "5m"
	Interval1d Interval = "1d"
)

// BarRequest describes one fetch from the price-bar source.
type BarRequest struct {
	Symbol   string
	Period   string // lookback in the source's range notation, e.g. "5d", "1y"
	Interval Interval
}

// Mode selects the bar granularity and thresholds of a monitoring pass.
type Mode string

const (
	ModeSwing Mode = "SWING"
	ModeDay   Mode = "DAY"
)

// ParseMode maps free text (a sheet cell, a flag) to a Mode. Anything mentioning DAY is DAY.
func ParseMode(s string) Mode {
	if strings.Contains(strings.ToUpper(strings.TrimSpace(s)), "DAY") {
		return ModeDay
	}
	return ModeSwing
}

// Icon is the emoji prefix used on alerts for the mode.
func (m Mode) Icon() string {
	if m == ModeDay {
		return "🐇"
	}
	return "🐢"
}

// PriceSeries holds the bars fetched for one symbol at one granularity.
type PriceSeries struct {
	Symbol    string
	Name      string
	Interval  Interval
	Bars      []OHLCV
	FetchedAt time.Time
}
