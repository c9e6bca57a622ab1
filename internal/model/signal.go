package model

import "time"

// Direction is the trading bias of a signal.
type Direction string

const (
	DirectionBuy  Direction = "buy"
	DirectionSell Direction = "sell"
	DirectionWarn Direction = "warn"
)

// Snapshot holds the indicator values at the evaluated bar. NaN means undefined.
type Snapshot struct {
	Close    float64
	High     float64
	Low      float64
	MA60     float64
	MA200    float64
	Upper2   float64
	Lower2   float64
	Lower3   float64
	RSI      float64
	MACDHist float64
	RCI9     float64
	RCI26    float64
	RCI52    float64
}

// Signal is one matched rule for one ticker in one evaluation pass.
type Signal struct {
	Ticker    string
	Name      string
	Reason    string // watchlist reason, empty for universe tickers
	RuleID    string
	Direction Direction
	Message   string
	Strong    bool
	BarTime   time.Time
	Snapshot  Snapshot
}

// WatchlistEntry is one persisted watchlist row.
type WatchlistEntry struct {
	Ticker  string    `json:"ticker"`
	Name    string    `json:"name"`
	Reason  string    `json:"reason"`
	AddedAt time.Time `json:"added_at"`
}
