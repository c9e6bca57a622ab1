package model

import "time"

// RunSummary describes one evaluation pass.
type RunSummary struct {
	ID         string
	Mode       Mode
	StartedAt  time.Time
	FinishedAt time.Time
	Closed     bool // market was closed, nothing evaluated
	Tickers    int
	Skipped    int // insufficient data
	Failed     int // fetch or evaluation error
	Signals    int
	Sent       bool
}
