package collector

import (
	"context"

	"KabuSentinel/internal/model"
)

// Fetcher defines the interface for fetching price bars.
// An empty or short result is not an error; the Collector decides whether it is enough.
type Fetcher interface {
	FetchBars(ctx context.Context, req model.BarRequest) (*model.PriceSeries, error)
	Name() string
}
