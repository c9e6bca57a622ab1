// Package recorder keeps a history of evaluation passes and the signals they raised.
package recorder

import (
	"github.com/rs/zerolog/log"

	"KabuSentinel/internal/model"
)

// Recorder persists run history for later analysis.
type Recorder interface {
	RecordRun(run *model.RunSummary) error
	RecordSignals(runID string, signals []model.Signal) error
	Close() error
}

// New opens the configured database. An empty driver, or a database that cannot be
// opened, yields a NoopRecorder so that history never blocks alerting.
func New(driver, dsn string) Recorder {
	if driver == "" || dsn == "" {
		return NewNoopRecorder()
	}
	r, err := Open(driver, dsn)
	if err != nil {
		log.Warn().Err(err).Str("component", "recorder").Str("driver", driver).
			Msg("history disabled")
		return NewNoopRecorder()
	}
	return r
}
