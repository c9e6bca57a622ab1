package recorder

import "KabuSentinel/internal/model"

// NoopRecorder discards everything.
type NoopRecorder struct{}

func NewNoopRecorder() *NoopRecorder { return &NoopRecorder{} }

func (n *NoopRecorder) RecordRun(_ *model.RunSummary) error            { return nil }
func (n *NoopRecorder) RecordSignals(_ string, _ []model.Signal) error { return nil }
func (n *NoopRecorder) Close() error                                   { return nil }
