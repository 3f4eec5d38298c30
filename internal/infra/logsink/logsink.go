// Package logsink ships the per-check structured log records. The local
// sink writes through slog; the redis sink appends to a capped stream for
// external collection.
package logsink

import (
	"context"
	"log/slog"
)

// Level tags a check record.
type Level string

const (
	LevelInfo  Level = "info"
	LevelError Level = "error"
)

// Entry is one structured check record, tagged by node identity.
type Entry struct {
	Name    string `json:"name"`
	Level   Level  `json:"level"`
	Message string `json:"message"`
}

// Sink receives check records. Writes must not block the polling loop; a
// failed write is the sink's problem to log, not the monitor's.
type Sink interface {
	Write(ctx context.Context, e Entry) error
}

// SlogSink writes records to the process logger.
type SlogSink struct {
	log *slog.Logger
}

// NewSlogSink creates the local sink.
func NewSlogSink() *SlogSink {
	return &SlogSink{log: slog.Default().With("component", "monitor")}
}

func (s *SlogSink) Write(_ context.Context, e Entry) error {
	if e.Level == LevelError {
		s.log.Error(e.Message, "node", e.Name)
	} else {
		s.log.Info(e.Message, "node", e.Name)
	}
	return nil
}

// Tee fans a record out to several sinks; the first error wins but every
// sink still sees the record.
type Tee []Sink

func (t Tee) Write(ctx context.Context, e Entry) error {
	var first error
	for _, s := range t {
		if err := s.Write(ctx, e); err != nil && first == nil {
			first = err
		}
	}
	return first
}
