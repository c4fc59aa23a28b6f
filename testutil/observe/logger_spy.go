package observe

import (
	"context"
	"sync"

	"github.com/eventfold/eventstore-go/eventstore"
)

// LogRecord is a single captured log call.
type LogRecord struct {
	Level string
	Msg   string
	Args  []any
}

// LoggerSpy captures log calls for inspection in tests.
// It implements both eventstore.Logger and eventstore.ContextualLogger.
type LoggerSpy struct {
	records []LogRecord
	mu      sync.Mutex
}

// NewLoggerSpy creates a new LoggerSpy.
func NewLoggerSpy() *LoggerSpy {
	return &LoggerSpy{records: make([]LogRecord, 0)}
}

var _ eventstore.Logger = (*LoggerSpy)(nil)
var _ eventstore.ContextualLogger = (*LoggerSpy)(nil)

// Debug implements the eventstore.Logger interface.
func (s *LoggerSpy) Debug(msg string, args ...any) { s.record("debug", msg, args) }

// Info implements the eventstore.Logger interface.
func (s *LoggerSpy) Info(msg string, args ...any) { s.record("info", msg, args) }

// Warn implements the eventstore.Logger interface.
func (s *LoggerSpy) Warn(msg string, args ...any) { s.record("warn", msg, args) }

// Error implements the eventstore.Logger interface.
func (s *LoggerSpy) Error(msg string, args ...any) { s.record("error", msg, args) }

// DebugContext implements the eventstore.ContextualLogger interface.
func (s *LoggerSpy) DebugContext(_ context.Context, msg string, args ...any) {
	s.record("debug", msg, args)
}

// InfoContext implements the eventstore.ContextualLogger interface.
func (s *LoggerSpy) InfoContext(_ context.Context, msg string, args ...any) {
	s.record("info", msg, args)
}

// WarnContext implements the eventstore.ContextualLogger interface.
func (s *LoggerSpy) WarnContext(_ context.Context, msg string, args ...any) {
	s.record("warn", msg, args)
}

// ErrorContext implements the eventstore.ContextualLogger interface.
func (s *LoggerSpy) ErrorContext(_ context.Context, msg string, args ...any) {
	s.record("error", msg, args)
}

func (s *LoggerSpy) record(level, msg string, args []any) {
	s.mu.Lock()
	defer s.mu.Unlock()

	argsCopy := make([]any, len(args))
	copy(argsCopy, args)
	s.records = append(s.records, LogRecord{Level: level, Msg: msg, Args: argsCopy})
}

// Records returns a copy of all captured log records.
func (s *LoggerSpy) Records() []LogRecord {
	s.mu.Lock()
	defer s.mu.Unlock()

	records := make([]LogRecord, len(s.records))
	copy(records, s.records)

	return records
}

// RecordsWithMsg returns all captured records with the given message.
func (s *LoggerSpy) RecordsWithMsg(msg string) []LogRecord {
	s.mu.Lock()
	defer s.mu.Unlock()

	var matching []LogRecord
	for _, record := range s.records {
		if record.Msg == msg {
			matching = append(matching, record)
		}
	}

	return matching
}

// Reset discards all captured records.
func (s *LoggerSpy) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = s.records[:0]
}
