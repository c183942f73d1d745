package observability

// Field is one structured key/value pair attached to a log record.
type Field struct {
	Key   string
	Value any
}

// Err returns the conventional "error" field. A nil error yields an empty
// value so callers can log unconditionally.
func Err(err error) Field {
	if err == nil {
		return Field{Key: "error", Value: ""}
	}
	return Field{Key: "error", Value: err.Error()}
}

// Logger receives the client's log records: Debug for every request and
// cache decision, Warn for retries and breaker trips, Error for requests
// that finally failed. Adapt any logging library to it; NewSlogLogger
// covers log/slog.
type Logger interface {
	Debug(msg string, fields ...Field)
	Info(msg string, fields ...Field)
	Warn(msg string, fields ...Field)
	Error(msg string, fields ...Field)

	// With returns a logger that adds fields to every record.
	With(fields ...Field) Logger
}

type noopLogger struct{}

// NoopLogger discards everything. Components use it when no logger is
// configured.
//
//nolint:ireturn // Factory function must return interface for dependency injection pattern
func NoopLogger() Logger {
	return noopLogger{}
}

func (noopLogger) Debug(string, ...Field) {}
func (noopLogger) Info(string, ...Field)  {}
func (noopLogger) Warn(string, ...Field)  {}
func (noopLogger) Error(string, ...Field) {}

//nolint:ireturn // Method must return interface to satisfy Logger interface
func (l noopLogger) With(...Field) Logger { return l }
