package log

// Logger receives protocol events from the session and transport layers.
// Log is called on request paths and must not block; implementations must
// be safe for concurrent use. A nil Logger disables capture.
type Logger interface {
	Log(event Event)
}

// LoggerFunc adapts a function to the Logger interface.
type LoggerFunc func(event Event)

// Log calls f(event).
func (f LoggerFunc) Log(event Event) { f(event) }

// NoopLogger discards all events.
type NoopLogger struct{}

// Log discards the event.
func (NoopLogger) Log(Event) {}

// Tee returns a Logger that hands each event to every non-nil logger in
// order, typically a FileLogger and a SlogAdapter. It returns nil when no
// logger remains, which disables capture.
func Tee(loggers ...Logger) Logger {
	var out []Logger
	for _, l := range loggers {
		if l != nil {
			out = append(out, l)
		}
	}
	switch len(out) {
	case 0:
		return nil
	case 1:
		return out[0]
	}
	return LoggerFunc(func(event Event) {
		for _, l := range out {
			l.Log(event)
		}
	})
}

var (
	_ Logger = NoopLogger{}
	_ Logger = LoggerFunc(nil)
)
