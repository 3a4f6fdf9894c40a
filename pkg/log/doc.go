// Package log captures LAN protocol events for later analysis.
//
// Protocol capture is separate from operational logging (slog). Every key
// exchange, command poll, envelope, registration ping, mDNS query and
// session state change can be recorded as an Event and written to a
// compact CBOR file, mirrored to slog, or both:
//
//	cfg.ProtocolLog = log.Tee(
//	    log.NewSlogAdapter(slog.Default()),
//	    fileLogger,
//	)
//
// Components emit through a Recorder, which stamps the time, local role
// and DSN and is a no-op when no Logger is configured.
//
// # File Format
//
// Log files are a stream of CBOR-encoded events with integer keys and
// RFC 3339 nanosecond timestamps, conventionally with the .llog
// extension. A capture cut short mid-record still reads up to the last
// complete event. The lanmode-log tool views, filters, exports and
// summarizes them.
package log
