package log

import (
	"errors"
	"io"
	"os"
	"strings"
	"time"

	"github.com/fxamacker/cbor/v2"
)

// Filter selects events. Zero fields match everything.
type Filter struct {
	// SessionID matches sessions whose id starts with this value, so the
	// eight character form printed by lanmode-log view is enough.
	SessionID string

	Direction *Direction
	Layer     *Layer
	Category  *Category

	// TimeStart is inclusive, TimeEnd exclusive.
	TimeStart *time.Time
	TimeEnd   *time.Time

	DSN  string
	Role *Role

	// Path matches message events whose request path contains it, for
	// example "datapoint.json". Events without a message never match.
	Path string
}

func (f *Filter) matches(event Event) bool {
	switch {
	case f.SessionID != "" && !strings.HasPrefix(event.SessionID, f.SessionID):
		return false
	case f.Direction != nil && event.Direction != *f.Direction:
		return false
	case f.Layer != nil && event.Layer != *f.Layer:
		return false
	case f.Category != nil && event.Category != *f.Category:
		return false
	case f.TimeStart != nil && event.Timestamp.Before(*f.TimeStart):
		return false
	case f.TimeEnd != nil && !event.Timestamp.Before(*f.TimeEnd):
		return false
	case f.DSN != "" && event.DSN != f.DSN:
		return false
	case f.Role != nil && event.LocalRole != *f.Role:
		return false
	case f.Path != "" && (event.Message == nil || !strings.Contains(event.Message.Path, f.Path)):
		return false
	}
	return true
}

// Reader streams events from a .llog file.
//
// A file whose last record was cut short, as happens when the writer is
// killed mid-capture, reads as ending after the last complete event;
// Truncated reports that case.
type Reader struct {
	file      *os.File
	decoder   *cbor.Decoder
	filter    Filter
	scanned   int
	truncated bool
}

// NewReader opens path and returns every event in it.
func NewReader(path string) (*Reader, error) {
	return NewFilteredReader(path, Filter{})
}

// NewFilteredReader opens path and returns only the events matching filter.
func NewFilteredReader(path string, filter Filter) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	return &Reader{file: f, decoder: newDecoder(f), filter: filter}, nil
}

// Next returns the next matching event, or io.EOF at the end of the file.
func (r *Reader) Next() (Event, error) {
	for {
		var event Event
		err := r.decoder.Decode(&event)
		switch {
		case errors.Is(err, io.ErrUnexpectedEOF):
			r.truncated = true
			return Event{}, io.EOF
		case err != nil:
			return Event{}, err
		}
		r.scanned++
		if r.filter.matches(event) {
			return event, nil
		}
	}
}

// Scanned returns how many complete events have been decoded, matching or
// not.
func (r *Reader) Scanned() int { return r.scanned }

// Truncated reports whether the file ended inside a record.
func (r *Reader) Truncated() bool { return r.truncated }

// Close closes the file.
func (r *Reader) Close() error {
	return r.file.Close()
}
