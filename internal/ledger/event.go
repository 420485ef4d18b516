// Package ledger records attendance events and answers date-range queries
// over them.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// TimestampLayout is the persisted timestamp format, in local time.
const TimestampLayout = "2006-01-02 15:04:05"

// DateLayout is the format of date-only filter bounds.
const DateLayout = "2006-01-02"

var (
	// ErrIO wraps storage failures.
	ErrIO = errors.New("ledger I/O error")

	// ErrMalformedRecord marks a stored record that could not be parsed.
	ErrMalformedRecord = errors.New("malformed attendance record")

	// ErrInvalidEvent is returned for events that cannot be stored faithfully.
	ErrInvalidEvent = errors.New("invalid attendance event")

	// ErrRepeatedEvent is returned by a Guard rejecting a repeated event type.
	ErrRepeatedEvent = errors.New("repeated attendance event")
)

// EventType is the direction of an attendance event.
type EventType string

const (
	In  EventType = "IN"
	Out EventType = "OUT"
)

// Label returns the persisted and displayed form of the event type.
func (t EventType) Label() string {
	switch t {
	case In:
		return "Time In"
	case Out:
		return "Time Out"
	default:
		return string(t)
	}
}

// ParseEventType accepts IN/OUT as well as the "Time In"/"Time Out" labels,
// case-insensitively.
func ParseEventType(s string) (EventType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "in", "time in":
		return In, nil
	case "out", "time out":
		return Out, nil
	default:
		return "", fmt.Errorf("unknown event type %q", s)
	}
}

// Event is one attendance record.
type Event struct {
	Name      string    `json:"name"`
	Timestamp time.Time `json:"timestamp"`
	Type      EventType `json:"type"`
}

// Validate checks that the event can be written as a single record.
func (e Event) Validate() error {
	if strings.TrimSpace(e.Name) == "" {
		return fmt.Errorf("%w: name is empty", ErrInvalidEvent)
	}
	if strings.ContainsAny(e.Name, "\r\n") {
		return fmt.Errorf("%w: name contains a line break", ErrInvalidEvent)
	}
	if e.Type != In && e.Type != Out {
		return fmt.Errorf("%w: type %q", ErrInvalidEvent, e.Type)
	}
	if e.Timestamp.IsZero() {
		return fmt.Errorf("%w: timestamp is zero", ErrInvalidEvent)
	}
	return nil
}

// MalformedRecordError describes a skipped record.
type MalformedRecordError struct {
	Line   int
	Raw    string
	Reason string
}

func (e *MalformedRecordError) Error() string {
	return fmt.Sprintf("line %d: %s: %s", e.Line, e.Reason, e.Raw)
}

func (e *MalformedRecordError) Unwrap() error {
	return ErrMalformedRecord
}

// LoadResult holds the parsed events in storage order and the records that
// were skipped.
type LoadResult struct {
	Events  []Event
	Skipped []*MalformedRecordError
}

// DecodeRow converts a database row into an event. A row that does not hold
// a valid event is reported as malformed, with the row id as its line.
func DecodeRow(id int64, name string, ts time.Time, typ string, loc *time.Location) (Event, *MalformedRecordError) {
	malformed := func(reason string) *MalformedRecordError {
		return &MalformedRecordError{
			Line:   int(id),
			Raw:    fmt.Sprintf("%s,%s,%s", name, ts.In(loc).Format(TimestampLayout), typ),
			Reason: reason,
		}
	}
	eventType, err := ParseEventType(typ)
	if err != nil {
		return Event{}, malformed(err.Error())
	}
	e := Event{Name: name, Timestamp: ts.In(loc), Type: eventType}
	if err := e.Validate(); err != nil {
		return Event{}, malformed(err.Error())
	}
	return e, nil
}

// Store is an append-only attendance ledger.
type Store interface {
	// Append durably records one event. It fails only on storage errors or
	// events that cannot be represented.
	Append(ctx context.Context, e Event) error

	// LoadAll returns every event in append order. Malformed records are
	// skipped and reported, never fatal.
	LoadAll(ctx context.Context) (*LoadResult, error)
}
