package domain

import (
	"errors"
	"fmt"
)

// ErrUnknownEventType is returned when an envelope carries a type tag that has
// no registered payload decoder.
var ErrUnknownEventType = errors.New("unknown event type")

// MalformedEventError reports a payload that cannot be turned into a typed
// event. The consumer must not advance past an event failing with it.
type MalformedEventError struct {
	Event  string
	Field  string
	Reason string
}

func (e *MalformedEventError) Error() string {
	return fmt.Sprintf("malformed %s event: field %q %s", e.Event, e.Field, e.Reason)
}

func missingField(event, field string) error {
	return &MalformedEventError{Event: event, Field: field, Reason: "is missing"}
}

func invalidField(event, field string, raw any) error {
	return &MalformedEventError{Event: event, Field: field, Reason: fmt.Sprintf("has invalid value %v (%T)", raw, raw)}
}

// MissingReadModelRowError is returned by projectors when an update event
// references a row that does not exist under its derived key.
type MissingReadModelRowError struct {
	Model string
	Key   string
	Event string
}

func (e *MissingReadModelRowError) Error() string {
	return fmt.Sprintf("%s %s not found while applying %s", e.Model, e.Key, e.Event)
}

// IsMissingRow reports whether err is (or wraps) a MissingReadModelRowError.
func IsMissingRow(err error) bool {
	var missing *MissingReadModelRowError
	return errors.As(err, &missing)
}
