package eventsourcing

import (
	"errors"
	"fmt"
)

var (
	ErrStreamNotFound     = errors.New("stream not found")
	ErrStreamExists       = errors.New("stream already exists")
	ErrInvalidRevision    = errors.New("invalid revision")
	ErrInvalidEventBatch  = errors.New("invalid event batch")
	ErrStoreClosed        = errors.New("event store closed")
	ErrHandlerNotFound    = errors.New("handler not found")
	ErrDuplicateHandler   = errors.New("handler already registered")
	ErrBusStopped         = errors.New("command bus is stopped")
	ErrEventNotRegistered = errors.New("event not registered")

	// ErrBusinessRuleViolation marks errors returned by a Decider.
	ErrBusinessRuleViolation = errors.New("business rule violation")
)

// StreamRevisionConflictError is returned by a store when the expected
// stream state does not match the actual one.
type StreamRevisionConflictError struct {
	Stream           string
	ExpectedRevision StreamState
	ActualRevision   StreamState
}

func (s StreamRevisionConflictError) Error() string {
	return fmt.Sprintf("concurrency conflict on stream %q: (expected version %v, actual %v)", s.Stream, s.ExpectedRevision, s.ActualRevision)
}

// ErrSkippedEvent is returned by handlers that have no interest in an event.
// Buses treat it as a successful delivery.
type ErrSkippedEvent struct {
	Event Event
}

func (e ErrSkippedEvent) Error() string {
	return fmt.Sprintf("skipped event of type %T", e.Event)
}

// IsSkipped reports whether err is an ErrSkippedEvent.
func IsSkipped(err error) bool {
	var skipped ErrSkippedEvent
	return errors.As(err, &skipped)
}

// EventStoreError decorates a store failure with the operation and stream.
type EventStoreError struct {
	Op       string
	StreamID string
	Err      error
}

func (e *EventStoreError) Error() string {
	if e.StreamID == "" {
		return fmt.Sprintf("eventstore %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("eventstore %s %q: %v", e.Op, e.StreamID, e.Err)
}

func (e *EventStoreError) Unwrap() error {
	return e.Err
}

// WrapEventStoreError returns nil for a nil err. Conflicts are returned as is.
func WrapEventStoreError(op, streamID string, err error) error {
	if err == nil {
		return nil
	}
	var conflict StreamRevisionConflictError
	if errors.As(err, &conflict) {
		return err
	}
	return &EventStoreError{Op: op, StreamID: streamID, Err: err}
}
