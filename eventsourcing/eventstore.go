package eventsourcing

import (
	"context"
)

// EventStore persists the streams of all aggregates.
type EventStore interface {
	// Save appends events to a single stream. All envelopes must share the
	// same StreamID. The revision is checked against the stream before
	// anything is written; a mismatch returns StreamRevisionConflictError.
	Save(ctx context.Context, events []Envelope, revision StreamState) (AppendResult, error)

	// LoadStream returns every event of the stream in order.
	LoadStream(ctx context.Context, id string) (*Iterator[*Envelope], error)

	// LoadStreamFrom returns the events whose Version is greater than version.
	// A missing stream yields ErrStreamNotFound.
	LoadStreamFrom(ctx context.Context, id string, version uint64) (*Iterator[*Envelope], error)

	// LoadFromAll returns the events of all streams whose GlobalVersion is
	// greater than version, in commit order.
	LoadFromAll(ctx context.Context, version uint64) (*Iterator[*Envelope], error)

	Close() error
}

// AppendResult reports the outcome of a Save or of a handled command.
// Events holds what was appended, empty when the command was a no-op.
type AppendResult struct {
	Successful          bool
	StreamID            string
	NextExpectedVersion uint64
	Events              []Event
}
