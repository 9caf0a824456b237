package eventsourcing

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Event is a fact recorded on the stream of a single aggregate.
type Event interface {
	AggregateID() string
	EventType() string
}

// Envelope wraps an Event with the information the store assigns to it.
// Version is the 1-based position within the stream, GlobalVersion the
// position in the store-wide log (zero when the store has none).
type Envelope struct {
	EventID       uuid.UUID
	StreamID      string
	Metadata      map[string]any
	Event         Event
	Version       uint64
	GlobalVersion uint64
	OccurredAt    time.Time
}

// TypeName returns the Go type name of v, e.g. "*show.SeatReserved".
func TypeName(v any) string {
	return fmt.Sprintf("%T", v)
}
