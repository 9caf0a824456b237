package eventsourcing

import (
	"context"
	"time"
)

// Snapshot is the state of a stream after the event with Version.
type Snapshot[T any] struct {
	StreamID string
	Version  uint64
	State    T
	TakenAt  time.Time
}

type SnapshotStore[T any] interface {
	// LoadSnapshot returns false when the stream has no snapshot yet.
	LoadSnapshot(ctx context.Context, streamID string) (Snapshot[T], bool, error)
	SaveSnapshot(ctx context.Context, snapshot Snapshot[T]) error
}
