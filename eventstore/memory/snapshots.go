package memory

import (
	"context"
	"sync"

	"github.com/terraskye/cinema/eventsourcing"
)

// SnapshotStore keeps the latest snapshot per stream. States are stored by
// value, so T must not be mutated after it is handed over.
type SnapshotStore[T any] struct {
	mu    sync.RWMutex
	snaps map[string]eventsourcing.Snapshot[T]
}

func NewSnapshotStore[T any]() *SnapshotStore[T] {
	return &SnapshotStore[T]{snaps: make(map[string]eventsourcing.Snapshot[T])}
}

func (s *SnapshotStore[T]) LoadSnapshot(ctx context.Context, streamID string) (eventsourcing.Snapshot[T], bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	snap, ok := s.snaps[streamID]
	return snap, ok, nil
}

// SaveSnapshot ignores snapshots older than the stored one.
func (s *SnapshotStore[T]) SaveSnapshot(ctx context.Context, snapshot eventsourcing.Snapshot[T]) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if current, ok := s.snaps[snapshot.StreamID]; ok && current.Version >= snapshot.Version {
		return nil
	}
	s.snaps[snapshot.StreamID] = snapshot
	return nil
}
