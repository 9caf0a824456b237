package eventsourcing

import (
	"context"
)

type seatBooked struct {
	Show string `json:"show"`
	Seat int    `json:"seat"`
}

func (e *seatBooked) AggregateID() string { return e.Show }
func (e *seatBooked) EventType() string   { return "seat-booked" }

type seatReleased struct {
	Show string `json:"show"`
	Seat int    `json:"seat"`
}

func (e *seatReleased) AggregateID() string { return e.Show }
func (e *seatReleased) EventType() string   { return "seat-released" }

type bookSeat struct {
	Show string
	Seat int
}

func (c bookSeat) AggregateID() string { return c.Show }

type releaseSeat struct {
	Show string
	Seat int
}

func (c releaseSeat) AggregateID() string { return c.Show }

// booked is the state used by the handler tests: the set of booked seats.
type booked map[int]bool

func evolveBooked(state booked, env *Envelope) booked {
	next := make(booked, len(state)+1)
	for k, v := range state {
		next[k] = v
	}
	switch ev := env.Event.(type) {
	case *seatBooked:
		next[ev.Seat] = true
	case *seatReleased:
		delete(next, ev.Seat)
	}
	return next
}

type testStore struct {
	loadFn func(ctx context.Context, stream string, from uint64) (*Iterator[*Envelope], error)
	saveFn func(ctx context.Context, envelopes []Envelope, revision StreamState) (AppendResult, error)

	loadCalled int
	saveCalled int
}

func (s *testStore) Save(ctx context.Context, events []Envelope, revision StreamState) (AppendResult, error) {
	s.saveCalled++
	return s.saveFn(ctx, events, revision)
}

func (s *testStore) LoadStream(ctx context.Context, id string) (*Iterator[*Envelope], error) {
	return s.LoadStreamFrom(ctx, id, 0)
}

func (s *testStore) LoadStreamFrom(ctx context.Context, id string, version uint64) (*Iterator[*Envelope], error) {
	s.loadCalled++
	return s.loadFn(ctx, id, version)
}

func (s *testStore) LoadFromAll(ctx context.Context, version uint64) (*Iterator[*Envelope], error) {
	return NewSliceIterator[*Envelope](nil), nil
}

func (s *testStore) Close() error { return nil }

type memorySnapshots[T any] struct {
	snaps map[string]Snapshot[T]
	saves int
}

func (m *memorySnapshots[T]) LoadSnapshot(ctx context.Context, streamID string) (Snapshot[T], bool, error) {
	s, ok := m.snaps[streamID]
	return s, ok, nil
}

func (m *memorySnapshots[T]) SaveSnapshot(ctx context.Context, snapshot Snapshot[T]) error {
	if m.snaps == nil {
		m.snaps = map[string]Snapshot[T]{}
	}
	m.snaps[snapshot.StreamID] = snapshot
	m.saves++
	return nil
}
