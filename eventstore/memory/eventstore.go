package memory

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/terraskye/cinema/eventsourcing"
)

// MemoryStore keeps all streams in process memory. Appended envelopes are
// also offered on the Events channel; when the channel buffer is full the
// notification is dropped, the event itself is still stored. Consumers that
// must see every event read the log with eventsourcing.Relay.
type MemoryStore struct {
	mu     sync.RWMutex
	bus    chan *eventsourcing.Envelope
	global []*eventsourcing.Envelope
	events map[string][]*eventsourcing.Envelope
	closed bool
}

func NewMemoryStore(buffer int64) *MemoryStore {
	return &MemoryStore{
		events: make(map[string][]*eventsourcing.Envelope),
		global: make([]*eventsourcing.Envelope, 0),
		bus:    make(chan *eventsourcing.Envelope, buffer),
	}
}

func (m *MemoryStore) Save(ctx context.Context, events []eventsourcing.Envelope, revision eventsourcing.StreamState) (eventsourcing.AppendResult, error) {
	if err := ctx.Err(); err != nil {
		return eventsourcing.AppendResult{}, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return eventsourcing.AppendResult{}, eventsourcing.ErrStoreClosed
	}

	if len(events) == 0 {
		return eventsourcing.AppendResult{Successful: true}, nil
	}

	streamID := events[0].StreamID
	for i, env := range events {
		if env.StreamID != streamID {
			return eventsourcing.AppendResult{}, fmt.Errorf(
				"save events to stream %q: %w: event %d has different stream ID %q",
				streamID, eventsourcing.ErrInvalidEventBatch, i, env.StreamID,
			)
		}
		if env.Event == nil {
			return eventsourcing.AppendResult{}, fmt.Errorf(
				"save events to stream %q: %w: event %d is nil",
				streamID, eventsourcing.ErrInvalidEventBatch, i,
			)
		}
	}

	currentVersion := uint64(len(m.events[streamID]))

	switch rev := revision.(type) {
	case eventsourcing.Any:
	case eventsourcing.NoStream:
		if currentVersion != 0 {
			return eventsourcing.AppendResult{}, fmt.Errorf("stream %q: %w", streamID, eventsourcing.ErrStreamExists)
		}
	case eventsourcing.StreamExists:
		if currentVersion == 0 {
			return eventsourcing.AppendResult{}, fmt.Errorf("stream %q: %w", streamID, eventsourcing.ErrStreamNotFound)
		}
	case eventsourcing.Revision:
		if currentVersion != uint64(rev) {
			return eventsourcing.AppendResult{}, eventsourcing.StreamRevisionConflictError{
				Stream:           streamID,
				ExpectedRevision: rev,
				ActualRevision:   eventsourcing.Revision(currentVersion),
			}
		}
	default:
		return eventsourcing.AppendResult{}, fmt.Errorf("stream %q: unsupported revision %T: %w", streamID, revision, eventsourcing.ErrInvalidRevision)
	}

	for i := range events {
		env := events[i]
		currentVersion++
		env.Version = currentVersion
		env.GlobalVersion = uint64(len(m.global)) + 1

		m.events[streamID] = append(m.events[streamID], &env)
		m.global = append(m.global, &env)

		select {
		case m.bus <- &env:
		default:
		}
	}

	return eventsourcing.AppendResult{
		Successful:          true,
		StreamID:            streamID,
		NextExpectedVersion: currentVersion,
	}, nil
}

func (m *MemoryStore) LoadStream(ctx context.Context, id string) (*eventsourcing.Iterator[*eventsourcing.Envelope], error) {
	return m.LoadStreamFrom(ctx, id, 0)
}

func (m *MemoryStore) LoadStreamFrom(ctx context.Context, id string, version uint64) (*eventsourcing.Iterator[*eventsourcing.Envelope], error) {
	m.mu.RLock()
	events, exists := m.events[id]
	m.mu.RUnlock()

	if !exists {
		return nil, fmt.Errorf("load stream %q: %w", id, eventsourcing.ErrStreamNotFound)
	}

	if version > uint64(len(events)) {
		return nil, fmt.Errorf(
			"load stream %q: requested %d but stream has %d: %w",
			id, version, len(events), eventsourcing.ErrInvalidRevision,
		)
	}

	return iterate(events[version:]), nil
}

func (m *MemoryStore) LoadFromAll(ctx context.Context, version uint64) (*eventsourcing.Iterator[*eventsourcing.Envelope], error) {
	m.mu.RLock()
	all := m.global
	m.mu.RUnlock()

	if version > uint64(len(all)) {
		return nil, fmt.Errorf("load $all: requested %d but log has %d: %w", version, len(all), eventsourcing.ErrInvalidRevision)
	}

	return iterate(all[version:]), nil
}

// iterate walks a slice header captured under the lock. Appends never
// modify the captured elements.
func iterate(events []*eventsourcing.Envelope) *eventsourcing.Iterator[*eventsourcing.Envelope] {
	index := 0
	return eventsourcing.NewIteratorFunc(func(ctx context.Context) (*eventsourcing.Envelope, error) {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if index >= len(events) {
			return nil, io.EOF
		}
		ev := events[index]
		index++
		return ev, nil
	})
}

// Events streams appended envelopes. The channel is closed by Close.
func (m *MemoryStore) Events() <-chan *eventsourcing.Envelope {
	return m.bus
}

func (m *MemoryStore) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil
	}
	m.closed = true
	close(m.bus)
	return nil
}
