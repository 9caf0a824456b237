package eventsourcing

import (
	"context"
	"errors"
	"fmt"
)

// Hydrate rebuilds the state of a stream by replaying it through evolve,
// starting from the latest snapshot when snapshots is not nil. A stream that
// does not exist yields initialState and version 0.
func Hydrate[T any](
	ctx context.Context,
	store EventStore,
	stream string,
	initialState T,
	evolve Evolver[T],
	snapshots SnapshotStore[T],
) (T, uint64, error) {
	state := initialState
	var version uint64

	if snapshots != nil {
		snap, ok, err := snapshots.LoadSnapshot(ctx, stream)
		if err != nil {
			return initialState, 0, fmt.Errorf("hydrate %q: load snapshot: %w", stream, err)
		}
		if ok {
			state = snap.State
			version = snap.Version
		}
	}

	iter, err := store.LoadStreamFrom(ctx, stream, version)
	if errors.Is(err, ErrStreamNotFound) {
		return state, version, nil
	}
	if err != nil {
		return initialState, 0, fmt.Errorf("hydrate %q: %w", stream, err)
	}

	for iter.Next(ctx) {
		env := iter.Value()
		version = env.Version
		state = evolve(state, env)
	}
	if err := iter.Err(); err != nil {
		return initialState, 0, fmt.Errorf("hydrate %q: %w", stream, err)
	}

	return state, version, nil
}
