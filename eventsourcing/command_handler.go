package eventsourcing

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
)

// StreamNamer maps a command to the stream that holds its aggregate.
type StreamNamer func(ctx context.Context, cmd Command) string

// DefaultStreamNamer uses the aggregate id as stream name.
var DefaultStreamNamer StreamNamer = func(ctx context.Context, cmd Command) string {
	return cmd.AggregateID()
}

// PrefixStreamNamer names streams "<prefix>-<aggregate id>".
func PrefixStreamNamer(prefix string) StreamNamer {
	return func(ctx context.Context, cmd Command) string {
		return prefix + "-" + cmd.AggregateID()
	}
}

type CommandHandler[C Command] func(ctx context.Context, command C) (AppendResult, error)

// Evolver applies one event to a state and returns the next state. It must
// be pure and must not modify currentState in place.
type Evolver[T any] func(currentState T, envelope *Envelope) T

// Decider validates a command against the current state and returns the
// events that record its effect. A non-nil error rejects the command.
type Decider[T any, C Command] func(state T, cmd C) ([]Event, error)

type CommandHandlerOption func(configuration *handlerOptions)

// NewCommandHandler builds the load, decide, append cycle for one command type.
//
// The stream is replayed from the latest snapshot (when configured) through
// evolve, the command is decided against the resulting state and the events
// are appended with the configured revision expectation. Revision conflicts
// are retried with the configured strategy; load failures, decider errors and
// other save failures are not. Decider errors are wrapped with
// ErrBusinessRuleViolation.
func NewCommandHandler[T any, C Command](
	store EventStore,
	initialState T,
	evolve Evolver[T],
	decide Decider[T, C],
	opts ...CommandHandlerOption,
) CommandHandler[C] {
	return func(ctx context.Context, command C) (AppendResult, error) {
		cfg := &handlerOptions{
			Revision:      Any{},
			RetryStrategy: func() backoff.BackOff { return &backoff.StopBackOff{} },
			MetadataFuncs: []func(ctx context.Context) map[string]any{},
			StreamNamer:   DefaultStreamNamer,
			Clock:         time.Now,
		}
		for _, o := range opts {
			o(cfg)
		}

		stream := cfg.StreamNamer(ctx, command)
		snapshots, _ := cfg.Snapshots.(SnapshotStore[T])

		state := initialState
		var revision uint64
		if snapshots != nil {
			if snap, ok, err := snapshots.LoadSnapshot(ctx, stream); err == nil && ok {
				state = snap.State
				revision = snap.Version
			}
		}

		operation := func() (AppendResult, error) {
			iter, err := store.LoadStreamFrom(ctx, stream, revision)
			if err != nil && !errors.Is(err, ErrStreamNotFound) {
				return AppendResult{StreamID: stream, NextExpectedVersion: revision},
					backoff.Permanent(fmt.Errorf("handle command %T for aggregate %q (stream %q): load failed: %w", command, command.AggregateID(), stream, err))
			}

			if iter != nil {
				for iter.Next(ctx) {
					envelope := iter.Value()
					revision = envelope.Version
					state = evolve(state, envelope)
				}
				if err := iter.Err(); err != nil {
					return AppendResult{StreamID: stream, NextExpectedVersion: revision},
						backoff.Permanent(fmt.Errorf("handle command %T for aggregate %q (stream %q): iter failed: %w", command, command.AggregateID(), stream, err))
				}
			}

			expected := cfg.Revision
			if _, ok := expected.(Revision); ok {
				expected = Revision(revision)
			}

			events, err := decide(state, command)
			if err != nil {
				return AppendResult{StreamID: stream, NextExpectedVersion: revision},
					backoff.Permanent(fmt.Errorf("handle command %T for aggregate %q: %w: %w", command, command.AggregateID(), ErrBusinessRuleViolation, err))
			}

			if len(events) == 0 {
				return AppendResult{Successful: true, StreamID: stream, NextExpectedVersion: revision}, nil
			}

			metadata := make(map[string]any)
			for _, fn := range cfg.MetadataFuncs {
				for k, v := range fn(ctx) {
					metadata[k] = v
				}
			}

			envelopes := make([]Envelope, len(events))
			version := revision
			for i, event := range events {
				version++
				envelopes[i] = Envelope{
					EventID:    uuid.New(),
					StreamID:   stream,
					Event:      event,
					Metadata:   metadata,
					Version:    version,
					OccurredAt: cfg.Clock(),
				}
			}

			result, err := store.Save(ctx, envelopes, expected)
			if err != nil {
				var conflict StreamRevisionConflictError
				if errors.As(err, &conflict) {
					return AppendResult{StreamID: stream, NextExpectedVersion: revision}, err
				}
				return result, backoff.Permanent(fmt.Errorf("handle command %T for aggregate %q (stream %q): failed to save events: %w", command, command.AggregateID(), stream, err))
			}

			result.StreamID = stream
			result.Events = events

			if snapshots != nil && cfg.SnapshotEvery > 0 && version/cfg.SnapshotEvery > revision/cfg.SnapshotEvery {
				next := state
				for i := range envelopes {
					next = evolve(next, &envelopes[i])
				}
				// a failed snapshot only costs a longer replay next time
				_ = snapshots.SaveSnapshot(ctx, Snapshot[T]{
					StreamID: stream,
					Version:  version,
					State:    next,
					TakenAt:  cfg.Clock(),
				})
			}

			return result, nil
		}

		return backoff.RetryWithData(operation, backoff.WithContext(cfg.RetryStrategy(), ctx))
	}
}

type handlerOptions struct {
	// Revision is the append expectation. Revision(n) is replaced by the
	// version of the last loaded event.
	Revision StreamState

	RetryStrategy func() backoff.BackOff

	MetadataFuncs []func(ctx context.Context) map[string]any

	StreamNamer StreamNamer

	Snapshots     any
	SnapshotEvery uint64

	Clock func() time.Time
}

func WithRevision(rev StreamState) CommandHandlerOption {
	return func(cfg *handlerOptions) { cfg.Revision = rev }
}

// WithRetryStrategy sets the backoff used on revision conflicts. The factory
// is called once per handled command.
func WithRetryStrategy(strategy func() backoff.BackOff) CommandHandlerOption {
	return func(cfg *handlerOptions) { cfg.RetryStrategy = strategy }
}

// WithMetadataExtractor adds metadata to every appended envelope. Later
// extractors override keys set by earlier ones.
func WithMetadataExtractor(fn func(ctx context.Context) map[string]any) CommandHandlerOption {
	return func(h *handlerOptions) {
		h.MetadataFuncs = append(h.MetadataFuncs, fn)
	}
}

func WithStreamNamer(namer StreamNamer) CommandHandlerOption {
	return func(h *handlerOptions) {
		h.StreamNamer = namer
	}
}

// WithSnapshots stores the evolved state every time the stream crosses a
// multiple of every events and starts replays from the latest snapshot.
func WithSnapshots[T any](store SnapshotStore[T], every uint64) CommandHandlerOption {
	return func(h *handlerOptions) {
		h.Snapshots = store
		h.SnapshotEvery = every
	}
}

func WithClock(clock func() time.Time) CommandHandlerOption {
	return func(h *handlerOptions) {
		h.Clock = clock
	}
}
