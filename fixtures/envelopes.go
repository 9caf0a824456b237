package fixtures

import (
	"time"

	"github.com/google/uuid"
	cqrs "github.com/terraskye/cinema/eventsourcing"
)

type EnvelopeOption func(*cqrs.Envelope)

// NewEnvelope wraps event at version 1 of the stream named by its aggregate id.
func NewEnvelope(event cqrs.Event, opts ...EnvelopeOption) *cqrs.Envelope {
	env := &cqrs.Envelope{
		EventID:       uuid.New(),
		StreamID:      event.AggregateID(),
		Event:         event,
		Version:       1,
		GlobalVersion: 1,
		OccurredAt:    time.Now(),
		Metadata:      make(map[string]any),
	}
	for _, opt := range opts {
		opt(env)
	}
	return env
}

func WithEventID(id uuid.UUID) EnvelopeOption {
	return func(e *cqrs.Envelope) { e.EventID = id }
}

func WithStreamID(id string) EnvelopeOption {
	return func(e *cqrs.Envelope) { e.StreamID = id }
}

func WithVersion(v uint64) EnvelopeOption {
	return func(e *cqrs.Envelope) { e.Version = v }
}

func WithMetadataField(key string, value any) EnvelopeOption {
	return func(e *cqrs.Envelope) {
		if e.Metadata == nil {
			e.Metadata = make(map[string]any)
		}
		e.Metadata[key] = value
	}
}

// Envelopes numbers events 1..n on one stream.
func Envelopes(streamID string, events ...cqrs.Event) []*cqrs.Envelope {
	out := make([]*cqrs.Envelope, len(events))
	base := time.Now()
	for i, event := range events {
		out[i] = NewEnvelope(event,
			WithStreamID(streamID),
			WithVersion(uint64(i+1)),
			func(e *cqrs.Envelope) {
				e.GlobalVersion = uint64(i + 1)
				e.OccurredAt = base.Add(time.Duration(i) * time.Millisecond)
			},
		)
	}
	return out
}
