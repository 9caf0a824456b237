package eventsourcing

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type ctxKey string

const (
	streamIDKey      ctxKey = "streamID"
	aggregateIDKey   ctxKey = "aggregateID"
	eventIDKey       ctxKey = "eventID"
	versionKey       ctxKey = "version"
	globalVersionKey ctxKey = "global_version"
	occurredAtKey    ctxKey = "occurredAt"
	metadataKey      ctxKey = "metadata"
	causationKey     ctxKey = "causation_id"
	correlationKey   ctxKey = "correlation_id"
)

// Metadata keys written by CausationMetadata.
const (
	MetadataCausationID   = "causation_id"
	MetadataCorrelationID = "correlation_id"
)

// WithEnvelope exposes the envelope of the event being handled to the
// handler. The event id becomes the causation id of anything the handler
// does; the correlation id is inherited from the envelope metadata.
func WithEnvelope(ctx context.Context, env *Envelope) context.Context {
	ctx = context.WithValue(ctx, streamIDKey, env.StreamID)
	ctx = context.WithValue(ctx, aggregateIDKey, env.Event.AggregateID())
	ctx = context.WithValue(ctx, eventIDKey, env.EventID)
	ctx = context.WithValue(ctx, versionKey, env.Version)
	ctx = context.WithValue(ctx, globalVersionKey, env.GlobalVersion)
	ctx = context.WithValue(ctx, occurredAtKey, env.OccurredAt)
	ctx = context.WithValue(ctx, metadataKey, env.Metadata)
	ctx = WithCausationID(ctx, env.EventID.String())
	if correlation, ok := env.Metadata[MetadataCorrelationID].(string); ok && correlation != "" {
		ctx = WithCorrelationID(ctx, correlation)
	}
	return ctx
}

func WithCausationID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, causationKey, id)
}

func WithCorrelationID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, correlationKey, id)
}

func AggregateIDFromContext(ctx context.Context) string {
	if s, ok := ctx.Value(aggregateIDKey).(string); ok {
		return s
	}
	return ""
}

func StreamIDFromContext(ctx context.Context) string {
	if s, ok := ctx.Value(streamIDKey).(string); ok {
		return s
	}
	return ""
}

func EventIDFromContext(ctx context.Context) uuid.UUID {
	if id, ok := ctx.Value(eventIDKey).(uuid.UUID); ok {
		return id
	}
	return uuid.Nil
}

func VersionFromContext(ctx context.Context) uint64 {
	if ver, ok := ctx.Value(versionKey).(uint64); ok {
		return ver
	}
	return 0
}

func GlobalVersionFromContext(ctx context.Context) uint64 {
	if ver, ok := ctx.Value(globalVersionKey).(uint64); ok {
		return ver
	}
	return 0
}

func OccurredAtFromContext(ctx context.Context) time.Time {
	if t, ok := ctx.Value(occurredAtKey).(time.Time); ok {
		return t
	}
	return time.Time{}
}

func MetadataFromContext(ctx context.Context) map[string]any {
	if md, ok := ctx.Value(metadataKey).(map[string]any); ok {
		return md
	}
	return nil
}

func CausationFromContext(ctx context.Context) string {
	if s, ok := ctx.Value(causationKey).(string); ok {
		return s
	}
	return ""
}

func CorrelationFromContext(ctx context.Context) string {
	if s, ok := ctx.Value(correlationKey).(string); ok {
		return s
	}
	return ""
}

// CausationMetadata is a metadata extractor for WithMetadataExtractor.
func CausationMetadata(ctx context.Context) map[string]any {
	md := make(map[string]any, 2)
	if id := CausationFromContext(ctx); id != "" {
		md[MetadataCausationID] = id
	}
	if id := CorrelationFromContext(ctx); id != "" {
		md[MetadataCorrelationID] = id
	}
	return md
}
