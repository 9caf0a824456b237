package otel

import (
	"context"
	"io"
	"time"

	cqrs "github.com/terraskye/cinema/eventsourcing"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

var _ cqrs.EventStore = (*TelemetryStore)(nil)

// TelemetryStore traces store calls and injects the active trace context
// into the metadata of every saved envelope, so subscribers can link their
// spans to the command that produced the event.
type TelemetryStore struct {
	next cqrs.EventStore
	cfg  *config
}

func NewTelemetryStore(next cqrs.EventStore, options ...Option) *TelemetryStore {
	return &TelemetryStore{next: next, cfg: newConfig(options)}
}

func (t *TelemetryStore) Save(ctx context.Context, events []cqrs.Envelope, revision cqrs.StreamState) (cqrs.AppendResult, error) {
	var streamID string
	if len(events) > 0 {
		streamID = events[0].StreamID
	}

	ctx, span := tracer.Start(ctx, "EventStore.Save",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(t.cfg.attributes(ctx,
			AttrOperation.String("save"),
			AttrStreamID.String(streamID),
			AttrRevision.String(revision.String()),
			AttrEventCount.Int(len(events)),
		)...),
	)
	defer span.End()

	carrier := propagation.MapCarrier{}
	otel.GetTextMapPropagator().Inject(ctx, carrier)
	for i := range events {
		if events[i].Metadata == nil {
			events[i].Metadata = make(map[string]any, len(carrier))
		}
		for key, value := range carrier {
			events[i].Metadata[key] = value
		}
	}

	start := time.Now()
	result, err := t.next.Save(ctx, events, revision)
	EventStoreDuration.Record(ctx, float64(time.Since(start).Milliseconds()),
		metric.WithAttributes(AttrOperation.String("save")),
	)

	if err != nil {
		EventStoreErrors.Add(ctx, 1, metric.WithAttributes(AttrOperation.String("save")))
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return result, err
	}

	EventsAppended.Add(ctx, int64(len(events)))
	span.SetAttributes(AttrStreamVersion.Int64(int64(result.NextExpectedVersion)))
	return result, nil
}

func (t *TelemetryStore) LoadStream(ctx context.Context, id string) (*cqrs.Iterator[*cqrs.Envelope], error) {
	return t.traceLoad(ctx, "EventStore.LoadStream", id, func(ctx context.Context) (*cqrs.Iterator[*cqrs.Envelope], error) {
		return t.next.LoadStream(ctx, id)
	})
}

func (t *TelemetryStore) LoadStreamFrom(ctx context.Context, id string, version uint64) (*cqrs.Iterator[*cqrs.Envelope], error) {
	return t.traceLoad(ctx, "EventStore.LoadStreamFrom", id, func(ctx context.Context) (*cqrs.Iterator[*cqrs.Envelope], error) {
		return t.next.LoadStreamFrom(ctx, id, version)
	})
}

func (t *TelemetryStore) LoadFromAll(ctx context.Context, version uint64) (*cqrs.Iterator[*cqrs.Envelope], error) {
	return t.traceLoad(ctx, "EventStore.LoadFromAll", "$all", func(ctx context.Context) (*cqrs.Iterator[*cqrs.Envelope], error) {
		return t.next.LoadFromAll(ctx, version)
	})
}

// traceLoad keeps the span open until the returned iterator is drained.
func (t *TelemetryStore) traceLoad(ctx context.Context, operation, id string, load func(context.Context) (*cqrs.Iterator[*cqrs.Envelope], error)) (*cqrs.Iterator[*cqrs.Envelope], error) {
	ctx, span := tracer.Start(ctx, operation,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(t.cfg.attributes(ctx,
			AttrOperation.String("load"),
			AttrStreamID.String(id),
		)...),
	)
	start := time.Now()

	iter, err := load(ctx)
	if err != nil {
		EventStoreErrors.Add(ctx, 1, metric.WithAttributes(AttrOperation.String("load")))
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		span.End()
		return nil, err
	}

	var count int64
	finish := func(err error) {
		span.SetAttributes(AttrEventCount.Int64(count))
		EventStoreDuration.Record(ctx, float64(time.Since(start).Milliseconds()),
			metric.WithAttributes(AttrOperation.String("load")),
		)
		if err != nil {
			EventStoreErrors.Add(ctx, 1, metric.WithAttributes(AttrOperation.String("load")))
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}

	return cqrs.NewIteratorFunc(func(ctx context.Context) (*cqrs.Envelope, error) {
		if !iter.Next(ctx) {
			err := iter.Err()
			finish(err)
			if err == nil {
				return nil, io.EOF
			}
			return nil, err
		}
		count++
		EventsLoaded.Add(ctx, 1)
		return iter.Value(), nil
	}), nil
}

func (t *TelemetryStore) Close() error {
	return t.next.Close()
}
