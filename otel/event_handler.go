package otel

import (
	"context"
	"fmt"
	"strconv"
	"time"

	cqrs "github.com/terraskye/cinema/eventsourcing"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

func eventAttributes(ctx context.Context, event cqrs.Event) []attribute.KeyValue {
	return []attribute.KeyValue{
		AttrEventType.String(event.EventType()),
		AttrEventID.String(cqrs.EventIDFromContext(ctx).String()),
		AttrEventGlobalPos.String(strconv.FormatUint(cqrs.GlobalVersionFromContext(ctx), 10)),
		AttrEventStreamPos.String(strconv.FormatUint(cqrs.VersionFromContext(ctx), 10)),
		AttrStreamID.String(cqrs.StreamIDFromContext(ctx)),
	}
}

// WithEventTelemetry wraps a single event handler in an internal span.
func WithEventTelemetry(next cqrs.EventHandler, options ...Option) cqrs.EventHandler {
	cfg := newConfig(options)

	return cqrs.NewEventHandlerFunc(func(ctx context.Context, event cqrs.Event) error {
		ctx, span := tracer.Start(ctx, fmt.Sprintf("events.handle %s", event.EventType()),
			trace.WithSpanKind(trace.SpanKindInternal),
			trace.WithAttributes(cfg.attributes(ctx, eventAttributes(ctx, event)...)...),
		)
		defer span.End()

		return observe(ctx, span, event, next)
	})
}

func observe(ctx context.Context, span trace.Span, event cqrs.Event, next cqrs.EventHandler) error {
	typeAttr := metric.WithAttributes(AttrEventType.String(event.EventType()))

	start := time.Now()
	err := next.Handle(ctx, event)
	EventHandlerDuration.Record(ctx, float64(time.Since(start).Milliseconds()), typeAttr)

	switch {
	case err == nil:
		EventsHandled.Add(ctx, 1, typeAttr)
		span.SetStatus(codes.Ok, "")
	case cqrs.IsSkipped(err):
		span.SetStatus(codes.Ok, "event skipped")
	default:
		EventHandlerErrors.Add(ctx, 1, typeAttr)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return err
}
