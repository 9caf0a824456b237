package otel

import (
	"context"
	"fmt"

	cqrs "github.com/terraskye/cinema/eventsourcing"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

var _ cqrs.EventBus = (*TelemetryEventBus)(nil)

// TelemetryEventBus starts a consumer span for every delivered event. The
// span is linked to the producer trace found in the envelope metadata.
type TelemetryEventBus struct {
	next cqrs.EventBus
	cfg  *config
}

func WithEventBusTelemetry(next cqrs.EventBus, options ...Option) *TelemetryEventBus {
	return &TelemetryEventBus{
		next: next,
		cfg:  newConfig(options),
	}
}

func (t *TelemetryEventBus) Subscribe(ctx context.Context, name string, next cqrs.EventHandler, options ...cqrs.SubscriberOption) error {
	return t.next.Subscribe(ctx, name, cqrs.NewEventHandlerFunc(func(ctx context.Context, event cqrs.Event) error {
		carrier := make(propagation.MapCarrier)
		for k, v := range cqrs.MetadataFromContext(ctx) {
			if s, ok := v.(string); ok && s != "" {
				carrier[k] = s
			}
		}
		producer := trace.SpanContextFromContext(otel.GetTextMapPropagator().Extract(context.Background(), carrier))

		attr := append(eventAttributes(ctx, event), AttrSubscriberName.String(name))

		spanOpts := []trace.SpanStartOption{
			trace.WithSpanKind(trace.SpanKindConsumer),
			trace.WithAttributes(t.cfg.attributes(ctx, attr...)...),
		}
		if producer.IsValid() {
			spanOpts = append(spanOpts, trace.WithLinks(trace.Link{
				SpanContext: producer,
				Attributes:  []attribute.KeyValue{attribute.String("link.reason", "event.consumed.from.stream")},
			}))
		}

		ctx, span := tracer.Start(ctx, fmt.Sprintf("subscription.receive %s", name), spanOpts...)
		defer span.End()

		return observe(ctx, span, event, next)
	}), options...)
}

func (t *TelemetryEventBus) Errors() <-chan error {
	return t.next.Errors()
}

func (t *TelemetryEventBus) Close() error {
	return t.next.Close()
}
