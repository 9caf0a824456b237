package otel

import (
	"context"
	"fmt"
	"time"

	cqrs "github.com/terraskye/cinema/eventsourcing"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

func WithQueryTelemetry[T cqrs.Query, R any](next cqrs.QueryHandler[T, R], options ...Option) cqrs.QueryHandler[T, R] {
	var zero T
	return &telemetryQueryHandler[T, R]{
		next:      next,
		queryType: cqrs.TypeName(zero),
		cfg:       newConfig(options),
	}
}

type telemetryQueryHandler[T cqrs.Query, R any] struct {
	next      cqrs.QueryHandler[T, R]
	queryType string
	cfg       *config
}

func (h *telemetryQueryHandler[T, R]) HandleQuery(ctx context.Context, qry T) (R, error) {
	ctx, span := tracer.Start(ctx, fmt.Sprintf("query.handle %s", h.queryType),
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(h.cfg.attributes(ctx,
			AttrQueryType.String(h.queryType),
			AttrQueryID.String(string(qry.ID())),
		)...),
	)
	defer span.End()

	typeAttr := metric.WithAttributes(AttrQueryType.String(h.queryType))

	start := time.Now()
	result, err := h.next.HandleQuery(ctx, qry)
	QueriesDuration.Record(ctx, float64(time.Since(start).Milliseconds()), typeAttr)

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		QueriesFailed.Add(ctx, 1, typeAttr)
		return result, err
	}

	span.SetStatus(codes.Ok, "")
	QueriesHandled.Add(ctx, 1, typeAttr)
	return result, nil
}
