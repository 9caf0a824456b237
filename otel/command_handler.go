package otel

import (
	"context"
	"errors"
	"fmt"
	"time"

	cqrs "github.com/terraskye/cinema/eventsourcing"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// WithCommandTelemetry wraps a CommandHandler in a span and records command
// metrics. Business rule violations keep the span status Ok and count as
// rejected; every other error marks the span as failed.
func WithCommandTelemetry[C cqrs.Command](next cqrs.CommandHandler[C], options ...Option) cqrs.CommandHandler[C] {
	var zero C
	commandType := cqrs.TypeName(zero)
	cfg := newConfig(options)
	typeAttr := metric.WithAttributes(AttrCommandType.String(commandType))

	return func(ctx context.Context, cmd C) (cqrs.AppendResult, error) {
		ctx, span := tracer.Start(ctx, fmt.Sprintf("command.handle %s", commandType),
			trace.WithSpanKind(trace.SpanKindInternal),
			trace.WithAttributes(cfg.attributes(ctx,
				AttrCommandType.String(commandType),
				AttrAggregateID.String(cmd.AggregateID()),
			)...),
		)
		defer span.End()

		CommandsInFlight.Add(ctx, 1, typeAttr)
		defer CommandsInFlight.Add(ctx, -1, typeAttr)

		start := time.Now()
		result, err := next(ctx, cmd)
		CommandsDuration.Record(ctx, float64(time.Since(start).Milliseconds()), typeAttr)

		span.SetAttributes(
			AttrStreamID.String(result.StreamID),
			AttrStreamVersion.Int64(int64(result.NextExpectedVersion)),
			AttrEventCount.Int(len(result.Events)),
		)

		var conflict cqrs.StreamRevisionConflictError
		switch {
		case err == nil:
			span.SetStatus(codes.Ok, "")
			CommandsHandled.Add(ctx, 1, typeAttr)
		case errors.Is(err, cqrs.ErrBusinessRuleViolation):
			span.AddEvent("business_rule_violation", trace.WithAttributes(AttrAggregateID.String(cmd.AggregateID())))
			span.SetStatus(codes.Ok, err.Error())
			CommandsRejected.Add(ctx, 1, typeAttr)
		default:
			if errors.As(err, &conflict) {
				ConcurrencyConflicts.Add(ctx, 1, typeAttr)
			}
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			CommandsFailed.Add(ctx, 1, typeAttr)
		}

		return result, err
	}
}
