package otel

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// Step outcomes recorded on reservation.steps.
const (
	StepSucceeded = "succeeded"
	StepRejected  = "rejected"
	StepFailed    = "failed"
)

// StartStep opens the span of one saga step. The returned function ends it
// and records the step metrics; err is only set for failed steps.
func StartStep(ctx context.Context, reservationID, step string) (context.Context, func(outcome string, err error)) {
	ctx, span := tracer.Start(ctx, fmt.Sprintf("reservation.step %s", step),
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(
			AttrReservationID.String(reservationID),
			AttrSagaStep.String(step),
		),
	)
	start := time.Now()

	return ctx, func(outcome string, err error) {
		defer span.End()

		attrs := metric.WithAttributes(AttrSagaStep.String(step), AttrStepOutcome.String(outcome))
		ReservationSteps.Add(ctx, 1, attrs)
		ReservationStepDuration.Record(ctx, float64(time.Since(start).Milliseconds()), attrs)

		span.SetAttributes(AttrStepOutcome.String(outcome))
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return
		}
		span.SetStatus(codes.Ok, "")
	}
}
