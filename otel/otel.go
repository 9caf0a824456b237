// Package otel decorates command handlers, query handlers, event handlers,
// event stores and event buses with OpenTelemetry spans and metrics.
package otel

import (
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const instrumentationName = "github.com/terraskye/cinema"

const (
	AttrCommandType = attribute.Key("cinema.command.type")
	AttrAggregateID = attribute.Key("cinema.aggregate.id")

	AttrStreamID      = attribute.Key("cinema.stream.id")
	AttrStreamVersion = attribute.Key("cinema.stream.version")

	AttrEventType      = attribute.Key("cinema.event.type")
	AttrEventID        = attribute.Key("cinema.event.id")
	AttrEventCount     = attribute.Key("cinema.events.count")
	AttrEventGlobalPos = attribute.Key("cinema.event.global_position")
	AttrEventStreamPos = attribute.Key("cinema.event.stream_position")

	AttrQueryType = attribute.Key("cinema.query.type")
	AttrQueryID   = attribute.Key("cinema.query.id")

	AttrSubscriberName = attribute.Key("cinema.subscriber.name")

	AttrReservationID = attribute.Key("cinema.reservation.id")
	AttrSagaStep      = attribute.Key("cinema.reservation.step")
	AttrStepOutcome   = attribute.Key("cinema.reservation.step.outcome")

	AttrOperation = attribute.Key("cinema.operation")
	AttrRevision  = attribute.Key("cinema.revision")
)

var (
	meter  = otel.Meter(instrumentationName)
	tracer = otel.Tracer(instrumentationName)

	CommandsHandled, _ = meter.Int64Counter(
		"cinema.commands.handled",
		metric.WithDescription("Total number of commands handled"),
		metric.WithUnit("{command}"),
	)

	CommandsRejected, _ = meter.Int64Counter(
		"cinema.commands.rejected",
		metric.WithDescription("Commands refused by a business rule"),
		metric.WithUnit("{command}"),
	)

	CommandsFailed, _ = meter.Int64Counter(
		"cinema.commands.failed",
		metric.WithDescription("Commands that failed for infrastructure reasons"),
		metric.WithUnit("{command}"),
	)

	CommandsDuration, _ = meter.Float64Histogram(
		"cinema.commands.duration",
		metric.WithDescription("Command handling duration"),
		metric.WithUnit("ms"),
		metric.WithExplicitBucketBoundaries(1, 5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000),
	)

	CommandsInFlight, _ = meter.Int64UpDownCounter(
		"cinema.commands.in_flight",
		metric.WithDescription("Number of commands currently being processed"),
		metric.WithUnit("{command}"),
	)

	ConcurrencyConflicts, _ = meter.Int64Counter(
		"cinema.concurrency.conflicts",
		metric.WithDescription("Number of stream revision conflicts"),
		metric.WithUnit("{conflict}"),
	)

	EventsAppended, _ = meter.Int64Counter(
		"cinema.events.appended",
		metric.WithDescription("Number of events appended to streams"),
		metric.WithUnit("{event}"),
	)

	EventsLoaded, _ = meter.Int64Counter(
		"cinema.events.loaded",
		metric.WithDescription("Number of events loaded from streams"),
		metric.WithUnit("{event}"),
	)

	EventStoreDuration, _ = meter.Float64Histogram(
		"cinema.eventstore.duration",
		metric.WithDescription("Event store operation duration"),
		metric.WithUnit("ms"),
		metric.WithExplicitBucketBoundaries(1, 5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000),
	)

	EventStoreErrors, _ = meter.Int64Counter(
		"cinema.eventstore.errors",
		metric.WithDescription("Number of event store errors"),
		metric.WithUnit("{error}"),
	)

	EventsHandled, _ = meter.Int64Counter(
		"cinema.events.handled",
		metric.WithDescription("Number of events handled by subscribers"),
		metric.WithUnit("{event}"),
	)

	EventHandlerErrors, _ = meter.Int64Counter(
		"cinema.events.errors",
		metric.WithDescription("Number of event handler errors"),
		metric.WithUnit("{error}"),
	)

	EventHandlerDuration, _ = meter.Float64Histogram(
		"cinema.events.duration",
		metric.WithDescription("Event handler duration"),
		metric.WithUnit("ms"),
		metric.WithExplicitBucketBoundaries(1, 5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000),
	)

	QueriesHandled, _ = meter.Int64Counter(
		"cinema.queries.handled",
		metric.WithDescription("Total number of queries handled"),
		metric.WithUnit("{query}"),
	)

	QueriesFailed, _ = meter.Int64Counter(
		"cinema.queries.failed",
		metric.WithDescription("Number of failed queries"),
		metric.WithUnit("{query}"),
	)

	QueriesDuration, _ = meter.Float64Histogram(
		"cinema.queries.duration",
		metric.WithDescription("Query handling duration"),
		metric.WithUnit("ms"),
		metric.WithExplicitBucketBoundaries(1, 5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000),
	)

	ReservationSteps, _ = meter.Int64Counter(
		"reservation.steps",
		metric.WithDescription("Seat reservation saga steps by outcome"),
		metric.WithUnit("{step}"),
	)

	ReservationStepDuration, _ = meter.Float64Histogram(
		"reservation.step.duration",
		metric.WithDescription("Seat reservation saga step duration including retries"),
		metric.WithUnit("ms"),
		metric.WithExplicitBucketBoundaries(1, 5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000, 10000),
	)
)
