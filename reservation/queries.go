package reservation

import (
	"context"

	"github.com/sirupsen/logrus"
	cqrs "github.com/terraskye/cinema/eventsourcing"
	"github.com/terraskye/cinema/logging"
	"github.com/terraskye/cinema/otel"
)

type GetStatus struct {
	ReservationID string
}

func (q GetStatus) ID() []byte { return []byte(q.ReservationID) }

func RegisterQueries(bus *cqrs.QueryBus, o *Orchestrator, logger *logrus.Entry) {
	cqrs.RegisterQueryHandler(bus, logging.WithQueryLogging(logger, otel.WithQueryTelemetry(
		cqrs.NewQueryHandlerFunc(func(ctx context.Context, qry GetStatus) (Status, error) {
			return o.Status(ctx, qry.ReservationID)
		}),
	)))
}
