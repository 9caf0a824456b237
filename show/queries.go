package show

import (
	"context"
	"strconv"

	"github.com/sirupsen/logrus"
	cqrs "github.com/terraskye/cinema/eventsourcing"
	"github.com/terraskye/cinema/logging"
	"github.com/terraskye/cinema/otel"
)

type GetShow struct {
	ShowID string
}

func (q GetShow) ID() []byte { return []byte(q.ShowID) }

type GetSeatStatus struct {
	ShowID     string
	SeatNumber int
}

func (q GetSeatStatus) ID() []byte { return []byte(q.ShowID + "/" + strconv.Itoa(q.SeatNumber)) }

// RegisterQueries serves GetShow and GetSeatStatus from svc.
func RegisterQueries(bus *cqrs.QueryBus, svc *Service, logger *logrus.Entry) {
	cqrs.RegisterQueryHandler(bus, logging.WithQueryLogging(logger, otel.WithQueryTelemetry(
		cqrs.NewQueryHandlerFunc(func(ctx context.Context, qry GetShow) (*Show, error) {
			return svc.Get(ctx, qry.ShowID)
		}),
	)))

	cqrs.RegisterQueryHandler(bus, logging.WithQueryLogging(logger, otel.WithQueryTelemetry(
		cqrs.NewQueryHandlerFunc(func(ctx context.Context, qry GetSeatStatus) (SeatStatus, error) {
			return svc.SeatStatus(ctx, qry.ShowID, qry.SeatNumber)
		}),
	)))
}
