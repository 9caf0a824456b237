package wallet

import (
	"context"

	"github.com/sirupsen/logrus"
	cqrs "github.com/terraskye/cinema/eventsourcing"
	"github.com/terraskye/cinema/logging"
	"github.com/terraskye/cinema/otel"
)

type GetBalance struct {
	WalletID string
}

func (q GetBalance) ID() []byte { return []byte(q.WalletID) }

func RegisterQueries(bus *cqrs.QueryBus, svc *Service, logger *logrus.Entry) {
	cqrs.RegisterQueryHandler(bus, logging.WithQueryLogging(logger, otel.WithQueryTelemetry(
		cqrs.NewQueryHandlerFunc(func(ctx context.Context, qry GetBalance) (Balance, error) {
			return svc.Balance(ctx, qry.WalletID)
		}),
	)))
}
