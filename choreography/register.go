package choreography

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
	cqrs "github.com/terraskye/cinema/eventsourcing"
	"github.com/terraskye/cinema/logging"
	"github.com/terraskye/cinema/otel"
	"github.com/terraskye/cinema/show"
)

const (
	ShowSubscriber   = "choreography-show"
	WalletSubscriber = "choreography-wallet"
)

type Deps struct {
	Seats   Seats
	Wallets Wallets
	Logger  *logrus.Entry

	// Attempts and RetryInterval bound the wallet charge; zero values
	// mean 3 attempts one second apart.
	Attempts      uint64
	RetryInterval time.Duration
}

// Register subscribes the choreography to bus and returns its read model.
// The lookup is folded by the same subscriber that charges, so a
// reservation is known before its charge can produce a wallet event.
func Register(ctx context.Context, bus cqrs.EventBus, deps Deps) (*Lookup, error) {
	if deps.Attempts == 0 {
		deps.Attempts = 3
	}
	if deps.RetryInterval == 0 {
		deps.RetryInterval = time.Second
	}
	logger := deps.Logger.WithField("component", "choreography")

	lookup := NewLookup()
	charge := &ChargeForReservation{
		Wallets:  deps.Wallets,
		Seats:    deps.Seats,
		Logger:   logger,
		Attempts: deps.Attempts,
		Interval: deps.RetryInterval,
	}
	complete := &CompleteReservation{Seats: deps.Seats, Lookup: lookup, Logger: logger}
	refund := &RefundForReservation{Wallets: deps.Wallets, Lookup: lookup, Logger: logger}

	showHandler := cqrs.NewEventGroupProcessor(
		cqrs.OnEvent(func(ctx context.Context, ev *show.SeatReserved) error {
			if err := lookup.OnSeatReserved(ctx, ev); err != nil {
				return err
			}
			return charge.OnSeatReserved(ctx, ev)
		}),
		cqrs.OnEvent(lookup.OnSeatReservationPaid),
		cqrs.OnEvent(refund.OnCancelledReservationConfirmed),
	)
	walletHandler := cqrs.NewEventGroupProcessor(
		cqrs.OnEvent(complete.OnWalletCharged),
		cqrs.OnEvent(complete.OnWalletChargeRejected),
	)

	if err := bus.Subscribe(ctx, ShowSubscriber, decorate(logger, showHandler)); err != nil {
		return nil, err
	}
	if err := bus.Subscribe(ctx, WalletSubscriber, decorate(logger, walletHandler)); err != nil {
		return nil, err
	}
	return lookup, nil
}

func decorate(logger *logrus.Entry, h cqrs.EventHandler) cqrs.EventHandler {
	return logging.WithEventLogging(logger, otel.WithEventTelemetry(h))
}
