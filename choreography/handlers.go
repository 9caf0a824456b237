// Package choreography runs the seat reservation without a coordinator:
// show and wallet events trigger the next command directly.
package choreography

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/terraskye/cinema"
	cqrs "github.com/terraskye/cinema/eventsourcing"
	"github.com/terraskye/cinema/show"
	"github.com/terraskye/cinema/wallet"
)

var ErrUnknownReservation = errors.New("unknown reservation")

// CommandNamespace derives command ids from the ids of the events that
// trigger them, so a redelivered event never applies twice.
var CommandNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("urn:cinema:choreography"))

type Seats interface {
	ConfirmPayment(ctx context.Context, showID, reservationID string) (cinema.Response, error)
	CancelReservation(ctx context.Context, showID, reservationID string) (cinema.Response, error)
}

type Wallets interface {
	Charge(ctx context.Context, walletID, expenseID string, amount decimal.Decimal, commandID string) (cinema.Response, error)
	Deposit(ctx context.Context, walletID string, amount decimal.Decimal, commandID string) (cinema.Response, error)
}

var ErrMissingEnvelope = errors.New("event delivered without envelope")

func commandIDFor(ctx context.Context, ev cqrs.Event) (string, error) {
	eventID := cqrs.EventIDFromContext(ctx)
	if eventID == uuid.Nil {
		return "", fmt.Errorf("%s: %w", ev.EventType(), ErrMissingEnvelope)
	}
	return uuid.NewSHA1(CommandNamespace, eventID[:]).String(), nil
}

// ChargeForReservation charges the wallet of every reserved seat. When the
// wallet cannot be reached within the configured attempts the reservation
// is cancelled.
type ChargeForReservation struct {
	Wallets  Wallets
	Seats    Seats
	Logger   *logrus.Entry
	Attempts uint64
	Interval time.Duration
}

func (h *ChargeForReservation) OnSeatReserved(ctx context.Context, ev *show.SeatReserved) error {
	logger := h.Logger.WithFields(logrus.Fields{"reservation_id": ev.ReservationID, "wallet_id": ev.WalletID})
	commandID, err := commandIDFor(ctx, ev)
	if err != nil {
		return err
	}

	policy := backoff.WithContext(backoff.WithMaxRetries(backoff.NewConstantBackOff(h.Interval), h.Attempts-1), ctx)
	resp, err := backoff.RetryWithData(func() (cinema.Response, error) {
		return h.Wallets.Charge(ctx, ev.WalletID, ev.ReservationID, ev.Price, commandID)
	}, policy)

	switch {
	case err != nil:
		if ctx.Err() != nil {
			return err
		}
		logger.WithError(err).Warn("charging wallet failed, cancelling reservation")
		return h.cancel(ctx, ev)
	case resp.Success, resp.Code == cinema.CodeNotSufficientFunds:
		// the wallet records the outcome as WalletCharged or WalletChargeRejected
		return nil
	default:
		logger.WithField("code", resp.Code).Warn("wallet charge refused, cancelling reservation")
		return h.cancel(ctx, ev)
	}
}

func (h *ChargeForReservation) cancel(ctx context.Context, ev *show.SeatReserved) error {
	resp, err := h.Seats.CancelReservation(ctx, ev.ShowID, ev.ReservationID)
	if err != nil {
		return fmt.Errorf("cancel reservation %s: %w", ev.ReservationID, err)
	}
	if !resp.Success {
		return cinema.NewError(resp.Code, "cancel reservation %s: %s", ev.ReservationID, resp.Message)
	}
	return nil
}

// CompleteReservation confirms or cancels the reservation a wallet charge
// was made for.
type CompleteReservation struct {
	Seats  Seats
	Lookup *Lookup
	Logger *logrus.Entry
}

func (h *CompleteReservation) OnWalletCharged(ctx context.Context, ev *wallet.WalletCharged) error {
	r, ok := h.Lookup.Get(ev.ExpenseID)
	if !ok {
		// not a reservation charge
		return cqrs.ErrSkippedEvent{Event: ev}
	}
	h.Logger.WithField("reservation_id", ev.ExpenseID).Info("confirming reservation")
	return expectSuccess(h.Seats.ConfirmPayment(ctx, r.ShowID, ev.ExpenseID))
}

func (h *CompleteReservation) OnWalletChargeRejected(ctx context.Context, ev *wallet.WalletChargeRejected) error {
	r, ok := h.Lookup.Get(ev.ExpenseID)
	if !ok {
		return cqrs.ErrSkippedEvent{Event: ev}
	}
	h.Logger.WithField("reservation_id", ev.ExpenseID).Info("cancelling reservation")
	return expectSuccess(h.Seats.CancelReservation(ctx, r.ShowID, ev.ExpenseID))
}

// RefundForReservation gives the price back when a payment is confirmed
// for a reservation that was already cancelled.
type RefundForReservation struct {
	Wallets Wallets
	Lookup  *Lookup
	Logger  *logrus.Entry
}

func (h *RefundForReservation) OnCancelledReservationConfirmed(ctx context.Context, ev *show.CancelledReservationConfirmed) error {
	r, ok := h.Lookup.Get(ev.ReservationID)
	if !ok {
		return fmt.Errorf("refund reservation %s: %w", ev.ReservationID, ErrUnknownReservation)
	}
	commandID, err := commandIDFor(ctx, ev)
	if err != nil {
		return err
	}
	h.Logger.WithFields(logrus.Fields{"reservation_id": ev.ReservationID, "wallet_id": r.WalletID}).Info("refunding reservation")
	return expectSuccess(h.Wallets.Deposit(ctx, r.WalletID, r.Price, commandID))
}

func expectSuccess(resp cinema.Response, err error) error {
	if err != nil {
		return err
	}
	if !resp.Success {
		return cinema.NewError(resp.Code, "%s", resp.Message)
	}
	return nil
}
