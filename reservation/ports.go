package reservation

import (
	"context"

	"github.com/shopspring/decimal"
	"github.com/terraskye/cinema"
)

// Seats is the show side of the saga. show.Service implements it.
type Seats interface {
	Reserve(ctx context.Context, showID, walletID, reservationID string, seatNumber int) (cinema.Response, error)
	ConfirmPayment(ctx context.Context, showID, reservationID string) (cinema.Response, error)
	CancelReservation(ctx context.Context, showID, reservationID string) (cinema.Response, error)
}

// Wallets is the wallet side of the saga. wallet.Service implements it.
type Wallets interface {
	Charge(ctx context.Context, walletID, expenseID string, amount decimal.Decimal, commandID string) (cinema.Response, error)
	Refund(ctx context.Context, walletID, expenseID, commandID string) (cinema.Response, error)
}
