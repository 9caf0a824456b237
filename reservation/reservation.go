// Package reservation runs the seat reservation saga: reserve a seat, charge
// the wallet, confirm the payment, and compensate with cancellations and
// refunds when a step fails.
package reservation

import (
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

var (
	ErrNotFound          = errors.New("seat reservation not found")
	ErrReservationExists = errors.New("seat reservation already exists")
	ErrInvalidRequest    = errors.New("invalid seat reservation request")
	ErrClosed            = errors.New("orchestrator closed")
)

type Status string

const (
	StatusStarted                 Status = "STARTED"
	StatusSeatReserved            Status = "SEAT_RESERVED"
	StatusWalletChargeRejected    Status = "WALLET_CHARGE_REJECTED"
	StatusWalletCharged           Status = "WALLET_CHARGED"
	StatusCompleted               Status = "COMPLETED"
	StatusSeatReservationFailed   Status = "SEAT_RESERVATION_FAILED"
	StatusWalletRefunded          Status = "WALLET_REFUNDED"
	StatusSeatReservationRefunded Status = "SEAT_RESERVATION_REFUNDED"
)

// Terminal reports whether a saga in this status has nothing left to do.
func (s Status) Terminal() bool {
	switch s {
	case StatusCompleted, StatusSeatReservationFailed, StatusSeatReservationRefunded:
		return true
	}
	return false
}

type Step string

const (
	StepReserveSeat        Step = "reserve-seat"
	StepChargeWallet       Step = "charge-wallet"
	StepConfirmReservation Step = "confirm-reservation"
	StepCancelReservation  Step = "cancel-reservation"
	StepRefund             Step = "refund"
)

// SeatReservation is the persisted state of one saga. Step is the next step
// to run and is empty once the saga is finished.
type SeatReservation struct {
	ReservationID string          `json:"reservationId"`
	ShowID        string          `json:"showId"`
	SeatNumber    int             `json:"seatNumber"`
	WalletID      string          `json:"walletId"`
	Price         decimal.Decimal `json:"price"`
	Status        Status          `json:"status"`
	Step          Step            `json:"step,omitempty"`
	UpdatedAt     time.Time       `json:"updatedAt"`
}

func (r SeatReservation) Finished() bool { return r.Step == "" }

type Request struct {
	ReservationID string          `json:"reservationId"`
	ShowID        string          `json:"showId"`
	SeatNumber    int             `json:"seatNumber"`
	Price         decimal.Decimal `json:"price"`
	WalletID      string          `json:"walletId"`
}

func (r Request) Validate() error {
	switch {
	case r.ReservationID == "":
		return fmt.Errorf("%w: missing reservation id", ErrInvalidRequest)
	case r.ShowID == "":
		return fmt.Errorf("%w: missing show id", ErrInvalidRequest)
	case r.WalletID == "":
		return fmt.Errorf("%w: missing wallet id", ErrInvalidRequest)
	case r.SeatNumber < 0:
		return fmt.Errorf("%w: negative seat number %d", ErrInvalidRequest, r.SeatNumber)
	case r.Price.IsNegative():
		return fmt.Errorf("%w: negative price %s", ErrInvalidRequest, r.Price)
	}
	return nil
}
