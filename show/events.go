package show

import (
	"github.com/shopspring/decimal"
	cqrs "github.com/terraskye/cinema/eventsourcing"
)

// Event is the closed set of events recorded on a show stream.
type Event interface {
	cqrs.Event
	isShowEvent()
}

type ShowCreated struct {
	ShowID string `json:"showId"`
	Title  string `json:"title"`
	Seats  []Seat `json:"seats"`
}

type SeatReserved struct {
	ShowID              string          `json:"showId"`
	WalletID            string          `json:"walletId"`
	ReservationID       string          `json:"reservationId"`
	SeatNumber          int             `json:"seatNumber"`
	Price               decimal.Decimal `json:"price"`
	AvailableSeatsCount int             `json:"availableSeatsCount"`
}

type SeatReservationPaid struct {
	ShowID        string `json:"showId"`
	ReservationID string `json:"reservationId"`
	SeatNumber    int    `json:"seatNumber"`
}

type SeatReservationCancelled struct {
	ShowID              string `json:"showId"`
	ReservationID       string `json:"reservationId"`
	SeatNumber          int    `json:"seatNumber"`
	AvailableSeatsCount int    `json:"availableSeatsCount"`
}

// CancelledReservationConfirmed acknowledges a payment confirmation that
// arrived after the reservation was cancelled. It does not change the show;
// it is the hook that triggers a refund of the late charge.
type CancelledReservationConfirmed struct {
	ShowID        string `json:"showId"`
	ReservationID string `json:"reservationId"`
	SeatNumber    int    `json:"seatNumber"`
}

func (e *ShowCreated) AggregateID() string                   { return e.ShowID }
func (e *SeatReserved) AggregateID() string                  { return e.ShowID }
func (e *SeatReservationPaid) AggregateID() string           { return e.ShowID }
func (e *SeatReservationCancelled) AggregateID() string      { return e.ShowID }
func (e *CancelledReservationConfirmed) AggregateID() string { return e.ShowID }

func (e *ShowCreated) EventType() string                   { return "ShowCreated" }
func (e *SeatReserved) EventType() string                  { return "SeatReserved" }
func (e *SeatReservationPaid) EventType() string           { return "SeatReservationPaid" }
func (e *SeatReservationCancelled) EventType() string      { return "SeatReservationCancelled" }
func (e *CancelledReservationConfirmed) EventType() string { return "CancelledReservationConfirmed" }

func (*ShowCreated) isShowEvent()                   {}
func (*SeatReserved) isShowEvent()                  {}
func (*SeatReservationPaid) isShowEvent()           {}
func (*SeatReservationCancelled) isShowEvent()      {}
func (*CancelledReservationConfirmed) isShowEvent() {}

func init() {
	cqrs.RegisterEvents(
		func() cqrs.Event { return &ShowCreated{} },
		func() cqrs.Event { return &SeatReserved{} },
		func() cqrs.Event { return &SeatReservationPaid{} },
		func() cqrs.Event { return &SeatReservationCancelled{} },
		func() cqrs.Event { return &CancelledReservationConfirmed{} },
	)
}
