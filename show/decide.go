package show

import (
	"fmt"

	"github.com/terraskye/cinema"
	cqrs "github.com/terraskye/cinema/eventsourcing"
)

// Decide validates cmd against the show and returns the resulting events.
// state is nil for a show that does not exist yet.
func Decide(state *Show, cmd Command) ([]cqrs.Event, error) {
	switch c := cmd.(type) {
	case CreateShow:
		return create(state, c)
	case ReserveSeat:
		return reserve(state, c)
	case ConfirmReservationPayment:
		return confirm(state, c)
	case CancelSeatReservation:
		return cancel(state, c)
	default:
		panic(fmt.Sprintf("show: unhandled command %T", cmd))
	}
}

func create(state *Show, c CreateShow) ([]cqrs.Event, error) {
	switch {
	case state != nil:
		return nil, cinema.NewError(cinema.CodeShowAlreadyExists, "show %s already exists", c.ShowID)
	case c.MaxSeats > MaxSeats:
		return nil, cinema.NewError(cinema.CodeTooManySeats, "a show has at most %d seats, got %d", MaxSeats, c.MaxSeats)
	case c.MaxSeats < 1:
		return nil, cinema.NewError(cinema.CodeInvalidSeatCount, "a show needs at least one seat, got %d", c.MaxSeats)
	}

	return []cqrs.Event{&ShowCreated{
		ShowID: c.ShowID,
		Title:  c.Title,
		Seats:  newSeats(c.MaxSeats, InitialPrice),
	}}, nil
}

func reserve(state *Show, c ReserveSeat) ([]cqrs.Event, error) {
	if state == nil {
		return nil, cinema.NewError(cinema.CodeShowNotFound, "show %s not found", c.ShowID)
	}
	if state.isDuplicate(c.ReservationID) {
		return nil, cinema.ErrDuplicatedCommand
	}

	seat, ok := state.Seats[c.SeatNumber]
	if !ok {
		return nil, cinema.NewError(cinema.CodeSeatNotFound, "seat %d not found", c.SeatNumber)
	}
	if !seat.Available() {
		return nil, cinema.NewError(cinema.CodeSeatNotAvailable, "seat %d is %s", c.SeatNumber, seat.Status)
	}

	return []cqrs.Event{&SeatReserved{
		ShowID:              state.ID,
		WalletID:            c.WalletID,
		ReservationID:       c.ReservationID,
		SeatNumber:          seat.Number,
		Price:               seat.Price,
		AvailableSeatsCount: state.AvailableSeats - 1,
	}}, nil
}

func confirm(state *Show, c ConfirmReservationPayment) ([]cqrs.Event, error) {
	if state == nil {
		return nil, cinema.NewError(cinema.CodeShowNotFound, "show %s not found", c.ShowID)
	}

	if seatNumber, ok := state.Pending[c.ReservationID]; ok {
		return []cqrs.Event{&SeatReservationPaid{
			ShowID:        state.ID,
			ReservationID: c.ReservationID,
			SeatNumber:    seatNumber,
		}}, nil
	}

	finished, ok := state.Finished[c.ReservationID]
	switch {
	case !ok:
		return nil, cinema.NewError(cinema.CodeReservationNotFound, "reservation %s not found", c.ReservationID)
	case finished.Outcome == Confirmed:
		return nil, cinema.ErrDuplicatedCommand
	default:
		return []cqrs.Event{&CancelledReservationConfirmed{
			ShowID:        state.ID,
			ReservationID: c.ReservationID,
			SeatNumber:    finished.SeatNumber,
		}}, nil
	}
}

func cancel(state *Show, c CancelSeatReservation) ([]cqrs.Event, error) {
	if state == nil {
		return nil, cinema.NewError(cinema.CodeShowNotFound, "show %s not found", c.ShowID)
	}

	if seatNumber, ok := state.Pending[c.ReservationID]; ok {
		return []cqrs.Event{&SeatReservationCancelled{
			ShowID:              state.ID,
			ReservationID:       c.ReservationID,
			SeatNumber:          seatNumber,
			AvailableSeatsCount: state.AvailableSeats + 1,
		}}, nil
	}

	finished, ok := state.Finished[c.ReservationID]
	switch {
	case !ok:
		return nil, cinema.NewError(cinema.CodeReservationNotFound, "reservation %s not found", c.ReservationID)
	case finished.Outcome == Cancelled:
		return nil, cinema.ErrDuplicatedCommand
	default:
		return nil, cinema.NewError(cinema.CodeCancellingConfirmedReservation, "reservation %s is already paid", c.ReservationID)
	}
}

// decider adapts Decide to the command handler of one command type.
func decider[C Command]() cqrs.Decider[*Show, C] {
	return func(state *Show, cmd C) ([]cqrs.Event, error) {
		return Decide(state, cmd)
	}
}
