package show

import (
	"fmt"

	"github.com/terraskye/cinema"
	cqrs "github.com/terraskye/cinema/eventsourcing"
)

// Evolve applies one show event. It never modifies state; every change
// produces a new *Show with copied maps. Events that state cannot have
// produced panic with a cinema.ConsistencyViolation.
func Evolve(state *Show, env *cqrs.Envelope) *Show {
	violation := func(format string, args ...any) {
		panic(cinema.ConsistencyViolation{StreamID: env.StreamID, Reason: fmt.Sprintf(format, args...)})
	}

	if created, ok := env.Event.(*ShowCreated); ok {
		if state != nil {
			violation("show %s is already created", state.ID)
		}
		seats := make(map[int]Seat, len(created.Seats))
		for _, seat := range created.Seats {
			seats[seat.Number] = seat
		}
		return &Show{
			ID:             created.ShowID,
			Title:          created.Title,
			Seats:          seats,
			Pending:        map[string]int{},
			Finished:       map[string]FinishedReservation{},
			AvailableSeats: len(seats),
		}
	}

	if state == nil {
		violation("%s applied to a show that does not exist", env.Event.EventType())
	}

	seatOrPanic := func(number int) Seat {
		seat, ok := state.Seats[number]
		if !ok {
			violation("seat %d not found", number)
		}
		return seat
	}

	switch ev := env.Event.(type) {
	case *SeatReserved:
		seat := seatOrPanic(ev.SeatNumber)
		next := state.clone()
		seat.Status = SeatStatusReserved
		next.Seats[seat.Number] = seat
		next.Pending[ev.ReservationID] = seat.Number
		next.AvailableSeats = ev.AvailableSeatsCount
		return next

	case *SeatReservationPaid:
		seat := seatOrPanic(ev.SeatNumber)
		next := state.clone()
		seat.Status = SeatPaid
		next.Seats[seat.Number] = seat
		delete(next.Pending, ev.ReservationID)
		next.Finished[ev.ReservationID] = FinishedReservation{SeatNumber: seat.Number, Outcome: Confirmed}
		return next

	case *SeatReservationCancelled:
		seat := seatOrPanic(ev.SeatNumber)
		next := state.clone()
		seat.Status = SeatAvailable
		next.Seats[seat.Number] = seat
		delete(next.Pending, ev.ReservationID)
		next.Finished[ev.ReservationID] = FinishedReservation{SeatNumber: seat.Number, Outcome: Cancelled}
		next.AvailableSeats = ev.AvailableSeatsCount
		return next

	case *CancelledReservationConfirmed:
		return state

	default:
		violation("unknown show event %T", env.Event)
		return nil
	}
}
