// Package show is the event-sourced seat inventory of a single show.
package show

import (
	"maps"

	"github.com/shopspring/decimal"
)

const (
	// MaxSeats is the largest seat layout a show can be created with.
	MaxSeats = 100

	// StreamPrefix names show streams "show-<id>".
	StreamPrefix = "show"
)

// InitialPrice is the price every seat starts with.
var InitialPrice = decimal.NewFromInt(100)

type SeatStatus string

const (
	SeatAvailable      SeatStatus = "AVAILABLE"
	SeatStatusReserved SeatStatus = "RESERVED"
	SeatPaid           SeatStatus = "PAID"
)

type Seat struct {
	Number int             `json:"number"`
	Status SeatStatus      `json:"status"`
	Price  decimal.Decimal `json:"price"`
}

func (s Seat) Available() bool { return s.Status == SeatAvailable }

type Outcome string

const (
	Confirmed Outcome = "CONFIRMED"
	Cancelled Outcome = "CANCELLED"
)

type FinishedReservation struct {
	SeatNumber int     `json:"seatNumber"`
	Outcome    Outcome `json:"outcome"`
}

// Show is the state of one show. A nil *Show is a show that was never
// created. Values are never modified after Evolve returns them.
type Show struct {
	ID             string                         `json:"id"`
	Title          string                         `json:"title"`
	Seats          map[int]Seat                   `json:"seats"`
	Pending        map[string]int                 `json:"pendingReservations"`
	Finished       map[string]FinishedReservation `json:"finishedReservations"`
	AvailableSeats int                            `json:"availableSeats"`
}

func (s *Show) isDuplicate(reservationID string) bool {
	if _, ok := s.Pending[reservationID]; ok {
		return true
	}
	_, ok := s.Finished[reservationID]
	return ok
}

// clone copies the show and all of its maps.
func (s *Show) clone() *Show {
	next := *s
	next.Seats = maps.Clone(s.Seats)
	next.Pending = maps.Clone(s.Pending)
	next.Finished = maps.Clone(s.Finished)
	return &next
}

func newSeats(maxSeats int, price decimal.Decimal) []Seat {
	seats := make([]Seat, maxSeats)
	for i := range seats {
		seats[i] = Seat{Number: i, Status: SeatAvailable, Price: price}
	}
	return seats
}
