package httpapi

import (
	"strconv"

	"github.com/labstack/echo/v4"
	cqrs "github.com/terraskye/cinema/eventsourcing"
	"github.com/terraskye/cinema/show"
)

type createShowRequest struct {
	Title    string `json:"title"`
	MaxSeats int    `json:"maxSeats"`
}

func (s *server) createShow(c echo.Context) error {
	var body createShowRequest
	if err := c.Bind(&body); err != nil {
		return badRequest(c, "invalid request body")
	}
	resp, err := s.Shows.Create(c.Request().Context(), c.Param("id"), body.Title, body.MaxSeats)
	return s.respond(c, resp, err)
}

type reserveSeatRequest struct {
	WalletID      string `json:"walletId"`
	ReservationID string `json:"reservationId"`
	SeatNumber    int    `json:"seatNumber"`
}

func (s *server) reserveSeat(c echo.Context) error {
	var body reserveSeatRequest
	if err := c.Bind(&body); err != nil {
		return badRequest(c, "invalid request body")
	}
	if body.ReservationID == "" || body.WalletID == "" {
		return badRequest(c, "walletId and reservationId are required")
	}
	resp, err := s.Shows.Reserve(c.Request().Context(), c.Param("id"), body.WalletID, body.ReservationID, body.SeatNumber)
	return s.respond(c, resp, err)
}

func (s *server) cancelReservation(c echo.Context) error {
	resp, err := s.Shows.CancelReservation(c.Request().Context(), c.Param("id"), c.Param("rid"))
	return s.respond(c, resp, err)
}

func (s *server) confirmPayment(c echo.Context) error {
	resp, err := s.Shows.ConfirmPayment(c.Request().Context(), c.Param("id"), c.Param("rid"))
	return s.respond(c, resp, err)
}

func (s *server) getShow(c echo.Context) error {
	result, err := cqrs.NewQueryGateway[show.GetShow, *show.Show](s.Queries).
		HandleQuery(c.Request().Context(), show.GetShow{ShowID: c.Param("id")})
	return s.respondQuery(c, result, err)
}

func (s *server) getSeatStatus(c echo.Context) error {
	seat, err := strconv.Atoi(c.Param("seat"))
	if err != nil {
		return badRequest(c, "invalid seat number")
	}
	status, err := cqrs.NewQueryGateway[show.GetSeatStatus, show.SeatStatus](s.Queries).
		HandleQuery(c.Request().Context(), show.GetSeatStatus{ShowID: c.Param("id"), SeatNumber: seat})
	return s.respondQuery(c, echo.Map{"seatNumber": seat, "status": status}, err)
}
