package httpapi

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"
	cqrs "github.com/terraskye/cinema/eventsourcing"
	"github.com/terraskye/cinema/reservation"
)

type startReservationRequest struct {
	ShowID     string          `json:"showId"`
	SeatNumber int             `json:"seatNumber"`
	Price      decimal.Decimal `json:"price"`
	WalletID   string          `json:"walletId"`
}

func (s *server) startReservation(c echo.Context) error {
	var body startReservationRequest
	if err := c.Bind(&body); err != nil {
		return badRequest(c, "invalid request body")
	}

	err := s.Reservations.Start(c.Request().Context(), reservation.Request{
		ReservationID: c.Param("id"),
		ShowID:        body.ShowID,
		SeatNumber:    body.SeatNumber,
		Price:         body.Price,
		WalletID:      body.WalletID,
	})
	switch {
	case err == nil:
		return c.JSON(http.StatusAccepted, echo.Map{"message": "seat reservation started"})
	case errors.Is(err, reservation.ErrReservationExists), errors.Is(err, reservation.ErrInvalidRequest):
		return badRequest(c, err.Error())
	case errors.Is(err, reservation.ErrClosed):
		return c.JSON(http.StatusServiceUnavailable, echo.Map{"error": err.Error()})
	default:
		s.Logger.WithError(err).Error("starting seat reservation failed")
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": err.Error()})
	}
}

func (s *server) getReservationStatus(c echo.Context) error {
	status, err := cqrs.NewQueryGateway[reservation.GetStatus, reservation.Status](s.Queries).
		HandleQuery(c.Request().Context(), reservation.GetStatus{ReservationID: c.Param("id")})
	return s.respondQuery(c, echo.Map{"reservationId": c.Param("id"), "status": status}, err)
}
