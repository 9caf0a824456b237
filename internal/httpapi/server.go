// Package httpapi exposes shows, wallets and seat reservations over HTTP.
package httpapi

import (
	"context"
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/terraskye/cinema"
	cqrs "github.com/terraskye/cinema/eventsourcing"
	"github.com/terraskye/cinema/reservation"
)

type Shows interface {
	Create(ctx context.Context, showID, title string, maxSeats int) (cinema.Response, error)
	Reserve(ctx context.Context, showID, walletID, reservationID string, seatNumber int) (cinema.Response, error)
	CancelReservation(ctx context.Context, showID, reservationID string) (cinema.Response, error)
	ConfirmPayment(ctx context.Context, showID, reservationID string) (cinema.Response, error)
}

type Wallets interface {
	Create(ctx context.Context, walletID string, amount decimal.Decimal) (cinema.Response, error)
	Charge(ctx context.Context, walletID, expenseID string, amount decimal.Decimal, commandID string) (cinema.Response, error)
	Refund(ctx context.Context, walletID, expenseID, commandID string) (cinema.Response, error)
	Deposit(ctx context.Context, walletID string, amount decimal.Decimal, commandID string) (cinema.Response, error)
}

type Reservations interface {
	Start(ctx context.Context, req reservation.Request) error
}

type Deps struct {
	Shows   Shows
	Wallets Wallets
	// Reservations is nil when sagas run as a choreography.
	Reservations Reservations
	Queries      *cqrs.QueryBus
	Logger       *logrus.Entry
}

type server struct {
	Deps
}

// New builds the echo instance with every route registered.
func New(deps Deps) *echo.Echo {
	s := &server{Deps: deps}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(middleware.Recover())
	e.Use(s.requestLogger)

	e.GET("/healthz", func(c echo.Context) error { return c.String(http.StatusOK, "ok") })

	shows := e.Group("/cinema-show")
	shows.POST("/:id", s.createShow)
	shows.PATCH("/:id/reserve", s.reserveSeat)
	shows.PATCH("/:id/cancel-reservation/:rid", s.cancelReservation)
	shows.PATCH("/:id/confirm-payment/:rid", s.confirmPayment)
	shows.GET("/:id", s.getShow)
	shows.GET("/:id/seat-status/:seat", s.getSeatStatus)

	wallets := e.Group("/wallet")
	wallets.POST("/:id", s.createWallet)
	wallets.PATCH("/:id/charge", s.chargeWallet)
	wallets.PATCH("/:id/refund/:expenseId", s.refund)
	wallets.PATCH("/:id/deposit", s.deposit)
	wallets.GET("/:id", s.getBalance)

	if deps.Reservations != nil {
		e.POST("/seat-reservation/:id", s.startReservation)
		e.GET("/seat-reservation/:id", s.getReservationStatus)
	}

	return e
}

func (s *server) requestLogger(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		err := next(c)
		if err != nil {
			c.Error(err)
		}
		s.Logger.WithFields(logrus.Fields{
			"method": c.Request().Method,
			"path":   c.Path(),
			"status": c.Response().Status,
		}).Debug("http request")
		return nil
	}
}

// respond writes a command response. Failures map to 404 for missing
// entities and 400 otherwise; transient errors are 500.
func (s *server) respond(c echo.Context, resp cinema.Response, err error) error {
	if err != nil {
		s.Logger.WithError(err).WithField("path", c.Path()).Error("command failed")
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": err.Error()})
	}
	if resp.Success {
		return c.JSON(http.StatusOK, resp)
	}
	return c.JSON(statusFor(resp.Code), resp)
}

// respondQuery writes a query result or maps its error like respond.
func (s *server) respondQuery(c echo.Context, result any, err error) error {
	if err == nil {
		return c.JSON(http.StatusOK, result)
	}

	var e *cinema.Error
	if errors.As(err, &e) {
		return c.JSON(statusFor(e.Code), cinema.Failed(e.Code, e.Message))
	}
	if errors.Is(err, reservation.ErrNotFound) {
		return c.JSON(http.StatusNotFound, echo.Map{"error": err.Error()})
	}
	s.Logger.WithError(err).WithField("path", c.Path()).Error("query failed")
	return c.JSON(http.StatusInternalServerError, echo.Map{"error": err.Error()})
}

func statusFor(code cinema.Code) int {
	switch code {
	case cinema.CodeShowNotFound, cinema.CodeSeatNotFound, cinema.CodeReservationNotFound,
		cinema.CodeWalletNotFound, cinema.CodeExpenseNotFound:
		return http.StatusNotFound
	default:
		return http.StatusBadRequest
	}
}

func badRequest(c echo.Context, msg string) error {
	return c.JSON(http.StatusBadRequest, echo.Map{"error": msg})
}
