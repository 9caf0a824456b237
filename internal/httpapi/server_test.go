package httpapi_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/terraskye/cinema"
	cqrs "github.com/terraskye/cinema/eventsourcing"
	"github.com/terraskye/cinema/eventstore/memory"
	"github.com/terraskye/cinema/internal/httpapi"
	"github.com/terraskye/cinema/reservation"
	"github.com/terraskye/cinema/show"
	"github.com/terraskye/cinema/wallet"
)

type api struct {
	e            *echo.Echo
	reservations *reservation.Orchestrator
}

func newAPI(t *testing.T) *api {
	t.Helper()
	l, _ := test.NewNullLogger()
	logger := logrus.NewEntry(l)

	events := memory.NewMemoryStore(0)
	commands := cqrs.NewCommandBus(16, 4)
	t.Cleanup(commands.Stop)
	queries := cqrs.NewQueryBus()

	shows := show.Register(commands, events, logger)
	wallets := wallet.Register(commands, events, logger)
	show.RegisterQueries(queries, shows, logger)
	wallet.RegisterQueries(queries, wallets, logger)

	o := reservation.NewOrchestrator(reservation.NewMemoryStore(), shows, wallets,
		reservation.WithLogger(logger),
		reservation.WithRetryInterval(time.Millisecond),
	)
	t.Cleanup(func() { o.Close(context.Background()) })
	reservation.RegisterQueries(queries, o, logger)

	return &api{
		e: httpapi.New(httpapi.Deps{
			Shows:        shows,
			Wallets:      wallets,
			Reservations: o,
			Queries:      queries,
			Logger:       logger,
		}),
		reservations: o,
	}
}

func (a *api) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	rec := httptest.NewRecorder()
	a.e.ServeHTTP(rec, req)
	return rec
}

func (a *api) expect(t *testing.T, method, path, body string, status int) *httptest.ResponseRecorder {
	t.Helper()
	rec := a.do(t, method, path, body)
	if rec.Code != status {
		t.Fatalf("%s %s: status %d, want %d: %s", method, path, rec.Code, status, rec.Body.String())
	}
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rec.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
	return v
}

func TestShowEndpoints(t *testing.T) {
	a := newAPI(t)

	a.expect(t, http.MethodPost, "/cinema-show/s1", `{"title":"Dune","maxSeats":5}`, http.StatusOK)
	resp := decode[cinema.Response](t, a.expect(t, http.MethodPost, "/cinema-show/s1", `{"title":"Dune","maxSeats":5}`, http.StatusBadRequest))
	if resp.Code != cinema.CodeShowAlreadyExists {
		t.Errorf("code = %s", resp.Code)
	}

	a.expect(t, http.MethodPatch, "/cinema-show/s1/reserve", `{"walletId":"w1","reservationId":"r1","seatNumber":3}`, http.StatusOK)
	a.expect(t, http.MethodPatch, "/cinema-show/s1/confirm-payment/r1", "", http.StatusOK)

	seat := decode[map[string]any](t, a.expect(t, http.MethodGet, "/cinema-show/s1/seat-status/3", "", http.StatusOK))
	if seat["status"] != string(show.SeatPaid) {
		t.Errorf("seat status = %v", seat["status"])
	}

	got := decode[show.Show](t, a.expect(t, http.MethodGet, "/cinema-show/s1", "", http.StatusOK))
	if got.Title != "Dune" || got.AvailableSeats != 4 {
		t.Errorf("show = %+v", got)
	}

	resp = decode[cinema.Response](t, a.expect(t, http.MethodPatch, "/cinema-show/s1/cancel-reservation/r2", "", http.StatusNotFound))
	if resp.Code != cinema.CodeReservationNotFound {
		t.Errorf("code = %s", resp.Code)
	}

	a.expect(t, http.MethodGet, "/cinema-show/missing", "", http.StatusNotFound)
	a.expect(t, http.MethodGet, "/cinema-show/s1/seat-status/x", "", http.StatusBadRequest)
	a.expect(t, http.MethodPatch, "/cinema-show/s1/reserve", `{"seatNumber":1}`, http.StatusBadRequest)
}

func TestWalletEndpoints(t *testing.T) {
	a := newAPI(t)

	a.expect(t, http.MethodPost, "/wallet/w1", `{"initialAmount":"200"}`, http.StatusOK)
	a.expect(t, http.MethodPatch, "/wallet/w1/charge", `{"expenseId":"e1","amount":"150","commandId":"c1"}`, http.StatusOK)

	resp := decode[cinema.Response](t, a.expect(t, http.MethodPatch, "/wallet/w1/charge", `{"expenseId":"e2","amount":"100","commandId":"c2"}`, http.StatusBadRequest))
	if resp.Code != cinema.CodeNotSufficientFunds {
		t.Errorf("code = %s", resp.Code)
	}

	a.expect(t, http.MethodPatch, "/wallet/w1/refund/e1", `{"commandId":"c3"}`, http.StatusOK)
	resp = decode[cinema.Response](t, a.expect(t, http.MethodPatch, "/wallet/w1/refund/e1", `{"commandId":"c4"}`, http.StatusNotFound))
	if resp.Code != cinema.CodeExpenseNotFound {
		t.Errorf("code = %s", resp.Code)
	}

	a.expect(t, http.MethodPatch, "/wallet/w1/deposit", `{"amount":"25","commandId":"c5"}`, http.StatusOK)
	a.expect(t, http.MethodPatch, "/wallet/w1/deposit", `{"amount":"0","commandId":"c6"}`, http.StatusBadRequest)
	a.expect(t, http.MethodPatch, "/wallet/w1/deposit", `{"amount":"5"}`, http.StatusBadRequest)

	balance := decode[wallet.Balance](t, a.expect(t, http.MethodGet, "/wallet/w1", "", http.StatusOK))
	if balance.Balance.String() != "225" {
		t.Errorf("balance = %s", balance.Balance)
	}

	a.expect(t, http.MethodGet, "/wallet/missing", "", http.StatusNotFound)
}

func TestSeatReservationEndpoints(t *testing.T) {
	a := newAPI(t)
	a.expect(t, http.MethodPost, "/cinema-show/s1", `{"title":"Dune","maxSeats":5}`, http.StatusOK)
	a.expect(t, http.MethodPost, "/wallet/w1", `{"initialAmount":"300"}`, http.StatusOK)

	body := `{"showId":"s1","seatNumber":2,"price":"100","walletId":"w1"}`
	a.expect(t, http.MethodPost, "/seat-reservation/r1", body, http.StatusAccepted)
	a.expect(t, http.MethodPost, "/seat-reservation/r1", body, http.StatusBadRequest)
	a.expect(t, http.MethodPost, "/seat-reservation/r2", `{"showId":"s1","seatNumber":2}`, http.StatusBadRequest)

	if _, err := a.reservations.Wait(t.Context(), "r1"); err != nil {
		t.Fatal(err)
	}

	got := decode[map[string]string](t, a.expect(t, http.MethodGet, "/seat-reservation/r1", "", http.StatusOK))
	if got["status"] != string(reservation.StatusCompleted) {
		t.Errorf("status = %v", got)
	}
	balance := decode[wallet.Balance](t, a.expect(t, http.MethodGet, "/wallet/w1", "", http.StatusOK))
	if balance.Balance.String() != "200" {
		t.Errorf("balance = %s", balance.Balance)
	}

	a.expect(t, http.MethodGet, "/seat-reservation/unknown", "", http.StatusNotFound)
}

func TestHealth(t *testing.T) {
	a := newAPI(t)
	if rec := a.expect(t, http.MethodGet, "/healthz", "", http.StatusOK); rec.Body.String() != "ok" {
		t.Errorf("body = %q", rec.Body.String())
	}
}
