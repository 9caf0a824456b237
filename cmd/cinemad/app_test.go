package main

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/terraskye/cinema/internal/config"
)

func testConfig(t *testing.T, mode string) config.Config {
	t.Helper()
	for _, key := range []string{"EVENT_STORE", "EVENT_BUS", "SAGA_STORE"} {
		t.Setenv(key, "")
	}
	t.Setenv("SAGA_MODE", mode)
	t.Setenv("SNAPSHOT_EVERY", "5")
	cfg, err := config.Load()
	if err != nil {
		t.Fatal(err)
	}
	return cfg
}

func TestBuild(t *testing.T) {
	for _, mode := range []string{"orchestration", "choreography"} {
		t.Run(mode, func(t *testing.T) {
			l, _ := test.NewNullLogger()
			a, err := build(t.Context(), testConfig(t, mode), logrus.NewEntry(l))
			if err != nil {
				t.Fatal(err)
			}
			t.Cleanup(func() { a.close(logrus.NewEntry(l)) })

			req := httptest.NewRequest(http.MethodPost, "/cinema-show/s1", strings.NewReader(`{"title":"Dune","maxSeats":3}`))
			req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
			rec := httptest.NewRecorder()
			a.http.ServeHTTP(rec, req)
			if rec.Code != http.StatusOK {
				t.Fatalf("create show: %d %s", rec.Code, rec.Body.String())
			}

			rec = httptest.NewRecorder()
			a.http.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/seat-reservation/r1", nil))
			if rec.Code != http.StatusNotFound {
				t.Errorf("unknown seat reservation: %d", rec.Code)
			}

			if a.orchestrator != nil {
				if err := a.orchestrator.Close(context.Background()); err != nil {
					t.Error(err)
				}
			}
		})
	}
}
