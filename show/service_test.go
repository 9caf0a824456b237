package show_test

import (
	"errors"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/terraskye/cinema"
	cqrs "github.com/terraskye/cinema/eventsourcing"
	"github.com/terraskye/cinema/eventstore/memory"
	"github.com/terraskye/cinema/fixtures"
	"github.com/terraskye/cinema/show"
)

func newService(t *testing.T, store cqrs.EventStore, opts ...show.Option) *show.Service {
	t.Helper()
	logger, _ := test.NewNullLogger()
	bus := cqrs.NewCommandBus(16, 4)
	t.Cleanup(bus.Stop)
	return show.Register(bus, store, logrus.NewEntry(logger), opts...)
}

func mustSucceed(t *testing.T) func(resp cinema.Response, err error) {
	t.Helper()
	return func(resp cinema.Response, err error) {
		t.Helper()
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !resp.Success {
			t.Fatalf("expected success, got %+v", resp)
		}
	}
}

func TestService_ReserveConfirmFlow(t *testing.T) {
	svc := newService(t, memory.NewMemoryStore(0))
	ctx := t.Context()

	mustSucceed(t)(svc.Create(ctx, "s1", "Dune", 20))
	mustSucceed(t)(svc.Reserve(ctx, "s1", "w1", "r1", 10))

	status, err := svc.SeatStatus(ctx, "s1", 10)
	if err != nil || status != show.SeatStatusReserved {
		t.Fatalf("seat status = %s, %v", status, err)
	}

	resp, err := svc.ConfirmPayment(ctx, "s1", "r1")
	mustSucceed(t)(resp, err)
	if resp.Code != "" {
		t.Fatalf("unexpected code %s", resp.Code)
	}

	status, _ = svc.SeatStatus(ctx, "s1", 10)
	if status != show.SeatPaid {
		t.Fatalf("seat status = %s, want PAID", status)
	}

	s, err := svc.Get(ctx, "s1")
	if err != nil {
		t.Fatal(err)
	}
	if s.AvailableSeats != 19 || s.Finished["r1"].Outcome != show.Confirmed {
		t.Fatalf("unexpected show %+v", s)
	}
}

func TestService_CancelTwiceIsDuplicateAndCancelConfirmedIsRejected(t *testing.T) {
	svc := newService(t, memory.NewMemoryStore(0))
	ctx := t.Context()

	mustSucceed(t)(svc.Create(ctx, "s1", "Dune", 5))
	mustSucceed(t)(svc.Reserve(ctx, "s1", "w1", "r1", 1))
	mustSucceed(t)(svc.Reserve(ctx, "s1", "w1", "r2", 2))

	mustSucceed(t)(svc.CancelReservation(ctx, "s1", "r1"))
	resp, err := svc.CancelReservation(ctx, "s1", "r1")
	mustSucceed(t)(resp, err)
	if !resp.IsDuplicate() {
		t.Fatalf("second cancel = %+v, want DUPLICATED_COMMAND", resp)
	}

	mustSucceed(t)(svc.ConfirmPayment(ctx, "s1", "r2"))
	resp, err = svc.CancelReservation(ctx, "s1", "r2")
	if err != nil {
		t.Fatal(err)
	}
	if resp.Success || resp.Code != cinema.CodeCancellingConfirmedReservation {
		t.Fatalf("cancel confirmed = %+v", resp)
	}

	status, _ := svc.SeatStatus(ctx, "s1", 1)
	if status != show.SeatAvailable {
		t.Fatalf("seat 1 = %s, want AVAILABLE", status)
	}
}

func TestService_ConfirmAfterCancelIsFlagged(t *testing.T) {
	svc := newService(t, memory.NewMemoryStore(0))
	ctx := t.Context()

	mustSucceed(t)(svc.Create(ctx, "s1", "Dune", 5))
	mustSucceed(t)(svc.Reserve(ctx, "s1", "w1", "r1", 1))
	mustSucceed(t)(svc.CancelReservation(ctx, "s1", "r1"))

	resp, err := svc.ConfirmPayment(ctx, "s1", "r1")
	mustSucceed(t)(resp, err)
	if resp.Code != cinema.CodeCancelledReservationConfirmed {
		t.Fatalf("code = %s, want CANCELLED_RESERVATION_CONFIRMED", resp.Code)
	}

	status, _ := svc.SeatStatus(ctx, "s1", 1)
	if status != show.SeatAvailable {
		t.Fatalf("seat 1 = %s, want AVAILABLE", status)
	}
}

func TestService_TooManySeatsWritesNothing(t *testing.T) {
	spy := fixtures.NewStoreSpy(memory.NewMemoryStore(0))
	svc := newService(t, spy)

	resp, err := svc.Create(t.Context(), "s1", "Dune", 101)
	if err != nil {
		t.Fatal(err)
	}
	if resp.Success || resp.Code != cinema.CodeTooManySeats {
		t.Fatalf("resp = %+v", resp)
	}
	if spy.SaveCalls != 0 {
		t.Fatalf("save called %d times", spy.SaveCalls)
	}

	_, err = svc.Get(t.Context(), "s1")
	if code, _ := cinema.CodeOf(err); code != cinema.CodeShowNotFound {
		t.Fatalf("Get err = %v", err)
	}
}

func TestService_StoreFailureIsTransient(t *testing.T) {
	boom := errors.New("connection reset")
	spy := fixtures.NewStoreSpy(memory.NewMemoryStore(0))
	svc := newService(t, spy)

	spy.FailSaves(1, boom)
	resp, err := svc.Create(t.Context(), "s1", "Dune", 5)
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v, want %v", err, boom)
	}
	if resp.Success {
		t.Fatal("transient failure must not report success")
	}

	mustSucceed(t)(svc.Create(t.Context(), "s1", "Dune", 5))
}

func TestService_StreamLayoutAndSnapshots(t *testing.T) {
	store := memory.NewMemoryStore(0)
	snapshots := memory.NewSnapshotStore[*show.Show]()
	svc := newService(t, store, show.WithSnapshots(snapshots, 2))
	ctx := t.Context()

	mustSucceed(t)(svc.Create(ctx, "s1", "Dune", 5))
	mustSucceed(t)(svc.Reserve(ctx, "s1", "w1", "r1", 0))
	mustSucceed(t)(svc.Reserve(ctx, "s1", "w1", "r2", 1))

	iter, err := store.LoadStream(ctx, show.StreamID("s1"))
	if err != nil {
		t.Fatal(err)
	}
	envs, err := iter.All(ctx)
	if err != nil || len(envs) != 3 {
		t.Fatalf("stream has %d events, err %v", len(envs), err)
	}

	snap, ok, _ := snapshots.LoadSnapshot(ctx, show.StreamID("s1"))
	if !ok || snap.Version != 2 || snap.State.Pending["r1"] != 0 {
		t.Fatalf("snapshot = %+v, ok %v", snap, ok)
	}

	s, err := svc.Get(ctx, "s1")
	if err != nil || len(s.Pending) != 2 {
		t.Fatalf("Get = %+v, %v", s, err)
	}
}

func TestQueries(t *testing.T) {
	logger, _ := test.NewNullLogger()
	svc := newService(t, memory.NewMemoryStore(0))
	qb := cqrs.NewQueryBus()
	show.RegisterQueries(qb, svc, logrus.NewEntry(logger))

	mustSucceed(t)(svc.Create(t.Context(), "s1", "Dune", 3))

	got, err := cqrs.NewQueryGateway[show.GetShow, *show.Show](qb).HandleQuery(t.Context(), show.GetShow{ShowID: "s1"})
	if err != nil || got.Title != "Dune" {
		t.Fatalf("GetShow = %+v, %v", got, err)
	}

	status, err := cqrs.NewQueryGateway[show.GetSeatStatus, show.SeatStatus](qb).HandleQuery(t.Context(), show.GetSeatStatus{ShowID: "s1", SeatNumber: 2})
	if err != nil || status != show.SeatAvailable {
		t.Fatalf("GetSeatStatus = %s, %v", status, err)
	}
}
