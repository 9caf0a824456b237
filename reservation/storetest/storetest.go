// Package storetest checks reservation.Store implementations.
package storetest

import (
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/terraskye/cinema/reservation"
)

// Run exercises a store returned by newStore. Every subtest gets a fresh
// store; ids are prefixed so shared backends do not collide between runs.
func Run(t *testing.T, newStore func(t *testing.T) reservation.Store) {
	prefix := time.Now().Format("150405.000000") + "-"
	record := func(id string, step reservation.Step, at time.Time) reservation.SeatReservation {
		return reservation.SeatReservation{
			ReservationID: prefix + id,
			ShowID:        "s1",
			SeatNumber:    10,
			WalletID:      "w1",
			Price:         decimal.RequireFromString("100.50"),
			Status:        reservation.StatusStarted,
			Step:          step,
			UpdatedAt:     at.UTC().Truncate(time.Millisecond),
		}
	}

	t.Run("create and get", func(t *testing.T) {
		store := newStore(t)
		want := record("a", reservation.StepReserveSeat, time.Now())
		if err := store.Create(t.Context(), want); err != nil {
			t.Fatalf("create: %v", err)
		}

		got, err := store.Get(t.Context(), want.ReservationID)
		if err != nil {
			t.Fatalf("get: %v", err)
		}
		if got.ReservationID != want.ReservationID || got.ShowID != want.ShowID || got.SeatNumber != want.SeatNumber ||
			got.WalletID != want.WalletID || !got.Price.Equal(want.Price) || got.Status != want.Status ||
			got.Step != want.Step || !got.UpdatedAt.Equal(want.UpdatedAt) {
			t.Fatalf("got %+v, want %+v", got, want)
		}
	})

	t.Run("create twice", func(t *testing.T) {
		store := newStore(t)
		r := record("b", reservation.StepReserveSeat, time.Now())
		if err := store.Create(t.Context(), r); err != nil {
			t.Fatal(err)
		}
		if err := store.Create(t.Context(), r); !errors.Is(err, reservation.ErrReservationExists) {
			t.Fatalf("err = %v, want ErrReservationExists", err)
		}
	})

	t.Run("create over a finished record changes nothing", func(t *testing.T) {
		store := newStore(t)
		r := record("e", reservation.StepReserveSeat, time.Now())
		if err := store.Create(t.Context(), r); err != nil {
			t.Fatal(err)
		}
		done := r
		done.Status, done.Step = reservation.StatusSeatReservationFailed, ""
		if err := store.Save(t.Context(), done); err != nil {
			t.Fatal(err)
		}

		if err := store.Create(t.Context(), r); !errors.Is(err, reservation.ErrReservationExists) {
			t.Fatalf("err = %v, want ErrReservationExists", err)
		}
		unfinished, err := store.Unfinished(t.Context())
		if err != nil {
			t.Fatal(err)
		}
		for _, u := range unfinished {
			if u.ReservationID == r.ReservationID {
				t.Fatalf("finished record listed as unfinished after a rejected create")
			}
		}
		if got, _ := store.Get(t.Context(), r.ReservationID); got.Status != reservation.StatusSeatReservationFailed {
			t.Fatalf("record = %+v", got)
		}
	})

	t.Run("missing", func(t *testing.T) {
		store := newStore(t)
		if _, err := store.Get(t.Context(), prefix+"nope"); !errors.Is(err, reservation.ErrNotFound) {
			t.Fatalf("get err = %v", err)
		}
		if err := store.Save(t.Context(), record("nope", "", time.Now())); !errors.Is(err, reservation.ErrNotFound) {
			t.Fatalf("save err = %v", err)
		}
	})

	t.Run("save advances and unfinished tracks steps", func(t *testing.T) {
		store := newStore(t)
		base := time.Now()
		first := record("c", reservation.StepReserveSeat, base)
		second := record("d", reservation.StepReserveSeat, base.Add(time.Second))
		for _, r := range []reservation.SeatReservation{first, second} {
			if err := store.Create(t.Context(), r); err != nil {
				t.Fatal(err)
			}
		}

		first.Status, first.Step = reservation.StatusCompleted, ""
		if err := store.Save(t.Context(), first); err != nil {
			t.Fatal(err)
		}
		second.Status, second.Step = reservation.StatusSeatReserved, reservation.StepChargeWallet
		if err := store.Save(t.Context(), second); err != nil {
			t.Fatal(err)
		}

		got, _ := store.Get(t.Context(), first.ReservationID)
		if got.Status != reservation.StatusCompleted || !got.Finished() {
			t.Fatalf("saved record = %+v", got)
		}

		unfinished, err := store.Unfinished(t.Context())
		if err != nil {
			t.Fatal(err)
		}
		var found bool
		for _, r := range unfinished {
			if r.ReservationID == first.ReservationID {
				t.Fatalf("finished record listed as unfinished")
			}
			if r.ReservationID == second.ReservationID {
				found = r.Step == reservation.StepChargeWallet
			}
		}
		if !found {
			t.Fatalf("unfinished = %+v, missing %s", unfinished, second.ReservationID)
		}
	})
}
