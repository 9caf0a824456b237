package choreography_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/terraskye/cinema"
	"github.com/terraskye/cinema/choreography"
	cqrs "github.com/terraskye/cinema/eventsourcing"
	eventbus "github.com/terraskye/cinema/eventbus/memory"
	"github.com/terraskye/cinema/eventstore/memory"
	"github.com/terraskye/cinema/fixtures"
	"github.com/terraskye/cinema/show"
	"github.com/terraskye/cinema/wallet"
)

type call struct {
	Op, ID, Ref, CommandID string
	Amount                 decimal.Decimal
}

// fakeCinema records every call and answers with the configured responses.
type fakeCinema struct {
	mu        sync.Mutex
	calls     []call
	chargeErr error
	charge    cinema.Response
}

func (f *fakeCinema) record(c call) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, c)
}

func (f *fakeCinema) ops() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.calls))
	for i, c := range f.calls {
		out[i] = c.Op
	}
	return out
}

func (f *fakeCinema) ConfirmPayment(ctx context.Context, showID, reservationID string) (cinema.Response, error) {
	f.record(call{Op: "confirm", ID: showID, Ref: reservationID})
	return cinema.Succeeded("ok"), nil
}

func (f *fakeCinema) CancelReservation(ctx context.Context, showID, reservationID string) (cinema.Response, error) {
	f.record(call{Op: "cancel", ID: showID, Ref: reservationID})
	return cinema.Succeeded("ok"), nil
}

func (f *fakeCinema) Charge(ctx context.Context, walletID, expenseID string, amount decimal.Decimal, commandID string) (cinema.Response, error) {
	f.record(call{Op: "charge", ID: walletID, Ref: expenseID, CommandID: commandID, Amount: amount})
	if f.chargeErr != nil {
		return cinema.Response{}, f.chargeErr
	}
	if f.charge.Code != "" {
		return f.charge, nil
	}
	return cinema.Succeeded("ok"), nil
}

func (f *fakeCinema) Deposit(ctx context.Context, walletID string, amount decimal.Decimal, commandID string) (cinema.Response, error) {
	f.record(call{Op: "deposit", ID: walletID, CommandID: commandID, Amount: amount})
	return cinema.Succeeded("ok"), nil
}

func setup(t *testing.T, fake *fakeCinema) (*fixtures.EventBusSpy, *choreography.Lookup) {
	t.Helper()
	logger, _ := test.NewNullLogger()
	bus := fixtures.NewEventBusSpy()
	lookup, err := choreography.Register(t.Context(), bus, choreography.Deps{
		Seats:         fake,
		Wallets:       fake,
		Logger:        logrus.NewEntry(logger),
		RetryInterval: time.Millisecond,
	})
	if err != nil {
		t.Fatal(err)
	}
	return bus, lookup
}

var price = decimal.NewFromInt(100)

func reserved() *show.SeatReserved {
	return &show.SeatReserved{ShowID: "s1", WalletID: "w1", ReservationID: "r1", SeatNumber: 3, Price: price, AvailableSeatsCount: 9}
}

func TestRegister_Subscribes(t *testing.T) {
	bus, _ := setup(t, &fakeCinema{})
	if !bus.HasSubscription(choreography.ShowSubscriber) || !bus.HasSubscription(choreography.WalletSubscriber) {
		t.Fatalf("subscriptions = %+v", bus.Subscriptions)
	}

	failing := fixtures.NewEventBusSpy().FailOnSubscribe(errors.New("no broker"))
	logger, _ := test.NewNullLogger()
	if _, err := choreography.Register(t.Context(), failing, choreography.Deps{Logger: logrus.NewEntry(logger)}); err == nil {
		t.Fatal("expected subscribe error")
	}
}

func TestChargeForReservation(t *testing.T) {
	fake := &fakeCinema{}
	bus, lookup := setup(t, fake)

	eventID := uuid.New()
	env := fixtures.NewEnvelope(reserved(), fixtures.WithEventID(eventID))
	if err := bus.Publish(t.Context(), env); err != nil {
		t.Fatal(err)
	}

	if r, ok := lookup.Get("r1"); !ok || r.WalletID != "w1" || !r.Price.Equal(price) {
		t.Fatalf("lookup = %+v, %v", r, ok)
	}
	if len(fake.calls) != 1 || fake.calls[0].Op != "charge" || fake.calls[0].Ref != "r1" {
		t.Fatalf("calls = %+v", fake.calls)
	}

	// a redelivery charges with the same command id
	bus.Publish(t.Context(), env)
	if fake.calls[1].CommandID != fake.calls[0].CommandID || fake.calls[0].CommandID == "" {
		t.Fatalf("command ids %q and %q differ", fake.calls[0].CommandID, fake.calls[1].CommandID)
	}
}

func TestChargeForReservation_CancelsWhenWalletIsDown(t *testing.T) {
	fake := &fakeCinema{chargeErr: errors.New("connection refused")}
	bus, _ := setup(t, fake)

	if err := bus.Publish(t.Context(), fixtures.NewEnvelope(reserved())); err != nil {
		t.Fatal(err)
	}
	got := fake.ops()
	want := []string{"charge", "charge", "charge", "cancel"}
	if len(got) != len(want) {
		t.Fatalf("ops = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("ops = %v, want %v", got, want)
		}
	}
}

func TestChargeForReservation_BusinessFailures(t *testing.T) {
	tests := []struct {
		code cinema.Code
		want []string
	}{
		{code: cinema.CodeNotSufficientFunds, want: []string{"charge"}},
		{code: cinema.CodeWalletNotFound, want: []string{"charge", "cancel"}},
	}
	for _, tt := range tests {
		t.Run(string(tt.code), func(t *testing.T) {
			fake := &fakeCinema{charge: cinema.Failed(tt.code, "no")}
			bus, _ := setup(t, fake)
			bus.Publish(t.Context(), fixtures.NewEnvelope(reserved()))
			if got := fake.ops(); len(got) != len(tt.want) || got[len(got)-1] != tt.want[len(tt.want)-1] {
				t.Fatalf("ops = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestCompleteReservation(t *testing.T) {
	fake := &fakeCinema{}
	bus, lookup := setup(t, fake)
	ctx := t.Context()

	// charges unrelated to a reservation are ignored
	if err := bus.Publish(ctx, fixtures.NewEnvelope(&wallet.WalletCharged{WalletID: "w1", Amount: price, ExpenseID: "other", CommandID: "c"})); err != nil {
		t.Fatal(err)
	}
	if len(fake.calls) != 0 {
		t.Fatalf("calls = %+v", fake.calls)
	}

	bus.Publish(ctx, fixtures.NewEnvelope(reserved()))
	bus.Publish(ctx, fixtures.NewEnvelope(&wallet.WalletCharged{WalletID: "w1", Amount: price, ExpenseID: "r1", CommandID: "c"}))
	bus.Publish(ctx, fixtures.NewEnvelope(&wallet.WalletChargeRejected{WalletID: "w1", ExpenseID: "r1", CommandID: "c"}))

	got := fake.ops()
	if len(got) != 3 || got[1] != "confirm" || got[2] != "cancel" || fake.calls[1].ID != "s1" {
		t.Fatalf("calls = %+v", fake.calls)
	}

	bus.Publish(ctx, fixtures.NewEnvelope(&show.SeatReservationPaid{ShowID: "s1", ReservationID: "r1", SeatNumber: 3}))
	if _, ok := lookup.Get("r1"); ok {
		t.Fatal("paid reservation still in lookup")
	}
}

func TestRefundForReservation(t *testing.T) {
	fake := &fakeCinema{}
	bus, _ := setup(t, fake)
	ctx := t.Context()

	late := &show.CancelledReservationConfirmed{ShowID: "s1", ReservationID: "r1", SeatNumber: 3}
	if err := bus.Publish(ctx, fixtures.NewEnvelope(late)); !errors.Is(err, choreography.ErrUnknownReservation) {
		t.Fatalf("err = %v, want ErrUnknownReservation", err)
	}

	bus.Publish(ctx, fixtures.NewEnvelope(reserved()))
	if err := bus.Publish(ctx, fixtures.NewEnvelope(late)); err != nil {
		t.Fatal(err)
	}
	last := fake.calls[len(fake.calls)-1]
	if last.Op != "deposit" || last.ID != "w1" || !last.Amount.Equal(price) {
		t.Fatalf("last call = %+v", last)
	}
}

func TestChoreography_EndToEnd(t *testing.T) {
	l, _ := test.NewNullLogger()
	logger := logrus.NewEntry(l)
	ctx, cancel := context.WithCancel(t.Context())
	defer cancel()

	store := memory.NewMemoryStore(256)
	commands := cqrs.NewCommandBus(64, 4)
	defer commands.Stop()
	shows := show.Register(commands, store, logger)
	wallets := wallet.Register(commands, store, logger)

	bus := eventbus.NewEventBus(64)
	defer bus.Close()
	if _, err := choreography.Register(ctx, bus, choreography.Deps{Seats: shows, Wallets: wallets, Logger: logger}); err != nil {
		t.Fatal(err)
	}
	go cqrs.Relay(ctx, store, store.Events(), bus, cqrs.WithRelayInterval(10*time.Millisecond))

	shows.Create(ctx, "s1", "Dune", 20)
	wallets.Create(ctx, "rich", decimal.NewFromInt(200))
	wallets.Create(ctx, "poor", decimal.NewFromInt(50))

	shows.Reserve(ctx, "s1", "rich", "r1", 10)
	shows.Reserve(ctx, "s1", "poor", "r2", 11)

	waitFor(t, func() bool {
		paid, _ := shows.SeatStatus(ctx, "s1", 10)
		free, _ := shows.SeatStatus(ctx, "s1", 11)
		s, err := shows.Get(ctx, "s1")
		return paid == show.SeatPaid && free == show.SeatAvailable && err == nil && s.Finished["r2"].Outcome == show.Cancelled
	})

	rich, _ := wallets.Balance(ctx, "rich")
	poor, _ := wallets.Balance(ctx, "poor")
	if !rich.Balance.Equal(decimal.NewFromInt(100)) || !poor.Balance.Equal(decimal.NewFromInt(50)) {
		t.Fatalf("balances rich %s poor %s", rich.Balance, poor.Balance)
	}
}

func TestChoreography_BurstBeforeRelayStarts(t *testing.T) {
	l, _ := test.NewNullLogger()
	logger := logrus.NewEntry(l)
	ctx, cancel := context.WithCancel(t.Context())
	defer cancel()

	store := memory.NewMemoryStore(8)
	commands := cqrs.NewCommandBus(64, 4)
	defer commands.Stop()
	shows := show.Register(commands, store, logger)
	wallets := wallet.Register(commands, store, logger)

	bus := eventbus.NewEventBus(64)
	defer bus.Close()
	if _, err := choreography.Register(ctx, bus, choreography.Deps{Seats: shows, Wallets: wallets, Logger: logger}); err != nil {
		t.Fatal(err)
	}

	shows.Create(ctx, "s1", "Dune", 30)
	wallets.Create(ctx, "crowd", decimal.NewFromInt(2000))
	for seat := range 20 {
		if resp, err := shows.Reserve(ctx, "s1", "crowd", fmt.Sprintf("r%d", seat), seat); err != nil || !resp.Success {
			t.Fatalf("reserve %d: %+v %v", seat, resp, err)
		}
	}

	go cqrs.Relay(ctx, store, store.Events(), bus, cqrs.WithRelayInterval(10*time.Millisecond))

	waitFor(t, func() bool {
		s, err := shows.Get(ctx, "s1")
		return err == nil && len(s.Pending) == 0 && len(s.Finished) == 20
	})

	s, _ := shows.Get(ctx, "s1")
	for seat := range 20 {
		if s.Seats[seat].Status != show.SeatPaid {
			t.Fatalf("seat %d is %s", seat, s.Seats[seat].Status)
		}
	}
	balance, _ := wallets.Balance(ctx, "crowd")
	if !balance.Balance.IsZero() {
		t.Fatalf("balance = %s, want 0", balance.Balance)
	}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not met in time")
		}
		time.Sleep(5 * time.Millisecond)
	}
}
