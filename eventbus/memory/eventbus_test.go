package memory_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	cqrs "github.com/terraskye/cinema/eventsourcing"
	"github.com/terraskye/cinema/eventbus/memory"
	memstore "github.com/terraskye/cinema/eventstore/memory"
)

type SeatTaken struct {
	ShowID string
	Seat   int
}

func (e *SeatTaken) AggregateID() string { return e.ShowID }
func (e *SeatTaken) EventType() string   { return "SeatTaken" }

type SeatFreed struct {
	ShowID string
	Seat   int
}

func (e *SeatFreed) AggregateID() string { return e.ShowID }
func (e *SeatFreed) EventType() string   { return "SeatFreed" }

func envelope(ev cqrs.Event, version uint64) *cqrs.Envelope {
	return &cqrs.Envelope{EventID: uuid.New(), StreamID: "show-" + ev.AggregateID(), Event: ev, Version: version}
}

func TestEventBus_DeliversInOrderWithEnvelopeContext(t *testing.T) {
	bus := memory.NewEventBus(10)
	defer bus.Close()

	var mu sync.Mutex
	var seats []int
	var versions []uint64
	done := make(chan struct{})

	err := bus.Subscribe(t.Context(), "seats", cqrs.OnEvent(func(ctx context.Context, ev *SeatTaken) error {
		mu.Lock()
		defer mu.Unlock()
		seats = append(seats, ev.Seat)
		versions = append(versions, cqrs.VersionFromContext(ctx))
		if len(seats) == 3 {
			close(done)
		}
		return nil
	}))
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}

	for i := 1; i <= 3; i++ {
		if err := bus.Publish(t.Context(), envelope(&SeatTaken{ShowID: "1", Seat: i}, uint64(i))); err != nil {
			t.Fatalf("publish: %v", err)
		}
	}

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for events")
	}

	mu.Lock()
	defer mu.Unlock()
	for i := range seats {
		if seats[i] != i+1 || versions[i] != uint64(i+1) {
			t.Fatalf("seats = %v, versions = %v", seats, versions)
		}
	}
}

func TestEventBus_FilterAndSkippedEvents(t *testing.T) {
	bus := memory.NewEventBus(10)
	defer bus.Close()

	got := make(chan cqrs.Event, 10)
	err := bus.Subscribe(t.Context(), "freed-only", cqrs.NewEventHandlerFunc(func(ctx context.Context, ev cqrs.Event) error {
		got <- ev
		return nil
	}), memory.WithFilter(func(ev cqrs.Event) bool {
		_, ok := ev.(*SeatFreed)
		return ok
	}))
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}

	// skipped events are not errors
	if err := bus.Subscribe(t.Context(), "taken-only", cqrs.OnEvent(func(ctx context.Context, ev *SeatTaken) error { return nil })); err != nil {
		t.Fatalf("subscribe: %v", err)
	}

	_ = bus.Publish(t.Context(), envelope(&SeatTaken{ShowID: "1", Seat: 1}, 1))
	_ = bus.Publish(t.Context(), envelope(&SeatFreed{ShowID: "1", Seat: 1}, 2))

	select {
	case ev := <-got:
		if _, ok := ev.(*SeatFreed); !ok {
			t.Fatalf("filtered subscriber got %T", ev)
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for event")
	}

	select {
	case err := <-bus.Errors():
		t.Fatalf("unexpected error: %v", err)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestEventBus_HandlerErrorsAreReported(t *testing.T) {
	bus := memory.NewEventBus(10)
	defer bus.Close()

	boom := errors.New("projection down")
	_ = bus.Subscribe(t.Context(), "failing", cqrs.OnEvent(func(ctx context.Context, ev *SeatTaken) error { return boom }))

	_ = bus.Publish(t.Context(), envelope(&SeatTaken{ShowID: "1"}, 1))

	select {
	case err := <-bus.Errors():
		if !errors.Is(err, boom) {
			t.Fatalf("err = %v, want %v", err, boom)
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for error")
	}
}

func TestEventBus_SubscribeRules(t *testing.T) {
	bus := memory.NewEventBus(1)

	h := cqrs.OnEvent(func(ctx context.Context, ev *SeatTaken) error { return nil })
	if err := bus.Subscribe(t.Context(), "a", nil); err == nil {
		t.Fatal("expected error for nil handler")
	}
	if err := bus.Subscribe(t.Context(), "a", h); err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	if err := bus.Subscribe(t.Context(), "a", h); err == nil {
		t.Fatal("expected error for duplicate name")
	}

	if err := bus.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if err := bus.Subscribe(t.Context(), "b", h); !errors.Is(err, memory.ErrBusClosed) {
		t.Fatalf("err = %v, want ErrBusClosed", err)
	}
	if err := bus.Publish(t.Context(), envelope(&SeatTaken{}, 1)); !errors.Is(err, memory.ErrBusClosed) {
		t.Fatalf("err = %v, want ErrBusClosed", err)
	}
}

func TestForwardRelaysStoreFeed(t *testing.T) {
	bus := memory.NewEventBus(10)
	defer bus.Close()

	got := make(chan *SeatTaken, 1)
	_ = bus.Subscribe(t.Context(), "seats", cqrs.OnEvent(func(ctx context.Context, ev *SeatTaken) error {
		got <- ev
		return nil
	}))

	feed := make(chan *cqrs.Envelope, 1)
	feed <- envelope(&SeatTaken{ShowID: "1", Seat: 8}, 1)
	close(feed)

	if err := cqrs.Forward(t.Context(), feed, bus, func(err error) { t.Errorf("forward: %v", err) }); err != nil {
		t.Fatalf("forward: %v", err)
	}

	select {
	case ev := <-got:
		if ev.Seat != 8 {
			t.Fatalf("got seat %d", ev.Seat)
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for forwarded event")
	}
}

func TestRelayDeliversBurstLargerThanStoreFeed(t *testing.T) {
	store := memstore.NewMemoryStore(8)
	defer store.Close()

	for seat := range 20 {
		env := *envelope(&SeatTaken{ShowID: "1", Seat: seat}, 0)
		if _, err := store.Save(t.Context(), []cqrs.Envelope{env}, cqrs.Any{}); err != nil {
			t.Fatalf("save: %v", err)
		}
	}

	bus := memory.NewEventBus(4)
	defer bus.Close()

	got := make(chan int, 32)
	_ = bus.Subscribe(t.Context(), "seats", cqrs.OnEvent(func(ctx context.Context, ev *SeatTaken) error {
		got <- ev.Seat
		return nil
	}))

	go func() {
		_ = cqrs.Relay(t.Context(), store, store.Events(), bus, cqrs.WithRelayInterval(10*time.Millisecond))
	}()

	for want := range 20 {
		select {
		case seat := <-got:
			if seat != want {
				t.Fatalf("got seat %d, want %d", seat, want)
			}
		case <-time.After(2 * time.Second):
			t.Fatalf("seat %d never delivered", want)
		}
	}
}
