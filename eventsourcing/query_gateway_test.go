package eventsourcing

import (
	"context"
	"errors"
	"testing"
)

type seatQuery struct {
	Show string
	Seat int
}

func (q seatQuery) ID() []byte { return []byte(q.Show) }

type showQuery struct {
	Show string
}

func (q showQuery) ID() []byte { return []byte(q.Show) }

func TestQueryGateway_HandleQuery(t *testing.T) {
	bus := NewQueryBus()
	RegisterQueryHandler(bus, NewQueryHandlerFunc(func(ctx context.Context, q seatQuery) (string, error) {
		if q.Seat == 1 {
			return "PAID", nil
		}
		return "AVAILABLE", nil
	}))
	RegisterQueryHandler(bus, NewQueryHandlerFunc(func(ctx context.Context, q showQuery) (int, error) {
		return 100, nil
	}))

	status, err := NewQueryGateway[seatQuery, string](bus).HandleQuery(t.Context(), seatQuery{Show: "s", Seat: 1})
	if err != nil || status != "PAID" {
		t.Fatalf("status = %q, err = %v", status, err)
	}

	seats, err := NewQueryGateway[showQuery, int](bus).HandleQuery(t.Context(), showQuery{Show: "s"})
	if err != nil || seats != 100 {
		t.Fatalf("seats = %d, err = %v", seats, err)
	}
}

func TestQueryGateway_Errors(t *testing.T) {
	bus := NewQueryBus()
	lost := errors.New("db connection lost")
	RegisterQueryHandler(bus, NewQueryHandlerFunc(func(ctx context.Context, q seatQuery) (string, error) {
		return "", lost
	}))

	tests := []struct {
		name string
		ctx  func() context.Context
		run  func(ctx context.Context) error
		want error
	}{
		{
			name: "unregistered",
			ctx:  func() context.Context { return t.Context() },
			run: func(ctx context.Context) error {
				_, err := NewQueryGateway[showQuery, int](bus).HandleQuery(ctx, showQuery{})
				return err
			},
			want: ErrHandlerNotFound,
		},
		{
			name: "result type mismatch",
			ctx:  func() context.Context { return t.Context() },
			run: func(ctx context.Context) error {
				_, err := NewQueryGateway[seatQuery, int](bus).HandleQuery(ctx, seatQuery{})
				return err
			},
			want: ErrHandlerNotFound,
		},
		{
			name: "handler error",
			ctx:  func() context.Context { return t.Context() },
			run: func(ctx context.Context) error {
				_, err := NewQueryGateway[seatQuery, string](bus).HandleQuery(ctx, seatQuery{})
				return err
			},
			want: lost,
		},
		{
			name: "cancelled context",
			ctx: func() context.Context {
				ctx, cancel := context.WithCancel(t.Context())
				cancel()
				return ctx
			},
			run: func(ctx context.Context) error {
				_, err := NewQueryGateway[seatQuery, string](bus).HandleQuery(ctx, seatQuery{})
				return err
			},
			want: context.Canceled,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.run(tt.ctx()); !errors.Is(err, tt.want) {
				t.Fatalf("err = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestRegisterQueryHandler_DuplicatePanics(t *testing.T) {
	bus := NewQueryBus()
	RegisterQueryHandler(bus, NewQueryHandlerFunc(func(ctx context.Context, q seatQuery) (string, error) { return "", nil }))

	defer func() {
		if r := recover(); r == nil {
			t.Fatal("expected panic")
		}
	}()
	RegisterQueryHandler(bus, NewQueryHandlerFunc(func(ctx context.Context, q seatQuery) (string, error) { return "", nil }))
}
