package eventsourcing

import (
	"context"
)

// Query is a request for data that does not change state.
type Query interface {
	ID() []byte
}

type QueryHandler[T Query, R any] interface {
	HandleQuery(ctx context.Context, qry T) (R, error)
}

type queryHandlerFunc[T Query, R any] func(ctx context.Context, qry T) (R, error)

func (f queryHandlerFunc[T, R]) HandleQuery(ctx context.Context, qry T) (R, error) {
	return f(ctx, qry)
}

func NewQueryHandlerFunc[T Query, R any](fn func(ctx context.Context, qry T) (R, error)) QueryHandler[T, R] {
	return queryHandlerFunc[T, R](fn)
}
