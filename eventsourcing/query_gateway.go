package eventsourcing

import (
	"context"
	"fmt"
)

// GenericQueryGateway is the typed entry point callers use to run one kind
// of query against a QueryBus.
type GenericQueryGateway[T Query, R any] struct {
	bus *QueryBus
}

func NewQueryGateway[T Query, R any](bus *QueryBus) GenericQueryGateway[T, R] {
	return GenericQueryGateway[T, R]{bus: bus}
}

func (g GenericQueryGateway[T, R]) HandleQuery(ctx context.Context, qry T) (R, error) {
	var zero R
	if err := ctx.Err(); err != nil {
		return zero, err
	}

	h, ok := g.bus.lookup(queryKey[T, R]())
	if !ok {
		return zero, fmt.Errorf("no handler registered for query %T -> %T: %w", qry, zero, ErrHandlerNotFound)
	}

	handler, ok := h.(QueryHandler[T, R])
	if !ok {
		return zero, fmt.Errorf("handler type mismatch for query %T -> %T", qry, zero)
	}

	return handler.HandleQuery(ctx, qry)
}
