package eventsourcing

import (
	"context"
	"errors"
	"io"
)

// Iterator walks a lazily produced sequence. The producer signals the end of
// the sequence by returning io.EOF, which is not reported by Err.
type Iterator[T any] struct {
	nextFunc func(ctx context.Context) (T, error)
	current  T
	err      error
	done     bool
}

func NewIteratorFunc[T any](nextFunc func(ctx context.Context) (T, error)) *Iterator[T] {
	return &Iterator[T]{nextFunc: nextFunc}
}

// NewSliceIterator iterates over a copy of items.
func NewSliceIterator[T any](items []T) *Iterator[T] {
	snapshot := append([]T(nil), items...)
	idx := 0
	return NewIteratorFunc(func(ctx context.Context) (T, error) {
		var zero T
		if err := ctx.Err(); err != nil {
			return zero, err
		}
		if idx >= len(snapshot) {
			return zero, io.EOF
		}
		v := snapshot[idx]
		idx++
		return v, nil
	})
}

func (it *Iterator[T]) Next(ctx context.Context) bool {
	if it.done {
		return false
	}

	v, err := it.nextFunc(ctx)
	if err != nil {
		it.done = true
		if !errors.Is(err, io.EOF) {
			it.err = err
		}
		var zero T
		it.current = zero
		return false
	}

	it.current = v
	return true
}

func (it *Iterator[T]) Value() T {
	return it.current
}

func (it *Iterator[T]) Err() error {
	return it.err
}

// All drains the iterator.
func (it *Iterator[T]) All(ctx context.Context) ([]T, error) {
	var results []T
	for it.Next(ctx) {
		results = append(results, it.Value())
	}
	return results, it.Err()
}
