package fixtures

import (
	"context"
	"io"

	cqrs "github.com/terraskye/cinema/eventsourcing"
)

func EmptyIterator() *cqrs.Iterator[*cqrs.Envelope] {
	return cqrs.NewIteratorFunc(func(ctx context.Context) (*cqrs.Envelope, error) {
		return nil, io.EOF
	})
}

// FailAfterNIterator yields the first n envelopes, then fails with err.
func FailAfterNIterator(envelopes []*cqrs.Envelope, n int, err error) *cqrs.Iterator[*cqrs.Envelope] {
	idx := 0
	return cqrs.NewIteratorFunc(func(ctx context.Context) (*cqrs.Envelope, error) {
		if idx >= n {
			return nil, err
		}
		if idx >= len(envelopes) {
			return nil, io.EOF
		}
		env := envelopes[idx]
		idx++
		return env, nil
	})
}
