package logging

import (
	"context"

	"github.com/sirupsen/logrus"
	cqrs "github.com/terraskye/cinema/eventsourcing"
)

type queryHandlerLogger[T cqrs.Query, R any] struct {
	logger *logrus.Entry
	next   cqrs.QueryHandler[T, R]
}

func (q *queryHandlerLogger[T, R]) HandleQuery(ctx context.Context, qry T) (R, error) {
	l := q.logger.WithFields(logrus.Fields{
		"query":    cqrs.TypeName(qry),
		"query_id": string(qry.ID()),
	})
	l.Debug("query")

	result, err := q.next.HandleQuery(ctx, qry)
	if err != nil {
		l.WithError(err).Warn("query failed")
	}

	return result, err
}

func WithQueryLogging[T cqrs.Query, R any](logger *logrus.Entry, next cqrs.QueryHandler[T, R]) cqrs.QueryHandler[T, R] {
	return &queryHandlerLogger[T, R]{
		logger: logger,
		next:   next,
	}
}
