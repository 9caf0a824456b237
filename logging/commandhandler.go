// Package logging decorates handlers with logrus structured logging.
package logging

import (
	"context"
	"errors"
	"time"

	"github.com/sirupsen/logrus"
	cqrs "github.com/terraskye/cinema/eventsourcing"
)

// WithCommandLogging logs every dispatched command. Business rule
// violations are logged at info level, infrastructure failures at error.
func WithCommandLogging[C cqrs.Command](logger *logrus.Entry, next cqrs.CommandHandler[C]) cqrs.CommandHandler[C] {
	var zero C
	cmdType := cqrs.TypeName(zero)

	return func(ctx context.Context, command C) (cqrs.AppendResult, error) {
		l := logger.WithFields(logrus.Fields{
			"command":      cmdType,
			"aggregate_id": command.AggregateID(),
		})
		if id := cqrs.CorrelationFromContext(ctx); id != "" {
			l = l.WithField("correlation_id", id)
		}
		l.Debug("dispatch")

		start := time.Now()
		result, err := next(ctx, command)
		l = l.WithField("duration", time.Since(start))

		switch {
		case err == nil:
			l.WithFields(logrus.Fields{
				"stream_id": result.StreamID,
				"version":   result.NextExpectedVersion,
				"events":    len(result.Events),
			}).Info("command handled")
		case errors.Is(err, cqrs.ErrBusinessRuleViolation):
			l.WithError(err).Info("command rejected")
		default:
			l.WithError(err).Error("command failed")
		}

		return result, err
	}
}
