package logging

import (
	"context"

	"github.com/sirupsen/logrus"
	cqrs "github.com/terraskye/cinema/eventsourcing"
)

func WithEventLogging(logger *logrus.Entry, next cqrs.EventHandler) cqrs.EventHandler {
	return cqrs.NewEventHandlerFunc(func(ctx context.Context, event cqrs.Event) error {
		l := logger.WithFields(logrus.Fields{
			"event":          event.EventType(),
			"stream_id":      cqrs.StreamIDFromContext(ctx),
			"version":        cqrs.VersionFromContext(ctx),
			"global_version": cqrs.GlobalVersionFromContext(ctx),
			"causation_id":   cqrs.CausationFromContext(ctx),
		})

		err := next.Handle(ctx, event)
		switch {
		case err == nil:
			l.Debug("event processed")
		case cqrs.IsSkipped(err):
		default:
			l.WithError(err).Error("error processing event")
		}
		return err
	})
}
