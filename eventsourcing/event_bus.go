package eventsourcing

import (
	"context"
	"errors"
	"fmt"
)

// SubscriberOption configures a subscription. Each bus implementation
// documents the configuration type it passes in.
type SubscriberOption func(cfg any)

// EventBus delivers stored events to named subscribers.
type EventBus interface {
	// Subscribe starts delivering events to handler until ctx is done.
	// Handlers returning ErrSkippedEvent count as successful deliveries.
	Subscribe(ctx context.Context, name string, handler EventHandler, options ...SubscriberOption) error

	// Errors reports handler and transport failures.
	Errors() <-chan error

	Close() error
}

// EventPublisher hands a stored envelope to a bus.
type EventPublisher interface {
	Publish(ctx context.Context, env *Envelope) error
}

// Forward publishes every envelope received on src until src is closed or
// ctx ends. Publish failures are passed to onError and do not stop the relay.
func Forward(ctx context.Context, src <-chan *Envelope, dst EventPublisher, onError func(error)) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case env, ok := <-src:
			if !ok {
				return nil
			}
			if err := dst.Publish(ctx, env); err != nil && onError != nil {
				onError(fmt.Errorf("forward %s@%d: %w", env.StreamID, env.Version, err))
			}
		}
	}
}

// HandleEnvelope runs handler with the envelope exposed through ctx and
// swallows ErrSkippedEvent.
func HandleEnvelope(ctx context.Context, handler EventHandler, env *Envelope) error {
	err := handler.Handle(WithEnvelope(ctx, env), env.Event)
	if err == nil || IsSkipped(err) {
		return nil
	}
	if errors.Is(err, context.Canceled) {
		return err
	}
	return fmt.Errorf("handle %s@%d: %w", env.StreamID, env.Version, err)
}
