package eventsourcing

import (
	"context"
	"fmt"
	"time"
)

type relayConfig struct {
	from     uint64
	interval time.Duration
	onError  func(error)
}

type RelayOption func(*relayConfig)

// WithRelayFrom starts the relay after the given global version.
func WithRelayFrom(globalVersion uint64) RelayOption {
	return func(c *relayConfig) { c.from = globalVersion }
}

// WithRelayInterval sets how often the log is polled when no append
// notification arrives.
func WithRelayInterval(d time.Duration) RelayOption {
	return func(c *relayConfig) { c.interval = d }
}

func WithRelayErrors(fn func(error)) RelayOption {
	return func(c *relayConfig) { c.onError = fn }
}

// Relay publishes the store's $all log to dst in global order. Envelopes
// received on wake only trigger a read of the log past the last published
// global version, so notifications dropped by the store are never events
// lost by the relay. A failed publish is retried from the same position on
// the next wake-up. Relay returns when ctx ends or wake is closed.
func Relay(ctx context.Context, src EventStore, wake <-chan *Envelope, dst EventPublisher, opts ...RelayOption) error {
	cfg := relayConfig{interval: time.Second}
	for _, opt := range opts {
		opt(&cfg)
	}

	ticker := time.NewTicker(cfg.interval)
	defer ticker.Stop()

	position := cfg.from
	for {
		next, err := catchUp(ctx, src, position, dst)
		position = next
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if cfg.onError != nil {
				cfg.onError(err)
			}
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case _, ok := <-wake:
			if !ok {
				return nil
			}
		case <-ticker.C:
		}
	}
}

// catchUp publishes everything after position and returns the global
// version of the last envelope it published.
func catchUp(ctx context.Context, src EventStore, position uint64, dst EventPublisher) (uint64, error) {
	it, err := src.LoadFromAll(ctx, position)
	if err != nil {
		return position, fmt.Errorf("relay from %d: %w", position, err)
	}
	for it.Next(ctx) {
		env := it.Value()
		if err := dst.Publish(ctx, env); err != nil {
			return position, fmt.Errorf("relay %s@%d: %w", env.StreamID, env.Version, err)
		}
		position = env.GlobalVersion
	}
	if err := it.Err(); err != nil {
		return position, fmt.Errorf("relay from %d: %w", position, err)
	}
	return position, nil
}
