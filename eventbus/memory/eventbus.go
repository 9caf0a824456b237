package memory

import (
	"context"
	"errors"
	"fmt"
	"sync"

	cqrs "github.com/terraskye/cinema/eventsourcing"
)

var (
	_ cqrs.EventBus       = (*EventBus)(nil)
	_ cqrs.EventPublisher = (*EventBus)(nil)
)

var ErrBusClosed = errors.New("eventbus is closed")

// Config is the configuration type SubscriberOptions receive.
type Config struct {
	Filter func(cqrs.Event) bool
}

// WithFilter delivers only events for which keep returns true.
func WithFilter(keep func(cqrs.Event) bool) cqrs.SubscriberOption {
	return func(cfg any) {
		c, ok := cfg.(*Config)
		if !ok {
			panic(fmt.Sprintf("WithFilter: expected *memory.Config, got %T", cfg))
		}
		c.Filter = keep
	}
}

type subscriber struct {
	name    string
	filter  func(cqrs.Event) bool
	handler cqrs.EventHandler
	events  chan *cqrs.Envelope
	ctx     context.Context
	cancel  context.CancelFunc
}

// EventBus fans envelopes out to in-process subscribers. Each subscriber
// has its own buffered queue and worker, so events are handled in publish
// order per subscriber. Publish blocks while a subscriber queue is full.
type EventBus struct {
	mu         sync.RWMutex
	subs       map[string]*subscriber
	closed     bool
	errs       chan error
	wg         sync.WaitGroup
	bufferSize int
}

func NewEventBus(bufferSize int) *EventBus {
	return &EventBus{
		subs:       make(map[string]*subscriber),
		errs:       make(chan error, 64),
		bufferSize: bufferSize,
	}
}

func (b *EventBus) Subscribe(ctx context.Context, name string, handler cqrs.EventHandler, opts ...cqrs.SubscriberOption) error {
	if handler == nil {
		return errors.New("handler cannot be nil")
	}

	cfg := &Config{Filter: func(cqrs.Event) bool { return true }}
	for _, o := range opts {
		o(cfg)
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return ErrBusClosed
	}
	if _, exists := b.subs[name]; exists {
		return fmt.Errorf("handler with name %q already registered", name)
	}

	workerCtx, cancel := context.WithCancel(context.Background())
	s := &subscriber{
		name:    name,
		filter:  cfg.Filter,
		handler: handler,
		events:  make(chan *cqrs.Envelope, b.bufferSize),
		ctx:     workerCtx,
		cancel:  cancel,
	}
	b.subs[name] = s

	b.wg.Add(1)
	go b.runSubscriber(s)

	go func() {
		select {
		case <-ctx.Done():
			b.removeSubscriber(name)
		case <-workerCtx.Done():
		}
	}()

	return nil
}

func (b *EventBus) runSubscriber(s *subscriber) {
	defer b.wg.Done()

	for {
		select {
		case <-s.ctx.Done():
			return
		case env := <-s.events:
			if err := cqrs.HandleEnvelope(s.ctx, s.handler, env); err != nil {
				b.report(fmt.Errorf("handler %q: %w", s.name, err))
			}
		}
	}
}

func (b *EventBus) report(err error) {
	select {
	case b.errs <- err:
	default:
	}
}

// Publish queues env for every subscriber whose filter accepts it.
func (b *EventBus) Publish(ctx context.Context, env *cqrs.Envelope) error {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return ErrBusClosed
	}

	for _, s := range b.subs {
		if !s.filter(env.Event) {
			continue
		}
		select {
		case s.events <- env:
		case <-s.ctx.Done():
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

func (b *EventBus) removeSubscriber(name string) {
	b.mu.Lock()
	s, ok := b.subs[name]
	if ok {
		delete(b.subs, name)
	}
	b.mu.Unlock()

	if ok {
		s.cancel()
	}
}

func (b *EventBus) Errors() <-chan error {
	return b.errs
}

// Close stops all subscribers and waits for their workers.
func (b *EventBus) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	for name, s := range b.subs {
		s.cancel()
		delete(b.subs, name)
	}
	b.mu.Unlock()

	b.wg.Wait()
	close(b.errs)
	return nil
}
