package fixtures

import (
	"context"
	"fmt"
	"sync"

	cqrs "github.com/terraskye/cinema/eventsourcing"
)

var (
	_ cqrs.EventBus       = (*EventBusSpy)(nil)
	_ cqrs.EventPublisher = (*EventBusSpy)(nil)
)

// EventBusSpy captures subscriptions and delivers published envelopes
// synchronously to every subscriber, in subscription order.
type EventBusSpy struct {
	mu sync.Mutex

	Subscriptions []Subscription
	Published     []*cqrs.Envelope

	subscribeErr error
	errs         chan error
	closed       bool
}

type Subscription struct {
	Name    string
	Handler cqrs.EventHandler
	Options int
}

func NewEventBusSpy() *EventBusSpy {
	return &EventBusSpy{errs: make(chan error, 16)}
}

func (b *EventBusSpy) FailOnSubscribe(err error) *EventBusSpy {
	b.subscribeErr = err
	return b
}

func (b *EventBusSpy) Subscribe(ctx context.Context, name string, handler cqrs.EventHandler, options ...cqrs.SubscriberOption) error {
	if b.subscribeErr != nil {
		return b.subscribeErr
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	for _, s := range b.Subscriptions {
		if s.Name == name {
			return fmt.Errorf("subscriber %q already exists", name)
		}
	}
	b.Subscriptions = append(b.Subscriptions, Subscription{Name: name, Handler: handler, Options: len(options)})
	return nil
}

// Publish runs every handler and returns the first handler error.
func (b *EventBusSpy) Publish(ctx context.Context, env *cqrs.Envelope) error {
	b.mu.Lock()
	b.Published = append(b.Published, env)
	subs := append([]Subscription(nil), b.Subscriptions...)
	b.mu.Unlock()

	var first error
	for _, s := range subs {
		if err := cqrs.HandleEnvelope(ctx, s.Handler, env); err != nil && first == nil {
			first = err
		}
	}
	return first
}

func (b *EventBusSpy) HasSubscription(name string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, s := range b.Subscriptions {
		if s.Name == name {
			return true
		}
	}
	return false
}

func (b *EventBusSpy) Errors() <-chan error {
	return b.errs
}

func (b *EventBusSpy) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.closed {
		b.closed = true
		close(b.errs)
	}
	return nil
}

// EventHandlerSpy records handled events and optionally fails.
type EventHandlerSpy struct {
	mu sync.Mutex

	HandleFn       func(ctx context.Context, event cqrs.Event) error
	ReceivedEvents []cqrs.Event
}

func (h *EventHandlerSpy) Handle(ctx context.Context, event cqrs.Event) error {
	h.mu.Lock()
	h.ReceivedEvents = append(h.ReceivedEvents, event)
	h.mu.Unlock()

	if h.HandleFn != nil {
		return h.HandleFn(ctx, event)
	}
	return nil
}

func (h *EventHandlerSpy) EventCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.ReceivedEvents)
}
