package kurrentdb

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/kurrent-io/KurrentDB-Client-Go/kurrentdb"
	cqrs "github.com/terraskye/cinema/eventsourcing"
	kstore "github.com/terraskye/cinema/eventstore/kurrentdb"
)

var _ cqrs.EventBus = (*EventBus)(nil)

// EventBus delivers events through catch-up subscriptions to $all. Unless
// WithFromStart is given a subscriber only sees events appended after it
// subscribed.
type EventBus struct {
	db     *kurrentdb.Client
	subs   map[string]*subscriber
	mu     sync.RWMutex
	closed bool
	errs   chan error
	wg     sync.WaitGroup
}

type subscriber struct {
	name    string
	opt     kurrentdb.SubscribeToAllOptions
	handler cqrs.EventHandler
	cancel  context.CancelFunc
}

func NewEventBus(db *kurrentdb.Client) *EventBus {
	return &EventBus{
		db:   db,
		subs: make(map[string]*subscriber),
		errs: make(chan error, 64),
	}
}

func (b *EventBus) Subscribe(ctx context.Context, name string, handler cqrs.EventHandler, opts ...cqrs.SubscriberOption) error {
	if handler == nil {
		return errors.New("handler cannot be nil")
	}

	opt := kurrentdb.SubscribeToAllOptions{
		From: kurrentdb.End{},
	}
	for _, o := range opts {
		o(&opt)
	}

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return errors.New("eventbus is closed")
	}
	if _, exists := b.subs[name]; exists {
		b.mu.Unlock()
		return fmt.Errorf("subscriber %q already exists", name)
	}

	workerCtx, cancel := context.WithCancel(context.Background())
	sub := &subscriber{name: name, handler: handler, cancel: cancel, opt: opt}
	b.subs[name] = sub
	b.mu.Unlock()

	b.wg.Add(1)
	go b.runSubscriber(workerCtx, sub)

	go func() {
		select {
		case <-ctx.Done():
			b.removeSubscriber(name)
		case <-workerCtx.Done():
		}
	}()

	return nil
}

func (b *EventBus) report(s *subscriber, err error) {
	select {
	case b.errs <- fmt.Errorf("subscriber %q: %w", s.name, err):
	default:
	}
}

func (b *EventBus) runSubscriber(ctx context.Context, s *subscriber) {
	defer b.wg.Done()

	stream, err := b.db.SubscribeToAll(ctx, s.opt)
	if err != nil {
		b.report(s, err)
		return
	}
	defer stream.Close()

	for {
		if ctx.Err() != nil {
			return
		}

		msg := stream.Recv()
		if msg.SubscriptionDropped != nil {
			if ctx.Err() == nil {
				b.report(s, fmt.Errorf("subscription dropped: %w", msg.SubscriptionDropped.Error))
			}
			return
		}
		if msg.EventAppeared == nil {
			continue
		}

		recorded := msg.EventAppeared.OriginalEvent()
		if strings.HasPrefix(recorded.EventType, "$") {
			continue
		}

		env, err := kstore.Decode(recorded)
		if err != nil {
			b.report(s, err)
			continue
		}

		if err := cqrs.HandleEnvelope(ctx, s.handler, env); err != nil {
			b.report(s, err)
		}
	}
}

func (b *EventBus) removeSubscriber(name string) {
	b.mu.Lock()
	sub, ok := b.subs[name]
	if ok {
		delete(b.subs, name)
		sub.cancel()
	}
	b.mu.Unlock()
}

func (b *EventBus) Errors() <-chan error {
	return b.errs
}

func (b *EventBus) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true

	for _, sub := range b.subs {
		sub.cancel()
	}
	b.subs = nil
	b.mu.Unlock()

	b.wg.Wait()
	close(b.errs)
	return nil
}

func options(cfg any, name string) *kurrentdb.SubscribeToAllOptions {
	opts, ok := cfg.(*kurrentdb.SubscribeToAllOptions)
	if !ok {
		panic(fmt.Sprintf("%s: expected *SubscribeToAllOptions, got %T", name, cfg))
	}
	return opts
}

// WithFromStart replays $all from the beginning before going live.
func WithFromStart() cqrs.SubscriberOption {
	return func(cfg any) {
		options(cfg, "WithFromStart").From = kurrentdb.Start{}
	}
}

// WithFromPosition resumes after a known commit position.
func WithFromPosition(commit uint64) cqrs.SubscriberOption {
	return func(cfg any) {
		options(cfg, "WithFromPosition").From = kurrentdb.Position{Commit: commit, Prepare: commit}
	}
}

// WithFilterEvents narrows the subscription server side to event types with
// one of the given prefixes. Pass EventGroupProcessor.StreamFilter() to
// receive only what the processor handles.
func WithFilterEvents(eventTypes []string) cqrs.SubscriberOption {
	return func(cfg any) {
		options(cfg, "WithFilterEvents").Filter = &kurrentdb.SubscriptionFilter{
			Type:     kurrentdb.EventFilterType,
			Prefixes: eventTypes,
		}
	}
}

func WithFilterStream(streams []string) cqrs.SubscriberOption {
	return func(cfg any) {
		options(cfg, "WithFilterStream").Filter = &kurrentdb.SubscriptionFilter{
			Type:     kurrentdb.StreamFilterType,
			Prefixes: streams,
		}
	}
}
