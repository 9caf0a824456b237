// Package rabbitmq publishes stored envelopes to a topic exchange and
// delivers them to durable per-subscriber queues. The routing key is the
// event type, so subscribers bind only the types they handle.
package rabbitmq

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"sync"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
	cqrs "github.com/terraskye/cinema/eventsourcing"
)

var (
	_ cqrs.EventBus       = (*EventBus)(nil)
	_ cqrs.EventPublisher = (*EventBus)(nil)
)

const (
	headerStreamID      = "stream_id"
	headerVersion       = "version"
	headerGlobalVersion = "global_version"
	headerMetadata      = "metadata"
)

// Config is the configuration type SubscriberOptions receive.
type Config struct {
	RoutingKeys []string
	Prefetch    int
}

// WithRoutingKeys binds the subscriber queue to the given event types only.
// EventGroupProcessor.StreamFilter() yields the right list for a processor.
func WithRoutingKeys(keys []string) cqrs.SubscriberOption {
	return func(cfg any) {
		c, ok := cfg.(*Config)
		if !ok {
			panic(fmt.Sprintf("WithRoutingKeys: expected *rabbitmq.Config, got %T", cfg))
		}
		c.RoutingKeys = keys
	}
}

func WithPrefetch(n int) cqrs.SubscriberOption {
	return func(cfg any) {
		c, ok := cfg.(*Config)
		if !ok {
			panic(fmt.Sprintf("WithPrefetch: expected *rabbitmq.Config, got %T", cfg))
		}
		c.Prefetch = n
	}
}

type subscriber struct {
	name   string
	ch     *amqp.Channel
	cancel context.CancelFunc
}

type EventBus struct {
	conn     *amqp.Connection
	exchange string

	pubMu sync.Mutex
	pub   *amqp.Channel

	mu     sync.Mutex
	subs   map[string]*subscriber
	closed bool
	errs   chan error
	wg     sync.WaitGroup
}

// Dial connects to the broker and declares the durable topic exchange.
func Dial(url, exchange string) (*EventBus, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("rabbitmq: dial: %w", err)
	}
	bus, err := NewEventBus(conn, exchange)
	if err != nil {
		_ = conn.Close()
		return nil, err
	}
	return bus, nil
}

func NewEventBus(conn *amqp.Connection, exchange string) (*EventBus, error) {
	ch, err := conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("rabbitmq: channel open: %w", err)
	}
	if err := ch.ExchangeDeclare(exchange, amqp.ExchangeTopic, true, false, false, false, nil); err != nil {
		_ = ch.Close()
		return nil, fmt.Errorf("rabbitmq: exchange declare: %w", err)
	}
	return &EventBus{
		conn:     conn,
		exchange: exchange,
		pub:      ch,
		subs:     make(map[string]*subscriber),
		errs:     make(chan error, 64),
	}, nil
}

func (b *EventBus) Publish(ctx context.Context, env *cqrs.Envelope) error {
	msg, err := toPublishing(env)
	if err != nil {
		return err
	}

	b.pubMu.Lock()
	defer b.pubMu.Unlock()

	if err := b.pub.PublishWithContext(ctx, b.exchange, env.Event.EventType(), false, false, msg); err != nil {
		return fmt.Errorf("rabbitmq: publish %s: %w", env.Event.EventType(), err)
	}
	return nil
}

func (b *EventBus) Subscribe(ctx context.Context, name string, handler cqrs.EventHandler, opts ...cqrs.SubscriberOption) error {
	if handler == nil {
		return errors.New("handler cannot be nil")
	}

	cfg := &Config{RoutingKeys: []string{"#"}, Prefetch: 32}
	for _, o := range opts {
		o(cfg)
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return errors.New("eventbus is closed")
	}
	if _, exists := b.subs[name]; exists {
		return fmt.Errorf("subscriber %q already exists", name)
	}

	ch, err := b.conn.Channel()
	if err != nil {
		return fmt.Errorf("rabbitmq: channel open: %w", err)
	}
	deliveries, err := b.declare(ch, name, cfg)
	if err != nil {
		_ = ch.Close()
		return err
	}

	workerCtx, cancel := context.WithCancel(context.Background())
	sub := &subscriber{name: name, ch: ch, cancel: cancel}
	b.subs[name] = sub

	b.wg.Add(1)
	go b.runSubscriber(workerCtx, sub, handler, deliveries)

	go func() {
		select {
		case <-ctx.Done():
			b.removeSubscriber(name)
		case <-workerCtx.Done():
		}
	}()

	return nil
}

func (b *EventBus) declare(ch *amqp.Channel, name string, cfg *Config) (<-chan amqp.Delivery, error) {
	if err := ch.Qos(cfg.Prefetch, 0, false); err != nil {
		return nil, fmt.Errorf("rabbitmq: qos: %w", err)
	}
	q, err := ch.QueueDeclare(name, true, false, false, false, nil)
	if err != nil {
		return nil, fmt.Errorf("rabbitmq: queue declare %q: %w", name, err)
	}
	for _, key := range cfg.RoutingKeys {
		if err := ch.QueueBind(q.Name, key, b.exchange, false, nil); err != nil {
			return nil, fmt.Errorf("rabbitmq: bind %q to %q: %w", q.Name, key, err)
		}
	}
	deliveries, err := ch.Consume(q.Name, name, false, false, false, false, nil)
	if err != nil {
		return nil, fmt.Errorf("rabbitmq: consume %q: %w", q.Name, err)
	}
	return deliveries, nil
}

func (b *EventBus) report(name string, err error) {
	select {
	case b.errs <- fmt.Errorf("subscriber %q: %w", name, err):
	default:
	}
}

func (b *EventBus) runSubscriber(ctx context.Context, s *subscriber, handler cqrs.EventHandler, deliveries <-chan amqp.Delivery) {
	defer b.wg.Done()
	defer func() { _ = s.ch.Close() }()

	for {
		select {
		case <-ctx.Done():
			return
		case d, ok := <-deliveries:
			if !ok {
				if ctx.Err() == nil {
					b.report(s.name, errors.New("deliveries channel closed"))
				}
				return
			}

			env, err := fromDelivery(d)
			if err != nil {
				b.report(s.name, err)
				_ = d.Nack(false, false)
				continue
			}

			if err := cqrs.HandleEnvelope(ctx, handler, env); err != nil {
				b.report(s.name, err)
				// one redelivery, then drop
				_ = d.Nack(false, !d.Redelivered)
				continue
			}
			_ = d.Ack(false)
		}
	}
}

func (b *EventBus) removeSubscriber(name string) {
	b.mu.Lock()
	sub, ok := b.subs[name]
	if ok {
		delete(b.subs, name)
	}
	b.mu.Unlock()

	if ok {
		sub.cancel()
	}
}

func (b *EventBus) Errors() <-chan error {
	return b.errs
}

// Close stops every subscriber and closes the publisher channel. The
// connection is owned by the caller unless the bus was created with Dial.
func (b *EventBus) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	for name, sub := range b.subs {
		sub.cancel()
		delete(b.subs, name)
	}
	b.mu.Unlock()

	b.wg.Wait()
	close(b.errs)

	b.pubMu.Lock()
	defer b.pubMu.Unlock()
	return b.pub.Close()
}

func toPublishing(env *cqrs.Envelope) (amqp.Publishing, error) {
	body, err := json.Marshal(env.Event)
	if err != nil {
		return amqp.Publishing{}, fmt.Errorf("rabbitmq: marshal %s: %w", env.Event.EventType(), err)
	}
	metadata, err := json.Marshal(env.Metadata)
	if err != nil {
		return amqp.Publishing{}, fmt.Errorf("rabbitmq: marshal metadata: %w", err)
	}

	return amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    env.EventID.String(),
		Type:         env.Event.EventType(),
		Timestamp:    env.OccurredAt.UTC(),
		Body:         body,
		Headers: amqp.Table{
			headerStreamID:      env.StreamID,
			headerVersion:       strconv.FormatUint(env.Version, 10),
			headerGlobalVersion: strconv.FormatUint(env.GlobalVersion, 10),
			headerMetadata:      string(metadata),
		},
	}, nil
}

func fromDelivery(d amqp.Delivery) (*cqrs.Envelope, error) {
	ev, err := cqrs.UnmarshalEvent(d.Type, d.Body)
	if err != nil {
		return nil, fmt.Errorf("rabbitmq: decode %q: %w", d.Type, err)
	}

	id, err := uuid.Parse(d.MessageId)
	if err != nil {
		return nil, fmt.Errorf("rabbitmq: message id %q: %w", d.MessageId, err)
	}

	env := &cqrs.Envelope{
		EventID:    id,
		Event:      ev,
		OccurredAt: d.Timestamp,
		Metadata:   map[string]any{},
	}

	if s, ok := d.Headers[headerStreamID].(string); ok {
		env.StreamID = s
	}
	if s, ok := d.Headers[headerVersion].(string); ok {
		env.Version, _ = strconv.ParseUint(s, 10, 64)
	}
	if s, ok := d.Headers[headerGlobalVersion].(string); ok {
		env.GlobalVersion, _ = strconv.ParseUint(s, 10, 64)
	}
	if s, ok := d.Headers[headerMetadata].(string); ok && s != "" && s != "null" {
		if err := json.Unmarshal([]byte(s), &env.Metadata); err != nil {
			return nil, fmt.Errorf("rabbitmq: metadata: %w", err)
		}
	}
	return env, nil
}
