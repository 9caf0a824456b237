package eventsourcing

import (
	"context"
	"fmt"
	"sort"
)

type EventHandler interface {
	Handle(ctx context.Context, event Event) error
}

func NewEventHandlerFunc(fn func(ctx context.Context, event Event) error) EventHandler {
	return eventHandlerFunc(fn)
}

type eventHandlerFunc func(ctx context.Context, event Event) error

func (h eventHandlerFunc) Handle(ctx context.Context, event Event) error {
	return h(ctx, event)
}

type typedEventHandler[T Event] func(ctx context.Context, ev T) error

func (h typedEventHandler[T]) EventName() string {
	var zero T
	return TypeName(zero)
}

func (h typedEventHandler[T]) Handle(ctx context.Context, event Event) error {
	ev, ok := event.(T)
	if !ok {
		return ErrSkippedEvent{Event: event}
	}
	return h(ctx, ev)
}

// OnEvent adapts a function over one concrete event type to an EventHandler.
// Events of other types are reported as ErrSkippedEvent.
func OnEvent[T Event](fn func(ctx context.Context, ev T) error) EventHandler {
	return typedEventHandler[T](fn)
}

// EventGroupProcessor routes events to the OnEvent handler registered for
// their Go type.
type EventGroupProcessor struct {
	handlers map[string]EventHandler
}

func NewEventGroupProcessor(handlers ...EventHandler) *EventGroupProcessor {
	m := make(map[string]EventHandler, len(handlers))
	for _, h := range handlers {
		u, ok := h.(interface{ EventName() string })
		if !ok {
			panic(fmt.Errorf("handler %T does not have a function `EventName()`", h))
		}

		name := u.EventName()
		if _, exists := m[name]; exists {
			panic(fmt.Errorf("duplicate handler for event %s: %w", name, ErrDuplicateHandler))
		}
		m[name] = h
	}

	return &EventGroupProcessor{
		handlers: m,
	}
}

func (p *EventGroupProcessor) Handle(ctx context.Context, ev Event) error {
	h, ok := p.handlers[TypeName(ev)]
	if !ok {
		return ErrSkippedEvent{Event: ev}
	}
	return h.Handle(ctx, ev)
}

// StreamFilter lists the registered event names of every handled type in
// sorted order. Buses use it to narrow subscriptions.
func (p *EventGroupProcessor) StreamFilter() []string {
	out := make([]string, 0, len(p.handlers))
	for typeName := range p.handlers {
		out = append(out, eventNamesForType(typeName)...)
	}
	sort.Strings(out)
	return out
}
