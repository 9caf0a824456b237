package eventsourcing

import (
	"fmt"
	"sync"
)

// QueryBus holds one handler per (query type, result type) pair.
type QueryBus struct {
	mu       sync.RWMutex
	handlers map[string]any
}

func NewQueryBus() *QueryBus {
	return &QueryBus{
		handlers: make(map[string]any),
	}
}

func queryKey[T Query, R any]() string {
	return fmt.Sprintf("%T|%T", *new(T), *new(R))
}

// RegisterQueryHandler panics when the pair already has a handler.
func RegisterQueryHandler[T Query, R any](bus *QueryBus, handler QueryHandler[T, R]) {
	key := queryKey[T, R]()

	bus.mu.Lock()
	defer bus.mu.Unlock()

	if _, exists := bus.handlers[key]; exists {
		panic(fmt.Sprintf("%s: query %s", ErrDuplicateHandler, key))
	}
	bus.handlers[key] = handler
}

func (b *QueryBus) lookup(key string) (any, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	h, ok := b.handlers[key]
	return h, ok
}
