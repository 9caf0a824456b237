package eventsourcing

import (
	"encoding/json"
	"fmt"
	"sort"
	"sync"
)

var (
	// registry maps event names to factories returning a fresh pointer to
	// the concrete event type.
	registry = map[string]func() Event{}

	// typeToNames maps the Go type name of an event to the names it is
	// registered under.
	typeToNames = map[string][]string{}

	registryMu sync.RWMutex
)

// RegisterEventByType registers fn under the EventType of the event it returns.
//
//	RegisterEventByType(func() Event { return &SeatReserved{} })
func RegisterEventByType(fn func() Event) {
	if fn == nil {
		panic("cannot register nil factory")
	}
	ev := fn()
	if ev == nil {
		panic("factory returned nil")
	}
	registerEventName(ev.EventType(), fn)
}

// RegisterEventByName registers fn under a name independent of EventType,
// e.g. to keep reading events persisted under a former name.
func RegisterEventByName(name string, fn func() Event) {
	registerEventName(name, fn)
}

// RegisterEvents registers each factory by type.
func RegisterEvents(fns ...func() Event) {
	for _, fn := range fns {
		RegisterEventByType(fn)
	}
}

func registerEventName(name string, fn func() Event) {
	if fn == nil {
		panic("cannot register nil factory")
	}

	registryMu.Lock()
	defer registryMu.Unlock()

	if _, exists := registry[name]; exists {
		panic(fmt.Sprintf("event already registered: %s", name))
	}

	ev := fn()
	if ev == nil {
		panic(fmt.Sprintf("factory returned nil for event: %s", name))
	}

	registry[name] = fn
	typeName := TypeName(ev)
	typeToNames[typeName] = append(typeToNames[typeName], name)
}

// NewEventByName creates a new instance of the event registered under name.
func NewEventByName(name string) (Event, error) {
	registryMu.RLock()
	factory, ok := registry[name]
	registryMu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrEventNotRegistered, name)
	}
	ev := factory()
	if ev == nil {
		return nil, fmt.Errorf("factory returned nil for event: %s", name)
	}
	return ev, nil
}

// UnmarshalEvent decodes JSON data into a new instance of the named event.
func UnmarshalEvent(name string, data []byte) (Event, error) {
	ev, err := NewEventByName(name)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(data, ev); err != nil {
		return nil, fmt.Errorf("unmarshal event %s: %w", name, err)
	}
	return ev, nil
}

// EventNamesFor returns the names the type of ev is registered under.
func EventNamesFor(ev Event) []string {
	return eventNamesForType(TypeName(ev))
}

func eventNamesForType(typeName string) []string {
	registryMu.RLock()
	defer registryMu.RUnlock()

	names := typeToNames[typeName]
	if len(names) == 0 {
		return nil
	}
	out := append([]string(nil), names...)
	sort.Strings(out)
	return out
}
