// Package fixtures holds test doubles shared by the package tests.
package fixtures

import (
	"context"
	"sync"

	cqrs "github.com/terraskye/cinema/eventsourcing"
)

var _ cqrs.EventStore = (*StoreSpy)(nil)

// StoreSpy records calls to a real EventStore and can inject failures into
// the next saves or loads.
type StoreSpy struct {
	next cqrs.EventStore

	mu sync.Mutex

	SaveCalls           int
	LoadStreamFromCalls int
	LastSaveEvents      []cqrs.Envelope
	LastSaveRevision    cqrs.StreamState

	saveFailures int
	saveErr      error
	loadFailures int
	loadErr      error
}

func NewStoreSpy(next cqrs.EventStore) *StoreSpy {
	return &StoreSpy{next: next}
}

// FailSaves makes the next n calls to Save return err without writing.
func (s *StoreSpy) FailSaves(n int, err error) *StoreSpy {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.saveFailures, s.saveErr = n, err
	return s
}

// FailLoads makes the next n stream loads return err.
func (s *StoreSpy) FailLoads(n int, err error) *StoreSpy {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.loadFailures, s.loadErr = n, err
	return s
}

func (s *StoreSpy) Save(ctx context.Context, events []cqrs.Envelope, revision cqrs.StreamState) (cqrs.AppendResult, error) {
	s.mu.Lock()
	s.SaveCalls++
	s.LastSaveEvents = append([]cqrs.Envelope(nil), events...)
	s.LastSaveRevision = revision
	if s.saveFailures > 0 {
		s.saveFailures--
		err := s.saveErr
		s.mu.Unlock()
		return cqrs.AppendResult{}, err
	}
	s.mu.Unlock()

	return s.next.Save(ctx, events, revision)
}

func (s *StoreSpy) loadFailure() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.loadFailures > 0 {
		s.loadFailures--
		return s.loadErr
	}
	return nil
}

func (s *StoreSpy) LoadStream(ctx context.Context, id string) (*cqrs.Iterator[*cqrs.Envelope], error) {
	if err := s.loadFailure(); err != nil {
		return nil, err
	}
	return s.next.LoadStream(ctx, id)
}

func (s *StoreSpy) LoadStreamFrom(ctx context.Context, id string, version uint64) (*cqrs.Iterator[*cqrs.Envelope], error) {
	s.mu.Lock()
	s.LoadStreamFromCalls++
	s.mu.Unlock()

	if err := s.loadFailure(); err != nil {
		return nil, err
	}
	return s.next.LoadStreamFrom(ctx, id, version)
}

func (s *StoreSpy) LoadFromAll(ctx context.Context, version uint64) (*cqrs.Iterator[*cqrs.Envelope], error) {
	return s.next.LoadFromAll(ctx, version)
}

func (s *StoreSpy) Close() error {
	return s.next.Close()
}

// SavedEvents returns the events of the last successful or attempted save.
func (s *StoreSpy) SavedEvents() []cqrs.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]cqrs.Event, len(s.LastSaveEvents))
	for i, env := range s.LastSaveEvents {
		out[i] = env.Event
	}
	return out
}
