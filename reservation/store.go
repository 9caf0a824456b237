package reservation

import (
	"context"
	"sort"
	"sync"
)

// Store persists saga records keyed by reservation id.
type Store interface {
	// Create fails with ErrReservationExists when the id is taken.
	Create(ctx context.Context, r SeatReservation) error
	// Save overwrites an existing record and fails with ErrNotFound otherwise.
	Save(ctx context.Context, r SeatReservation) error
	Get(ctx context.Context, reservationID string) (SeatReservation, error)
	// Unfinished lists the records that still have a step to run.
	Unfinished(ctx context.Context) ([]SeatReservation, error)
}

type MemoryStore struct {
	mu      sync.RWMutex
	records map[string]SeatReservation
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[string]SeatReservation)}
}

func (s *MemoryStore) Create(ctx context.Context, r SeatReservation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.records[r.ReservationID]; ok {
		return ErrReservationExists
	}
	s.records[r.ReservationID] = r
	return nil
}

func (s *MemoryStore) Save(ctx context.Context, r SeatReservation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.records[r.ReservationID]; !ok {
		return ErrNotFound
	}
	s.records[r.ReservationID] = r
	return nil
}

func (s *MemoryStore) Get(ctx context.Context, reservationID string) (SeatReservation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.records[reservationID]
	if !ok {
		return SeatReservation{}, ErrNotFound
	}
	return r, nil
}

func (s *MemoryStore) Unfinished(ctx context.Context) ([]SeatReservation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []SeatReservation
	for _, r := range s.records {
		if !r.Finished() {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UpdatedAt.Before(out[j].UpdatedAt) })
	return out, nil
}
