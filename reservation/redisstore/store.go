// Package redisstore keeps seat reservation sagas in Redis.
package redisstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/terraskye/cinema/reservation"
)

const (
	recordKeyPattern = "cinema:reservation:%s"
	unfinishedKey    = "cinema:reservations:unfinished"
)

// Store saves every saga as a JSON string and tracks the ids of unfinished
// sagas in a set.
type Store struct {
	rdb    redis.UniversalClient
	prefix string
}

type Option func(*Store)

// WithKeyPrefix namespaces all keys, e.g. per environment.
func WithKeyPrefix(prefix string) Option {
	return func(s *Store) { s.prefix = prefix }
}

func New(rdb redis.UniversalClient, opts ...Option) *Store {
	s := &Store{rdb: rdb}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Store) recordKey(id string) string {
	return s.prefix + fmt.Sprintf(recordKeyPattern, id)
}

func (s *Store) unfinishedKey() string {
	return s.prefix + unfinishedKey
}

func (s *Store) Create(ctx context.Context, r reservation.SeatReservation) error {
	return s.write(ctx, r, false)
}

func (s *Store) Save(ctx context.Context, r reservation.SeatReservation) error {
	return s.write(ctx, r, true)
}

// write stores the record and updates the unfinished set in one MULTI,
// guarded by a WATCH on the record key.
func (s *Store) write(ctx context.Context, r reservation.SeatReservation, exists bool) error {
	op := "create"
	if exists {
		op = "save"
	}

	data, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("marshal seat reservation %s: %w", r.ReservationID, err)
	}

	key := s.recordKey(r.ReservationID)
	err = s.rdb.Watch(ctx, func(tx *redis.Tx) error {
		n, err := tx.Exists(ctx, key).Result()
		if err != nil {
			return err
		}
		switch {
		case exists && n == 0:
			return reservation.ErrNotFound
		case !exists && n > 0:
			return reservation.ErrReservationExists
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, data, 0)
			if r.Finished() {
				pipe.SRem(ctx, s.unfinishedKey(), r.ReservationID)
			} else {
				pipe.SAdd(ctx, s.unfinishedKey(), r.ReservationID)
			}
			return nil
		})
		return err
	}, key)

	switch {
	case err == nil:
		return nil
	case errors.Is(err, reservation.ErrNotFound), errors.Is(err, reservation.ErrReservationExists):
		return err
	case errors.Is(err, redis.TxFailedErr) && !exists:
		// another writer created the key after WATCH
		return reservation.ErrReservationExists
	default:
		return fmt.Errorf("%s seat reservation %s: %w", op, r.ReservationID, err)
	}
}

func (s *Store) Get(ctx context.Context, reservationID string) (reservation.SeatReservation, error) {
	data, err := s.rdb.Get(ctx, s.recordKey(reservationID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return reservation.SeatReservation{}, reservation.ErrNotFound
	}
	if err != nil {
		return reservation.SeatReservation{}, fmt.Errorf("get seat reservation %s: %w", reservationID, err)
	}
	return decode(reservationID, data)
}

func (s *Store) Unfinished(ctx context.Context) ([]reservation.SeatReservation, error) {
	ids, err := s.rdb.SMembers(ctx, s.unfinishedKey()).Result()
	if err != nil {
		return nil, fmt.Errorf("list unfinished seat reservations: %w", err)
	}
	if len(ids) == 0 {
		return nil, nil
	}

	cmds := make([]*redis.StringCmd, len(ids))
	_, err = s.rdb.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		for i, id := range ids {
			cmds[i] = pipe.Get(ctx, s.recordKey(id))
		}
		return nil
	})
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("load unfinished seat reservations: %w", err)
	}

	out := make([]reservation.SeatReservation, 0, len(ids))
	for i, cmd := range cmds {
		data, err := cmd.Bytes()
		if errors.Is(err, redis.Nil) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("load seat reservation %s: %w", ids[i], err)
		}
		r, err := decode(ids[i], data)
		if err != nil {
			return nil, err
		}
		if !r.Finished() {
			out = append(out, r)
		}
	}
	return out, nil
}

func decode(id string, data []byte) (reservation.SeatReservation, error) {
	var r reservation.SeatReservation
	if err := json.Unmarshal(data, &r); err != nil {
		return reservation.SeatReservation{}, fmt.Errorf("decode seat reservation %s: %w", id, err)
	}
	return r, nil
}
