// Package sqlstore keeps seat reservation sagas in PostgreSQL or MySQL.
package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/terraskye/cinema/reservation"
)

const columns = "reservation_id, show_id, seat_number, wallet_id, price, status, step, updated_at"

type Store struct {
	db      *sql.DB
	dialect Dialect
}

func New(db *sql.DB, dialect Dialect) *Store {
	return &Store{db: db, dialect: dialect}
}

// Open connects to databaseURL, checks the connection and creates the
// table when it does not exist.
func Open(ctx context.Context, databaseURL string) (*Store, error) {
	dialect, dsn, err := Parse(databaseURL)
	if err != nil {
		return nil, err
	}

	db, err := sql.Open(dialect.Driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", dialect.Name, err)
	}
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(30 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping %s: %w", dialect.Name, err)
	}

	s := New(db, dialect)
	if err := s.Migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, s.dialect.schema); err != nil {
		return fmt.Errorf("migrate seat_reservations: %w", err)
	}
	return nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) Create(ctx context.Context, r reservation.SeatReservation) error {
	query := s.dialect.bind("INSERT INTO seat_reservations (" + columns + ") VALUES (?, ?, ?, ?, ?, ?, ?, ?)")
	_, err := s.db.ExecContext(ctx, query,
		r.ReservationID, r.ShowID, r.SeatNumber, r.WalletID, r.Price, string(r.Status), string(r.Step), r.UpdatedAt.UTC())
	if s.dialect.duplicate(err) {
		return reservation.ErrReservationExists
	}
	if err != nil {
		return fmt.Errorf("create seat reservation %s: %w", r.ReservationID, err)
	}
	return nil
}

func (s *Store) Save(ctx context.Context, r reservation.SeatReservation) error {
	query := s.dialect.bind("UPDATE seat_reservations SET status = ?, step = ?, updated_at = ? WHERE reservation_id = ?")
	res, err := s.db.ExecContext(ctx, query, string(r.Status), string(r.Step), r.UpdatedAt.UTC(), r.ReservationID)
	if err != nil {
		return fmt.Errorf("save seat reservation %s: %w", r.ReservationID, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("save seat reservation %s: %w", r.ReservationID, err)
	}
	if n == 0 {
		// mysql reports 0 for an unchanged row, so tell that apart from a missing one
		if _, err := s.Get(ctx, r.ReservationID); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) Get(ctx context.Context, reservationID string) (reservation.SeatReservation, error) {
	query := s.dialect.bind("SELECT " + columns + " FROM seat_reservations WHERE reservation_id = ?")
	r, err := scan(s.db.QueryRowContext(ctx, query, reservationID))
	if errors.Is(err, sql.ErrNoRows) {
		return reservation.SeatReservation{}, reservation.ErrNotFound
	}
	if err != nil {
		return reservation.SeatReservation{}, fmt.Errorf("get seat reservation %s: %w", reservationID, err)
	}
	return r, nil
}

func (s *Store) Unfinished(ctx context.Context) ([]reservation.SeatReservation, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT "+columns+" FROM seat_reservations WHERE step <> '' ORDER BY updated_at")
	if err != nil {
		return nil, fmt.Errorf("list unfinished seat reservations: %w", err)
	}
	defer rows.Close()

	var out []reservation.SeatReservation
	for rows.Next() {
		r, err := scan(rows)
		if err != nil {
			return nil, fmt.Errorf("scan seat reservation: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scan(row scanner) (reservation.SeatReservation, error) {
	var (
		r      reservation.SeatReservation
		status string
		step   string
	)
	if err := row.Scan(&r.ReservationID, &r.ShowID, &r.SeatNumber, &r.WalletID, &r.Price, &status, &step, &r.UpdatedAt); err != nil {
		return reservation.SeatReservation{}, err
	}
	r.Status = reservation.Status(status)
	r.Step = reservation.Step(step)
	r.UpdatedAt = r.UpdatedAt.UTC()
	return r, nil
}
