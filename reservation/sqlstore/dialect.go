package sqlstore

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"
)

// Dialect holds what differs between the supported databases.
type Dialect struct {
	Name   string
	Driver string

	schema      string
	placeholder func(n int) string
	duplicate   func(err error) bool
}

var Postgres = Dialect{
	Name:   "postgres",
	Driver: "pgx",
	schema: `CREATE TABLE IF NOT EXISTS seat_reservations (
	reservation_id VARCHAR(128) PRIMARY KEY,
	show_id        VARCHAR(128) NOT NULL,
	seat_number    INTEGER NOT NULL,
	wallet_id      VARCHAR(128) NOT NULL,
	price          NUMERIC(20, 4) NOT NULL,
	status         VARCHAR(32) NOT NULL,
	step           VARCHAR(32) NOT NULL DEFAULT '',
	updated_at     TIMESTAMPTZ NOT NULL
)`,
	placeholder: func(n int) string { return "$" + strconv.Itoa(n) },
	duplicate: func(err error) bool {
		var pgErr *pgconn.PgError
		return errors.As(err, &pgErr) && pgErr.Code == "23505"
	},
}

var MySQL = Dialect{
	Name:   "mysql",
	Driver: "mysql",
	schema: `CREATE TABLE IF NOT EXISTS seat_reservations (
	reservation_id VARCHAR(128) PRIMARY KEY,
	show_id        VARCHAR(128) NOT NULL,
	seat_number    INT NOT NULL,
	wallet_id      VARCHAR(128) NOT NULL,
	price          DECIMAL(20, 4) NOT NULL,
	status         VARCHAR(32) NOT NULL,
	step           VARCHAR(32) NOT NULL DEFAULT '',
	updated_at     DATETIME(6) NOT NULL
) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
	placeholder: func(int) string { return "?" },
	duplicate: func(err error) bool {
		var myErr *mysql.MySQLError
		return errors.As(err, &myErr) && myErr.Number == 1062
	},
}

// bind replaces the ? placeholders of query with the dialect's own.
func (d Dialect) bind(query string) string {
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteString(d.placeholder(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// Parse picks the dialect of a database URL and returns the DSN its driver
// expects. postgres:// URLs are passed through; mysql:// URLs are turned
// into a go-sql-driver DSN that scans DATETIME columns into UTC time.Time.
func Parse(databaseURL string) (Dialect, string, error) {
	switch {
	case strings.HasPrefix(databaseURL, "postgres://"), strings.HasPrefix(databaseURL, "postgresql://"):
		return Postgres, databaseURL, nil

	case strings.HasPrefix(databaseURL, "mysql://"):
		cfg, err := mysql.ParseDSN(strings.TrimPrefix(databaseURL, "mysql://"))
		if err != nil {
			return Dialect{}, "", fmt.Errorf("parse mysql dsn: %w", err)
		}
		cfg.ParseTime = true
		cfg.Loc = time.UTC
		return MySQL, cfg.FormatDSN(), nil

	default:
		return Dialect{}, "", fmt.Errorf("unsupported database url %q", databaseURL)
	}
}
