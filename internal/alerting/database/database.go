// Package database wraps the PostgreSQL connection used by the alerting stores.
package database

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib" // registers the "pgx" driver
	"github.com/lib/pq"                 // registers the "postgres" driver
	"github.com/rs/zerolog/log"
)

//go:embed schema.sql
var schemaSQL string

const (
	DriverPQ  = "postgres"
	DriverPGX = "pgx"
)

// Querier is the subset of *sql.DB and *sql.Tx the stores need.
type Querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Database is a *sql.DB opened against PostgreSQL with either lib/pq or the pgx stdlib driver.
type Database struct {
	*sql.DB
	driver string
}

// New opens and pings the database. driver defaults to lib/pq.
func New(driver, dsn string) (*Database, error) {
	if driver == "" {
		driver = DriverPQ
	}
	if driver != DriverPQ && driver != DriverPGX {
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	log.Info().Str("driver", driver).Msg("alerting database connected")
	return &Database{DB: db, driver: driver}, nil
}

// Driver returns the database/sql driver name in use.
func (d *Database) Driver() string { return d.driver }

// Migrate applies the embedded schema. Statements are idempotent.
func (d *Database) Migrate(ctx context.Context) error {
	if _, err := d.ExecContext(ctx, schemaSQL); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}

// WithTx runs fn inside a transaction, committing when fn returns nil and rolling back otherwise.
func (d *Database) WithTx(ctx context.Context, fn func(q Querier) error) error {
	tx, err := d.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	if err := fn(tx); err != nil {
		if rerr := tx.Rollback(); rerr != nil && !errors.Is(rerr, sql.ErrTxDone) {
			log.Error().Err(rerr).Msg("rollback failed")
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// invalid_text_representation, e.g. a malformed uuid literal
const codeInvalidText = "22P02"

// IsInvalidText reports whether err is PostgreSQL rejecting a malformed literal.
// Both drivers are recognised.
func IsInvalidText(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return string(pqErr.Code) == codeInvalidText
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == codeInvalidText
	}
	return false
}
