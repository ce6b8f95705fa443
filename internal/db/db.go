// Package db provides the hand-written query layer over PostgreSQL. All SQL
// lives here; services depend on narrow interfaces over *Queries.
package db

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// DBTX abstracts a pgx pool or transaction.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Queries bundles all database operations over a pool or transaction.
type Queries struct {
	conn DBTX
}

// New constructs Queries over the provided connection source.
func New(conn DBTX) *Queries {
	return &Queries{conn: conn}
}

// WithTx returns Queries bound to the provided transaction.
func (q *Queries) WithTx(tx pgx.Tx) *Queries {
	return &Queries{conn: tx}
}
