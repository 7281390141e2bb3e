package store

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/lib/pq"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect"
)

// DB is the entity-shaped data layer. It wraps either a root *bun.DB or a
// bun.Tx, so every query method works identically inside and outside a
// transaction.
type DB struct {
	Bun bun.IDB
}

func New(bdb *bun.DB) *DB {
	return &DB{Bun: bdb}
}

// RunInTx runs fn against a transaction-scoped store. Multi-row mutations
// (order completion, table+role+assignment creation, seat claims) must go
// through here; partial application is an invariant violation.
func (d *DB) RunInTx(ctx context.Context, fn func(ctx context.Context, tx *DB) error) error {
	switch b := d.Bun.(type) {
	case *bun.DB:
		return b.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
			return fn(ctx, &DB{Bun: tx})
		})
	default:
		// Already transactional; nest flatly.
		return fn(ctx, d)
	}
}

// lockForUpdate appends FOR UPDATE on dialects that support it. SQLite
// (tests) allows a single writer at a time, so the lock adds nothing there.
func (d *DB) lockForUpdate(q *bun.SelectQuery) *bun.SelectQuery {
	if d.Bun.Dialect().Name() == dialect.PG {
		q = q.For("UPDATE")
	}
	return q
}

// IsUniqueViolation reports whether err is a uniqueness-constraint failure,
// for Postgres in production and SQLite in tests. Same-key races on
// (table,user) assignments, reference codes and webhook event ids resolve by
// catching this; cross-key capacity races take the table row lock instead.
func IsUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") ||
		strings.Contains(msg, "duplicate key value")
}

func isNoRows(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}
