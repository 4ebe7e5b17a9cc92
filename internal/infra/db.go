// README: Postgres connection pool, query interface shared by stores, and transaction runner.
package infra

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

func NewDB(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	return pgxpool.New(ctx, dsn)
}

// DBTX is satisfied by *pgxpool.Pool and pgx.Tx so stores can run inside or outside a transaction.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type TxRunner struct {
	db *pgxpool.Pool
}

func NewTxRunner(db *pgxpool.Pool) *TxRunner {
	return &TxRunner{db: db}
}

// InTx runs fn in a read-committed transaction; fn's error rolls it back.
func (r *TxRunner) InTx(ctx context.Context, fn func(tx pgx.Tx) error) error {
	return pgx.BeginTxFunc(ctx, r.db, pgx.TxOptions{IsoLevel: pgx.ReadCommitted}, fn)
}

// LockKey takes a transaction-scoped advisory lock on key. Released at commit/rollback.
func LockKey(ctx context.Context, tx DBTX, key string) error {
	_, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, key)
	return err
}

const (
	codeUniqueViolation    = "23505"
	codeExclusionViolation = "23P01"
	codeForeignKey         = "23503"
)

// ConstraintViolation reports the violated constraint name and whether err is one of the
// unique/exclusion/foreign-key violations.
func ConstraintViolation(err error) (string, bool) {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return "", false
	}
	switch pgErr.Code {
	case codeUniqueViolation, codeExclusionViolation, codeForeignKey:
		return pgErr.ConstraintName, true
	}
	return "", false
}
