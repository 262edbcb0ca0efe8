package sqlite

import (
	"context"
	"database/sql"

	"github.com/aussiebroadwan/orgauth/internal/auth/store"
)

type txStore struct {
	tx *sql.Tx
}

func newTx(tx *sql.Tx) *txStore {
	return &txStore{tx: tx}
}

func (t *txStore) Commit() error   { return t.tx.Commit() }
func (t *txStore) Rollback() error { return t.tx.Rollback() }

func (t *txStore) Close() error { return nil } // caller commits/rollbacks; outer DB stays open

// Ping is a no-op for transactions; the connection already exists.
func (t *txStore) Ping(ctx context.Context) error {
	return nil
}

func (t *txStore) Tx(ctx context.Context) (store.Tx, error) {
	// Nested tx not supported; could emulate with SAVEPOINT if needed
	return nil, sql.ErrTxDone
}

func (t *txStore) WithTx(ctx context.Context, fn func(tx store.Tx) error) error {
	// Nested tx not supported; could emulate with SAVEPOINT if needed
	return sql.ErrTxDone
}

func (t *txStore) Users() store.Users                     { return &usersRepo{db: t.tx} }
func (t *txStore) RefreshSessions() store.RefreshSessions { return &refreshSessionsRepo{db: t.tx} }
func (t *txStore) Organizations() store.Organizations     { return &organizationsRepo{db: t.tx} }

func (t *txStore) ApplyMigrations() error { return nil } // migrations apply before any tx starts
