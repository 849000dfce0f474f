package database

import (
	"context"
	"errors"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Connect("sqlite", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	_, err = db.Exec(`CREATE TABLE counters (name TEXT PRIMARY KEY, value INTEGER NOT NULL)`)
	require.NoError(t, err)
	return db
}

func counter(t *testing.T, db *DB, name string) int {
	t.Helper()
	var value int
	require.NoError(t, db.Get(&value, `SELECT value FROM counters WHERE name = ?`, name))
	return value
}

func TestConnectUnsupportedDriver(t *testing.T) {
	_, err := Connect("mssql", "server=localhost")
	assert.Error(t, err)
}

func TestInTxCommits(t *testing.T) {
	db := setupTestDB(t)
	err := db.InTx(context.Background(), func(tx *sqlx.Tx) error {
		_, err := tx.Exec(`INSERT INTO counters (name, value) VALUES ('a', 1)`)
		return err
	})
	require.NoError(t, err)
	assert.Equal(t, 1, counter(t, db, "a"))
}

func TestInTxRollsBackOnError(t *testing.T) {
	db := setupTestDB(t)
	boom := errors.New("boom")
	err := db.InTx(context.Background(), func(tx *sqlx.Tx) error {
		if _, err := tx.Exec(`INSERT INTO counters (name, value) VALUES ('a', 1)`); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)

	var n int
	require.NoError(t, db.Get(&n, `SELECT COUNT(*) FROM counters`))
	assert.Zero(t, n)
}

func TestSavepointDiscardsOnlyInnerWork(t *testing.T) {
	db := setupTestDB(t)
	skip := errors.New("skip")
	ctx := context.Background()
	err := db.InTx(ctx, func(tx *sqlx.Tx) error {
		if _, err := tx.Exec(`INSERT INTO counters (name, value) VALUES ('kept', 1)`); err != nil {
			return err
		}
		err := Savepoint(ctx, tx, "line_1", func() error {
			if _, err := tx.Exec(`INSERT INTO counters (name, value) VALUES ('dropped', 1)`); err != nil {
				return err
			}
			return skip
		})
		require.ErrorIs(t, err, skip)
		return Savepoint(ctx, tx, "line_2", func() error {
			_, err := tx.Exec(`UPDATE counters SET value = value + 1 WHERE name = 'kept'`)
			return err
		})
	})
	require.NoError(t, err)

	assert.Equal(t, 2, counter(t, db, "kept"))
	var n int
	require.NoError(t, db.Get(&n, `SELECT COUNT(*) FROM counters WHERE name = 'dropped'`))
	assert.Zero(t, n)
}

func TestIsUniqueViolation(t *testing.T) {
	db := setupTestDB(t)
	_, err := db.Exec(`INSERT INTO counters (name, value) VALUES ('a', 1)`)
	require.NoError(t, err)
	_, err = db.Exec(`INSERT INTO counters (name, value) VALUES ('a', 2)`)
	require.Error(t, err)
	assert.True(t, IsUniqueViolation(err))

	assert.True(t, IsUniqueViolation(&pgconn.PgError{Code: "23505"}))
	assert.False(t, IsUniqueViolation(&pgconn.PgError{Code: "23503"}))
	assert.False(t, IsUniqueViolation(errors.New("connection reset")))
	assert.False(t, IsUniqueViolation(nil))
}
