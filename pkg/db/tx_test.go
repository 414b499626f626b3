package db

import (
	"context"
	"errors"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func openTxTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	conn, err := gorm.Open(sqlite.Open("file:"+t.Name()+"?mode=memory&cache=shared"), &gorm.Config{Logger: logger.Discard})
	require.NoError(t, err)
	sqlDB, err := conn.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, conn.Exec(`CREATE TABLE items (id INTEGER PRIMARY KEY)`).Error)
	return conn
}

func countItems(t *testing.T, conn *gorm.DB) int64 {
	t.Helper()
	var n int64
	require.NoError(t, conn.Raw(`SELECT COUNT(*) FROM items`).Scan(&n).Error)
	return n
}

func TestInTxRollsBackOnError(t *testing.T) {
	conn := openTxTestDB(t)
	tx := NewTransactor(conn)
	boom := errors.New("boom")

	err := tx.InTx(context.Background(), func(ctx context.Context) error {
		require.NoError(t, Conn(ctx, conn).Exec(`INSERT INTO items (id) VALUES (1)`).Error)
		assert.Equal(t, int64(1), countItems(t, Conn(ctx, conn)))
		return boom
	})
	assert.ErrorIs(t, err, boom)
	assert.Zero(t, countItems(t, conn))
}

func TestNestedInTxUsesSavepoint(t *testing.T) {
	conn := openTxTestDB(t)
	tx := NewTransactor(conn)

	err := tx.InTx(context.Background(), func(ctx context.Context) error {
		require.NoError(t, Conn(ctx, conn).Exec(`INSERT INTO items (id) VALUES (1)`).Error)
		nested := tx.InTx(ctx, func(ctx context.Context) error {
			require.NoError(t, Conn(ctx, conn).Exec(`INSERT INTO items (id) VALUES (2)`).Error)
			return errors.New("undo only this")
		})
		assert.Error(t, nested)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, int64(1), countItems(t, conn))
}

func TestConnFallsBackWithoutTx(t *testing.T) {
	conn := openTxTestDB(t)
	assert.Same(t, conn, Conn(context.Background(), conn))
}
