package db

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"gorm.io/gorm"
)

func TestIsDuplicateKeyErr(t *testing.T) {
	assert.False(t, IsDuplicateKeyErr(nil))
	assert.True(t, IsDuplicateKeyErr(gorm.ErrDuplicatedKey))
	assert.True(t, IsDuplicateKeyErr(fmt.Errorf("insert: %w", &pgconn.PgError{Code: "23505"})))
	assert.True(t, IsDuplicateKeyErr(errors.New("UNIQUE constraint failed: jobs.dedupe_key")))
	assert.False(t, IsDuplicateKeyErr(&pgconn.PgError{Code: "23503"}))
}

func TestIsUnavailableErr(t *testing.T) {
	assert.False(t, IsUnavailableErr(nil))
	assert.True(t, IsUnavailableErr(context.DeadlineExceeded))
	assert.True(t, IsUnavailableErr(&pgconn.PgError{Code: "08006"}))
	assert.True(t, IsUnavailableErr(&pgconn.PgError{Code: "57P01"}))
	assert.True(t, IsUnavailableErr(errors.New("sql: database is closed")))
	assert.False(t, IsUnavailableErr(&pgconn.PgError{Code: "23505"}))
	assert.False(t, IsUnavailableErr(gorm.ErrRecordNotFound))
}
