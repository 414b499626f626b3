package db

import (
	"context"

	"gorm.io/gorm"
)

type txKey struct{}

// WithTx returns a context carrying tx. Repositories reached through Conn
// then run inside that transaction.
func WithTx(ctx context.Context, tx *gorm.DB) context.Context {
	return context.WithValue(ctx, txKey{}, tx)
}

// Conn returns the transaction carried by ctx, or fallback when there is none.
func Conn(ctx context.Context, fallback *gorm.DB) *gorm.DB {
	if tx, ok := ctx.Value(txKey{}).(*gorm.DB); ok && tx != nil {
		return tx
	}
	return fallback
}

// Transactor runs work inside a database transaction.
type Transactor struct {
	db *gorm.DB
}

func NewTransactor(db *gorm.DB) *Transactor {
	return &Transactor{db: db}
}

// InTx runs fn in a transaction carried by the context passed to fn. When ctx
// already carries one, InTx opens a savepoint inside it, so a failing fn only
// undoes its own writes. Any error from fn rolls back.
func (t *Transactor) InTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return Conn(ctx, t.db).WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(WithTx(ctx, tx))
	})
}
