package dbctx

import (
	"context"

	"gorm.io/gorm"
)

// Context bundles a request context with an optional GORM transaction.
type Context struct {
	Ctx context.Context
	Tx  *gorm.DB
}

// For returns a context with no transaction.
func For(ctx context.Context) Context {
	return Context{Ctx: ctx}
}

// DB picks the transaction when present, else fallback, bound to Ctx.
func (c Context) DB(fallback *gorm.DB) *gorm.DB {
	db := c.Tx
	if db == nil {
		db = fallback
	}
	if c.Ctx != nil {
		db = db.WithContext(c.Ctx)
	}
	return db
}
