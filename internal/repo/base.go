package repo

import (
	"context"
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Base carries the connection shared by the catalogue repositories.
type Base struct {
	db *gorm.DB
}

// NewBase wraps db.
func NewBase(db *gorm.DB) Base {
	return Base{db: db}
}

// DB returns the connection bound to ctx. A nil ctx returns it unbound.
func (b Base) DB(ctx context.Context) *gorm.DB {
	if ctx == nil {
		return b.db
	}
	return b.db.WithContext(ctx)
}

// FindByID loads the row whose id column equals id into dest.
func (b Base) FindByID(ctx context.Context, id string, dest any) error {
	return b.DB(ctx).Where("id = ?", id).First(dest).Error
}

// DeleteByID removes the row of model with id, reporting
// gorm.ErrRecordNotFound when nothing matched.
func (b Base) DeleteByID(ctx context.Context, model any, id string) error {
	res := b.DB(ctx).Where("id = ?", id).Delete(model)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// DeleteAll empties the table of model.
func (b Base) DeleteAll(ctx context.Context, model any) error {
	return b.DB(ctx).Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(model).Error
}

// UpsertByID inserts rows, overwriting those whose id already exists.
// rows must be a pointer to a non-empty slice.
func (b Base) UpsertByID(ctx context.Context, rows any) error {
	return b.DB(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		UpdateAll: true,
	}).Create(rows).Error
}

// IsNotFound reports whether err is gorm's missing record error.
func IsNotFound(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound)
}

// Transactor opens database transactions.
type Transactor interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// TxRunner hands fn a store bound to a fresh transaction.
type TxRunner[S any] struct {
	client Transactor
	bind   func(tx *gorm.DB) S
}

// NewTxRunner builds a runner that binds each transaction with bind.
func NewTxRunner[S any](client Transactor, bind func(tx *gorm.DB) S) *TxRunner[S] {
	return &TxRunner[S]{client: client, bind: bind}
}

// WithTx commits when fn returns nil and rolls back otherwise.
func (t *TxRunner[S]) WithTx(ctx context.Context, fn func(tx S) error) error {
	return t.client.WithTx(ctx, func(tx *gorm.DB) error {
		return fn(t.bind(tx))
	})
}
