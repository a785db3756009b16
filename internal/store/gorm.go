package store

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/tbourn/go-wellness-backend/internal/repo"
)

// Gorm stores records in the kv_records table.
type Gorm struct {
	DB *gorm.DB
}

// NewGorm returns a KV backed by db.
func NewGorm(db *gorm.DB) *Gorm { return &Gorm{DB: db} }

// Get implements KV.
func (g *Gorm) Get(ctx context.Context, scope, key string) ([]byte, error) {
	b, err := repo.GetRecord(ctx, g.DB, scope, key)
	if errors.Is(err, repo.ErrNotFound) {
		return nil, ErrNotFound
	}
	return b, err
}

// Set implements KV.
func (g *Gorm) Set(ctx context.Context, scope, key string, value []byte) error {
	return repo.PutRecord(ctx, g.DB, scope, key, value)
}

// Keys implements KV.
func (g *Gorm) Keys(ctx context.Context, scope, prefix string) ([]string, error) {
	return repo.ListRecordKeys(ctx, g.DB, scope, prefix)
}

// Tx implements KV with a database transaction.
func (g *Gorm) Tx(ctx context.Context, fn func(tx KV) error) error {
	return g.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&Gorm{DB: tx})
	})
}
