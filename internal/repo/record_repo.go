package repo

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/tbourn/go-wellness-backend/internal/domain"
)

// GetRecord returns the raw JSON stored under (userID, key), or ErrNotFound.
func GetRecord(ctx context.Context, db *gorm.DB, userID, key string) ([]byte, error) {
	var rec domain.Record
	err := db.WithContext(ctx).
		Where("user_id = ? AND key = ?", userID, key).
		First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return []byte(rec.Value), nil
}

// PutRecord upserts value under (userID, key).
func PutRecord(ctx context.Context, db *gorm.DB, userID, key string, value []byte) error {
	now := time.Now().UTC()
	rec := domain.Record{
		ID:        uuid.NewString(),
		UserID:    userID,
		Key:       key,
		Value:     datatypes.JSON(value),
		CreatedAt: now,
		UpdatedAt: now,
	}
	return db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}, {Name: "key"}},
			DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
		}).
		Create(&rec).Error
}

// ListRecordKeys returns the keys stored for userID that start with prefix,
// in ascending order.
func ListRecordKeys(ctx context.Context, db *gorm.DB, userID, prefix string) ([]string, error) {
	var keys []string
	err := db.WithContext(ctx).
		Model(&domain.Record{}).
		Where("user_id = ? AND key LIKE ?", userID, prefix+"%").
		Order("key ASC").
		Pluck("key", &keys).Error
	return keys, err
}
