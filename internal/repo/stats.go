// Package repo implements the data persistence layer for domain entities.
// This file provides small aggregate queries used for ETag generation in the
// HTTP layer.
package repo

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/tbourn/go-wellness-backend/internal/domain"
)

// SessionsStats returns the number of sessions owned by userID and the
// greatest UpdatedAt among them (nil when there are none).
func SessionsStats(ctx context.Context, db *gorm.DB, userID string) (int64, *time.Time, error) {
	return latest(db.WithContext(ctx).Model(&domain.Session{}).Where("user_id = ?", userID))
}

// MessagesStats returns the number of messages in a session and the greatest
// UpdatedAt among them (nil when there are none).
func MessagesStats(ctx context.Context, db *gorm.DB, sessionID string) (int64, *time.Time, error) {
	return latest(db.WithContext(ctx).Model(&domain.Message{}).Where("session_id = ?", sessionID))
}

func latest(q *gorm.DB) (count int64, maxUpdatedAt *time.Time, err error) {
	if err = q.Session(&gorm.Session{}).Count(&count).Error; err != nil {
		return 0, nil, err
	}
	if count == 0 {
		return 0, nil, nil
	}
	// ORDER BY instead of MAX(): SQLite returns MAX(datetime) as TEXT.
	var row struct {
		UpdatedAt time.Time
	}
	if err = q.Session(&gorm.Session{}).Select("updated_at").Order("updated_at DESC").Limit(1).Scan(&row).Error; err != nil {
		return 0, nil, err
	}
	return count, &row.UpdatedAt, nil
}
