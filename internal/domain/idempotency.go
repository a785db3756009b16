package domain

import (
	"time"

	"gorm.io/datatypes"
)

// Idempotency records the response of a completed write keyed by
// (user_id, scope, key), so a retried request is answered from the stored
// snapshot instead of being applied twice. Scope names the operation
// (e.g. "activities" or a session id).
type Idempotency struct {
	ID        string         `gorm:"type:TEXT NOT NULL;primaryKey"`
	UserID    string         `gorm:"type:TEXT NOT NULL;uniqueIndex:ux_user_scope_key,priority:1"`
	Scope     string         `gorm:"type:TEXT NOT NULL;uniqueIndex:ux_user_scope_key,priority:2"`
	Key       string         `gorm:"type:TEXT NOT NULL;uniqueIndex:ux_user_scope_key,priority:3"`
	Status    int            `gorm:"type:INTEGER NOT NULL"`
	Response  datatypes.JSON `gorm:"not null"`
	CreatedAt time.Time      `gorm:"type:DATETIME NOT NULL;autoCreateTime"`
	ExpiresAt time.Time      `gorm:"type:DATETIME NOT NULL;index"`
}

// TableName implements the GORM tabler interface.
func (Idempotency) TableName() string { return "idempotency" }
