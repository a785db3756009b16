// Package domain defines the persistence models for companion chat sessions,
// their messages, and the generic per-user record store that backs the
// wellness state. These types are mapped with GORM.
package domain

import (
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Session is a companion conversation owned by a user. A fresh session is
// seeded with a greeting built from the user's current wellness state.
type Session struct {
	ID        string         `json:"id"         gorm:"type:char(36);primaryKey"`
	UserID    string         `json:"user_id"    gorm:"type:varchar(64);not null;index:idx_user_sessions"`
	Title     string         `json:"title"      gorm:"type:varchar(255);not null;default:'New chat'"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `json:"-"          gorm:"index"`
}

// TableName returns the database table name for Session.
func (Session) TableName() string { return "sessions" }

// Message roles.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is a single utterance within a session, authored by the user or
// the assistant. Failed is set on assistant turns that carry a fallback
// notice instead of model output.
type Message struct {
	ID        string         `json:"id"         gorm:"type:char(36);primaryKey"`
	SessionID string         `json:"session_id" gorm:"type:char(36);not null;index:idx_session_msgs,priority:1"`
	Role      string         `json:"role"       gorm:"type:varchar(16);not null;check:role IN ('user','assistant')"`
	Content   string         `json:"content"    gorm:"type:text;not null"`
	Failed    bool           `json:"failed,omitempty" gorm:"not null;default:false"`
	CreatedAt time.Time      `json:"created_at" gorm:"index:idx_session_msgs,priority:2"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `json:"-"          gorm:"index"`

	Session Session `json:"-" gorm:"foreignKey:SessionID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

// TableName returns the database table name for Message.
func (Message) TableName() string { return "messages" }

// Record is one JSON value in the key-value store, scoped by user.
// Keys are unique per user; writes upsert.
type Record struct {
	ID        string         `json:"id"         gorm:"type:char(36);primaryKey"`
	UserID    string         `json:"user_id"    gorm:"type:varchar(64);not null;uniqueIndex:ux_record_user_key,priority:1"`
	Key       string         `json:"key"        gorm:"type:varchar(128);not null;uniqueIndex:ux_record_user_key,priority:2"`
	Value     datatypes.JSON `json:"value"      gorm:"not null"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
}

// TableName returns the database table name for Record.
func (Record) TableName() string { return "kv_records" }
