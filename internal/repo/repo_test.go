package repo

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/tbourn/go-wellness-backend/internal/domain"
)

func newRepoDB(t *testing.T, migrate ...any) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:repo_%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	if len(migrate) > 0 {
		if err := db.AutoMigrate(migrate...); err != nil {
			t.Fatalf("automigrate: %v", err)
		}
	}
	return db
}

func TestOpenSQLite_ErrorOnMissingDir(t *testing.T) {
	bad := filepath.Join(t.TempDir(), "nope", "app.db")
	db, err := OpenSQLite(bad)
	if err == nil || db != nil {
		t.Fatalf("expected error, got db=%v err=%v", db, err)
	}
}

func TestOpenSQLite_PragmasAndMigrate(t *testing.T) {
	db, err := OpenSQLite(filepath.Join(t.TempDir(), "app.db"))
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	sqlDB, _ := db.DB()
	t.Cleanup(func() { _ = sqlDB.Close() })

	var mode string
	if err := db.Raw("PRAGMA journal_mode;").Row().Scan(&mode); err != nil {
		t.Fatalf("journal_mode: %v", err)
	}
	if strings.ToLower(mode) != "wal" {
		t.Fatalf("journal_mode = %q; want wal", mode)
	}
	if err := AutoMigrate(db); err != nil {
		t.Fatalf("AutoMigrate: %v", err)
	}
	for _, m := range []any{&domain.Session{}, &domain.Message{}, &domain.Record{}, &domain.Idempotency{}} {
		if !db.Migrator().HasTable(m) {
			t.Fatalf("missing table for %T", m)
		}
	}
	if err := Instrument(db); err != nil {
		t.Fatalf("Instrument: %v", err)
	}
}

func TestSessions_CRUDAndOwnership(t *testing.T) {
	ctx := context.Background()
	db := newRepoDB(t, &domain.Session{})

	s, err := CreateSession(ctx, db, "u1", "Morning check-in")
	if err != nil {
		t.Fatalf("CreateSession: %v", err)
	}
	if _, err := GetSession(ctx, db, s.ID, "u2"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("other user must not see session, err=%v", err)
	}
	if err := UpdateSessionTitle(ctx, db, s.ID, "u2", "x"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("rename by non-owner should be ErrNotFound, got %v", err)
	}
	if err := UpdateSessionTitle(ctx, db, s.ID, "u1", "Evening"); err != nil {
		t.Fatalf("UpdateSessionTitle: %v", err)
	}
	got, err := GetSession(ctx, db, s.ID, "u1")
	if err != nil || got.Title != "Evening" {
		t.Fatalf("GetSession = %+v, %v", got, err)
	}

	for i := 0; i < 3; i++ {
		if _, err := CreateSession(ctx, db, "u1", fmt.Sprintf("s%d", i)); err != nil {
			t.Fatalf("seed: %v", err)
		}
	}
	n, _ := CountSessions(ctx, db, "u1")
	if n != 4 {
		t.Fatalf("CountSessions = %d; want 4", n)
	}
	page, err := ListSessionsPage(ctx, db, "u1", 0, 2)
	if err != nil || len(page) != 2 {
		t.Fatalf("ListSessionsPage len=%d err=%v", len(page), err)
	}
}

func TestMessages_RecentIsChronological(t *testing.T) {
	ctx := context.Background()
	db := newRepoDB(t, &domain.Session{}, &domain.Message{})
	s, _ := CreateSession(ctx, db, "u1", "t")

	base := time.Date(2026, 10, 1, 9, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		m := domain.Message{
			ID: uuid.NewString(), SessionID: s.ID, Role: domain.RoleUser,
			Content: fmt.Sprintf("m%d", i), CreatedAt: base.Add(time.Duration(i) * time.Minute),
		}
		if err := db.Create(&m).Error; err != nil {
			t.Fatalf("seed: %v", err)
		}
	}
	recent, err := ListRecentMessages(ctx, db, s.ID, 3)
	if err != nil {
		t.Fatalf("ListRecentMessages: %v", err)
	}
	if len(recent) != 3 || recent[0].Content != "m2" || recent[2].Content != "m4" {
		t.Fatalf("unexpected window: %+v", recent)
	}
	total, err := CountMessages(ctx, db, s.ID)
	if err != nil || total != 5 {
		t.Fatalf("CountMessages = %d, %v", total, err)
	}
	page, _ := ListMessagesPage(ctx, db, s.ID, 4, 10)
	if len(page) != 1 || page[0].Content != "m4" {
		t.Fatalf("last page = %+v", page)
	}
	if _, err := GetMessage(ctx, db, page[0].ID); err != nil {
		t.Fatalf("GetMessage: %v", err)
	}
}

func TestInsertMessages_KeepsOrderAndIDs(t *testing.T) {
	ctx := context.Background()
	db := newRepoDB(t, &domain.Session{}, &domain.Message{})
	s, _ := CreateSession(ctx, db, "u1", "t")

	base := time.Date(2026, 10, 1, 9, 0, 0, 0, time.UTC)
	msgs := []domain.Message{
		{SessionID: s.ID, Role: domain.RoleUser, Content: "q", CreatedAt: base},
		{SessionID: s.ID, Role: domain.RoleAssistant, Content: "a", CreatedAt: base.Add(time.Millisecond)},
	}
	if err := InsertMessages(ctx, db, msgs); err != nil {
		t.Fatalf("InsertMessages: %v", err)
	}
	if msgs[0].ID == "" || msgs[1].ID == "" {
		t.Fatalf("ids not generated: %+v", msgs)
	}
	got, _ := ListRecentMessages(ctx, db, s.ID, 0)
	if len(got) != 2 || got[0].Content != "q" || got[1].Content != "a" {
		t.Fatalf("order = %+v", got)
	}
	if err := InsertMessages(ctx, db, nil); err != nil {
		t.Fatalf("empty insert: %v", err)
	}
}

func TestCountMessages_NoTable(t *testing.T) {
	db := newRepoDB(t)
	if _, err := CountMessages(context.Background(), db, "x"); err == nil {
		t.Fatalf("expected error without messages table")
	}
}

func TestRecords_UpsertAndList(t *testing.T) {
	ctx := context.Background()
	db := newRepoDB(t, &domain.Record{})

	if _, err := GetRecord(ctx, db, "u1", "journal"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := PutRecord(ctx, db, "u1", "daily:2026-10-14", []byte(`{"water_intake":1}`)); err != nil {
		t.Fatalf("PutRecord: %v", err)
	}
	if err := PutRecord(ctx, db, "u1", "daily:2026-10-14", []byte(`{"water_intake":2}`)); err != nil {
		t.Fatalf("PutRecord upsert: %v", err)
	}
	if err := PutRecord(ctx, db, "u1", "daily:2026-10-15", []byte(`{}`)); err != nil {
		t.Fatalf("PutRecord: %v", err)
	}
	b, err := GetRecord(ctx, db, "u1", "daily:2026-10-14")
	if err != nil || string(b) != `{"water_intake":2}` {
		t.Fatalf("GetRecord = %s, %v", b, err)
	}
	var rows int64
	db.Model(&domain.Record{}).Where("user_id = ?", "u1").Count(&rows)
	if rows != 2 {
		t.Fatalf("upsert must not duplicate rows, got %d", rows)
	}
	keys, err := ListRecordKeys(ctx, db, "u1", "daily:")
	if err != nil || len(keys) != 2 || keys[0] != "daily:2026-10-14" {
		t.Fatalf("ListRecordKeys = %v, %v", keys, err)
	}
}

func TestIdempotency_CreateGetDuplicateExpire(t *testing.T) {
	ctx := context.Background()
	db := newRepoDB(t, &domain.Idempotency{})
	now := time.Now().UTC()

	if _, err := GetIdempotency(ctx, db, "u1", "", "k", now); !errors.Is(err, ErrNotFound) {
		t.Fatalf("blank scope should be ErrNotFound")
	}
	rec, err := CreateIdempotency(ctx, db, "u1", "activities", "k1", 200, []byte(`{"ok":true}`), time.Hour)
	if err != nil {
		t.Fatalf("CreateIdempotency: %v", err)
	}
	got, err := GetIdempotency(ctx, db, "u1", "activities", "k1", now)
	if err != nil || got.ID != rec.ID || string(got.Response) != `{"ok":true}` {
		t.Fatalf("GetIdempotency = %+v, %v", got, err)
	}
	if _, err := CreateIdempotency(ctx, db, "u1", "activities", "k1", 200, []byte(`{}`), time.Hour); !errors.Is(err, ErrDuplicate) {
		t.Fatalf("expected ErrDuplicate, got %v", err)
	}
	if _, err := GetIdempotency(ctx, db, "u1", "activities", "k1", now.Add(2*time.Hour)); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expired record should be ErrNotFound, got %v", err)
	}
	n, err := PurgeExpiredIdempotency(ctx, db, now.Add(2*time.Hour))
	if err != nil || n != 1 {
		t.Fatalf("PurgeExpiredIdempotency = %d, %v", n, err)
	}
}

func TestIdempotency_ExpiredKeyIsReusable(t *testing.T) {
	ctx := context.Background()
	db := newRepoDB(t, &domain.Idempotency{})

	if _, err := CreateIdempotency(ctx, db, "u1", "water", "k", 201, []byte(`{"n":1}`), -time.Minute); err != nil {
		t.Fatalf("create expired: %v", err)
	}
	fresh, err := CreateIdempotency(ctx, db, "u1", "water", "k", 201, []byte(`{"n":2}`), time.Hour)
	if err != nil {
		t.Fatalf("expired snapshot should be replaced, got %v", err)
	}
	got, err := GetIdempotency(ctx, db, "u1", "water", "k", time.Now().UTC())
	if err != nil || got.ID != fresh.ID || string(got.Response) != `{"n":2}` {
		t.Fatalf("GetIdempotency = %+v, %v", got, err)
	}
	var rows int64
	db.Model(&domain.Idempotency{}).Count(&rows)
	if rows != 1 {
		t.Fatalf("rows = %d, want 1", rows)
	}
}

func TestStats_EmptyAndPopulated(t *testing.T) {
	ctx := context.Background()
	db := newRepoDB(t, &domain.Session{}, &domain.Message{})

	n, ts, err := SessionsStats(ctx, db, "u1")
	if err != nil || n != 0 || ts != nil {
		t.Fatalf("empty stats = %d %v %v", n, ts, err)
	}
	s, _ := CreateSession(ctx, db, "u1", "a")
	if _, err := CreateMessage(ctx, db, s.ID, domain.RoleUser, "hi", false); err != nil {
		t.Fatalf("CreateMessage: %v", err)
	}
	n, ts, err = SessionsStats(ctx, db, "u1")
	if err != nil || n != 1 || ts == nil {
		t.Fatalf("session stats = %d %v %v", n, ts, err)
	}
	n, ts, err = MessagesStats(ctx, db, s.ID)
	if err != nil || n != 1 || ts == nil {
		t.Fatalf("message stats = %d %v %v", n, ts, err)
	}
}
