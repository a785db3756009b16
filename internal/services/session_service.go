// Package services – SessionService
//
// This file implements the SessionService, which manages companion sessions.
// It validates and normalizes titles, enforces ownership rules, seeds every
// new session with a greeting built from the user's wellness state, and
// coordinates repository operations for creating, listing (with pagination),
// and renaming sessions. Automatic titling happens in MessageService on the
// first user message.
package services

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/tbourn/go-wellness-backend/internal/domain"
	"github.com/tbourn/go-wellness-backend/internal/repo"
	"github.com/tbourn/go-wellness-backend/internal/utils"
	"github.com/tbourn/go-wellness-backend/internal/wellness"
)

// CompanionName is how the assistant introduces itself.
const CompanionName = "Ruhi"

const (
	defaultTitleNew      = "New chat"
	defaultTitleUntitled = "Untitled"
)

// ContextProvider supplies the wellness state the companion works from.
type ContextProvider interface {
	ChatContext(ctx context.Context, userID string) (wellness.ChatContext, error)
}

// SessionRepo defines the persistence contract required by SessionService.
type SessionRepo interface {
	CreateSession(ctx context.Context, db *gorm.DB, userID, title string) (*domain.Session, error)
	GetSession(ctx context.Context, db *gorm.DB, id, userID string) (*domain.Session, error)
	UpdateSessionTitle(ctx context.Context, db *gorm.DB, id, userID, title string) error
	CountSessions(ctx context.Context, db *gorm.DB, userID string) (int64, error)
	ListSessionsPage(ctx context.Context, db *gorm.DB, userID string, offset, limit int) ([]domain.Session, error)
}

// GormSessionRepo binds SessionRepo to the repo package.
type GormSessionRepo struct{}

func (GormSessionRepo) CreateSession(ctx context.Context, db *gorm.DB, userID, title string) (*domain.Session, error) {
	return repo.CreateSession(ctx, db, userID, title)
}

func (GormSessionRepo) GetSession(ctx context.Context, db *gorm.DB, id, userID string) (*domain.Session, error) {
	return repo.GetSession(ctx, db, id, userID)
}

func (GormSessionRepo) UpdateSessionTitle(ctx context.Context, db *gorm.DB, id, userID, title string) error {
	return repo.UpdateSessionTitle(ctx, db, id, userID, title)
}

func (GormSessionRepo) CountSessions(ctx context.Context, db *gorm.DB, userID string) (int64, error) {
	return repo.CountSessions(ctx, db, userID)
}

func (GormSessionRepo) ListSessionsPage(ctx context.Context, db *gorm.DB, userID string, offset, limit int) ([]domain.Session, error) {
	return repo.ListSessionsPage(ctx, db, userID, offset, limit)
}

// SessionService provides session-level operations. It enforces title rules
// and ownership constraints.
type SessionService struct {
	// DB is the GORM handle used for persistence.
	DB *gorm.DB
	// Repo is the session repository used by this service.
	Repo SessionRepo
	// Wellness feeds the greeting; nil yields a generic one.
	Wellness ContextProvider

	// TitleMaxLen caps stored titles by rune length.
	TitleMaxLen int
}

// NewSessionService constructs a SessionService with default title handling.
func NewSessionService(db *gorm.DB, r SessionRepo, w ContextProvider) *SessionService {
	return &SessionService{DB: db, Repo: r, Wellness: w, TitleMaxLen: 60}
}

// Created is a new session together with its greeting.
type Created struct {
	Session  *domain.Session `json:"session"`
	Greeting *domain.Message `json:"greeting"`
}

// Create inserts a new session owned by userID and stores the companion's
// greeting as its first message, in one transaction.
func (s *SessionService) Create(ctx context.Context, userID, title string) (*Created, error) {
	title = normalizeTitle(title)
	if title == "" {
		title = defaultTitleNew
	}
	greeting := s.greet(ctx, userID)

	var out Created
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		sess, err := s.Repo.CreateSession(ctx, tx, userID, s.clip(title))
		if err != nil {
			return err
		}
		msgs := []domain.Message{{
			SessionID: sess.ID,
			Role:      domain.RoleAssistant,
			Content:   greeting,
			CreatedAt: time.Now().UTC(),
		}}
		if err := repo.InsertMessages(ctx, tx, msgs); err != nil {
			return err
		}
		out = Created{Session: sess, Greeting: &msgs[0]}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (s *SessionService) greet(ctx context.Context, userID string) string {
	if s.Wellness == nil {
		return Greeting(wellness.ChatContext{}, false)
	}
	cc, err := s.Wellness.ChatContext(ctx, userID)
	if err != nil {
		log.Warn().Err(err).Str("user_id", userID).Msg("greeting without wellness context")
		return Greeting(wellness.ChatContext{}, false)
	}
	return Greeting(cc, true)
}

// Greeting builds the opening line from today's mood and activity.
func Greeting(cc wellness.ChatContext, hasToday bool) string {
	var b strings.Builder
	if cc.Name != "" {
		b.WriteString("Hey " + cc.Name + "! 💚 ")
	} else {
		b.WriteString("Hey there! 💚 ")
	}
	if hasToday {
		switch {
		case cc.Today.Mood <= 2:
			b.WriteString("I sense you might be having a tough day. I'm here for you. ")
		case cc.Today.Mood >= 4:
			b.WriteString("You seem to be in good spirits today! That's wonderful. ")
		}
		if cc.Today.MeditationMinutes > 0 || cc.Today.YogaMinutes > 0 {
			b.WriteString("I see you've been taking care of yourself with some wellness activities. Great job! ")
		}
	}
	b.WriteString("How are you feeling right now? I'm " + CompanionName + ", your wellness companion - here to listen and support you. 🌿")
	return b.String()
}

// ListPage returns a page of sessions for a user and the total count.
func (s *SessionService) ListPage(ctx context.Context, userID string, page, pageSize int) ([]domain.Session, int64, error) {
	if page < 1 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = 20
	}
	offset := utils.Offset(page, pageSize)

	total, err := s.Repo.CountSessions(ctx, s.DB, userID)
	if err != nil {
		return nil, 0, err
	}
	if total == 0 {
		return []domain.Session{}, 0, nil
	}

	items, err := s.Repo.ListSessionsPage(ctx, s.DB, userID, offset, pageSize)
	return items, total, err
}

// UpdateTitle renames a session owned by userID. A blank title becomes
// "Untitled".
func (s *SessionService) UpdateTitle(ctx context.Context, userID, sessionID, title string) error {
	title = normalizeTitle(title)
	if title == "" {
		title = defaultTitleUntitled
	}
	if _, err := s.Repo.GetSession(ctx, s.DB, sessionID, userID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrSessionNotFound
		}
		return err
	}
	return s.Repo.UpdateSessionTitle(ctx, s.DB, sessionID, userID, s.clip(title))
}

func (s *SessionService) clip(title string) string {
	return clipRunes(title, s.TitleMaxLen)
}

func clipRunes(s string, n int) string {
	if n > 0 && utf8.RuneCountInString(s) > n {
		return string([]rune(s)[:n])
	}
	return s
}

// normalizeTitle trims whitespace and collapses runs of it to one space.
func normalizeTitle(s string) string {
	return whitespaceRE.ReplaceAllString(strings.TrimSpace(s), " ")
}

var whitespaceRE = regexp.MustCompile(`\s+`)
