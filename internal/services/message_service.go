// Package services – MessageService
//
// This file implements MessageService, which owns the lifecycle of companion
// messages. It validates the prompt, checks session ownership, hands the
// recent history and the user's wellness context to the chat gateway, relays
// the streamed reply, and persists the user message plus the assistant
// turn atomically. A cancelled exchange persists nothing.
//
// It also auto-generates a session title from the first user prompt when the
// session still has a placeholder title.
package services

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"gorm.io/gorm"

	"github.com/tbourn/go-wellness-backend/internal/chatstream"
	"github.com/tbourn/go-wellness-backend/internal/domain"
	"github.com/tbourn/go-wellness-backend/internal/repo"
	"github.com/tbourn/go-wellness-backend/internal/utils"
)

// Streamer is the chat gateway.
type Streamer interface {
	Stream(ctx context.Context, req chatstream.Request, onDelta func(string)) ([]chatstream.Message, error)
}

// MessageService relays prompts to the companion and stores the exchange.
type MessageService struct {
	DB       *gorm.DB
	Chat     Streamer
	Wellness ContextProvider

	// HistoryLimit is how many prior messages are sent upstream.
	HistoryLimit int
	// MaxPromptRunes rejects longer prompts when > 0.
	MaxPromptRunes int

	// Title generation config
	TitleLocale language.Tag
	TitleMaxLen int
}

// Reply is the outcome of one exchange. When the gateway failed, Assistant
// ends with the fallback notice and Err holds the upstream error.
type Reply struct {
	User      *domain.Message  `json:"user"`
	Assistant []domain.Message `json:"assistant"`
	Title     string           `json:"title,omitempty"`
	Err       error            `json:"-"`
}

// Failed reports whether the gateway failed.
func (r *Reply) Failed() bool { return r.Err != nil }

// Send validates prompt, streams the companion's answer through onDelta and
// stores both sides of the turn.
func (s *MessageService) Send(ctx context.Context, userID, sessionID, prompt string, onDelta func(string)) (*Reply, error) {
	ctx, span := otel.Tracer("services/MessageService").Start(ctx, "Send",
		trace.WithAttributes(
			attribute.String("session.id", sessionID),
			attribute.String("user.id", userID),
		),
	)
	defer span.End()

	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return nil, ErrEmptyPrompt
	}
	if s.MaxPromptRunes > 0 && utf8.RuneCountInString(prompt) > s.MaxPromptRunes {
		return nil, ErrTooLong
	}

	sess, err := repo.GetSession(ctx, s.DB, sessionID, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrSessionNotFound
		}
		return nil, err
	}

	history, err := repo.ListRecentMessages(ctx, s.DB, sessionID, s.HistoryLimit)
	if err != nil {
		return nil, err
	}
	req := chatstream.Request{Messages: make([]chatstream.Message, 0, len(history)+1)}
	for _, m := range history {
		if m.Failed {
			continue
		}
		req.Messages = append(req.Messages, chatstream.Message{Role: m.Role, Content: m.Content})
	}
	req.Messages = append(req.Messages, chatstream.Message{Role: chatstream.RoleUser, Content: prompt})

	if s.Wellness != nil {
		if cc, err := s.Wellness.ChatContext(ctx, userID); err != nil {
			log.Warn().Err(err).Str("user_id", userID).Msg("chat without wellness context")
		} else {
			req.Context = cc
		}
	}

	transcript, err := s.Chat.Stream(ctx, req, onDelta)
	var upstream *chatstream.UpstreamError
	switch {
	case ctx.Err() != nil:
		return nil, ctx.Err()
	case errors.As(err, &upstream):
		span.RecordError(err)
	case err != nil:
		return nil, err
	}

	now := time.Now().UTC()
	msgs := []domain.Message{{SessionID: sessionID, Role: domain.RoleUser, Content: prompt, CreatedAt: now}}
	for i, m := range transcript[min(len(req.Messages), len(transcript)):] {
		msgs = append(msgs, domain.Message{
			SessionID: sessionID,
			Role:      domain.RoleAssistant,
			Content:   m.Content,
			Failed:    m.Failed,
			CreatedAt: now.Add(time.Duration(i+1) * time.Millisecond),
		})
	}

	out := &Reply{Err: err}
	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := repo.InsertMessages(ctx, tx, msgs); err != nil {
			return err
		}
		if s.shouldAutoTitle(sess.Title) {
			if gen := s.clipTitle(s.generateTitleFromPrompt(prompt)); gen != "" {
				if uerr := tx.Model(&domain.Session{}).Where("id = ?", sessionID).Update("title", gen).Error; uerr == nil {
					out.Title = gen
				}
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	out.User, out.Assistant = &msgs[0], msgs[1:]
	span.SetAttributes(attribute.Int("assistant.messages", len(out.Assistant)), attribute.Bool("upstream.failed", out.Failed()))
	return out, nil
}

// ListPage returns paginated messages of a session owned by userID.
func (s *MessageService) ListPage(ctx context.Context, userID, sessionID string, page, pageSize int) ([]domain.Message, int64, error) {
	ctx, span := otel.Tracer("services/MessageService").Start(ctx, "ListPage",
		trace.WithAttributes(
			attribute.String("session.id", sessionID),
			attribute.Int("page", page),
			attribute.Int("page_size", pageSize),
		),
	)
	defer span.End()

	if page < 1 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = 20
	}
	offset := utils.Offset(page, pageSize)

	if _, err := repo.GetSession(ctx, s.DB, sessionID, userID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, 0, ErrSessionNotFound
		}
		return nil, 0, err
	}

	total, err := repo.CountMessages(ctx, s.DB, sessionID)
	if err != nil {
		return nil, 0, err
	}
	if total == 0 {
		return []domain.Message{}, 0, nil
	}
	items, err := repo.ListMessagesPage(ctx, s.DB, sessionID, offset, pageSize)
	return items, total, err
}

// shouldAutoTitle reports whether the current title is a placeholder.
func (s *MessageService) shouldAutoTitle(current string) bool {
	t := strings.TrimSpace(strings.ToLower(current))
	return t == "" || t == strings.ToLower(defaultTitleNew) || t == strings.ToLower(defaultTitleUntitled)
}

// generateTitleFromPrompt derives a short title from the prompt.
func (s *MessageService) generateTitleFromPrompt(prompt string) string {
	toks := titleWordRE.FindAllString(strings.ToLower(strings.TrimSpace(prompt)), -1)
	if len(toks) == 0 {
		return ""
	}
	caser := cases.Title(s.titleLocale())
	out := make([]string, 0, 6)
	for _, w := range toks {
		if _, skip := titleStopWords[w]; skip {
			continue
		}
		out = append(out, caser.String(w))
		if len(out) >= 6 {
			break
		}
	}
	return strings.Join(out, " ")
}

func (s *MessageService) clipTitle(title string) string {
	n := s.TitleMaxLen
	if n <= 0 {
		n = 60
	}
	return clipRunes(title, n)
}

func (s *MessageService) titleLocale() language.Tag {
	if s.TitleLocale == language.Und {
		return language.English
	}
	return s.TitleLocale
}

var titleWordRE = regexp.MustCompile(`[\p{L}]+[\p{N}]*`)

var titleStopWords = map[string]struct{}{
	"the": {}, "a": {}, "an": {}, "and": {}, "or": {}, "of": {}, "to": {}, "in": {},
	"is": {}, "are": {}, "for": {}, "on": {}, "with": {}, "by": {}, "from": {},
	"at": {}, "as": {}, "that": {}, "this": {}, "it": {}, "be": {}, "was": {}, "were": {},
	"i": {}, "im": {}, "me": {}, "my": {}, "so": {}, "just": {}, "really": {},
	"feel": {}, "feeling": {}, "been": {}, "have": {}, "am": {},
}
