package store

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/tbourn/go-wellness-backend/internal/domain"
)

// Record keys.
const (
	KeyDailyPrefix = "daily:"
	KeyProfile     = "user:profile"
	KeyJournal     = "journal"
	KeyFaceLatest  = "face:latest"
	KeyFaceHistory = "face:history"
)

// FaceHistoryLimit bounds face:history; older scans are evicted first.
const FaceHistoryLimit = 30

// DailyKey returns the key of the signal record for an ISO date.
func DailyKey(date string) string { return KeyDailyPrefix + date }

// Gateway gives typed access to one user's records. Missing or unparseable
// records read as absent; only transport failures are returned as errors.
type Gateway struct {
	kv    KV
	scope string
}

// NewGateway binds kv to scope.
func NewGateway(kv KV, scope string) *Gateway {
	return &Gateway{kv: kv, scope: scope}
}

// Tx runs fn with a gateway whose writes commit together.
func (g *Gateway) Tx(ctx context.Context, fn func(tx *Gateway) error) error {
	return g.kv.Tx(ctx, func(tx KV) error {
		return fn(&Gateway{kv: tx, scope: g.scope})
	})
}

// load decodes key into v and reports whether a usable value was found.
func (g *Gateway) load(ctx context.Context, key string, v any) (bool, error) {
	b, err := g.kv.Get(ctx, g.scope, key)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := json.Unmarshal(b, v); err != nil {
		log.Debug().Str("user_id", g.scope).Str("key", key).Err(err).Msg("discarding malformed record")
		return false, nil
	}
	return true, nil
}

func (g *Gateway) save(ctx context.Context, key string, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return g.kv.Set(ctx, g.scope, key, b)
}

// Daily returns the stored signal for date. A record whose embedded date
// disagrees with its key is treated as absent.
func (g *Gateway) Daily(ctx context.Context, date string) (domain.DailySignal, bool, error) {
	var d domain.DailySignal
	ok, err := g.load(ctx, DailyKey(date), &d)
	if err != nil || !ok {
		return domain.DailySignal{}, false, err
	}
	if d.Date != date {
		log.Debug().Str("user_id", g.scope).Str("date", date).Str("stored_date", d.Date).Msg("discarding stale daily record")
		return domain.DailySignal{}, false, nil
	}
	return d.Normalized(), true, nil
}

// PutDaily stores d under its own date.
func (g *Gateway) PutDaily(ctx context.Context, d domain.DailySignal) error {
	return g.save(ctx, DailyKey(d.Date), d)
}

// DailyDates lists the dates that have a stored signal record.
func (g *Gateway) DailyDates(ctx context.Context) ([]string, error) {
	keys, err := g.kv.Keys(ctx, g.scope, KeyDailyPrefix)
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(keys))
	for _, k := range keys {
		out = append(out, strings.TrimPrefix(k, KeyDailyPrefix))
	}
	return out, nil
}

// Profile returns the stored profile.
func (g *Gateway) Profile(ctx context.Context) (domain.UserProfile, bool, error) {
	var p domain.UserProfile
	ok, err := g.load(ctx, KeyProfile, &p)
	if err != nil || !ok {
		return domain.UserProfile{}, false, err
	}
	return p, true, nil
}

// PutProfile stores p.
func (g *Gateway) PutProfile(ctx context.Context, p domain.UserProfile) error {
	return g.save(ctx, KeyProfile, p)
}

// Journal returns the date → entry map, never nil.
func (g *Gateway) Journal(ctx context.Context) (map[string]domain.JournalEntry, error) {
	m := map[string]domain.JournalEntry{}
	ok, err := g.load(ctx, KeyJournal, &m)
	if err != nil {
		return nil, err
	}
	if !ok || m == nil {
		return map[string]domain.JournalEntry{}, nil
	}
	return m, nil
}

// PutJournal stores the whole journal map.
func (g *Gateway) PutJournal(ctx context.Context, m map[string]domain.JournalEntry) error {
	return g.save(ctx, KeyJournal, m)
}

// LatestFace returns the most recent face scan.
func (g *Gateway) LatestFace(ctx context.Context) (domain.FaceSignal, bool, error) {
	var f domain.FaceSignal
	ok, err := g.load(ctx, KeyFaceLatest, &f)
	if err != nil || !ok {
		return domain.FaceSignal{}, false, err
	}
	return f, true, nil
}

// PutLatestFace overwrites face:latest.
func (g *Gateway) PutLatestFace(ctx context.Context, f domain.FaceSignal) error {
	return g.save(ctx, KeyFaceLatest, f)
}

// FaceHistory returns stored scans oldest first.
func (g *Gateway) FaceHistory(ctx context.Context) ([]domain.FaceSignal, error) {
	var h []domain.FaceSignal
	if _, err := g.load(ctx, KeyFaceHistory, &h); err != nil {
		return nil, err
	}
	return h, nil
}

// AppendFaceHistory appends f and evicts the oldest entries beyond
// FaceHistoryLimit.
func (g *Gateway) AppendFaceHistory(ctx context.Context, f domain.FaceSignal) ([]domain.FaceSignal, error) {
	h, err := g.FaceHistory(ctx)
	if err != nil {
		return nil, err
	}
	h = append(h, f)
	if n := len(h) - FaceHistoryLimit; n > 0 {
		h = append([]domain.FaceSignal(nil), h[n:]...)
	}
	return h, g.save(ctx, KeyFaceHistory, h)
}
