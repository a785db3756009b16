// Package wellness owns per-user wellness state: today's signal record,
// the derived indices, the profile, the journal and face-scan results.
//
// Every read-modify-write of one user's records runs under that user's
// lock, and every write that changes a contributing signal persists the
// recomputed indices in the same store transaction.
package wellness

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/tbourn/go-wellness-backend/internal/catalog"
	"github.com/tbourn/go-wellness-backend/internal/domain"
	"github.com/tbourn/go-wellness-backend/internal/index"
	"github.com/tbourn/go-wellness-backend/internal/observability"
	"github.com/tbourn/go-wellness-backend/internal/store"
)

// Service is safe for concurrent use.
type Service struct {
	KV       store.KV
	Now      func() time.Time
	Location *time.Location

	mu    sync.Mutex
	locks map[string]*userLock
}

// userLock is dropped from Service.locks once nobody holds or waits on it.
type userLock struct {
	sync.Mutex
	refs int
}

// NewService returns a Service that reckons calendar dates in loc.
func NewService(kv store.KV, loc *time.Location) *Service {
	if loc == nil {
		loc = time.UTC
	}
	return &Service{KV: kv, Now: time.Now, Location: loc, locks: map[string]*userLock{}}
}

// Snapshot is today's record with the indices currently in force.
// Without a profile the indices are the plain formula result.
type Snapshot struct {
	Today      domain.DailySignal `json:"today"`
	Indices    domain.Indices     `json:"indices"`
	Components index.Components   `json:"components"`
	HasProfile bool               `json:"has_profile"`
}

func (s *Service) lock(userID string) func() {
	s.mu.Lock()
	if s.locks == nil {
		s.locks = map[string]*userLock{}
	}
	l, ok := s.locks[userID]
	if !ok {
		l = &userLock{}
		s.locks[userID] = l
	}
	l.refs++
	s.mu.Unlock()

	l.Lock()
	return func() {
		l.Unlock()
		s.mu.Lock()
		if l.refs--; l.refs == 0 {
			delete(s.locks, userID)
		}
		s.mu.Unlock()
	}
}

// heldLocks is the number of users with a live lock entry.
func (s *Service) heldLocks() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.locks)
}

func (s *Service) now() time.Time {
	if s.Now == nil {
		return time.Now()
	}
	return s.Now()
}

// TodayDate is the current calendar date in the service location.
func (s *Service) TodayDate() string { return domain.DateOf(s.now(), s.Location) }

func (s *Service) gateway(userID string) *store.Gateway { return store.NewGateway(s.KV, userID) }

func span(ctx context.Context, op, userID string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	attrs = append(attrs, attribute.String("user_id", userID))
	return otel.Tracer("services/wellness").Start(ctx, op, trace.WithAttributes(attrs...))
}

func (s *Service) loadToday(ctx context.Context, g *store.Gateway) (domain.DailySignal, bool, error) {
	date := s.TodayDate()
	d, ok, err := g.Daily(ctx, date)
	if err != nil {
		return domain.DailySignal{}, false, err
	}
	if !ok {
		return domain.NewDailySignal(date), false, nil
	}
	return d, true, nil
}

// ensureToday loads today's record and creates it on first access of the
// day. A fresh record also resets the persisted indices to the formula
// result, dropping the previous day's signals and boosts. It reports whether
// the record was created. Callers hold the user's lock and pass a
// transactional gateway.
func (s *Service) ensureToday(ctx context.Context, g *store.Gateway) (domain.DailySignal, bool, error) {
	d, existed, err := s.loadToday(ctx, g)
	if err != nil || existed {
		return d, false, err
	}
	if err := g.PutDaily(ctx, d); err != nil {
		return domain.DailySignal{}, false, err
	}
	prof, ok, err := g.Profile(ctx)
	if err != nil {
		return domain.DailySignal{}, false, err
	}
	if ok {
		prof.Indices = index.Compute(d)
		prof.UpdatedAt = s.now()
		if err := g.PutProfile(ctx, prof); err != nil {
			return domain.DailySignal{}, false, err
		}
	}
	return d, true, nil
}

// current is today's snapshot after any day rollover, plus the profile.
func (s *Service) current(ctx context.Context, userID string) (Snapshot, domain.UserProfile, error) {
	defer s.lock(userID)()

	var (
		snap    Snapshot
		prof    domain.UserProfile
		created bool
	)
	err := s.gateway(userID).Tx(ctx, func(g *store.Gateway) error {
		d, c, err := s.ensureToday(ctx, g)
		if err != nil {
			return err
		}
		created = c
		p, ok, err := g.Profile(ctx)
		if err != nil {
			return err
		}
		prof, snap = p, snapshot(d, p, ok)
		return nil
	})
	if err != nil {
		return Snapshot{}, domain.UserProfile{}, err
	}
	if created {
		observability.IndexRecomputes.WithLabelValues("rollover").Inc()
	}
	return snap, prof, nil
}

func snapshot(d domain.DailySignal, prof domain.UserProfile, hasProfile bool) Snapshot {
	snap := Snapshot{Today: d, Components: index.Score(d), HasProfile: hasProfile, Indices: index.Compute(d)}
	if hasProfile {
		snap.Indices = prof.Indices
	}
	return snap
}

// Today returns today's record, creating it with defaults on first access
// of the day and recomputing the indices from it. Records from earlier days
// stay in place for the chart.
func (s *Service) Today(ctx context.Context, userID string) (Snapshot, error) {
	ctx, sp := span(ctx, "Today", userID)
	defer sp.End()

	snap, _, err := s.current(ctx, userID)
	if err != nil {
		sp.RecordError(err)
		return Snapshot{}, err
	}
	return snap, nil
}

// update applies change to today's record, recomputes the indices with the
// formula, lets post adjust them (boosts) and persists record and profile
// together.
func (s *Service) update(ctx context.Context, userID, trigger string, change func(*domain.DailySignal), post func(domain.Indices) domain.Indices) (Snapshot, error) {
	defer s.lock(userID)()

	var snap Snapshot
	err := s.gateway(userID).Tx(ctx, func(g *store.Gateway) error {
		d, _, err := s.ensureToday(ctx, g)
		if err != nil {
			return err
		}
		change(&d)
		d = d.Normalized()
		if err := g.PutDaily(ctx, d); err != nil {
			return err
		}

		ix := index.Compute(d)
		if post != nil {
			ix = post(ix)
		}
		prof, ok, err := g.Profile(ctx)
		if err != nil {
			return err
		}
		if ok {
			prof.Indices = ix
			prof.UpdatedAt = s.now()
			if err := g.PutProfile(ctx, prof); err != nil {
				return err
			}
		}
		snap = Snapshot{Today: d, Indices: ix, Components: index.Score(d), HasProfile: ok}
		return nil
	})
	if err != nil {
		return Snapshot{}, err
	}
	observability.IndexRecomputes.WithLabelValues(trigger).Inc()
	log.Debug().Str("user_id", userID).Str("trigger", trigger).
		Int("happiness", snap.Indices.Happiness).Int("health", snap.Indices.Health).Msg("indices updated")
	return snap, nil
}

// RecordActivity adds minutes to today's accumulator for kind.
func (s *Service) RecordActivity(ctx context.Context, userID string, kind domain.Activity, minutes int) (Snapshot, error) {
	ctx, sp := span(ctx, "RecordActivity", userID,
		attribute.String("activity", string(kind)), attribute.Int("minutes", minutes))
	defer sp.End()

	if !kind.Valid() {
		return Snapshot{}, ErrInvalidActivity
	}
	if minutes < 0 || minutes > domain.MaxSessionMinutes {
		return Snapshot{}, ErrInvalidMinutes
	}
	return s.update(ctx, userID, "activity", func(d *domain.DailySignal) { d.AddMinutes(kind, minutes) }, nil)
}

// AddWater adds one glass. At the cap it is a no-op that still succeeds.
func (s *Service) AddWater(ctx context.Context, userID string) (Snapshot, error) {
	ctx, sp := span(ctx, "AddWater", userID)
	defer sp.End()
	return s.update(ctx, userID, "water", func(d *domain.DailySignal) {
		if d.WaterIntake < domain.MaxWater {
			d.WaterIntake++
		}
	}, nil)
}

// SetSleepHours overwrites last night's sleep, clamped to [0,12].
func (s *Service) SetSleepHours(ctx context.Context, userID string, hours float64) (Snapshot, error) {
	ctx, sp := span(ctx, "SetSleepHours", userID, attribute.Float64("hours", hours))
	defer sp.End()
	return s.update(ctx, userID, "sleep", func(d *domain.DailySignal) { d.SleepHours = hours }, nil)
}

// SetMood overwrites the self-reported mood, clamped to [1,5].
func (s *Service) SetMood(ctx context.Context, userID string, mood int) (Snapshot, error) {
	ctx, sp := span(ctx, "SetMood", userID, attribute.Int("mood", mood))
	defer sp.End()
	return s.update(ctx, userID, "mood", func(d *domain.DailySignal) { d.Mood = mood }, nil)
}

// PoseResult reports a completed pose and the boost applied.
type PoseResult struct {
	Snapshot
	Pose catalog.Pose `json:"pose"`
}

// CompletePose records one yoga minute for a finished hold, recomputes the
// indices and then adds the pose's health boost on top.
func (s *Service) CompletePose(ctx context.Context, userID, poseID string) (PoseResult, error) {
	ctx, sp := span(ctx, "CompletePose", userID, attribute.String("pose_id", poseID))
	defer sp.End()

	pose, ok := catalog.PoseByID(poseID)
	if !ok {
		return PoseResult{}, ErrUnknownPose
	}
	snap, err := s.update(ctx, userID, "pose",
		func(d *domain.DailySignal) { d.AddMinutes(domain.ActivityYoga, 1) },
		func(ix domain.Indices) domain.Indices { return index.ApplyBoost(ix, pose.HealthBoost) },
	)
	if err != nil {
		sp.RecordError(err)
		return PoseResult{}, err
	}
	return PoseResult{Snapshot: snap, Pose: pose}, nil
}
