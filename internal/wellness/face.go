package wellness

import (
	"context"

	"go.opentelemetry.io/otel/attribute"

	"github.com/tbourn/go-wellness-backend/internal/domain"
	"github.com/tbourn/go-wellness-backend/internal/index"
	"github.com/tbourn/go-wellness-backend/internal/observability"
	"github.com/tbourn/go-wellness-backend/internal/store"
)

// FaceScanResult is a stored scan with the indices after its delta.
type FaceScanResult struct {
	Scan       domain.FaceSignal `json:"scan"`
	Indices    domain.Indices    `json:"indices"`
	HasProfile bool              `json:"has_profile"`
}

// RecordFaceScan stores f as the latest scan, appends it to the bounded
// history and applies the face-scan delta to the profile indices. Without
// a profile the delta is applied to today's formula result and reported
// but not persisted.
func (s *Service) RecordFaceScan(ctx context.Context, userID string, f domain.FaceSignal) (FaceScanResult, error) {
	ctx, sp := span(ctx, "RecordFaceScan", userID, attribute.String("mood", string(f.Mood)))
	defer sp.End()

	if f.Confidence < 0 || f.Confidence > 100 {
		return FaceScanResult{}, ErrInvalidFaceScan
	}
	f.Mood = domain.ParseMood(string(f.Mood))
	now := s.now()
	if f.Timestamp.IsZero() {
		f.Timestamp = now.UTC()
	}
	f.Date = domain.DateOf(f.Timestamp, s.Location)
	if f.HealthFlags == nil {
		f.HealthFlags = []string{}
	}

	defer s.lock(userID)()
	var res FaceScanResult
	err := s.gateway(userID).Tx(ctx, func(g *store.Gateway) error {
		d, _, err := s.ensureToday(ctx, g)
		if err != nil {
			return err
		}
		if err := g.PutLatestFace(ctx, f); err != nil {
			return err
		}
		if _, err := g.AppendFaceHistory(ctx, f); err != nil {
			return err
		}
		prof, ok, err := g.Profile(ctx)
		if err != nil {
			return err
		}
		base := prof.Indices
		if !ok {
			base = index.Compute(d)
		}
		ix := index.ApplyFaceScan(base, f.Mood, len(f.HealthFlags) > 0)
		if ok {
			prof.Indices = ix
			prof.UpdatedAt = now
			if err := g.PutProfile(ctx, prof); err != nil {
				return err
			}
		}
		res = FaceScanResult{Scan: f, Indices: ix, HasProfile: ok}
		return nil
	})
	if err != nil {
		sp.RecordError(err)
		return FaceScanResult{}, err
	}
	observability.IndexRecomputes.WithLabelValues("face_scan").Inc()
	return res, nil
}

// LatestFace returns the most recent scan, if any.
func (s *Service) LatestFace(ctx context.Context, userID string) (domain.FaceSignal, bool, error) {
	return s.gateway(userID).LatestFace(ctx)
}

// FaceHistory returns up to n scans, newest first.
func (s *Service) FaceHistory(ctx context.Context, userID string, n int) ([]domain.FaceSignal, error) {
	h, err := s.gateway(userID).FaceHistory(ctx)
	if err != nil {
		return nil, err
	}
	return lastN(h, n, true), nil
}

// lastN returns the final n items of h, optionally reversed.
func lastN[T any](h []T, n int, newestFirst bool) []T {
	if n >= 0 && len(h) > n {
		h = h[len(h)-n:]
	}
	out := make([]T, len(h))
	for i := range h {
		if newestFirst {
			out[i] = h[len(h)-1-i]
		} else {
			out[i] = h[i]
		}
	}
	return out
}
