// Package services – ContentService
//
// ContentService answers guided-content searches (poses, meditation tracks,
// breathing exercises, books, quotes and wellness facts) from a search.Index.
// A query that finds nothing is retried once as a stopword-free keyword
// query.
package services

import (
	"context"
	"regexp"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/tbourn/go-wellness-backend/internal/search"
)

// MaxSearchResults caps a single search.
const MaxSearchResults = 20

// ContentService searches the content catalog.
type ContentService struct {
	Index search.Index
}

// Search returns up to limit documents matching q, optionally restricted to
// one kind. limit <= 0 means 5.
func (s *ContentService) Search(ctx context.Context, q, kind string, limit int) ([]search.Result, error) {
	_, span := otel.Tracer("services/ContentService").Start(ctx, "Search",
		trace.WithAttributes(
			attribute.String("query", q),
			attribute.String("kind", kind),
		),
	)
	defer span.End()

	q = strings.TrimSpace(q)
	if q == "" {
		return nil, ErrEmptyQuery
	}
	if limit <= 0 {
		limit = 5
	}
	limit = min(limit, MaxSearchResults)
	if s.Index == nil {
		return []search.Result{}, nil
	}

	// Over-fetch when filtering by kind so the filter has something to keep.
	k := limit
	if kind != "" {
		k = s.Index.Len()
	}
	results := s.Index.TopK(q, k)
	if len(results) == 0 {
		if simplified := simplifyQuery(q); simplified != "" && simplified != strings.ToLower(q) {
			results = s.Index.TopK(simplified, k)
		}
	}

	out := make([]search.Result, 0, limit)
	for _, r := range results {
		if kind != "" && r.Kind != kind {
			continue
		}
		out = append(out, r)
		if len(out) == limit {
			break
		}
	}
	span.SetAttributes(attribute.Int("results", len(out)))
	return out, nil
}

// qwordRE: words (letters/digits) used to build a keyword query.
var qwordRE = regexp.MustCompile(`[\p{L}\p{N}]+`)

// qStop: words dropped when simplifying a question to keywords.
var qStop = map[string]struct{}{
	"the": {}, "a": {}, "an": {}, "and": {}, "or": {}, "of": {}, "to": {}, "in": {},
	"is": {}, "are": {}, "for": {}, "on": {}, "with": {}, "by": {}, "from": {},
	"at": {}, "as": {}, "that": {}, "this": {}, "it": {}, "be": {}, "was": {}, "were": {},
	"how": {}, "do": {}, "does": {}, "what": {}, "which": {}, "can": {}, "i": {}, "me": {},
	"my": {}, "something": {}, "help": {}, "good": {}, "some": {},
}

// simplifyQuery converts a natural-language question into a keyword string.
func simplifyQuery(s string) string {
	toks := qwordRE.FindAllString(strings.ToLower(s), -1)
	if len(toks) == 0 {
		return ""
	}
	keep := make([]string, 0, len(toks))
	for _, t := range toks {
		if _, stop := qStop[t]; stop {
			continue
		}
		keep = append(keep, t)
	}
	if len(keep) == 0 {
		return strings.Join(toks, " ")
	}
	return strings.Join(keep, " ")
}
