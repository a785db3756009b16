// Package store wraps all wellness persistence behind a small key-value
// interface. Values are JSON documents addressed by (scope, key), where scope
// is the owning user id.
package store

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
)

// ErrNotFound is returned by Get when nothing is stored under the key.
var ErrNotFound = errors.New("store: not found")

// KV is the persistence contract for wellness records.
type KV interface {
	Get(ctx context.Context, scope, key string) ([]byte, error)
	Set(ctx context.Context, scope, key string, value []byte) error
	// Keys lists the keys in scope that start with prefix, ascending.
	Keys(ctx context.Context, scope, prefix string) ([]string, error)
	// Tx runs fn against a view whose writes become visible together, or not
	// at all when fn returns an error.
	Tx(ctx context.Context, fn func(tx KV) error) error
}

// Memory is an in-process KV, used in tests and when no database is
// configured.
type Memory struct {
	mu   sync.RWMutex
	data map[string][]byte
}

// NewMemory returns an empty Memory store.
func NewMemory() *Memory {
	return &Memory{data: make(map[string][]byte)}
}

func memKey(scope, key string) string { return scope + "\x00" + key }

// Get implements KV.
func (m *Memory) Get(_ context.Context, scope, key string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.data[memKey(scope, key)]
	if !ok {
		return nil, ErrNotFound
	}
	return append([]byte(nil), v...), nil
}

// Set implements KV.
func (m *Memory) Set(_ context.Context, scope, key string, value []byte) error {
	m.mu.Lock()
	m.data[memKey(scope, key)] = append([]byte(nil), value...)
	m.mu.Unlock()
	return nil
}

// Keys implements KV.
func (m *Memory) Keys(_ context.Context, scope, prefix string) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	full := memKey(scope, prefix)
	var out []string
	for k := range m.data {
		if strings.HasPrefix(k, full) {
			out = append(out, strings.TrimPrefix(k, memKey(scope, "")))
		}
	}
	sort.Strings(out)
	return out, nil
}

// Tx implements KV. Writes are staged and applied under one lock once fn
// succeeds.
func (m *Memory) Tx(ctx context.Context, fn func(tx KV) error) error {
	st := &staged{base: m, writes: make(map[string][]byte)}
	if err := fn(st); err != nil {
		return err
	}
	m.mu.Lock()
	for k, v := range st.writes {
		m.data[k] = v
	}
	m.mu.Unlock()
	return nil
}

type staged struct {
	base   *Memory
	writes map[string][]byte
}

func (s *staged) Get(ctx context.Context, scope, key string) ([]byte, error) {
	if v, ok := s.writes[memKey(scope, key)]; ok {
		return append([]byte(nil), v...), nil
	}
	return s.base.Get(ctx, scope, key)
}

func (s *staged) Set(_ context.Context, scope, key string, value []byte) error {
	s.writes[memKey(scope, key)] = append([]byte(nil), value...)
	return nil
}

func (s *staged) Keys(ctx context.Context, scope, prefix string) ([]string, error) {
	keys, _ := s.base.Keys(ctx, scope, prefix)
	seen := make(map[string]struct{}, len(keys))
	for _, k := range keys {
		seen[k] = struct{}{}
	}
	full := memKey(scope, prefix)
	for k := range s.writes {
		if strings.HasPrefix(k, full) {
			short := strings.TrimPrefix(k, memKey(scope, ""))
			if _, ok := seen[short]; !ok {
				keys = append(keys, short)
			}
		}
	}
	sort.Strings(keys)
	return keys, nil
}

func (s *staged) Tx(ctx context.Context, fn func(tx KV) error) error { return fn(s) }
