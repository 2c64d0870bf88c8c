// Package memory is an in-process store driver for tests and single-node
// development. Nothing survives a restart.
package memory

import (
	"context"
	"sync"

	"github.com/aussiebroadwan/twofactor/internal/twofactor/store"
)

type Store struct {
	mu      sync.RWMutex
	data    map[string]map[string]string
	pending *store.Pending
}

var (
	_ store.Store     = (*Store)(nil)
	_ store.Discarder = (*attributesRepo)(nil)
)

func NewStore() *Store {
	return &Store{
		data:    make(map[string]map[string]string),
		pending: store.NewPending(),
	}
}

func (s *Store) Attributes() store.Attributes { return &attributesRepo{s: s} }

func (s *Store) ApplyMigrations() error         { return nil }
func (s *Store) Close() error                   { return nil }
func (s *Store) Ping(ctx context.Context) error { return ctx.Err() }

type attributesRepo struct {
	s *Store
}

func (r *attributesRepo) Get(ctx context.Context, userID, key string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if v, ok := r.s.pending.Lookup(userID, key); ok {
		return v, nil
	}

	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	return r.s.data[userID][key], nil
}

func (r *attributesRepo) Set(ctx context.Context, userID, key, value string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.s.pending.Stage(userID, key, value)
	return nil
}

func (r *attributesRepo) Discard(_ context.Context, userID string) {
	r.s.pending.Take(userID)
}

func (r *attributesRepo) Persist(ctx context.Context, userID string) error {
	writes := r.s.pending.Take(userID)
	if err := ctx.Err(); err != nil {
		return err
	}
	if len(writes) == 0 {
		return nil
	}

	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	attrs, ok := r.s.data[userID]
	if !ok {
		attrs = make(map[string]string, len(writes))
		r.s.data[userID] = attrs
	}
	for _, w := range writes {
		if w.Value == "" {
			delete(attrs, w.Key)
			continue
		}
		attrs[w.Key] = w.Value
	}
	if len(attrs) == 0 {
		delete(r.s.data, userID)
	}
	return nil
}
