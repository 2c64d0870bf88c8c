package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/aussiebroadwan/twofactor/internal/twofactor/store"
)

const (
	getAttributeSQL = `SELECT value FROM user_attributes WHERE user_id = ? AND name = ?`

	upsertAttributeSQL = `
INSERT INTO user_attributes (user_id, name, value, updated_at)
VALUES (?, ?, ?, ?)
ON CONFLICT (user_id, name) DO UPDATE SET
    value = excluded.value,
    updated_at = excluded.updated_at`

	deleteAttributeSQL = `DELETE FROM user_attributes WHERE user_id = ? AND name = ?`
)

var _ store.Discarder = (*attributesRepo)(nil)

type attributesRepo struct {
	s *Store
}

func (r *attributesRepo) Get(ctx context.Context, userID, key string) (string, error) {
	if v, ok := r.s.pending.Lookup(userID, key); ok {
		return v, nil
	}

	var raw string
	err := r.s.db.QueryRowContext(ctx, getAttributeSQL, userID, key).Scan(&raw)
	if errors.Is(mapNotFound(err), store.ErrNotFound) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return r.open(userID, key, raw)
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
	if len(writes) == 0 {
		return ctx.Err()
	}

	rows := make([]store.Write, 0, len(writes))
	for _, w := range writes {
		v, err := r.seal(userID, w.Key, w.Value)
		if err != nil {
			return err
		}
		rows = append(rows, store.Write{Key: w.Key, Value: v})
	}

	now := r.s.now().UTC()
	return r.s.withBusyRetry(ctx, func(ctx context.Context) error {
		return r.s.withTx(ctx, func(tx *sql.Tx) error {
			for _, w := range rows {
				var err error
				if w.Value == "" {
					_, err = tx.ExecContext(ctx, deleteAttributeSQL, userID, w.Key)
				} else {
					_, err = tx.ExecContext(ctx, upsertAttributeSQL, userID, w.Key, w.Value, now)
				}
				if err != nil {
					return fmt.Errorf("write %s: %w", w.Key, err)
				}
			}
			return nil
		})
	})
}

func associatedData(userID, key string) string {
	return userID + "/" + key
}

func (r *attributesRepo) seal(userID, key, value string) (string, error) {
	if value == "" || !r.s.sealsKey(key) {
		return value, nil
	}
	return r.s.sealer.Seal(value, associatedData(userID, key))
}

func (r *attributesRepo) open(userID, key, raw string) (string, error) {
	if r.s.sealer == nil {
		return raw, nil
	}
	plain, err := r.s.sealer.Open(raw, associatedData(userID, key))
	if err != nil {
		return "", fmt.Errorf("open %s: %w", key, err)
	}
	return plain, nil
}

func (s *Store) sealsKey(key string) bool {
	if s.sealer == nil {
		return false
	}
	_, ok := s.sealed[key]
	return ok
}
