// Package redis stores login sessions as redis hashes so several service
// instances can share them. Expiry is left to redis.
package redis

import (
	"context"
	"errors"
	"time"

	"github.com/aussiebroadwan/twofactor/internal/twofactor/scratchpad"
	goredis "github.com/redis/go-redis/v9"
)

const defaultPrefix = "twofactor:session:"

type Scratchpad struct {
	client goredis.UniversalClient
	prefix string
	ttl    time.Duration
}

var _ scratchpad.Scratchpad = (*Scratchpad)(nil)

func New(client goredis.UniversalClient, ttl time.Duration) *Scratchpad {
	if ttl <= 0 {
		ttl = scratchpad.DefaultTTL
	}
	return &Scratchpad{
		client: client,
		prefix: defaultPrefix,
		ttl:    ttl,
	}
}

// NewFromURL connects using a redis:// or rediss:// URL.
func NewFromURL(url string, ttl time.Duration) (*Scratchpad, error) {
	opts, err := goredis.ParseURL(url)
	if err != nil {
		return nil, err
	}
	return New(goredis.NewClient(opts), ttl), nil
}

func (s *Scratchpad) key(sessionID string) string { return s.prefix + sessionID }

func (s *Scratchpad) Get(ctx context.Context, sessionID, key string) (string, error) {
	v, err := s.client.HGet(ctx, s.key(sessionID), key).Result()
	if errors.Is(err, goredis.Nil) {
		return "", nil
	}
	return v, err
}

func (s *Scratchpad) Set(ctx context.Context, sessionID, key, value string) error {
	k := s.key(sessionID)
	_, err := s.client.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
		pipe.HSet(ctx, k, key, value)
		pipe.Expire(ctx, k, s.ttl)
		return nil
	})
	return err
}

func (s *Scratchpad) Clear(ctx context.Context, sessionID string) error {
	return s.client.Del(ctx, s.key(sessionID)).Err()
}

func (s *Scratchpad) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func (s *Scratchpad) Close() error {
	return s.client.Close()
}
