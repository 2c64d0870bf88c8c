package memory

import (
	"context"
	"maps"
	"sync"
	"time"

	"github.com/aussiebroadwan/twofactor/internal/twofactor/scratchpad"
)

type session struct {
	values    map[string]string
	expiresAt time.Time
}

// Scratchpad keeps sessions in process memory. Expired sessions read as
// empty immediately and are evicted by Sweep.
type Scratchpad struct {
	mu       sync.Mutex
	ttl      time.Duration
	now      func() time.Time
	sessions map[string]*session
}

var (
	_ scratchpad.Scratchpad = (*Scratchpad)(nil)
	_ scratchpad.Sweeper    = (*Scratchpad)(nil)
)

func New(ttl time.Duration) *Scratchpad {
	if ttl <= 0 {
		ttl = scratchpad.DefaultTTL
	}
	return &Scratchpad{
		ttl:      ttl,
		now:      time.Now,
		sessions: make(map[string]*session),
	}
}

// WithClock replaces the time source, for tests.
func (s *Scratchpad) WithClock(now func() time.Time) *Scratchpad {
	s.now = now
	return s
}

func (s *Scratchpad) live(sessionID string) (*session, bool) {
	sess, ok := s.sessions[sessionID]
	if !ok || !s.now().Before(sess.expiresAt) {
		return nil, false
	}
	return sess, true
}

func (s *Scratchpad) Get(ctx context.Context, sessionID, key string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.live(sessionID)
	if !ok {
		return "", nil
	}
	return sess.values[key], nil
}

func (s *Scratchpad) Set(ctx context.Context, sessionID, key, value string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.live(sessionID)
	if !ok {
		sess = &session{values: make(map[string]string)}
		s.sessions[sessionID] = sess
	}
	sess.values[key] = value
	sess.expiresAt = s.now().Add(s.ttl)
	return nil
}

func (s *Scratchpad) Clear(ctx context.Context, sessionID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, sessionID)
	return nil
}

func (s *Scratchpad) Ping(ctx context.Context) error { return ctx.Err() }

// Sweep evicts sessions that expired before now and returns how many.
func (s *Scratchpad) Sweep(now time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	before := len(s.sessions)
	maps.DeleteFunc(s.sessions, func(_ string, sess *session) bool {
		return !now.Before(sess.expiresAt)
	})
	return before - len(s.sessions)
}

// Len reports the number of tracked sessions, expired or not.
func (s *Scratchpad) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}
