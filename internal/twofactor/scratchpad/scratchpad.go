// Package scratchpad holds short-lived state scoped to one login session,
// such as the failed attempt counter.
package scratchpad

import (
	"context"
	"time"
)

// DefaultTTL bounds how long an abandoned login session is remembered.
const DefaultTTL = 10 * time.Minute

// Scratchpad is a per-session string key/value store. A missing session or
// key reads as the empty string. Every Set extends the session's lifetime.
type Scratchpad interface {
	Get(ctx context.Context, sessionID, key string) (string, error)
	Set(ctx context.Context, sessionID, key, value string) error
	// Clear forgets the whole session.
	Clear(ctx context.Context, sessionID string) error
	Ping(ctx context.Context) error
}

// Sweeper is implemented by drivers that must evict expired sessions
// themselves.
type Sweeper interface {
	Sweep(now time.Time) int
}
