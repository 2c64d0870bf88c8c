package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/aussiebroadwan/twofactor/internal/twofactor/domain"
	"github.com/aussiebroadwan/twofactor/internal/twofactor/scratchpad/memory"
	"github.com/aussiebroadwan/twofactor/internal/twofactor/store"
	memstore "github.com/aussiebroadwan/twofactor/internal/twofactor/store/drivers/memory"
	"github.com/aussiebroadwan/twofactor/pkg/slogx"
	"github.com/stretchr/testify/require"
)

// fakeVerifier issues SECRET-1, SECRET-2, ... and accepts "ok:<secret>"
// as the only valid code for a secret.
type fakeVerifier struct {
	mu      sync.Mutex
	n       int
	genErr  error
	verifys int
}

func (f *fakeVerifier) GenerateSecret() (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.genErr != nil {
		return "", f.genErr
	}
	f.n++
	return fmt.Sprintf("SECRET-%d", f.n), nil
}

func (f *fakeVerifier) Verify(secret, code string) bool {
	f.mu.Lock()
	f.verifys++
	f.mu.Unlock()
	return code == validCode(secret)
}

func validCode(secret string) string { return "ok:" + secret }

// seqRandom returns distinct, well-formed hex strings.
type seqRandom struct {
	mu  sync.Mutex
	n   int
	err error
}

func (r *seqRandom) Hex(byteLen int) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return "", r.err
	}
	r.n++
	return fmt.Sprintf("%0*x", byteLen*2, r.n), nil
}

// recordingAttrs snapshots the durable profile after every Persist.
type recordingAttrs struct {
	store.Attributes
	keys domain.AttributeKeys

	persists    int
	failPersist error
	snapshots   []map[string]string
}

func (r *recordingAttrs) Persist(ctx context.Context, userID string) error {
	if r.failPersist != nil {
		r.Attributes.(store.Discarder).Discard(ctx, userID)
		return r.failPersist
	}
	if err := r.Attributes.Persist(ctx, userID); err != nil {
		return err
	}
	r.persists++

	snap := make(map[string]string)
	for _, k := range r.keys.All() {
		v, err := r.Attributes.Get(ctx, userID, k)
		if err != nil {
			return err
		}
		snap[k] = v
	}
	r.snapshots = append(r.snapshots, snap)
	return nil
}

func (r *recordingAttrs) Discard(ctx context.Context, userID string) {
	r.Attributes.(store.Discarder).Discard(ctx, userID)
}

type fixture struct {
	provider *Provider
	attrs    *recordingAttrs
	verifier *fakeVerifier
	random   *seqRandom
	scratch  *memory.Scratchpad
	sess     domain.LoginSession
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	f := &fixture{
		attrs: &recordingAttrs{
			Attributes: memstore.NewStore().Attributes(),
			keys:       domain.DefaultAttributeKeys(),
		},
		verifier: &fakeVerifier{},
		random:   &seqRandom{},
		scratch:  memory.New(0),
	}

	p, err := NewProvider(Config{
		Attributes: f.attrs,
		Verifier:   f.verifier,
		Random:     f.random,
		Scratchpad: f.scratch,
		Logger:     slogx.Discard(),
	})
	require.NoError(t, err)
	f.provider = p

	f.sess, err = p.OpenSession(context.Background(), "alice", "")
	require.NoError(t, err)
	return f
}

func (f *fixture) profile(t *testing.T) domain.Profile {
	t.Helper()
	p, err := f.provider.Profile(context.Background(), f.sess.UserID)
	require.NoError(t, err)
	return p
}

// enroll drives the user to a confirmed enrollment and returns the secret.
func (f *fixture) enroll(t *testing.T) string {
	t.Helper()
	ctx := context.Background()

	ch, err := f.provider.Begin(ctx, f.sess)
	require.NoError(t, err)

	out, err := f.provider.Continue(ctx, f.sess, validCode(ch.Secret))
	require.NoError(t, err)
	require.Equal(t, domain.OutcomePass, out.Kind)

	// a fresh login session, as after a completed login
	f.sess, err = f.provider.OpenSession(ctx, f.sess.UserID, "")
	require.NoError(t, err)
	return ch.Secret
}

func requireCleared(t *testing.T, snap map[string]string) {
	t.Helper()
	for k, v := range snap {
		require.Empty(t, v, "attribute %s should be cleared", k)
	}
}

var errBoom = errors.New("boom")
