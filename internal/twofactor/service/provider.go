package service

import (
	"context"
	"log/slog"

	"github.com/aussiebroadwan/twofactor/internal/twofactor/domain"
	"github.com/aussiebroadwan/twofactor/internal/twofactor/scratchpad"
	"github.com/aussiebroadwan/twofactor/pkg/slogx"
)

// Provider is the entry point the host login pipeline calls once the
// primary credential check has passed.
//
// Calls for the same user are serialised within the process. Separate
// processes sharing one attribute store are not coordinated, so the last
// persisted write wins.
type Provider struct {
	enroll  *EnrollmentManager
	verify  *VerificationStateMachine
	scratch scratchpad.Scratchpad
	locks   *keyedMutex
	logger  *slog.Logger
}

// NewProvider validates cfg and returns a ready Provider. Every
// configuration problem is reported as a *ConfigurationError.
func NewProvider(cfg Config) (*Provider, error) {
	cfg, err := cfg.withDefaults()
	if err != nil {
		return nil, err
	}

	enroll := newEnrollmentManager(cfg)
	return &Provider{
		enroll:  enroll,
		verify:  newVerificationStateMachine(cfg, enroll),
		scratch: cfg.Scratchpad,
		locks:   newKeyedMutex(),
		logger:  cfg.Logger,
	}, nil
}

// Begin opens second-factor authentication for the session's user and
// returns the challenge to present.
func (p *Provider) Begin(ctx context.Context, sess domain.LoginSession) (domain.Challenge, error) {
	defer p.locks.Lock(sess.UserID)()
	return p.enroll.BeginEnrollmentOrChallenge(ctx, sess.UserID)
}

// Continue evaluates one submitted code. Wrong codes are outcomes, not
// errors; errors are reserved for storage and configuration failures.
func (p *Provider) Continue(ctx context.Context, sess domain.LoginSession, code string) (domain.Outcome, error) {
	defer p.locks.Lock(sess.UserID)()

	out, err := p.verify.Continue(ctx, sess, code)
	if err != nil {
		slogx.FromContextOr(ctx, p.logger).Error("second factor attempt failed", "user", sess.UserID, "error", err)
	}
	return out, err
}

// BeginAccountCreation is called when a new account is being created.
// The second factor takes no part in that flow.
func (p *Provider) BeginAccountCreation(context.Context, domain.LoginSession) (domain.Outcome, error) {
	return domain.Abstain(), nil
}

// Profile returns the stored profile of userID.
func (p *Provider) Profile(ctx context.Context, userID string) (domain.Profile, error) {
	return p.enroll.LoadProfile(ctx, userID)
}
