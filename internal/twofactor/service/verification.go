package service

import (
	"context"
	"log/slog"
	"strconv"

	"github.com/aussiebroadwan/twofactor/internal/twofactor/domain"
	"github.com/aussiebroadwan/twofactor/internal/twofactor/scratchpad"
	"github.com/aussiebroadwan/twofactor/internal/twofactor/store"
	"github.com/aussiebroadwan/twofactor/pkg/cryptox"
	"github.com/aussiebroadwan/twofactor/pkg/slogx"
)

// VerificationStateMachine handles one submitted code per call.
type VerificationStateMachine struct {
	enroll     *EnrollmentManager
	attrs      store.Attributes
	verifier   CodeVerifier
	scratch    scratchpad.Scratchpad
	keys       domain.AttributeKeys
	maxRetries int
	logger     *slog.Logger
}

func newVerificationStateMachine(cfg Config, enroll *EnrollmentManager) *VerificationStateMachine {
	return &VerificationStateMachine{
		enroll:     enroll,
		attrs:      cfg.Attributes,
		verifier:   cfg.Verifier,
		scratch:    cfg.Scratchpad,
		keys:       cfg.Keys,
		maxRetries: cfg.MaxRetries,
		logger:     cfg.Logger,
	}
}

func (m *VerificationStateMachine) log(ctx context.Context) *slog.Logger {
	return slogx.FromContextOr(ctx, m.logger)
}

// Continue evaluates code for the session's user.
//
// A rescue code resets the enrollment and re-challenges with a new secret.
// So does any wrong code while the enrollment is still unconfirmed. A valid
// code passes and confirms a pending enrollment. Other wrong codes count
// against the session's retry limit, and once it is reached every further
// wrong code is denied.
func (m *VerificationStateMachine) Continue(ctx context.Context, sess domain.LoginSession, code string) (domain.Outcome, error) {
	userID := sess.UserID

	profile, err := m.enroll.LoadProfile(ctx, userID)
	if err != nil {
		return domain.Outcome{}, err
	}

	if matchesRescueCode(profile.RescueCodes, code) {
		m.log(ctx).Info("second factor reset by rescue code", "user", userID)
		return m.resetAndRechallenge(ctx, userID)
	}

	valid := profile.Secret != "" && m.verifier.Verify(profile.Secret, code)

	if !valid && !profile.SetupComplete {
		m.log(ctx).Info("wrong code during second factor setup, restarting enrollment", "user", userID)
		return m.resetAndRechallenge(ctx, userID)
	}

	if valid {
		if !profile.SetupComplete {
			if err := m.enroll.commit(ctx, userID, []store.Write{
				{Key: m.keys.SetupComplete, Value: domain.SetupCompleteValue},
			}); err != nil {
				return domain.Outcome{}, err
			}
			m.log(ctx).Info("validated new second factor secret", "user", userID)
		}
		return domain.Pass(), nil
	}

	m.log(ctx).Info("invalid second factor code", "user", userID)
	return m.countFailure(ctx, sess, profile.Secret)
}

func (m *VerificationStateMachine) resetAndRechallenge(ctx context.Context, userID string) (domain.Outcome, error) {
	if err := m.enroll.reset(ctx, userID); err != nil {
		return domain.Outcome{}, err
	}

	ch, err := m.enroll.BeginEnrollmentOrChallenge(ctx, userID)
	if err != nil {
		return domain.Outcome{}, err
	}
	return domain.Reauth(ch), nil
}

func (m *VerificationStateMachine) countFailure(ctx context.Context, sess domain.LoginSession, secret string) (domain.Outcome, error) {
	raw, err := m.scratch.Get(ctx, sess.ID, failuresKey)
	if err != nil {
		return domain.Outcome{}, storageErr("read failure count", err)
	}

	failures, ok := parseFailures(raw)
	if !ok {
		m.log(ctx).Warn("unreadable failure count, treating as exhausted", "user", sess.UserID, "value", raw)
		failures = m.maxRetries
	}

	if failures >= m.maxRetries {
		m.log(ctx).Info("second factor retry limit exceeded", "user", sess.UserID, "failures", failures)
		return domain.Deny(domain.DenyRetryLimitExceeded, domain.MessageRetryLimit), nil
	}

	if err := m.scratch.Set(ctx, sess.ID, failuresKey, strconv.Itoa(failures+1)); err != nil {
		return domain.Outcome{}, storageErr("write failure count", err)
	}

	return domain.Reauth(domain.Challenge{
		Secret:  secret,
		Message: domain.MessageLoginFailure,
		Error:   true,
	}), nil
}

func parseFailures(raw string) (int, bool) {
	if raw == "" {
		return 0, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, false
	}
	return n, true
}

// matchesRescueCode compares code with every stored slot in constant time.
// Empty slots and an empty code never match.
func matchesRescueCode(stored [domain.RescueCodeCount]string, code string) bool {
	match := 0
	for _, s := range stored {
		if s == "" || code == "" {
			continue
		}
		if cryptox.EqualConstantTime(s, code) {
			match = 1
		}
	}
	return match == 1
}
