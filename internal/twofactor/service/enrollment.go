package service

import (
	"context"
	"errors"
	"log/slog"

	"github.com/aussiebroadwan/twofactor/internal/twofactor/domain"
	"github.com/aussiebroadwan/twofactor/internal/twofactor/store"
	"github.com/aussiebroadwan/twofactor/pkg/slogx"
)

var errEmptySecret = errors.New("generator returned an empty value")

// EnrollmentManager decides whether a user is enrolled and provisions a
// fresh secret with rescue codes when they are not.
type EnrollmentManager struct {
	attrs       store.Attributes
	verifier    CodeVerifier
	random      RandomSource
	keys        domain.AttributeKeys
	rescueBytes int
	logger      *slog.Logger
}

func newEnrollmentManager(cfg Config) *EnrollmentManager {
	return &EnrollmentManager{
		attrs:       cfg.Attributes,
		verifier:    cfg.Verifier,
		random:      cfg.Random,
		keys:        cfg.Keys,
		rescueBytes: cfg.RescueBytes,
		logger:      cfg.Logger,
	}
}

func (m *EnrollmentManager) log(ctx context.Context) *slog.Logger {
	return slogx.FromContextOr(ctx, m.logger)
}

// LoadProfile reads every profile attribute of userID.
func (m *EnrollmentManager) LoadProfile(ctx context.Context, userID string) (domain.Profile, error) {
	p := domain.Profile{UserID: userID}

	var err error
	if p.Secret, err = m.attrs.Get(ctx, userID, m.keys.Secret); err != nil {
		return p, storageErr("read secret", err)
	}

	flag, err := m.attrs.Get(ctx, userID, m.keys.SetupComplete)
	if err != nil {
		return p, storageErr("read setup flag", err)
	}
	p.SetupComplete = flag == domain.SetupCompleteValue

	for i, key := range m.keys.Rescue {
		if p.RescueCodes[i], err = m.attrs.Get(ctx, userID, key); err != nil {
			return p, storageErr("read rescue code", err)
		}
	}
	return p, nil
}

// BeginEnrollmentOrChallenge returns the challenge for userID. Without a
// completed enrollment a new secret and rescue codes replace whatever was
// stored, including the secret of an abandoned enrollment.
func (m *EnrollmentManager) BeginEnrollmentOrChallenge(ctx context.Context, userID string) (domain.Challenge, error) {
	flag, err := m.attrs.Get(ctx, userID, m.keys.SetupComplete)
	if err != nil {
		return domain.Challenge{}, storageErr("read setup flag", err)
	}

	if flag != domain.SetupCompleteValue {
		return m.generateSecrets(ctx, userID)
	}

	secret, err := m.attrs.Get(ctx, userID, m.keys.Secret)
	if err != nil {
		return domain.Challenge{}, storageErr("read secret", err)
	}
	return domain.Challenge{Secret: secret, Message: domain.MessageInfo}, nil
}

func (m *EnrollmentManager) generateSecrets(ctx context.Context, userID string) (domain.Challenge, error) {
	secret, err := m.verifier.GenerateSecret()
	if err == nil && secret == "" {
		err = errEmptySecret
	}
	if err != nil {
		return domain.Challenge{}, &ConfigurationError{Field: "Verifier", Err: err}
	}

	codes := make([]string, len(m.keys.Rescue))
	for i := range codes {
		code, err := m.random.Hex(m.rescueBytes)
		if err == nil && code == "" {
			err = errEmptySecret
		}
		if err != nil {
			return domain.Challenge{}, &ConfigurationError{Field: "Random", Err: err}
		}
		codes[i] = code
	}

	writes := []store.Write{
		{Key: m.keys.Secret, Value: secret},
		{Key: m.keys.SetupComplete, Value: ""},
	}
	for i, key := range m.keys.Rescue {
		writes = append(writes, store.Write{Key: key, Value: codes[i]})
	}
	if err := m.commit(ctx, userID, writes); err != nil {
		return domain.Challenge{}, err
	}

	m.log(ctx).Info("generated new second factor secret", "user", userID)

	return domain.Challenge{
		Secret:        secret,
		NewEnrollment: true,
		RescueCodes:   codes,
		Message:       domain.MessageInfo,
	}, nil
}

// reset clears the whole profile in one persisted write.
func (m *EnrollmentManager) reset(ctx context.Context, userID string) error {
	writes := make([]store.Write, 0, len(m.keys.All()))
	for _, key := range m.keys.All() {
		writes = append(writes, store.Write{Key: key})
	}
	return m.commit(ctx, userID, writes)
}

// commit stages writes and persists them together. Nothing stays staged
// when any step fails.
func (m *EnrollmentManager) commit(ctx context.Context, userID string, writes []store.Write) error {
	for _, w := range writes {
		if err := m.attrs.Set(ctx, userID, w.Key, w.Value); err != nil {
			m.discard(ctx, userID)
			return storageErr("stage attribute", err)
		}
	}
	if err := m.attrs.Persist(ctx, userID); err != nil {
		m.discard(ctx, userID)
		return storageErr("persist attributes", err)
	}
	return nil
}

func (m *EnrollmentManager) discard(ctx context.Context, userID string) {
	if d, ok := m.attrs.(store.Discarder); ok {
		d.Discard(ctx, userID)
	}
}
