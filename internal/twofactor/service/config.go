package service

import (
	"errors"
	"log/slog"

	"github.com/aussiebroadwan/twofactor/internal/twofactor/domain"
	"github.com/aussiebroadwan/twofactor/internal/twofactor/scratchpad"
	"github.com/aussiebroadwan/twofactor/internal/twofactor/store"
	"github.com/aussiebroadwan/twofactor/pkg/cryptox"
)

const (
	// DefaultMaxRetries is the number of wrong codes tolerated per login
	// session. The next wrong code is denied.
	DefaultMaxRetries = 4

	// MinRescueBytes is the smallest accepted rescue code entropy (128 bits).
	MinRescueBytes = cryptox.TokenSize128
)

// Scratchpad keys used per login session.
const (
	failuresKey = "failures"
	userKey     = "user"
	accountKey  = "account"
)

// CodeVerifier generates TOTP secrets and checks submitted codes against
// them within a clock-skew window.
type CodeVerifier interface {
	GenerateSecret() (string, error)
	Verify(secret, code string) bool
}

// RandomSource returns byteLen cryptographically secure random bytes, hex
// encoded.
type RandomSource interface {
	Hex(byteLen int) (string, error)
}

// Config wires the collaborators of a Provider.
type Config struct {
	Attributes store.Attributes
	Verifier   CodeVerifier
	Random     RandomSource
	Scratchpad scratchpad.Scratchpad

	// Logger receives advisory events. Defaults to slog.Default().
	Logger *slog.Logger

	// Keys defaults to domain.DefaultAttributeKeys().
	Keys domain.AttributeKeys
	// MaxRetries defaults to DefaultMaxRetries.
	MaxRetries int
	// RescueBytes defaults to MinRescueBytes.
	RescueBytes int
}

var (
	errMissing       = errors.New("not configured")
	errRetryLimit    = errors.New("must not be negative")
	errRescueEntropy = errors.New("must be at least 16 bytes")
)

// withDefaults fills zero values and validates the result.
func (c Config) withDefaults() (Config, error) {
	switch {
	case c.Attributes == nil:
		return c, &ConfigurationError{Field: "Attributes", Err: errMissing}
	case c.Verifier == nil:
		return c, &ConfigurationError{Field: "Verifier", Err: errMissing}
	case c.Random == nil:
		return c, &ConfigurationError{Field: "Random", Err: errMissing}
	case c.Scratchpad == nil:
		return c, &ConfigurationError{Field: "Scratchpad", Err: errMissing}
	}

	if c.Logger == nil {
		c.Logger = slog.Default()
	}
	if c.Keys == (domain.AttributeKeys{}) {
		c.Keys = domain.DefaultAttributeKeys()
	}
	if err := c.Keys.Validate(); err != nil {
		return c, &ConfigurationError{Field: "Keys", Err: err}
	}

	if c.MaxRetries == 0 {
		c.MaxRetries = DefaultMaxRetries
	}
	if c.MaxRetries < 0 {
		return c, &ConfigurationError{Field: "MaxRetries", Err: errRetryLimit}
	}

	if c.RescueBytes == 0 {
		c.RescueBytes = MinRescueBytes
	}
	if c.RescueBytes < MinRescueBytes {
		return c, &ConfigurationError{Field: "RescueBytes", Err: errRescueEntropy}
	}
	return c, nil
}
