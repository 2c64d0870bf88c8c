// Package totpx wraps pquerna/otp with the fixed parameters used for second
// factor enrollment: SHA1, six digits, 30 second period and a configurable
// clock-skew window.
package totpx

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
)

const (
	DefaultPeriod     = 30 // seconds
	DefaultSkew       = 1  // ±1 period
	DefaultSecretSize = 20 // 160 bits (32 chars base32)
	DefaultIssuer     = "twofactor"
)

// Verifier generates TOTP secrets and validates codes against them.
type Verifier struct {
	Issuer string
	Period uint
	Skew   uint
	Digits otp.Digits

	// Now is used as the validation clock; defaults to time.Now.
	Now func() time.Time
}

// New returns a Verifier with the default period and digits.
// A zero skew accepts only the current period.
func New(issuer string, skew uint) *Verifier {
	if issuer == "" {
		issuer = DefaultIssuer
	}
	return &Verifier{
		Issuer: issuer,
		Period: DefaultPeriod,
		Skew:   skew,
		Digits: otp.DigitsSix,
	}
}

// GenerateSecret returns a fresh base32 encoded secret.
func (v *Verifier) GenerateSecret() (string, error) {
	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      v.Issuer,
		AccountName: v.Issuer,
		Period:      v.period(),
		SecretSize:  DefaultSecretSize,
		Digits:      v.digits(),
		Algorithm:   otp.AlgorithmSHA1,
	})
	if err != nil {
		return "", fmt.Errorf("failed to generate TOTP key: %w", err)
	}
	return key.Secret(), nil
}

// Verify reports whether code is valid for secret at the current time,
// accepting codes from Skew periods either side.
func (v *Verifier) Verify(secret, code string) bool {
	code = strings.TrimSpace(code)
	if secret == "" || code == "" {
		return false
	}

	valid, err := totp.ValidateCustom(code, secret, v.now(), v.opts())
	return valid && err == nil
}

// GenerateCode returns the code for secret at t.
func (v *Verifier) GenerateCode(secret string, t time.Time) (string, error) {
	return totp.GenerateCodeCustom(secret, t, v.opts())
}

// ProvisioningURL builds the otpauth:// URL an authenticator app scans.
func (v *Verifier) ProvisioningURL(secret, accountName string) string {
	label := v.Issuer
	if accountName != "" {
		label = v.Issuer + ":" + accountName
	}

	query := url.Values{}
	query.Set("secret", secret)
	query.Set("issuer", v.Issuer)
	query.Set("algorithm", otp.AlgorithmSHA1.String())
	query.Set("digits", v.digits().String())
	query.Set("period", strconv.FormatUint(uint64(v.period()), 10))

	return fmt.Sprintf("otpauth://totp/%s?%s", url.PathEscape(label), query.Encode())
}

func (v *Verifier) opts() totp.ValidateOpts {
	return totp.ValidateOpts{
		Period:    v.period(),
		Skew:      v.Skew,
		Digits:    v.digits(),
		Algorithm: otp.AlgorithmSHA1,
	}
}

func (v *Verifier) now() time.Time {
	if v.Now != nil {
		return v.Now().UTC()
	}
	return time.Now().UTC()
}

func (v *Verifier) period() uint {
	if v.Period == 0 {
		return DefaultPeriod
	}
	return v.Period
}

func (v *Verifier) digits() otp.Digits {
	if v.Digits != otp.DigitsSix && v.Digits != otp.DigitsEight {
		return otp.DigitsSix
	}
	return v.Digits
}
