package domain

import (
	"errors"
	"strings"

	"github.com/samber/lo"
)

// RescueCodeCount is the number of single-use rescue codes issued with
// every secret.
const RescueCodeCount = 3

// SetupCompleteValue is the stored value of a completed enrollment flag.
const SetupCompleteValue = "1"

// State is the enrollment state of a user, derived from their Profile.
type State int

const (
	StateUnenrolled State = iota // no secret stored
	StateEnrolling               // secret stored, never verified
	StateEnrolled                // secret verified once
)

func (s State) String() string {
	switch s {
	case StateEnrolling:
		return "enrolling"
	case StateEnrolled:
		return "enrolled"
	default:
		return "unenrolled"
	}
}

// Profile is the second-factor data persisted for one user.
type Profile struct {
	UserID        string
	Secret        string
	SetupComplete bool
	RescueCodes   [RescueCodeCount]string
}

// State derives the enrollment state of the profile.
func (p Profile) State() State {
	switch {
	case p.SetupComplete:
		return StateEnrolled
	case p.Secret != "":
		return StateEnrolling
	default:
		return StateUnenrolled
	}
}

// AttributeKeys names the user attributes the profile is stored under.
type AttributeKeys struct {
	Secret        string
	SetupComplete string
	Rescue        [RescueCodeCount]string
}

// DefaultAttributeKeys returns the historic attribute names. Existing
// enrollments are stored under these, so they must not change.
func DefaultAttributeKeys() AttributeKeys {
	return AttributeKeys{
		Secret:        "Google2FA_Secret",
		SetupComplete: "Google2FA_Secret_SetupComplete",
		Rescue: [RescueCodeCount]string{
			"Google2FA_SecretRescue1",
			"Google2FA_SecretRescue2",
			"Google2FA_SecretRescue3",
		},
	}
}

// All returns every key, secret first.
func (k AttributeKeys) All() []string {
	return append([]string{k.Secret, k.SetupComplete}, k.Rescue[:]...)
}

// Sensitive returns the keys whose values are secret material.
func (k AttributeKeys) Sensitive() []string {
	return append([]string{k.Secret}, k.Rescue[:]...)
}

var (
	ErrEmptyAttributeKey     = errors.New("attribute key is empty")
	ErrDuplicateAttributeKey = errors.New("attribute key is duplicated")
)

// Validate rejects empty or colliding key names.
func (k AttributeKeys) Validate() error {
	all := k.All()
	if lo.SomeBy(all, func(key string) bool { return strings.TrimSpace(key) == "" }) {
		return ErrEmptyAttributeKey
	}
	if len(lo.Uniq(all)) != len(all) {
		return ErrDuplicateAttributeKey
	}
	return nil
}
