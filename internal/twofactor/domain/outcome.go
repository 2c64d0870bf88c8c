package domain

// Message tags the host renders next to a challenge.
type Message string

const (
	MessageInfo         Message = "google2fa-info"
	MessageLoginFailure Message = "google2fa-login-failure"
	MessageRetryLimit   Message = "google2fa-login-retry-limit"
)

// Challenge is what the user is asked to answer next.
type Challenge struct {
	// Secret is the base32 TOTP secret. Hosts should only display it
	// when NewEnrollment is set.
	Secret        string
	NewEnrollment bool
	// RescueCodes is only populated for a new enrollment.
	RescueCodes []string
	Message     Message
	// Error marks a re-challenge caused by a wrong code.
	Error bool
}

// OutcomeKind is the decision for a login attempt.
type OutcomeKind int

const (
	OutcomePass OutcomeKind = iota
	OutcomeReauth
	OutcomeDeny
	OutcomeAbstain
)

func (k OutcomeKind) String() string {
	switch k {
	case OutcomePass:
		return "pass"
	case OutcomeReauth:
		return "reauth"
	case OutcomeDeny:
		return "deny"
	case OutcomeAbstain:
		return "abstain"
	default:
		return "unknown"
	}
}

// DenyReason explains an OutcomeDeny.
type DenyReason string

const DenyRetryLimitExceeded DenyReason = "retry_limit_exceeded"

// Outcome is the result of one pass through the state machine.
type Outcome struct {
	Kind OutcomeKind
	// Challenge is set for OutcomeReauth.
	Challenge *Challenge
	// Reason and Message are set for OutcomeDeny.
	Reason  DenyReason
	Message Message
}

func Pass() Outcome { return Outcome{Kind: OutcomePass} }

func Abstain() Outcome { return Outcome{Kind: OutcomeAbstain} }

func Reauth(c Challenge) Outcome {
	return Outcome{Kind: OutcomeReauth, Challenge: &c, Message: c.Message}
}

func Deny(reason DenyReason, msg Message) Outcome {
	return Outcome{Kind: OutcomeDeny, Reason: reason, Message: msg}
}
