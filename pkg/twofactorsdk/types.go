package twofactorsdk

// Status values of ContinueResponse.
const (
	StatusPass   = "pass"
	StatusReauth = "reauth"
)

// BeginRequest opens a login session for a user who already passed the
// primary credential check.
type BeginRequest struct {
	UserID string `json:"user_id"`
	// AccountName labels the secret in authenticator apps.
	AccountName string `json:"account_name,omitempty"`
}

// Challenge is what the user must answer next. Secret material is only
// present for a new enrollment.
type Challenge struct {
	NewEnrollment bool     `json:"new_enrollment"`
	Secret        string   `json:"secret,omitempty"`
	OTPAuthURL    string   `json:"otpauth_url,omitempty"`
	RescueCodes   []string `json:"rescue_codes,omitempty"`
	Message       string   `json:"message"`
	Error         bool     `json:"error,omitempty"`
}

type BeginResponse struct {
	LoginSession string `json:"login_session"`
	Challenge
}

// ContinueRequest submits a one-time code or a rescue code.
type ContinueRequest struct {
	LoginSession string `json:"login_session"`
	Code         string `json:"code"`
}

type ContinueResponse struct {
	Status string `json:"status"`
	// Challenge is set when Status is StatusReauth.
	*Challenge
}

// HealthResponse is returned by /livez and /readyz.
type HealthResponse struct {
	Status  string        `json:"status"`
	Uptime  string        `json:"uptime,omitempty"`
	Version string        `json:"version,omitempty"`
	Checks  *HealthChecks `json:"checks,omitempty"`
}

// HealthChecks reports the readiness of each backing service.
type HealthChecks struct {
	Store      string `json:"store"`
	Scratchpad string `json:"scratchpad"`
}
