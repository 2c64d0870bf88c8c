package twofactorsdk

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/aussiebroadwan/twofactor/pkg/httpx"
)

const (
	ErrorCodeInvalidRequest     = "invalid_request"
	ErrorCodeUnknownSession     = "unknown_session"
	ErrorCodeRetryLimitExceeded = "retry_limit_exceeded"
	ErrorCodeRateLimitExceeded  = "rate_limit_exceeded"
	ErrorCodeServerError        = "server_error"
)

// APIError is the {"error","error_description"} envelope. It is written by
// the server and returned by the client.
type APIError struct {
	StatusCode  int    `json:"-"`
	Code        string `json:"error"`
	Description string `json:"error_description,omitempty"`
	// Message is the message tag to show the user, when there is one.
	Message string `json:"message,omitempty"`
}

func (e *APIError) Error() string {
	if e.Description == "" {
		return e.Code
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Description)
}

// Is matches APIErrors by code so callers can use errors.Is with the
// predefined values.
func (e *APIError) Is(target error) bool {
	var t *APIError
	if !errors.As(target, &t) {
		return false
	}
	return e.Code == t.Code
}

// WriteError writes e to an HTTP response.
func (e *APIError) WriteError(w http.ResponseWriter) {
	httpx.WriteJSON(w, e.StatusCode, e)
}

var (
	ErrInvalidRequest = &APIError{
		StatusCode:  http.StatusBadRequest,
		Code:        ErrorCodeInvalidRequest,
		Description: "the request is malformed or missing required parameters",
	}

	ErrUnknownSession = &APIError{
		StatusCode:  http.StatusNotFound,
		Code:        ErrorCodeUnknownSession,
		Description: "the login session does not exist or has ended",
	}

	ErrRetryLimitExceeded = &APIError{
		StatusCode:  http.StatusForbidden,
		Code:        ErrorCodeRetryLimitExceeded,
		Description: "too many wrong codes, start a new login",
		Message:     "google2fa-login-retry-limit",
	}

	ErrRateLimitExceeded = &APIError{
		StatusCode: http.StatusTooManyRequests,
		Code:       ErrorCodeRateLimitExceeded,
	}

	ErrServerError = &APIError{
		StatusCode:  http.StatusInternalServerError,
		Code:        ErrorCodeServerError,
		Description: "the server encountered an unexpected condition",
	}
)

func parseErrorResponse(resp *http.Response, body []byte) error {
	apiErr := &APIError{StatusCode: resp.StatusCode}
	if err := json.Unmarshal(body, apiErr); err != nil || apiErr.Code == "" {
		return fmt.Errorf("unexpected status %d: %s", resp.StatusCode, string(body))
	}
	return apiErr
}
