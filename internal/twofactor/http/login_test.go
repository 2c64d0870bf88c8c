package http_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	tfhttp "github.com/aussiebroadwan/twofactor/internal/twofactor/http"
	"github.com/aussiebroadwan/twofactor/internal/twofactor/scratchpad/memory"
	"github.com/aussiebroadwan/twofactor/internal/twofactor/service"
	"github.com/aussiebroadwan/twofactor/internal/twofactor/store/drivers/sqlite"
	"github.com/aussiebroadwan/twofactor/pkg/cryptox"
	"github.com/aussiebroadwan/twofactor/pkg/httpx"
	"github.com/aussiebroadwan/twofactor/pkg/slogx"
	"github.com/aussiebroadwan/twofactor/pkg/totpx"
	"github.com/aussiebroadwan/twofactor/pkg/twofactorsdk"
	"github.com/pquerna/otp"
	"github.com/stretchr/testify/require"
)

// wrongCode has the right length but can never be a TOTP code.
const wrongCode = "abcdef"

var unlimited = httpx.RateLimitConfig{RequestsPerWindow: 10000, Window: time.Second, Burst: 10000}

type testServer struct {
	router   *tfhttp.Router
	store    *sqlite.Store
	verifier *totpx.Verifier
	now      time.Time
}

func newTestServer(t *testing.T, configure ...func(*tfhttp.Router)) *testServer {
	t.Helper()

	st, err := sqlite.NewStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	require.NoError(t, st.ApplyMigrations())

	ts := &testServer{
		store:    st,
		verifier: totpx.New("twofactor-test", 1),
		now:      time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC),
	}
	ts.verifier.Now = func() time.Time { return ts.now }

	sp := memory.New(time.Minute)
	logger := slogx.Discard()

	provider, err := service.NewProvider(service.Config{
		Attributes: st.Attributes(),
		Verifier:   ts.verifier,
		Random:     cryptox.HexSource{},
		Scratchpad: sp,
		Logger:     logger,
	})
	require.NoError(t, err)

	r := tfhttp.NewRouter("test", st, sp, logger)
	r.Provider = provider
	r.URLs = ts.verifier
	r.BeginLimit = unlimited
	r.ContinueLimit = unlimited
	for _, fn := range configure {
		fn(r)
	}
	r.ApplyRoutes()
	ts.router = r
	return ts
}

func (ts *testServer) post(t *testing.T, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	raw, err := json.Marshal(body)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	ts.router.ServeHTTP(rec, req)
	return rec
}

func (ts *testServer) begin(t *testing.T, userID string) twofactorsdk.BeginResponse {
	t.Helper()

	rec := ts.post(t, "/v1/2fa/begin", twofactorsdk.BeginRequest{UserID: userID, AccountName: userID + "@example.com"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var out twofactorsdk.BeginResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func (ts *testServer) submit(t *testing.T, session, code string) (*httptest.ResponseRecorder, twofactorsdk.ContinueResponse) {
	t.Helper()

	rec := ts.post(t, "/v1/2fa/continue", twofactorsdk.ContinueRequest{LoginSession: session, Code: code})

	var out twofactorsdk.ContinueResponse
	if rec.Code == http.StatusOK {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	}
	return rec, out
}

func (ts *testServer) code(t *testing.T, secret string) string {
	t.Helper()
	c, err := ts.verifier.GenerateCode(secret, ts.now)
	require.NoError(t, err)
	return c
}

func errorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body["error"]
}

// enroll takes userID through a confirmed enrollment.
func (ts *testServer) enroll(t *testing.T, userID string) twofactorsdk.BeginResponse {
	t.Helper()

	begin := ts.begin(t, userID)
	require.True(t, begin.NewEnrollment)

	rec, out := ts.submit(t, begin.LoginSession, ts.code(t, begin.Secret))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, twofactorsdk.StatusPass, out.Status)
	return begin
}

func TestLogin_EnrollmentFlow(t *testing.T) {
	ts := newTestServer(t)

	s0 := ts.begin(t, "alice")
	require.NotEmpty(t, s0.LoginSession)
	require.True(t, s0.NewEnrollment)
	require.NotEmpty(t, s0.Secret)
	require.Len(t, s0.RescueCodes, 3)
	require.True(t, strings.HasPrefix(s0.OTPAuthURL, "otpauth://totp/"))
	key, err := otp.NewKeyFromURL(s0.OTPAuthURL)
	require.NoError(t, err)
	require.Equal(t, "alice@example.com", key.AccountName())
	require.Equal(t, "twofactor-test", key.Issuer())
	require.Equal(t, s0.Secret, key.Secret())
	require.Equal(t, "google2fa-info", s0.Message)

	// a wrong code during setup starts over with a new secret
	rec, out := ts.submit(t, s0.LoginSession, wrongCode)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, twofactorsdk.StatusReauth, out.Status)
	require.True(t, out.NewEnrollment)
	require.NotEqual(t, s0.Secret, out.Secret)
	require.NotEqual(t, s0.RescueCodes, out.RescueCodes)

	rec, out = ts.submit(t, s0.LoginSession, ts.code(t, out.Secret))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, twofactorsdk.StatusPass, out.Status)
	require.Nil(t, out.Challenge)

	// the passed session is over
	rec, _ = ts.submit(t, s0.LoginSession, wrongCode)
	require.Equal(t, http.StatusNotFound, rec.Code)
	require.Equal(t, twofactorsdk.ErrorCodeUnknownSession, errorCode(t, rec))

	// an enrolled user is challenged without secret material
	again := ts.begin(t, "alice")
	require.False(t, again.NewEnrollment)
	require.Empty(t, again.Secret)
	require.Empty(t, again.OTPAuthURL)
	require.Empty(t, again.RescueCodes)
	require.NotEqual(t, s0.LoginSession, again.LoginSession)
}

func TestLogin_RetryLimit(t *testing.T) {
	ts := newTestServer(t)
	ts.enroll(t, "alice")

	sess := ts.begin(t, "alice").LoginSession
	for i := 1; i <= service.DefaultMaxRetries; i++ {
		rec, out := ts.submit(t, sess, wrongCode)
		require.Equal(t, http.StatusOK, rec.Code, "attempt %d", i)
		require.Equal(t, twofactorsdk.StatusReauth, out.Status)
		require.True(t, out.Error)
		require.Equal(t, "google2fa-login-failure", out.Message)
		require.Empty(t, out.Secret)
	}

	rec, _ := ts.submit(t, sess, wrongCode)
	require.Equal(t, http.StatusForbidden, rec.Code)
	require.Equal(t, twofactorsdk.ErrorCodeRetryLimitExceeded, errorCode(t, rec))

	// denied sessions accept nothing more
	rec, _ = ts.submit(t, sess, wrongCode)
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestLogin_CorrectCodeAfterFourFailures(t *testing.T) {
	ts := newTestServer(t)
	enrolled := ts.enroll(t, "alice")

	sess := ts.begin(t, "alice").LoginSession
	for range service.DefaultMaxRetries {
		rec, _ := ts.submit(t, sess, wrongCode)
		require.Equal(t, http.StatusOK, rec.Code)
	}

	ts.now = ts.now.Add(time.Minute)
	rec, out := ts.submit(t, sess, ts.code(t, enrolled.Secret))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, twofactorsdk.StatusPass, out.Status)
}

func TestLogin_RescueCode(t *testing.T) {
	ts := newTestServer(t)
	enrolled := ts.enroll(t, "alice")

	sess := ts.begin(t, "alice").LoginSession
	rec, out := ts.submit(t, sess, enrolled.RescueCodes[1])
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, twofactorsdk.StatusReauth, out.Status)
	require.True(t, out.NewEnrollment)
	require.NotEqual(t, enrolled.Secret, out.Secret)
	require.NotEmpty(t, out.OTPAuthURL)

	// the old secret no longer works and, mid-enrollment, resets again
	rec, out = ts.submit(t, sess, ts.code(t, enrolled.Secret))
	require.Equal(t, http.StatusOK, rec.Code)
	require.True(t, out.NewEnrollment)

	rec, out = ts.submit(t, sess, ts.code(t, out.Secret))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, twofactorsdk.StatusPass, out.Status)
}

func TestLogin_SecretsAreIsolatedPerUser(t *testing.T) {
	ts := newTestServer(t)
	alice := ts.enroll(t, "alice")
	ts.enroll(t, "bob")

	bob := ts.begin(t, "bob").LoginSession
	rec, out := ts.submit(t, bob, ts.code(t, alice.Secret))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, twofactorsdk.StatusReauth, out.Status)

	rec, out = ts.submit(t, bob, alice.RescueCodes[0])
	require.Equal(t, http.StatusOK, rec.Code)
	require.False(t, out.NewEnrollment, "another user's rescue code is just a wrong code")
}

func TestLogin_BadRequests(t *testing.T) {
	ts := newTestServer(t)

	req := httptest.NewRequest(http.MethodPost, "/v1/2fa/begin", strings.NewReader(`{"user_id":`))
	rec := httptest.NewRecorder()
	ts.router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = ts.post(t, "/v1/2fa/begin", twofactorsdk.BeginRequest{UserID: "  "})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Equal(t, twofactorsdk.ErrorCodeInvalidRequest, errorCode(t, rec))

	rec = ts.post(t, "/v1/2fa/continue", map[string]string{"code": "123456"})
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = ts.post(t, "/v1/2fa/continue", twofactorsdk.ContinueRequest{LoginSession: "01HZZZZZZZZZZZZZZZZZZZZZZZ", Code: "123456"})
	require.Equal(t, http.StatusNotFound, rec.Code)

	req = httptest.NewRequest(http.MethodGet, "/v1/2fa/begin", nil)
	rec = httptest.NewRecorder()
	ts.router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestLogin_RateLimited(t *testing.T) {
	ts := newTestServer(t, func(r *tfhttp.Router) {
		r.ContinueLimit = httpx.RateLimitConfig{RequestsPerWindow: 1, Window: time.Minute, Burst: 1}
	})
	sess := ts.begin(t, "alice").LoginSession

	rec, _ := ts.submit(t, sess, wrongCode)
	require.Equal(t, http.StatusOK, rec.Code)

	rec, _ = ts.submit(t, sess, wrongCode)
	require.Equal(t, http.StatusTooManyRequests, rec.Code)
}

func TestLogin_ResponsesAreNotCached(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.post(t, "/v1/2fa/begin", twofactorsdk.BeginRequest{UserID: "alice"})
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "no-store", rec.Header().Get("Cache-Control"))
	require.NotEmpty(t, rec.Header().Get("X-Request-ID"))
}

func TestHealth(t *testing.T) {
	ts := newTestServer(t)

	for _, path := range []string{"/livez", "/readyz"} {
		rec := httptest.NewRecorder()
		ts.router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		require.Equal(t, http.StatusOK, rec.Code, path)

		var health twofactorsdk.HealthResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &health))
		require.Equal(t, "ok", health.Status)
		require.Equal(t, "test", health.Version)
	}

	require.NoError(t, ts.store.Close())

	rec := httptest.NewRecorder()
	ts.router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil).WithContext(context.Background()))
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)

	var health twofactorsdk.HealthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &health))
	require.Equal(t, "degraded", health.Status)
	require.Contains(t, health.Checks.Store, "error")
	require.Equal(t, "ok", health.Checks.Scratchpad)
}
