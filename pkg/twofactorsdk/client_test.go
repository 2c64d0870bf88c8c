package twofactorsdk_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/aussiebroadwan/twofactor/pkg/twofactorsdk"
	"github.com/stretchr/testify/require"
)

func TestClient_ContinueErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req twofactorsdk.ContinueRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))

		switch req.Code {
		case "deny":
			twofactorsdk.ErrRetryLimitExceeded.WriteError(w)
		case "gone":
			twofactorsdk.ErrUnknownSession.WriteError(w)
		case "html":
			w.WriteHeader(http.StatusBadGateway)
			_, _ = w.Write([]byte("<html>bad gateway</html>"))
		default:
			_ = json.NewEncoder(w).Encode(twofactorsdk.ContinueResponse{Status: twofactorsdk.StatusPass})
		}
	}))
	t.Cleanup(srv.Close)

	c := twofactorsdk.NewClient(srv.URL + "/")
	ctx := context.Background()

	res, err := c.Continue(ctx, twofactorsdk.ContinueRequest{LoginSession: "s", Code: "123456"})
	require.NoError(t, err)
	require.Equal(t, twofactorsdk.StatusPass, res.Status)
	require.Nil(t, res.Challenge)

	_, err = c.Continue(ctx, twofactorsdk.ContinueRequest{LoginSession: "s", Code: "deny"})
	require.ErrorIs(t, err, twofactorsdk.ErrRetryLimitExceeded)

	var apiErr *twofactorsdk.APIError
	require.ErrorAs(t, err, &apiErr)
	require.Equal(t, http.StatusForbidden, apiErr.StatusCode)
	require.Equal(t, "google2fa-login-retry-limit", apiErr.Message)

	_, err = c.Continue(ctx, twofactorsdk.ContinueRequest{LoginSession: "s", Code: "gone"})
	require.ErrorIs(t, err, twofactorsdk.ErrUnknownSession)
	require.NotErrorIs(t, err, twofactorsdk.ErrRetryLimitExceeded)

	_, err = c.Continue(ctx, twofactorsdk.ContinueRequest{LoginSession: "s", Code: "html"})
	require.ErrorContains(t, err, "unexpected status 502")
}
