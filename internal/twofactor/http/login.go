package http

import (
	"errors"
	"net/http"
	"strings"

	"github.com/aussiebroadwan/twofactor/internal/twofactor/domain"
	"github.com/aussiebroadwan/twofactor/internal/twofactor/service"
	"github.com/aussiebroadwan/twofactor/pkg/httpx"
	"github.com/aussiebroadwan/twofactor/pkg/slogx"
	"github.com/aussiebroadwan/twofactor/pkg/twofactorsdk"
)

// LoginHandler exposes Provider.Begin and Provider.Continue.
type LoginHandler struct {
	Provider *service.Provider
	URLs     ProvisioningURLBuilder
}

// HandleBegin handles POST /v1/2fa/begin
func (h *LoginHandler) HandleBegin(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	var req twofactorsdk.BeginRequest
	if err := httpx.ReadJSON(r, &req); err != nil {
		twofactorsdk.ErrInvalidRequest.WriteError(w)
		return
	}
	req.UserID = strings.TrimSpace(req.UserID)
	if req.UserID == "" {
		twofactorsdk.ErrInvalidRequest.WriteError(w)
		return
	}
	sess, err := h.Provider.OpenSession(ctx, req.UserID, strings.TrimSpace(req.AccountName))
	if err != nil {
		log.Error("failed to open login session", "user", req.UserID, "err", err)
		twofactorsdk.ErrServerError.WriteError(w)
		return
	}

	ch, err := h.Provider.Begin(ctx, sess)
	if err != nil {
		log.Error("failed to begin second factor", "user", req.UserID, "err", err)
		_ = h.Provider.EndSession(ctx, sess)
		twofactorsdk.ErrServerError.WriteError(w)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, twofactorsdk.BeginResponse{
		LoginSession: sess.ID,
		Challenge:    h.challenge(ch, sess.AccountName),
	})
}

// HandleContinue handles POST /v1/2fa/continue
func (h *LoginHandler) HandleContinue(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	var req twofactorsdk.ContinueRequest
	if err := httpx.ReadJSON(r, &req); err != nil || req.LoginSession == "" {
		twofactorsdk.ErrInvalidRequest.WriteError(w)
		return
	}

	sess, err := h.Provider.LookupSession(ctx, req.LoginSession)
	if errors.Is(err, service.ErrUnknownSession) {
		twofactorsdk.ErrUnknownSession.WriteError(w)
		return
	}
	if err != nil {
		log.Error("failed to look up login session", "err", err)
		twofactorsdk.ErrServerError.WriteError(w)
		return
	}

	out, err := h.Provider.Continue(ctx, sess, req.Code)
	if err != nil {
		h.endSession(r, sess)
		twofactorsdk.ErrServerError.WriteError(w)
		return
	}

	switch out.Kind {
	case domain.OutcomePass:
		h.endSession(r, sess)
		httpx.WriteJSON(w, http.StatusOK, twofactorsdk.ContinueResponse{Status: twofactorsdk.StatusPass})

	case domain.OutcomeReauth:
		ch := h.challenge(*out.Challenge, sess.AccountName)
		httpx.WriteJSON(w, http.StatusOK, twofactorsdk.ContinueResponse{
			Status:    twofactorsdk.StatusReauth,
			Challenge: &ch,
		})

	case domain.OutcomeDeny:
		h.endSession(r, sess)
		twofactorsdk.ErrRetryLimitExceeded.WriteError(w)

	default:
		log.Error("unexpected second factor outcome", "kind", out.Kind.String())
		h.endSession(r, sess)
		twofactorsdk.ErrServerError.WriteError(w)
	}
}

// challenge converts ch for the wire. Secret material is only exposed for
// a new enrollment.
func (h *LoginHandler) challenge(ch domain.Challenge, accountName string) twofactorsdk.Challenge {
	out := twofactorsdk.Challenge{
		NewEnrollment: ch.NewEnrollment,
		Message:       string(ch.Message),
		Error:         ch.Error,
	}
	if ch.NewEnrollment {
		out.Secret = ch.Secret
		out.RescueCodes = ch.RescueCodes
		if h.URLs != nil {
			out.OTPAuthURL = h.URLs.ProvisioningURL(ch.Secret, accountName)
		}
	}
	return out
}

func (h *LoginHandler) endSession(r *http.Request, sess domain.LoginSession) {
	if err := h.Provider.EndSession(r.Context(), sess); err != nil {
		slogx.FromContext(r.Context()).Warn("failed to end login session", "err", err)
	}
}
