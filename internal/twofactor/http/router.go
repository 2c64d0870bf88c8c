package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/aussiebroadwan/twofactor/internal/twofactor/scratchpad"
	"github.com/aussiebroadwan/twofactor/internal/twofactor/service"
	"github.com/aussiebroadwan/twofactor/internal/twofactor/store"
	"github.com/aussiebroadwan/twofactor/pkg/httpx"
	"github.com/aussiebroadwan/twofactor/pkg/slogx"
)

// ProvisioningURLBuilder renders the otpauth:// URL of a secret.
type ProvisioningURLBuilder interface {
	ProvisioningURL(secret, accountName string) string
}

// Router holds shared dependencies for HTTP handlers.
type Router struct {
	Mux         *http.ServeMux
	middlewares []httpx.Middleware

	buildVersion string
	startTime    time.Time
	logger       *slog.Logger

	store      store.Store
	scratchpad scratchpad.Scratchpad

	Provider *service.Provider
	URLs     ProvisioningURLBuilder

	// BeginLimit and ContinueLimit default to httpx.ModerateLimit and
	// httpx.StrictLimit.
	BeginLimit    httpx.RateLimitConfig
	ContinueLimit httpx.RateLimitConfig
}

func NewRouter(
	buildVersion string,
	st store.Store,
	sp scratchpad.Scratchpad,
	logger *slog.Logger,
) *Router {
	r := &Router{
		Mux:          http.NewServeMux(),
		buildVersion: buildVersion,
		startTime:    time.Now(),
		store:        st,
		scratchpad:   sp,
		logger:       logger,

		BeginLimit:    httpx.ModerateLimit,
		ContinueLimit: httpx.StrictLimit,
	}

	r.middlewares = []httpx.Middleware{
		slogx.HTTPMiddleware(r.logger),
	}

	return r
}

func (r *Router) ApplyRoutes() {
	r.registerLogin()
	r.registerSystem()
}

// ServeHTTP implements http.Handler for Router and applies the global middleware chain.
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	httpx.Chain(r.Mux, r.middlewares...).ServeHTTP(w, req)
}

func (r *Router) registerLogin() {
	h := &LoginHandler{
		Provider: r.Provider,
		URLs:     r.URLs,
	}

	// POST /begin - moderate rate limit by IP (opens login sessions)
	r.Mux.Handle("POST /v1/2fa/begin",
		httpx.Chain(http.HandlerFunc(h.HandleBegin),
			httpx.RateLimitByIP(r.BeginLimit),
		),
	)

	// POST /continue - strict rate limit by IP (code guessing)
	r.Mux.Handle("POST /v1/2fa/continue",
		httpx.Chain(http.HandlerFunc(h.HandleContinue),
			httpx.RateLimitByIP(r.ContinueLimit),
		),
	)
}

func (r *Router) registerSystem() {
	r.Mux.Handle("GET /livez", LivezHandler(r.startTime, r.buildVersion))
	r.Mux.Handle("GET /readyz", ReadyzHandler(r.startTime, r.buildVersion, r.store, r.scratchpad))
}
