package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/aussiebroadwan/snip/internal/shortener/identity"
	"github.com/aussiebroadwan/snip/internal/shortener/service"
	"github.com/aussiebroadwan/snip/internal/shortener/store"
	"github.com/aussiebroadwan/snip/pkg/httpx"
	"github.com/aussiebroadwan/snip/pkg/slogx"
)

// Router holds shared dependencies for HTTP handlers.
type Router struct {
	Mux         *http.ServeMux
	middlewares []httpx.Middleware

	buildVersion string
	startTime    time.Time
	logger       *slog.Logger

	store          store.Store
	LinkService    *service.LinkService
	SessionService *service.SessionService
	Providers      *identity.Registry

	// FrontendURL is the origin the popup posts its result back to and the
	// only origin allowed to receive it.
	FrontendURL string

	// CookieSecure marks session cookies Secure; disabled only for local
	// plain-http development.
	CookieSecure bool
}

func NewRouter(
	buildVersion string,
	st store.Store,
	logger *slog.Logger,
) *Router {
	r := &Router{
		Mux:          http.NewServeMux(),
		buildVersion: buildVersion,
		startTime:    time.Now(),
		store:        st,
		logger:       logger,
	}

	// Set default middleware chain
	r.middlewares = []httpx.Middleware{
		slogx.HTTPMiddleware(r.logger),
	}

	return r
}

func (r *Router) ApplyRoutes() {
	r.registerAuth()
	r.registerLinks()
	r.registerRedirect()
	r.registerSystem()
}

// ServeHTTP implements http.Handler for Router and applies the global middleware chain.
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	httpx.Chain(r.Mux, r.middlewares...).ServeHTTP(w, req)
}

func (r *Router) registerAuth() {
	h := &AuthHandler{
		SessionService: r.SessionService,
		Providers:      r.Providers,
		FrontendURL:    r.FrontendURL,
		CookieSecure:   r.CookieSecure,
	}

	// Login start and callback - strict rate limit by IP (provider round trips)
	r.Mux.Handle("GET /auth/{provider}",
		httpx.Chain(http.HandlerFunc(h.HandleStart),
			httpx.RateLimitByIP(httpx.StrictLimit),
		),
	)
	r.Mux.Handle("GET /auth/{provider}/callback",
		httpx.Chain(http.HandlerFunc(h.HandleCallback),
			httpx.RateLimitByIP(httpx.StrictLimit),
		),
	)

	// Session maintenance - moderate rate limit by IP (cookie-authenticated)
	r.Mux.Handle("POST /auth/refresh",
		httpx.Chain(http.HandlerFunc(h.HandleRefresh),
			httpx.RateLimitByIP(httpx.ModerateLimit),
		),
	)
	r.Mux.Handle("POST /auth/logout",
		httpx.Chain(http.HandlerFunc(h.HandleLogout),
			httpx.RateLimitByIP(httpx.ModerateLimit),
		),
	)
	r.Mux.Handle("GET /auth/status",
		httpx.Chain(http.HandlerFunc(h.HandleStatus),
			httpx.RateLimitByIP(httpx.LenientLimit),
		),
	)
}

func (r *Router) registerLinks() {
	h := &LinksHandler{LinkService: r.LinkService}
	authn := AuthnMiddleware(r.SessionService)

	// POST /url/create-anonymous - strict rate limit by IP (public abuse target)
	r.Mux.Handle("POST /url/create-anonymous",
		httpx.Chain(http.HandlerFunc(h.HandleCreateAnonymous),
			httpx.RateLimitByIP(httpx.StrictLimit),
		),
	)

	// Authenticated mutations - moderate rate limit by principal
	r.Mux.Handle("POST /url/create",
		httpx.Chain(http.HandlerFunc(h.HandleCreate),
			authn,
			httpx.RateLimitByPrincipal(httpx.ModerateLimit),
		),
	)
	r.Mux.Handle("PATCH /url/{id}/extend",
		httpx.Chain(http.HandlerFunc(h.HandleExtend),
			authn,
			httpx.RateLimitByPrincipal(httpx.ModerateLimit),
		),
	)
	r.Mux.Handle("POST /url/{id}/regenerate",
		httpx.Chain(http.HandlerFunc(h.HandleRegenerate),
			authn,
			httpx.RateLimitByPrincipal(httpx.ModerateLimit),
		),
	)
	r.Mux.Handle("DELETE /url/{id}",
		httpx.Chain(http.HandlerFunc(h.HandleDelete),
			authn,
			httpx.RateLimitByPrincipal(httpx.ModerateLimit),
		),
	)
	r.Mux.Handle("DELETE /url",
		httpx.Chain(http.HandlerFunc(h.HandleDeleteAll),
			authn,
			httpx.RateLimitByPrincipal(httpx.ModerateLimit),
		),
	)

	// Dashboard read - lenient rate limit by principal
	r.Mux.Handle("GET /url/dashboard",
		httpx.Chain(http.HandlerFunc(h.HandleDashboard),
			authn,
			httpx.RateLimitByPrincipal(httpx.LenientLimit),
		),
	)
}

func (r *Router) registerRedirect() {
	h := &RedirectHandler{LinkService: r.LinkService}

	// GET /{code} - the public hot path, high rate limit by IP
	r.Mux.Handle("GET /{code}",
		httpx.Chain(http.HandlerFunc(h.HandleRedirect),
			httpx.RateLimitByIP(httpx.PublicLimit),
		),
	)
}

func (r *Router) registerSystem() {
	r.Mux.Handle("GET /livez", LivezHandler(r.startTime, r.buildVersion))
	r.Mux.Handle("GET /readyz", ReadyzHandler(r.startTime, r.buildVersion, r.store))
}
