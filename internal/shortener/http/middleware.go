package http

import (
	"net/http"
	"strings"

	"github.com/aussiebroadwan/snip/internal/shortener/service"
	"github.com/aussiebroadwan/snip/pkg/httpx"
	"github.com/aussiebroadwan/snip/pkg/slogx"
	"github.com/aussiebroadwan/snip/pkg/snipsdk"
)

// AuthnMiddleware verifies the bearer access token and injects the principal
// ID into the request context. Anything wrong with the token collapses into
// one 401 envelope.
func AuthnMiddleware(sessions *service.SessionService) httpx.Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			log := slogx.FromContext(ctx)

			authz := r.Header.Get("Authorization")
			if authz == "" || !strings.HasPrefix(authz, "Bearer ") {
				snipsdk.ErrInvalidToken.WriteError(w)
				return
			}
			raw := strings.TrimSpace(strings.TrimPrefix(authz, "Bearer"))

			principal, err := sessions.ValidateAccess(ctx, raw)
			if err != nil {
				log.Warn("access token rejected", "err", err)
				snipsdk.ErrInvalidToken.WriteError(w)
				return
			}

			ctx = httpx.ContextWithPrincipalID(ctx, principal.ID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
