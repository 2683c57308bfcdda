package http

import (
	"errors"
	"html/template"
	"net/http"
	"net/url"
	"time"

	"github.com/aussiebroadwan/snip/internal/shortener/domain"
	"github.com/aussiebroadwan/snip/internal/shortener/identity"
	"github.com/aussiebroadwan/snip/internal/shortener/service"
	"github.com/aussiebroadwan/snip/pkg/cryptox"
	"github.com/aussiebroadwan/snip/pkg/httpx"
	"github.com/aussiebroadwan/snip/pkg/jwtx"
	"github.com/aussiebroadwan/snip/pkg/slogx"
	"github.com/aussiebroadwan/snip/pkg/snipsdk"
)

const (
	// refreshCookie carries the refresh token. Scoped to /auth so it never
	// rides along on link or redirect traffic.
	refreshCookie = "snip_refresh"

	// stateCookie pins the OAuth state across the provider round trip.
	stateCookie = "snip_oauth_state"

	stateTTL = 10 * time.Minute
)

// relayPage is served to the popup after the callback. It posts the result
// to the opener window, restricted to the frontend origin, then closes.
// When there is no opener the user gets sent to the frontend directly.
var relayPage = template.Must(template.New("relay").Parse(`<!DOCTYPE html>
<html>
<head><title>Signing in...</title></head>
<body>
<script>
	var message = {{.Message}};
	var target = {{.Origin}};
	if (window.opener) {
		window.opener.postMessage(message, target);
		window.close();
	} else {
		window.location = target;
	}
</script>
</body>
</html>
`))

// AuthHandler serves the /auth endpoints: the provider round trip and
// cookie-based session maintenance.
type AuthHandler struct {
	SessionService *service.SessionService
	Providers      *identity.Registry
	FrontendURL    string
	CookieSecure   bool
}

// HandleStart serves GET /auth/{provider}. Sends the browser to the provider
// with a fresh state value pinned in a short-lived cookie.
func (h *AuthHandler) HandleStart(w http.ResponseWriter, r *http.Request) {
	provider, err := h.Providers.Get(domain.Provider(r.PathValue("provider")))
	if err != nil {
		snipsdk.ErrUnknownProvider.WriteError(w)
		return
	}

	state, err := cryptox.GenerateToken(cryptox.TokenSize128)
	if err != nil {
		snipsdk.ErrServerError.WriteError(w)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     stateCookie,
		Value:    state,
		Path:     "/auth",
		MaxAge:   int(stateTTL.Seconds()),
		HttpOnly: true,
		Secure:   h.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})

	http.Redirect(w, r, provider.AuthCodeURL(state), http.StatusFound)
}

// HandleCallback serves GET /auth/{provider}/callback. On success the
// refresh cookie is set and the popup relay page delivers the access token
// to the opener; on failure the relay page delivers an error message instead.
func (h *AuthHandler) HandleCallback(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	provider, err := h.Providers.Get(domain.Provider(r.PathValue("provider")))
	if err != nil {
		snipsdk.ErrUnknownProvider.WriteError(w)
		return
	}

	// Always drop the state cookie: it is single-use either way.
	h.clearCookie(w, stateCookie, "/auth")

	if reason := r.URL.Query().Get("error"); reason != "" {
		h.relayError(w, reason)
		return
	}

	state, err := r.Cookie(stateCookie)
	if err != nil || state.Value == "" || state.Value != r.URL.Query().Get("state") {
		h.relayError(w, "state_mismatch")
		return
	}

	code := r.URL.Query().Get("code")
	if code == "" {
		h.relayError(w, "missing_code")
		return
	}

	assertion, err := provider.Exchange(ctx, code)
	if err != nil {
		log.Warn("provider exchange failed", "provider", provider.Name(), "err", err)
		if errors.Is(err, identity.ErrNoVerifiedEmail) {
			h.relayError(w, "no_verified_email")
		} else {
			h.relayError(w, "provider_exchange_failed")
		}
		return
	}

	principal, err := h.SessionService.ResolvePrincipal(ctx, assertion)
	if err != nil {
		log.Error("principal resolution failed", "err", err)
		h.relayError(w, "server_error")
		return
	}

	pair, err := h.SessionService.IssueForPrincipal(ctx, principal.ID)
	if err != nil {
		log.Error("token issuance failed", "err", err)
		h.relayError(w, "server_error")
		return
	}

	h.setRefreshCookie(w, pair.RefreshToken)
	h.relaySuccess(w, pair, principal)
}

// HandleRefresh serves POST /auth/refresh. Rotates the refresh cookie and
// returns a fresh access token. A dead cookie is cleared on the way out.
func (h *AuthHandler) HandleRefresh(w http.ResponseWriter, r *http.Request) {
	cookie, err := r.Cookie(refreshCookie)
	if err != nil || cookie.Value == "" {
		snipsdk.ErrInvalidRefresh.WriteError(w)
		return
	}

	pair, principal, err := h.SessionService.Refresh(r.Context(), cookie.Value)
	if err != nil {
		if errors.Is(err, service.ErrInvalidRefresh) {
			h.clearCookie(w, refreshCookie, "/auth")
			snipsdk.ErrInvalidRefresh.WriteError(w)
			return
		}
		snipsdk.ErrServerError.WriteError(w)
		return
	}

	h.setRefreshCookie(w, pair.RefreshToken)
	httpx.WriteJSON(w, http.StatusOK, authPayload(pair, principal))
}

// HandleLogout serves POST /auth/logout. Best effort: the cookie is cleared
// and the stored secret revoked, and the endpoint never fails.
func (h *AuthHandler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	if cookie, err := r.Cookie(refreshCookie); err == nil && cookie.Value != "" {
		h.SessionService.Revoke(r.Context(), cookie.Value)
	}
	h.clearCookie(w, refreshCookie, "/auth")
	w.WriteHeader(http.StatusNoContent)
}

// HandleStatus serves GET /auth/status. Reports whether the refresh cookie
// still represents a live session, without rotating anything.
func (h *AuthHandler) HandleStatus(w http.ResponseWriter, r *http.Request) {
	cookie, err := r.Cookie(refreshCookie)
	if err != nil || cookie.Value == "" {
		httpx.WriteJSON(w, http.StatusOK, snipsdk.StatusResponse{Authenticated: false})
		return
	}

	principal, err := h.SessionService.CheckRefresh(r.Context(), cookie.Value)
	if err != nil {
		httpx.WriteJSON(w, http.StatusOK, snipsdk.StatusResponse{Authenticated: false})
		return
	}

	p := sdkPrincipal(principal)
	httpx.WriteJSON(w, http.StatusOK, snipsdk.StatusResponse{
		Authenticated: true,
		Principal:     &p,
	})
}

func (h *AuthHandler) setRefreshCookie(w http.ResponseWriter, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     refreshCookie,
		Value:    token,
		Path:     "/auth",
		MaxAge:   int(jwtx.DefaultRefreshTokenTTL.Seconds()),
		HttpOnly: true,
		Secure:   h.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
}

func (h *AuthHandler) clearCookie(w http.ResponseWriter, name, path string) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    "",
		Path:     path,
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
}

func (h *AuthHandler) relaySuccess(w http.ResponseWriter, pair *domain.TokenPair, principal domain.Principal) {
	payload := authPayload(pair, principal)
	h.renderRelay(w, snipsdk.Message{
		Type:    snipsdk.MessageTypeSuccess,
		Payload: &payload,
	})
}

func (h *AuthHandler) relayError(w http.ResponseWriter, reason string) {
	h.renderRelay(w, snipsdk.Message{
		Type:  snipsdk.MessageTypeError,
		Error: reason,
	})
}

func (h *AuthHandler) renderRelay(w http.ResponseWriter, msg snipsdk.Message) {
	httpx.NoCache(w)
	w.Header().Set("Content-Type", "text/html; charset=utf-8")

	err := relayPage.Execute(w, struct {
		Message snipsdk.Message
		Origin  string
	}{
		Message: msg,
		Origin:  frontendOrigin(h.FrontendURL),
	})
	if err != nil {
		http.Error(w, "internal server error", http.StatusInternalServerError)
	}
}

// frontendOrigin reduces the configured frontend URL to its origin, which is
// what postMessage target matching works on.
func frontendOrigin(frontendURL string) string {
	u, err := url.Parse(frontendURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return frontendURL
	}
	return u.Scheme + "://" + u.Host
}

func authPayload(pair *domain.TokenPair, principal domain.Principal) snipsdk.AuthPayload {
	return snipsdk.AuthPayload{
		AccessToken: pair.AccessToken,
		TokenType:   pair.TokenType,
		ExpiresIn:   int64(pair.ExpiresIn.Seconds()),
		Principal:   sdkPrincipal(principal),
	}
}

func sdkPrincipal(p domain.Principal) snipsdk.Principal {
	return snipsdk.Principal{
		ID:          p.ID,
		Provider:    string(p.Provider),
		Email:       p.Email,
		DisplayName: p.DisplayName,
	}
}
