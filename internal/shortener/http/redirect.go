package http

import (
	"errors"
	"net/http"

	"github.com/aussiebroadwan/snip/internal/shortener/service"
	"github.com/aussiebroadwan/snip/pkg/slogx"
)

// RedirectHandler serves GET /{code}, the public hot path. Responses are
// plain text on failure; a browser is on the other end, not an API client.
type RedirectHandler struct {
	LinkService *service.LinkService
}

func (h *RedirectHandler) HandleRedirect(w http.ResponseWriter, r *http.Request) {
	code := r.PathValue("code")

	link, err := h.LinkService.Resolve(r.Context(), code)
	switch {
	case err == nil:
		// 302 so clients keep coming back; a 301 would let caches bypass
		// click counting and expiry.
		http.Redirect(w, r, link.OriginalURL, http.StatusFound)
	case errors.Is(err, service.ErrLinkNotFound), errors.Is(err, service.ErrLinkExpired):
		// Expired and unknown look identical from outside.
		http.Error(w, "short link not found", http.StatusNotFound)
	default:
		slogx.FromContext(r.Context()).Error("redirect lookup failed", "err", err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
	}
}
