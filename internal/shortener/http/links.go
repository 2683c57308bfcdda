package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/aussiebroadwan/snip/internal/shortener/domain"
	"github.com/aussiebroadwan/snip/internal/shortener/service"
	"github.com/aussiebroadwan/snip/pkg/httpx"
	"github.com/aussiebroadwan/snip/pkg/slogx"
	"github.com/aussiebroadwan/snip/pkg/snipsdk"
)

// LinksHandler serves the /url endpoints.
type LinksHandler struct {
	LinkService *service.LinkService
}

// HandleCreateAnonymous serves POST /url/create-anonymous.
func (h *LinksHandler) HandleCreateAnonymous(w http.ResponseWriter, r *http.Request) {
	var req snipsdk.CreateLinkRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		snipsdk.ErrInvalidRequest.WriteError(w)
		return
	}

	link, err := h.LinkService.CreateAnonymous(r.Context(), req.URL)
	if err != nil {
		h.writeLinkError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusCreated, h.record(link))
}

// HandleCreate serves POST /url/create.
func (h *LinksHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	principalID := httpx.PrincipalIDFromContext(r.Context())

	var req snipsdk.CreateLinkRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		snipsdk.ErrInvalidRequest.WriteError(w)
		return
	}

	link, err := h.LinkService.CreateOwned(r.Context(), principalID, req.URL, req.ExpiresAt)
	if err != nil {
		h.writeLinkError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusCreated, h.record(link))
}

// HandleDashboard serves GET /url/dashboard.
func (h *LinksHandler) HandleDashboard(w http.ResponseWriter, r *http.Request) {
	principalID := httpx.PrincipalIDFromContext(r.Context())
	params := r.URL.Query()

	query := service.DashboardQuery{
		Page:       queryInt(params.Get("page")),
		PageSize:   queryInt(params.Get("page_size")),
		SortBy:     params.Get("sort"),
		Ascending:  params.Get("order") == "asc",
		TextFilter: params.Get("q"),
		State:      params.Get("state"),
	}

	dash, err := h.LinkService.GetDashboard(r.Context(), principalID, query)
	if err != nil {
		h.writeLinkError(w, r, err)
		return
	}

	resp := snipsdk.DashboardResponse{
		Links:    make([]snipsdk.LinkRecord, 0, len(dash.Links)),
		Page:     dash.Page,
		PageSize: dash.PageSize,
		Stats: snipsdk.DashboardStats{
			TotalLinks:  dash.Stats.TotalLinks,
			TotalClicks: dash.Stats.TotalClicks,
			ActiveLinks: dash.Stats.ActiveLinks,
		},
	}
	for _, link := range dash.Links {
		resp.Links = append(resp.Links, h.record(link))
	}
	httpx.WriteJSON(w, http.StatusOK, resp)
}

// queryInt parses an optional positive integer query parameter. Absent or
// malformed values come back as 0 so the service applies its defaults.
func queryInt(raw string) int {
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0
	}
	return n
}

// HandleExtend serves PATCH /url/{id}/extend.
func (h *LinksHandler) HandleExtend(w http.ResponseWriter, r *http.Request) {
	principalID := httpx.PrincipalIDFromContext(r.Context())

	var req snipsdk.ExtendLinkRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		snipsdk.ErrInvalidRequest.WriteError(w)
		return
	}

	link, err := h.LinkService.Extend(r.Context(), principalID, r.PathValue("id"), req.ExpiresAt)
	if err != nil {
		h.writeLinkError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, h.record(link))
}

// HandleRegenerate serves POST /url/{id}/regenerate.
func (h *LinksHandler) HandleRegenerate(w http.ResponseWriter, r *http.Request) {
	principalID := httpx.PrincipalIDFromContext(r.Context())

	link, err := h.LinkService.Regenerate(r.Context(), principalID, r.PathValue("id"))
	if err != nil {
		h.writeLinkError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, h.record(link))
}

// HandleDelete serves DELETE /url/{id}.
func (h *LinksHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	principalID := httpx.PrincipalIDFromContext(r.Context())

	if err := h.LinkService.Delete(r.Context(), principalID, r.PathValue("id")); err != nil {
		h.writeLinkError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleDeleteAll serves DELETE /url.
func (h *LinksHandler) HandleDeleteAll(w http.ResponseWriter, r *http.Request) {
	principalID := httpx.PrincipalIDFromContext(r.Context())

	n, err := h.LinkService.DeleteAll(r.Context(), principalID)
	if err != nil {
		h.writeLinkError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, snipsdk.DeleteAllResponse{Deleted: n})
}

func (h *LinksHandler) record(link domain.Link) snipsdk.LinkRecord {
	return snipsdk.LinkRecord{
		ID:          link.ID,
		OriginalURL: link.OriginalURL,
		ShortCode:   link.ShortCode,
		ShortURL:    h.LinkService.ShortURL(link.ShortCode),
		ExpiresAt:   link.ExpiresAt,
		Active:      link.Active,
		ClickCount:  link.ClickCount,
		CreatedAt:   link.CreatedAt,
	}
}

func (h *LinksHandler) writeLinkError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, service.ErrInvalidURL):
		snipsdk.ErrInvalidURL.WriteError(w)
	case errors.Is(err, service.ErrInvalidExpiry):
		snipsdk.ErrInvalidExpiry.WriteError(w)
	case errors.Is(err, service.ErrQuotaExceeded):
		snipsdk.ErrQuotaExceeded.WriteError(w)
	case errors.Is(err, service.ErrLinkNotFound):
		// Folded into the generic 400 so the API never confirms whether an
		// id exists under another owner.
		snipsdk.ErrInvalidRequest.WriteError(w)
	case errors.Is(err, service.ErrCodeExhausted):
		snipsdk.ErrCodeExhausted.WriteError(w)
	default:
		slogx.FromContext(r.Context()).Error("link operation failed", "err", err)
		snipsdk.ErrServerError.WriteError(w)
	}
}
