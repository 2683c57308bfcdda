package snipsdk

import "time"

// Principal is the public view of an account.
type Principal struct {
	ID          string `json:"id"`
	Provider    string `json:"provider"`
	Email       string `json:"email"`
	DisplayName string `json:"display_name,omitempty"`
}

// AuthPayload is what a successful login or refresh returns.
type AuthPayload struct {
	AccessToken string    `json:"access_token"`
	TokenType   string    `json:"token_type"`
	ExpiresIn   int64     `json:"expires_in"` // seconds until the access token expires
	Principal   Principal `json:"principal"`
}

// StatusResponse reports whether the browser still holds a usable session.
type StatusResponse struct {
	Authenticated bool       `json:"authenticated"`
	Principal     *Principal `json:"principal,omitempty"`
}

// CreateLinkRequest is the body for link creation.
type CreateLinkRequest struct {
	URL       string     `json:"url"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"` // owned links only; omit for no expiry
}

// ExtendLinkRequest is the body for moving a link's expiry.
type ExtendLinkRequest struct {
	ExpiresAt *time.Time `json:"expires_at"` // null clears the expiry
}

// LinkRecord is the public view of a short link.
type LinkRecord struct {
	ID          string     `json:"id"`
	OriginalURL string     `json:"original_url"`
	ShortCode   string     `json:"short_code"`
	ShortURL    string     `json:"short_url"`
	ExpiresAt   *time.Time `json:"expires_at,omitempty"`
	Active      bool       `json:"active"`
	ClickCount  int64      `json:"click_count"`
	CreatedAt   time.Time  `json:"created_at"`
}

// DashboardStats are the aggregate counters shown above the listing.
type DashboardStats struct {
	TotalLinks  int64 `json:"total_links"`
	TotalClicks int64 `json:"total_clicks"`
	ActiveLinks int64 `json:"active_links"`
}

// DashboardResponse is one page of the dashboard. Stats cover everything the
// filter matched, not just this page.
type DashboardResponse struct {
	Links    []LinkRecord   `json:"links"`
	Page     int            `json:"page"`
	PageSize int            `json:"page_size"`
	Stats    DashboardStats `json:"stats"`
}

// DashboardQuery holds the optional listing controls for Session.Dashboard.
// The zero value lists the first page of everything, newest first.
type DashboardQuery struct {
	Page     int
	PageSize int

	// Sort is "created_at" (default), "expires_at" or "click_count".
	Sort      string
	Ascending bool

	// Filter is a case-insensitive substring match on the original URL.
	Filter string

	// State is "all" (default), "active" or "expired".
	State string
}

// DeleteAllResponse reports how many links a bulk delete removed.
type DeleteAllResponse struct {
	Deleted int64 `json:"deleted"`
}

// HealthChecks itemizes the readiness probes.
type HealthChecks struct {
	Database string `json:"database"`
}

// HealthResponse is returned by the health endpoints.
type HealthResponse struct {
	Status  string       `json:"status"`
	Version string       `json:"version,omitempty"`
	Uptime  string       `json:"uptime,omitempty"`
	Checks  *HealthChecks `json:"checks,omitempty"`
}

// Popup handshake message types posted back to the opener window.
const (
	MessageTypeSuccess = "OAUTH_SUCCESS"
	MessageTypeError   = "OAUTH_ERROR"
)

// Message is the payload the popup posts to the opener when the login
// flow settles.
type Message struct {
	Type    string       `json:"type"`
	Payload *AuthPayload `json:"payload,omitempty"`
	Error   string       `json:"error,omitempty"`
}
