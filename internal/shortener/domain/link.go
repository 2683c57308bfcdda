package domain

import "time"

// Link is a short code bound to a destination URL.
type Link struct {
	ID          string
	OriginalURL string
	ShortCode   string
	OwnerID     *string    // nil for anonymous links
	ExpiresAt   *time.Time // nil means never expires
	Active      bool
	ClickCount  int64
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Anonymous reports whether the link has no owning principal.
func (l Link) Anonymous() bool {
	return l.OwnerID == nil
}

// Expired reports whether the link's expiry has passed at the given instant.
// Links without an expiry never expire.
func (l Link) Expired(now time.Time) bool {
	return l.ExpiresAt != nil && !l.ExpiresAt.After(now)
}
