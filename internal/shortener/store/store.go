package store

import (
	"context"
	"errors"
	"time"

	"github.com/aussiebroadwan/snip/internal/shortener/domain"
)

var (
	ErrNotFound      = errors.New("store: not found")
	ErrAlreadyExists = errors.New("store: already exists")
)

// Store is the root data access interface. Concrete drivers (sqlite for now)
// implement this. It exposes sub-repositories to keep concerns tidy and
// testable.
type Store interface {
	Principals() Principals
	Links() Links

	ApplyMigrations() error

	// Tx starts a read/write transaction and returns a Tx-scoped Store.
	// Use it for multi-step operations that must be atomic (e.g., resolve +
	// click increment). The caller MUST call Commit() or Rollback() on the
	// returned Tx.
	Tx(ctx context.Context) (Tx, error)

	// WithTx executes a function within a transaction.
	// If fn returns an error, the transaction is rolled back.
	// If fn returns nil, the transaction is committed.
	// This is the recommended way to handle transactions as it automatically
	// handles commit/rollback logic.
	WithTx(ctx context.Context, fn func(tx Tx) error) error

	// Close releases any underlying resources (optional for sqlite).
	Close() error

	// Ping verifies the database connection is still alive.
	Ping(ctx context.Context) error
}

// Tx is a transactional store. It embeds the same repos but adds Commit/Rollback.
type Tx interface {
	Store
	Commit() error
	Rollback() error
}

type Principals interface {
	// CreatePrincipal inserts a new principal (id is provided by app via ULID).
	CreatePrincipal(ctx context.Context, p domain.Principal) error

	// GetPrincipalByID returns a principal by id.
	GetPrincipalByID(ctx context.Context, id string) (domain.Principal, error)

	// GetPrincipalByExternalID looks up a principal by provider + provider
	// subject identifier.
	GetPrincipalByExternalID(ctx context.Context, provider domain.Provider, externalID string) (domain.Principal, error)

	// GetPrincipalByEmail looks up a principal by email regardless of provider.
	GetPrincipalByEmail(ctx context.Context, email string) (domain.Principal, error)

	// LinkIdentity repoints an existing principal at a new provider identity
	// and bumps updated_at.
	LinkIdentity(ctx context.Context, id string, provider domain.Provider, externalID string) error

	// UpdateDisplayName mutates the display_name and bumps updated_at.
	UpdateDisplayName(ctx context.Context, id string, displayName string) error

	// SetRefreshSecret overwrites the stored refresh secret hash.
	SetRefreshSecret(ctx context.Context, id string, hash string) error

	// SwapRefreshSecret replaces the refresh secret hash only if the stored
	// hash still equals oldHash. Returns ErrNotFound when the stored hash has
	// already moved on, which makes concurrent refresh rotation safe.
	SwapRefreshSecret(ctx context.Context, id string, oldHash, newHash string) error

	// ClearRefreshSecret nulls out the refresh secret hash.
	ClearRefreshSecret(ctx context.Context, id string) error
}

// LinkState narrows a dashboard listing by liveness. Active means flagged
// active and not past expiry; expired means flagged inactive or past expiry.
type LinkState string

const (
	LinkStateAll     LinkState = "all"
	LinkStateActive  LinkState = "active"
	LinkStateExpired LinkState = "expired"
)

// ListOwnedLinksQuery describes dashboard listing options.
type ListOwnedLinksQuery struct {
	OwnerID    string
	SortBy     string // "created_at", "expires_at" or "click_count"
	Descending bool

	// TextFilter is a case-insensitive substring match on the original URL.
	// Empty matches everything.
	TextFilter string

	// State filters by liveness. The zero value means LinkStateAll.
	State LinkState

	// Now anchors the expiry comparison the State filter uses.
	Now time.Time

	Offset int
	Limit  int // <= 0 means unbounded
}

// OwnedLinkStats are aggregates over everything the filter matches, not just
// the returned page.
type OwnedLinkStats struct {
	TotalLinks  int64
	TotalClicks int64
	ActiveLinks int64
}

type Links interface {
	// CreateLink inserts a new link (id is provided by app via ULID).
	// Returns ErrAlreadyExists when the short code is taken.
	CreateLink(ctx context.Context, l domain.Link) error

	// GetLinkByID returns a link by id.
	GetLinkByID(ctx context.Context, id string) (domain.Link, error)

	// GetLinkByCode returns a link by its short code.
	GetLinkByCode(ctx context.Context, code string) (domain.Link, error)

	// CodeExists reports whether a short code is already in use.
	CodeExists(ctx context.Context, code string) (bool, error)

	// CountOwnedLinks returns the number of links owned by a principal.
	CountOwnedLinks(ctx context.Context, ownerID string) (int64, error)

	// IncrementClickCount bumps click_count by one.
	IncrementClickCount(ctx context.Context, id string) error

	// UpdateExpiry sets a new expiry (nil clears it), flips the link back to
	// active, and bumps updated_at. A deactivated link extended to a future
	// expiry starts resolving again.
	UpdateExpiry(ctx context.Context, id string, expiresAt *time.Time) error

	// UpdateShortCode replaces the short code and bumps updated_at.
	// Returns ErrAlreadyExists when the new code is taken.
	UpdateShortCode(ctx context.Context, id string, code string) error

	// DeleteLink removes a single link.
	DeleteLink(ctx context.Context, id string) error

	// DeleteOwnedLinks removes every link owned by a principal and returns
	// how many were removed.
	DeleteOwnedLinks(ctx context.Context, ownerID string) (int64, error)

	// ListOwnedLinks returns one page of a principal's links per the query
	// options.
	ListOwnedLinks(ctx context.Context, q ListOwnedLinksQuery) ([]domain.Link, error)

	// GetOwnedLinkStats computes aggregate counters over the same filter as
	// ListOwnedLinks, ignoring sort and pagination.
	GetOwnedLinkStats(ctx context.Context, q ListOwnedLinksQuery) (OwnedLinkStats, error)

	// DeleteExpiredAnonymousLinks removes anonymous links whose expiry has
	// passed, up to limit rows. Returns the number removed.
	DeleteExpiredAnonymousLinks(ctx context.Context, now time.Time, limit int) (int64, error)

	// DeactivateExpiredOwnedLinks marks expired owned links inactive, up to
	// limit rows. Returns the number updated.
	DeactivateExpiredOwnedLinks(ctx context.Context, now time.Time, limit int) (int64, error)
}
