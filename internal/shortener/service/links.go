package service

import (
	"context"
	"errors"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/aussiebroadwan/snip/internal/shortener/domain"
	"github.com/aussiebroadwan/snip/internal/shortener/store"
	"github.com/aussiebroadwan/snip/pkg/idx"
	"github.com/aussiebroadwan/snip/pkg/shortcode"
	"github.com/aussiebroadwan/snip/pkg/slogx"
)

const (
	// DefaultAnonymousTTL is how long an anonymous link lives.
	DefaultAnonymousTTL = 24 * time.Hour

	// DefaultMaxPerOwner caps how many links a single principal may hold.
	DefaultMaxPerOwner = 50

	// DefaultDashboardPageSize is used when the caller asks for no particular
	// page size.
	DefaultDashboardPageSize = 20

	// MaxDashboardPageSize bounds how much one dashboard request can pull.
	MaxDashboardPageSize = 100

	// DefaultMaxURLLength bounds the destination URL we accept.
	DefaultMaxURLLength = 2048

	// DefaultMaxCodeAttempts bounds collision retries before giving up.
	DefaultMaxCodeAttempts = 5

	// MaxOwnedExpiry is the furthest out an owned link may be extended.
	MaxOwnedExpiry = 365 * 24 * time.Hour
)

var (
	ErrInvalidURL    = errors.New("invalid_url")
	ErrInvalidExpiry = errors.New("invalid_expiry")
	ErrLinkNotFound  = errors.New("link_not_found")
	ErrLinkExpired   = errors.New("link_expired")
	ErrNotOwner      = errors.New("not_owner")
	ErrQuotaExceeded = errors.New("quota_exceeded")
	ErrCodeExhausted = errors.New("code_space_exhausted")
)

// LinkService owns the lifecycle of short links: creation, resolution,
// mutation, and dashboard listing.
type LinkService struct {
	Store store.Store

	// PublicBaseURL is prefixed onto short codes when returning full URLs.
	PublicBaseURL string

	AnonTTL         time.Duration
	MaxPerOwner     int
	CodeLength      int
	MaxCodeAttempts int
	MaxURLLength    int

	// Generator produces a candidate short code for a seed. Overridable so
	// tests can force collisions deterministically.
	Generator func(seed string, attempt int) string
}

func NewLinkService(st store.Store, publicBaseURL string) *LinkService {
	s := &LinkService{
		Store:           st,
		PublicBaseURL:   strings.TrimRight(publicBaseURL, "/"),
		AnonTTL:         DefaultAnonymousTTL,
		MaxPerOwner:     DefaultMaxPerOwner,
		CodeLength:      shortcode.DefaultLength,
		MaxCodeAttempts: DefaultMaxCodeAttempts,
		MaxURLLength:    DefaultMaxURLLength,
	}
	// Reads CodeLength at call time so callers can retune it after New.
	s.Generator = func(seed string, attempt int) string {
		return shortcode.GenerateN(seed, attempt, s.CodeLength)
	}
	return s
}

// ShortURL joins the public base URL with a short code.
func (s *LinkService) ShortURL(code string) string {
	return s.PublicBaseURL + "/" + code
}

// CreateAnonymous creates an unowned link that expires after AnonTTL.
func (s *LinkService) CreateAnonymous(ctx context.Context, originalURL string) (domain.Link, error) {
	l := slogx.FromContext(ctx)

	originalURL, err := s.validateURL(originalURL)
	if err != nil {
		return domain.Link{}, err
	}

	expiresAt := time.Now().UTC().Add(s.AnonTTL)
	link := domain.Link{
		ID:          idx.New().String(),
		OriginalURL: originalURL,
		ExpiresAt:   &expiresAt,
		Active:      true,
	}

	link, err = s.insertWithCode(ctx, s.Store.Links(), link)
	if err != nil {
		return domain.Link{}, err
	}

	l.Info("anonymous link created",
		slog.String("link_id", link.ID),
		slog.String("short_code", link.ShortCode),
	)
	return link, nil
}

// CreateOwned creates a link owned by a principal. A nil expiry means the
// link never expires; otherwise the expiry must be in the future and within
// MaxOwnedExpiry.
func (s *LinkService) CreateOwned(
	ctx context.Context,
	ownerID string,
	originalURL string,
	expiresAt *time.Time,
) (domain.Link, error) {
	l := slogx.FromContext(ctx)

	originalURL, err := s.validateURL(originalURL)
	if err != nil {
		return domain.Link{}, err
	}
	if err := s.validateExpiry(expiresAt); err != nil {
		return domain.Link{}, err
	}

	link := domain.Link{
		ID:          idx.New().String(),
		OriginalURL: originalURL,
		OwnerID:     &ownerID,
		ExpiresAt:   normalizeExpiry(expiresAt),
		Active:      true,
	}

	// Quota check and insert share a transaction so two racing creates at
	// the limit cannot both slip under it.
	err = s.Store.WithTx(ctx, func(tx store.Tx) error {
		count, err := tx.Links().CountOwnedLinks(ctx, ownerID)
		if err != nil {
			return err
		}
		if count >= int64(s.MaxPerOwner) {
			return ErrQuotaExceeded
		}

		link, err = s.insertWithCode(ctx, tx.Links(), link)
		return err
	})
	if err != nil {
		return domain.Link{}, err
	}

	l.Info("owned link created",
		slog.String("link_id", link.ID),
		slog.String("owner_id", ownerID),
		slog.String("short_code", link.ShortCode),
	)
	return link, nil
}

// Resolve looks up a short code and atomically counts the click. The lookup,
// liveness check, and increment run in one transaction so concurrent hits
// never lose counts.
func (s *LinkService) Resolve(ctx context.Context, code string) (domain.Link, error) {
	var link domain.Link

	err := s.Store.WithTx(ctx, func(tx store.Tx) error {
		var err error
		link, err = tx.Links().GetLinkByCode(ctx, code)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return ErrLinkNotFound
			}
			return err
		}

		if !link.Active || link.Expired(time.Now().UTC()) {
			return ErrLinkExpired
		}

		if err := tx.Links().IncrementClickCount(ctx, link.ID); err != nil {
			return err
		}
		link.ClickCount++
		return nil
	})
	if err != nil {
		return domain.Link{}, err
	}
	return link, nil
}

// Extend replaces an owned link's expiry. A nil expiry clears it so the link
// never expires. Extending an expired link reactivates it.
func (s *LinkService) Extend(ctx context.Context, ownerID, linkID string, expiresAt *time.Time) (domain.Link, error) {
	if err := s.validateExpiry(expiresAt); err != nil {
		return domain.Link{}, err
	}

	link, err := s.ownedLink(ctx, ownerID, linkID)
	if err != nil {
		return domain.Link{}, err
	}

	if err := s.Store.Links().UpdateExpiry(ctx, link.ID, normalizeExpiry(expiresAt)); err != nil {
		return domain.Link{}, err
	}

	// Re-read so the caller sees fresh timestamps and active state.
	return s.Store.Links().GetLinkByID(ctx, link.ID)
}

// Regenerate assigns a brand-new short code to an owned link. The previous
// code stops resolving immediately.
func (s *LinkService) Regenerate(ctx context.Context, ownerID, linkID string) (domain.Link, error) {
	l := slogx.FromContext(ctx)

	link, err := s.ownedLink(ctx, ownerID, linkID)
	if err != nil {
		return domain.Link{}, err
	}

	for attempt := 0; attempt < s.MaxCodeAttempts; attempt++ {
		code := s.Generator(link.OriginalURL+link.ID, attempt+1)
		err := s.Store.Links().UpdateShortCode(ctx, link.ID, code)
		if errors.Is(err, store.ErrAlreadyExists) {
			continue
		}
		if err != nil {
			return domain.Link{}, err
		}

		l.Info("short code regenerated",
			slog.String("link_id", link.ID),
			slog.String("short_code", code),
		)
		return s.Store.Links().GetLinkByID(ctx, link.ID)
	}
	return domain.Link{}, ErrCodeExhausted
}

// Delete removes a single owned link.
func (s *LinkService) Delete(ctx context.Context, ownerID, linkID string) error {
	link, err := s.ownedLink(ctx, ownerID, linkID)
	if err != nil {
		return err
	}
	return s.Store.Links().DeleteLink(ctx, link.ID)
}

// DeleteAll removes every link owned by the principal and reports how many
// were removed.
func (s *LinkService) DeleteAll(ctx context.Context, ownerID string) (int64, error) {
	l := slogx.FromContext(ctx)

	n, err := s.Store.Links().DeleteOwnedLinks(ctx, ownerID)
	if err != nil {
		return 0, err
	}

	l.Info("owned links deleted", slog.String("owner_id", ownerID), slog.Int64("count", n))
	return n, nil
}

// Dashboard is one page of an owner's links plus aggregates over everything
// the filter matched.
type Dashboard struct {
	Links []domain.Link
	Stats store.OwnedLinkStats

	Page     int
	PageSize int
}

// DashboardQuery describes listing options. Zero value lists the first page
// of everything, newest first.
type DashboardQuery struct {
	Page     int // 1-based; values < 1 mean page 1
	PageSize int // <= 0 means DefaultDashboardPageSize

	SortBy    string // "created_at" (default), "expires_at" or "click_count"
	Ascending bool

	// TextFilter is a case-insensitive substring match on the original URL.
	TextFilter string

	// State is "all" (default), "active" or "expired".
	State string
}

// GetDashboard lists one page of a principal's links with sorting and
// filtering, plus the aggregate stats shown at the top of the dashboard.
func (s *LinkService) GetDashboard(ctx context.Context, ownerID string, q DashboardQuery) (Dashboard, error) {
	sortBy := q.SortBy
	switch sortBy {
	case "click_count", "expires_at":
	default:
		sortBy = "created_at"
	}

	state := store.LinkStateAll
	switch store.LinkState(q.State) {
	case store.LinkStateActive, store.LinkStateExpired:
		state = store.LinkState(q.State)
	}

	page := q.Page
	if page < 1 {
		page = 1
	}
	pageSize := q.PageSize
	if pageSize <= 0 {
		pageSize = DefaultDashboardPageSize
	}
	if pageSize > MaxDashboardPageSize {
		pageSize = MaxDashboardPageSize
	}

	query := store.ListOwnedLinksQuery{
		OwnerID:    ownerID,
		SortBy:     sortBy,
		Descending: !q.Ascending,
		TextFilter: strings.TrimSpace(q.TextFilter),
		State:      state,
		Now:        time.Now().UTC(),
		Offset:     (page - 1) * pageSize,
		Limit:      pageSize,
	}

	links, err := s.Store.Links().ListOwnedLinks(ctx, query)
	if err != nil {
		return Dashboard{}, err
	}

	stats, err := s.Store.Links().GetOwnedLinkStats(ctx, query)
	if err != nil {
		return Dashboard{}, err
	}

	return Dashboard{Links: links, Stats: stats, Page: page, PageSize: pageSize}, nil
}

// ownedLink fetches a link and verifies the caller owns it. Links that exist
// but belong to someone else come back as ErrLinkNotFound so the API leaks
// nothing about other people's links.
func (s *LinkService) ownedLink(ctx context.Context, ownerID, linkID string) (domain.Link, error) {
	link, err := s.Store.Links().GetLinkByID(ctx, linkID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.Link{}, ErrLinkNotFound
		}
		return domain.Link{}, err
	}
	if link.OwnerID == nil || *link.OwnerID != ownerID {
		return domain.Link{}, ErrLinkNotFound
	}
	return link, nil
}

// insertWithCode generates a candidate short code and inserts, retrying with
// salted candidates on collision. It works against whichever repo the caller
// hands it so it can run inside a transaction.
func (s *LinkService) insertWithCode(ctx context.Context, links store.Links, link domain.Link) (domain.Link, error) {
	seed := link.OriginalURL + link.ID

	for attempt := 0; attempt < s.MaxCodeAttempts; attempt++ {
		link.ShortCode = s.Generator(seed, attempt)

		err := links.CreateLink(ctx, link)
		if errors.Is(err, store.ErrAlreadyExists) {
			continue
		}
		if err != nil {
			return domain.Link{}, err
		}
		return links.GetLinkByID(ctx, link.ID)
	}
	return domain.Link{}, ErrCodeExhausted
}

func (s *LinkService) validateURL(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" || len(raw) > s.MaxURLLength {
		return "", ErrInvalidURL
	}

	u, err := url.Parse(raw)
	if err != nil {
		return "", ErrInvalidURL
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return "", ErrInvalidURL
	}
	return u.String(), nil
}

func (s *LinkService) validateExpiry(expiresAt *time.Time) error {
	if expiresAt == nil {
		return nil
	}
	now := time.Now().UTC()
	if !expiresAt.After(now) || expiresAt.After(now.Add(MaxOwnedExpiry)) {
		return ErrInvalidExpiry
	}
	return nil
}

func normalizeExpiry(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	utc := t.UTC()
	return &utc
}
