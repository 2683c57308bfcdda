package sqlite_test

import (
	"context"
	"testing"
	"time"

	"github.com/aussiebroadwan/snip/internal/shortener/domain"
	"github.com/aussiebroadwan/snip/internal/shortener/store"
	"github.com/aussiebroadwan/snip/internal/shortener/store/drivers/sqlite"
	"github.com/aussiebroadwan/snip/pkg/idx"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *sqlite.Store {
	t.Helper()

	s, err := sqlite.NewStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	require.NoError(t, s.ApplyMigrations())
	return s
}

func newPrincipal() domain.Principal {
	id := idx.New().String()
	return domain.Principal{
		ID:          id,
		Provider:    domain.ProviderGoogle,
		ExternalID:  "google-" + id,
		Email:       id + "@example.com",
		DisplayName: "Test Person",
	}
}

func strPtr(s string) *string { return &s }

func TestPrincipalsRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	p := newPrincipal()
	require.NoError(t, s.Principals().CreatePrincipal(ctx, p))

	t.Run("by id", func(t *testing.T) {
		got, err := s.Principals().GetPrincipalByID(ctx, p.ID)
		require.NoError(t, err)
		require.Equal(t, p.Email, got.Email)
		require.Equal(t, domain.ProviderGoogle, got.Provider)
		require.Nil(t, got.RefreshHash)
	})

	t.Run("by external id", func(t *testing.T) {
		got, err := s.Principals().GetPrincipalByExternalID(ctx, p.Provider, p.ExternalID)
		require.NoError(t, err)
		require.Equal(t, p.ID, got.ID)
	})

	t.Run("by email", func(t *testing.T) {
		got, err := s.Principals().GetPrincipalByEmail(ctx, p.Email)
		require.NoError(t, err)
		require.Equal(t, p.ID, got.ID)
	})

	t.Run("missing is ErrNotFound", func(t *testing.T) {
		_, err := s.Principals().GetPrincipalByID(ctx, "nope")
		require.ErrorIs(t, err, store.ErrNotFound)
	})

	t.Run("duplicate email is ErrAlreadyExists", func(t *testing.T) {
		dup := newPrincipal()
		dup.Email = p.Email
		require.ErrorIs(t, s.Principals().CreatePrincipal(ctx, dup), store.ErrAlreadyExists)
	})
}

func TestLinkIdentity(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	p := newPrincipal()
	require.NoError(t, s.Principals().CreatePrincipal(ctx, p))

	require.NoError(t, s.Principals().LinkIdentity(ctx, p.ID, domain.ProviderGitHub, "gh-123"))

	got, err := s.Principals().GetPrincipalByExternalID(ctx, domain.ProviderGitHub, "gh-123")
	require.NoError(t, err)
	require.Equal(t, p.ID, got.ID)
	require.Equal(t, p.Email, got.Email)
}

func TestSwapRefreshSecret(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	p := newPrincipal()
	require.NoError(t, s.Principals().CreatePrincipal(ctx, p))
	require.NoError(t, s.Principals().SetRefreshSecret(ctx, p.ID, "hash-a"))

	t.Run("swap succeeds when stored hash matches", func(t *testing.T) {
		require.NoError(t, s.Principals().SwapRefreshSecret(ctx, p.ID, "hash-a", "hash-b"))

		got, err := s.Principals().GetPrincipalByID(ctx, p.ID)
		require.NoError(t, err)
		require.NotNil(t, got.RefreshHash)
		require.Equal(t, "hash-b", *got.RefreshHash)
	})

	t.Run("stale swap loses", func(t *testing.T) {
		// A second rotation still holding "hash-a" must fail.
		err := s.Principals().SwapRefreshSecret(ctx, p.ID, "hash-a", "hash-c")
		require.ErrorIs(t, err, store.ErrNotFound)

		got, err := s.Principals().GetPrincipalByID(ctx, p.ID)
		require.NoError(t, err)
		require.Equal(t, "hash-b", *got.RefreshHash)
	})

	t.Run("clear nulls the hash", func(t *testing.T) {
		require.NoError(t, s.Principals().ClearRefreshSecret(ctx, p.ID))

		got, err := s.Principals().GetPrincipalByID(ctx, p.ID)
		require.NoError(t, err)
		require.Nil(t, got.RefreshHash)
	})
}

func TestLinksRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	expiry := time.Now().Add(time.Hour).UTC().Truncate(time.Second)
	l := domain.Link{
		ID:          idx.New().String(),
		OriginalURL: "https://example.com/some/long/path",
		ShortCode:   "abc12345",
		ExpiresAt:   &expiry,
		Active:      true,
	}
	require.NoError(t, s.Links().CreateLink(ctx, l))

	t.Run("by code", func(t *testing.T) {
		got, err := s.Links().GetLinkByCode(ctx, "abc12345")
		require.NoError(t, err)
		require.Equal(t, l.ID, got.ID)
		require.Equal(t, l.OriginalURL, got.OriginalURL)
		require.Nil(t, got.OwnerID)
		require.NotNil(t, got.ExpiresAt)
		require.True(t, got.Anonymous())
	})

	t.Run("code exists", func(t *testing.T) {
		exists, err := s.Links().CodeExists(ctx, "abc12345")
		require.NoError(t, err)
		require.True(t, exists)

		exists, err = s.Links().CodeExists(ctx, "zzzzzzzz")
		require.NoError(t, err)
		require.False(t, exists)
	})

	t.Run("duplicate code is ErrAlreadyExists", func(t *testing.T) {
		dup := domain.Link{ID: idx.New().String(), OriginalURL: "https://example.org", ShortCode: "abc12345", Active: true}
		require.ErrorIs(t, s.Links().CreateLink(ctx, dup), store.ErrAlreadyExists)
	})

	t.Run("increment click count", func(t *testing.T) {
		require.NoError(t, s.Links().IncrementClickCount(ctx, l.ID))
		require.NoError(t, s.Links().IncrementClickCount(ctx, l.ID))

		got, err := s.Links().GetLinkByID(ctx, l.ID)
		require.NoError(t, err)
		require.EqualValues(t, 2, got.ClickCount)
	})

	t.Run("update short code", func(t *testing.T) {
		require.NoError(t, s.Links().UpdateShortCode(ctx, l.ID, "fresh123"))

		_, err := s.Links().GetLinkByCode(ctx, "abc12345")
		require.ErrorIs(t, err, store.ErrNotFound)

		got, err := s.Links().GetLinkByCode(ctx, "fresh123")
		require.NoError(t, err)
		require.Equal(t, l.ID, got.ID)
	})

	t.Run("delete", func(t *testing.T) {
		require.NoError(t, s.Links().DeleteLink(ctx, l.ID))
		_, err := s.Links().GetLinkByID(ctx, l.ID)
		require.ErrorIs(t, err, store.ErrNotFound)

		require.ErrorIs(t, s.Links().DeleteLink(ctx, l.ID), store.ErrNotFound)
	})
}

func TestOwnedLinkListingAndStats(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	p := newPrincipal()
	require.NoError(t, s.Principals().CreatePrincipal(ctx, p))

	now := time.Now().UTC()
	past := now.Add(-time.Hour)

	// Three owned links: one flagged inactive, one active but past expiry.
	seeds := []struct {
		url     string
		clicks  int64
		active  bool
		expires *time.Time
	}{
		{"https://example.com/alpha", 5, true, nil},
		{"https://example.com/beta", 1, false, nil},
		{"https://other.net/Gamma", 9, true, &past},
	}
	for i, seed := range seeds {
		l := domain.Link{
			ID:          idx.New().String(),
			OriginalURL: seed.url,
			ShortCode:   "owned" + string(rune('a'+i)),
			OwnerID:     &p.ID,
			Active:      seed.active,
			ClickCount:  seed.clicks,
			ExpiresAt:   seed.expires,
		}
		require.NoError(t, s.Links().CreateLink(ctx, l))
	}

	t.Run("sorted by clicks descending", func(t *testing.T) {
		links, err := s.Links().ListOwnedLinks(ctx, store.ListOwnedLinksQuery{
			OwnerID:    p.ID,
			SortBy:     "click_count",
			Descending: true,
		})
		require.NoError(t, err)
		require.Len(t, links, 3)
		require.EqualValues(t, 9, links[0].ClickCount)
		require.EqualValues(t, 1, links[2].ClickCount)
	})

	t.Run("active excludes inactive and past-expiry", func(t *testing.T) {
		links, err := s.Links().ListOwnedLinks(ctx, store.ListOwnedLinksQuery{
			OwnerID: p.ID,
			State:   store.LinkStateActive,
			Now:     now,
		})
		require.NoError(t, err)
		require.Len(t, links, 1)
		require.Equal(t, "https://example.com/alpha", links[0].OriginalURL)
	})

	t.Run("expired includes inactive and past-expiry", func(t *testing.T) {
		links, err := s.Links().ListOwnedLinks(ctx, store.ListOwnedLinksQuery{
			OwnerID: p.ID,
			State:   store.LinkStateExpired,
			Now:     now,
		})
		require.NoError(t, err)
		require.Len(t, links, 2)
	})

	t.Run("text filter is case-insensitive", func(t *testing.T) {
		links, err := s.Links().ListOwnedLinks(ctx, store.ListOwnedLinksQuery{
			OwnerID:    p.ID,
			TextFilter: "gamma",
		})
		require.NoError(t, err)
		require.Len(t, links, 1)
		require.Equal(t, "https://other.net/Gamma", links[0].OriginalURL)
	})

	t.Run("pagination", func(t *testing.T) {
		first, err := s.Links().ListOwnedLinks(ctx, store.ListOwnedLinksQuery{
			OwnerID: p.ID,
			SortBy:  "click_count",
			Limit:   2,
		})
		require.NoError(t, err)
		require.Len(t, first, 2)

		second, err := s.Links().ListOwnedLinks(ctx, store.ListOwnedLinksQuery{
			OwnerID: p.ID,
			SortBy:  "click_count",
			Limit:   2,
			Offset:  2,
		})
		require.NoError(t, err)
		require.Len(t, second, 1)
		require.EqualValues(t, 9, second[0].ClickCount)
	})

	t.Run("stats aggregate", func(t *testing.T) {
		stats, err := s.Links().GetOwnedLinkStats(ctx, store.ListOwnedLinksQuery{OwnerID: p.ID})
		require.NoError(t, err)
		require.EqualValues(t, 3, stats.TotalLinks)
		require.EqualValues(t, 15, stats.TotalClicks)
		require.EqualValues(t, 2, stats.ActiveLinks)
	})

	t.Run("stats follow the filter", func(t *testing.T) {
		stats, err := s.Links().GetOwnedLinkStats(ctx, store.ListOwnedLinksQuery{
			OwnerID: p.ID,
			State:   store.LinkStateExpired,
			Now:     now,
		})
		require.NoError(t, err)
		require.EqualValues(t, 2, stats.TotalLinks)
		require.EqualValues(t, 10, stats.TotalClicks)
	})

	t.Run("count owned", func(t *testing.T) {
		n, err := s.Links().CountOwnedLinks(ctx, p.ID)
		require.NoError(t, err)
		require.EqualValues(t, 3, n)
	})

	t.Run("delete owned removes all", func(t *testing.T) {
		n, err := s.Links().DeleteOwnedLinks(ctx, p.ID)
		require.NoError(t, err)
		require.EqualValues(t, 3, n)
	})
}

func TestExpirySweepQueries(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	p := newPrincipal()
	require.NoError(t, s.Principals().CreatePrincipal(ctx, p))

	now := time.Now().UTC()
	past := now.Add(-time.Hour)
	future := now.Add(time.Hour)

	mk := func(code string, owner *string, expires *time.Time) domain.Link {
		l := domain.Link{
			ID:          idx.New().String(),
			OriginalURL: "https://example.com",
			ShortCode:   code,
			OwnerID:     owner,
			ExpiresAt:   expires,
			Active:      true,
		}
		require.NoError(t, s.Links().CreateLink(ctx, l))
		return l
	}

	expiredAnon := mk("anon-old", nil, &past)
	mk("anon-new", nil, &future)
	expiredOwned := mk("own-old", &p.ID, &past)
	mk("own-new", &p.ID, &future)
	mk("own-forever", &p.ID, nil)

	t.Run("expired anonymous links are deleted", func(t *testing.T) {
		n, err := s.Links().DeleteExpiredAnonymousLinks(ctx, now, 100)
		require.NoError(t, err)
		require.EqualValues(t, 1, n)

		_, err = s.Links().GetLinkByID(ctx, expiredAnon.ID)
		require.ErrorIs(t, err, store.ErrNotFound)

		_, err = s.Links().GetLinkByCode(ctx, "anon-new")
		require.NoError(t, err)
	})

	t.Run("expired owned links are deactivated not deleted", func(t *testing.T) {
		n, err := s.Links().DeactivateExpiredOwnedLinks(ctx, now, 100)
		require.NoError(t, err)
		require.EqualValues(t, 1, n)

		got, err := s.Links().GetLinkByID(ctx, expiredOwned.ID)
		require.NoError(t, err)
		require.False(t, got.Active)

		got, err = s.Links().GetLinkByCode(ctx, "own-new")
		require.NoError(t, err)
		require.True(t, got.Active)
	})

	t.Run("new expiry reactivates a deactivated link", func(t *testing.T) {
		require.NoError(t, s.Links().UpdateExpiry(ctx, expiredOwned.ID, &future))

		got, err := s.Links().GetLinkByID(ctx, expiredOwned.ID)
		require.NoError(t, err)
		require.True(t, got.Active)
		require.NotNil(t, got.ExpiresAt)

		// Flip it back so the idempotency check below still sees a clean slate.
		require.NoError(t, s.Links().UpdateExpiry(ctx, expiredOwned.ID, &past))
		_, err = s.Links().DeactivateExpiredOwnedLinks(ctx, now, 100)
		require.NoError(t, err)
	})

	t.Run("sweep is idempotent", func(t *testing.T) {
		n, err := s.Links().DeleteExpiredAnonymousLinks(ctx, now, 100)
		require.NoError(t, err)
		require.Zero(t, n)

		n, err = s.Links().DeactivateExpiredOwnedLinks(ctx, now, 100)
		require.NoError(t, err)
		require.Zero(t, n)
	})
}

func TestWithTxRollsBackOnError(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	p := newPrincipal()

	err := s.WithTx(ctx, func(tx store.Tx) error {
		if err := tx.Principals().CreatePrincipal(ctx, p); err != nil {
			return err
		}
		return context.Canceled // force rollback
	})
	require.ErrorIs(t, err, context.Canceled)

	_, err = s.Principals().GetPrincipalByID(ctx, p.ID)
	require.ErrorIs(t, err, store.ErrNotFound)
}

func TestWithTxCommits(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	p := newPrincipal()
	l := domain.Link{
		ID:          idx.New().String(),
		OriginalURL: "https://example.com",
		ShortCode:   "txcode01",
		OwnerID:     strPtr(p.ID),
		Active:      true,
	}

	err := s.WithTx(ctx, func(tx store.Tx) error {
		if err := tx.Principals().CreatePrincipal(ctx, p); err != nil {
			return err
		}
		return tx.Links().CreateLink(ctx, l)
	})
	require.NoError(t, err)

	got, err := s.Links().GetLinkByCode(ctx, "txcode01")
	require.NoError(t, err)
	require.Equal(t, l.ID, got.ID)
}
