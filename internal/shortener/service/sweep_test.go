package service

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/aussiebroadwan/snip/internal/shortener/domain"
	"github.com/aussiebroadwan/snip/internal/shortener/store"
	"github.com/aussiebroadwan/snip/pkg/idx"
	"github.com/stretchr/testify/require"
)

func TestSweep(t *testing.T) {
	ctx := context.Background()
	st := newTestStore(t)
	p := createTestPrincipal(t, st)

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
		require.NoError(t, st.Links().CreateLink(ctx, l))
		return l
	}

	expiredAnon := mk("anon-old", nil, &past)
	liveAnon := mk("anon-new", nil, &future)
	expiredOwned := mk("own-old", &p.ID, &past)
	liveOwned := mk("own-new", &p.ID, &future)

	svc := NewSweepService(st, slog.Default(), time.Hour)
	svc.Sweep(ctx)

	t.Run("expired anonymous link is gone", func(t *testing.T) {
		_, err := st.Links().GetLinkByID(ctx, expiredAnon.ID)
		require.ErrorIs(t, err, store.ErrNotFound)
	})

	t.Run("live anonymous link survives", func(t *testing.T) {
		_, err := st.Links().GetLinkByID(ctx, liveAnon.ID)
		require.NoError(t, err)
	})

	t.Run("expired owned link is deactivated but kept", func(t *testing.T) {
		got, err := st.Links().GetLinkByID(ctx, expiredOwned.ID)
		require.NoError(t, err)
		require.False(t, got.Active)
	})

	t.Run("live owned link untouched", func(t *testing.T) {
		got, err := st.Links().GetLinkByID(ctx, liveOwned.ID)
		require.NoError(t, err)
		require.True(t, got.Active)
	})
}

func TestSweepServiceLifecycle(t *testing.T) {
	st := newTestStore(t)

	svc := NewSweepService(st, slog.Default(), time.Hour)
	svc.Start()
	svc.Stop() // must not hang or panic
}

func TestNewSweepServiceDefaultsInterval(t *testing.T) {
	svc := NewSweepService(nil, slog.Default(), 0)
	require.Equal(t, 24*time.Hour, svc.Interval)
}
