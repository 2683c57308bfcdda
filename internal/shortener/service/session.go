package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/aussiebroadwan/snip/internal/shortener/domain"
	"github.com/aussiebroadwan/snip/internal/shortener/identity"
	"github.com/aussiebroadwan/snip/internal/shortener/store"
	"github.com/aussiebroadwan/snip/pkg/cryptox"
	"github.com/aussiebroadwan/snip/pkg/idx"
	"github.com/aussiebroadwan/snip/pkg/jwtx"
	"github.com/aussiebroadwan/snip/pkg/slogx"
)

var (
	ErrInvalidToken   = errors.New("invalid_token")
	ErrInvalidRefresh = errors.New("invalid_refresh_token")
)

// SessionService turns verified provider identities into principals and
// manages the access/refresh token lifecycle for them.
type SessionService struct {
	Store      store.Store
	Signer     *jwtx.Signer
	AccessTTL  time.Duration
	RefreshTTL time.Duration
}

func NewSessionService(st store.Store, signer *jwtx.Signer) *SessionService {
	return &SessionService{
		Store:      st,
		Signer:     signer,
		AccessTTL:  jwtx.DefaultAccessTokenTTL,
		RefreshTTL: jwtx.DefaultRefreshTokenTTL,
	}
}

// ResolvePrincipal maps a verified provider assertion onto a principal.
// Match order: provider identity first, then email (which links the new
// identity onto the existing account), then a brand-new principal.
func (s *SessionService) ResolvePrincipal(ctx context.Context, a identity.Assertion) (domain.Principal, error) {
	l := slogx.FromContext(ctx)

	p, err := s.Store.Principals().GetPrincipalByExternalID(ctx, a.Provider, a.ExternalID)
	if err == nil {
		if err := s.refreshDisplayName(ctx, &p, a.DisplayName); err != nil {
			return domain.Principal{}, err
		}
		return p, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return domain.Principal{}, err
	}

	p, err = s.Store.Principals().GetPrincipalByEmail(ctx, a.Email)
	if err == nil {
		// Same mailbox, different provider. Adopt the new identity so the
		// account follows the person, not the provider.
		if err := s.Store.Principals().LinkIdentity(ctx, p.ID, a.Provider, a.ExternalID); err != nil {
			return domain.Principal{}, err
		}
		l.Info("provider identity linked",
			slog.String("principal_id", p.ID),
			slog.String("provider", string(a.Provider)),
		)
		p.Provider = a.Provider
		p.ExternalID = a.ExternalID
		if err := s.refreshDisplayName(ctx, &p, a.DisplayName); err != nil {
			return domain.Principal{}, err
		}
		return p, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return domain.Principal{}, err
	}

	p = domain.Principal{
		ID:          idx.New().String(),
		Provider:    a.Provider,
		ExternalID:  a.ExternalID,
		Email:       a.Email,
		DisplayName: a.DisplayName,
	}
	if err := s.Store.Principals().CreatePrincipal(ctx, p); err != nil {
		return domain.Principal{}, err
	}

	l.Info("principal created",
		slog.String("principal_id", p.ID),
		slog.String("provider", string(a.Provider)),
	)
	return p, nil
}

// refreshDisplayName stores the name the provider currently reports when it
// differs from what we have. People rename themselves upstream and expect the
// dashboard to follow.
func (s *SessionService) refreshDisplayName(ctx context.Context, p *domain.Principal, name string) error {
	if name == "" || name == p.DisplayName {
		return nil
	}
	if err := s.Store.Principals().UpdateDisplayName(ctx, p.ID, name); err != nil {
		return err
	}
	p.DisplayName = name
	return nil
}

// IssueForPrincipal mints a fresh access/refresh pair and stores the hash of
// the refresh token on the principal row. Any previously issued refresh token
// stops working.
func (s *SessionService) IssueForPrincipal(ctx context.Context, principalID string) (*domain.TokenPair, error) {
	access, refresh, err := s.mintPair(principalID)
	if err != nil {
		return nil, err
	}

	hash, err := cryptox.HashSecret(refresh)
	if err != nil {
		return nil, err
	}
	if err := s.Store.Principals().SetRefreshSecret(ctx, principalID, hash); err != nil {
		return nil, err
	}

	return &domain.TokenPair{
		AccessToken:  access,
		RefreshToken: refresh,
		TokenType:    "Bearer",
		ExpiresIn:    s.AccessTTL,
	}, nil
}

// ValidateAccess verifies an access token and loads the principal it was
// issued for. Every failure mode, a missing principal included, collapses
// into ErrInvalidToken so callers can't distinguish expired from forged. A
// token minted for a since-removed principal stops working immediately.
func (s *SessionService) ValidateAccess(ctx context.Context, token string) (domain.Principal, error) {
	claims, err := s.Signer.Verify(token)
	if err != nil {
		return domain.Principal{}, ErrInvalidToken
	}
	if err := claims.ValidateUse(jwtx.UseAccess); err != nil {
		return domain.Principal{}, ErrInvalidToken
	}

	p, err := s.Store.Principals().GetPrincipalByID(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.Principal{}, ErrInvalidToken
		}
		return domain.Principal{}, err
	}
	return p, nil
}

// Refresh rotates a refresh token: the presented token must be the one
// currently on record, and rotation is a compare-and-swap so when two
// requests race with the same token exactly one wins. Returns the rotated
// pair and the principal it belongs to.
func (s *SessionService) Refresh(ctx context.Context, token string) (*domain.TokenPair, domain.Principal, error) {
	l := slogx.FromContext(ctx)

	p, oldHash, err := s.verifyRefresh(ctx, token)
	if err != nil {
		return nil, domain.Principal{}, err
	}

	access, refresh, err := s.mintPair(p.ID)
	if err != nil {
		return nil, domain.Principal{}, err
	}
	newHash, err := cryptox.HashSecret(refresh)
	if err != nil {
		return nil, domain.Principal{}, err
	}

	if err := s.Store.Principals().SwapRefreshSecret(ctx, p.ID, oldHash, newHash); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			// Someone rotated first; this request loses.
			l.Info("refresh rotation lost race", slog.String("principal_id", p.ID))
			return nil, domain.Principal{}, ErrInvalidRefresh
		}
		return nil, domain.Principal{}, err
	}

	return &domain.TokenPair{
		AccessToken:  access,
		RefreshToken: refresh,
		TokenType:    "Bearer",
		ExpiresIn:    s.AccessTTL,
	}, p, nil
}

// CheckRefresh verifies a refresh token without rotating it and returns the
// principal it belongs to. Used by the status endpoint.
func (s *SessionService) CheckRefresh(ctx context.Context, token string) (domain.Principal, error) {
	p, _, err := s.verifyRefresh(ctx, token)
	if err != nil {
		return domain.Principal{}, err
	}
	return p, nil
}

// Revoke invalidates the stored refresh secret for whoever the token belongs
// to. Best effort: an invalid token is simply ignored so logout never fails.
func (s *SessionService) Revoke(ctx context.Context, token string) {
	l := slogx.FromContext(ctx)

	claims, err := s.Signer.Verify(token)
	if err != nil || claims.ValidateUse(jwtx.UseRefresh) != nil {
		return
	}

	if err := s.Store.Principals().ClearRefreshSecret(ctx, claims.Subject); err != nil &&
		!errors.Is(err, store.ErrNotFound) {
		l.Warn("refresh revocation failed", slog.String("principal_id", claims.Subject), slog.Any("error", err))
		return
	}
	l.Info("session revoked", slog.String("principal_id", claims.Subject))
}

// mintPair signs a fresh access and refresh token for a principal.
func (s *SessionService) mintPair(principalID string) (access, refresh string, err error) {
	now := time.Now().UTC()
	issuer := s.Signer.Issuer()

	access, err = s.Signer.Sign(jwtx.NewClaims(principalID, jwtx.UseAccess, s.AccessTTL, issuer, now))
	if err != nil {
		return "", "", err
	}
	refresh, err = s.Signer.Sign(jwtx.NewClaims(principalID, jwtx.UseRefresh, s.RefreshTTL, issuer, now))
	if err != nil {
		return "", "", err
	}
	return access, refresh, nil
}

// verifyRefresh checks the token signature, use claim, and that it matches
// the hash currently on record. Returns the principal and the stored hash so
// rotation can compare-and-swap against it.
func (s *SessionService) verifyRefresh(ctx context.Context, token string) (domain.Principal, string, error) {
	claims, err := s.Signer.Verify(token)
	if err != nil {
		return domain.Principal{}, "", ErrInvalidRefresh
	}
	if err := claims.ValidateUse(jwtx.UseRefresh); err != nil {
		return domain.Principal{}, "", ErrInvalidRefresh
	}

	p, err := s.Store.Principals().GetPrincipalByID(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.Principal{}, "", ErrInvalidRefresh
		}
		return domain.Principal{}, "", err
	}
	if p.RefreshHash == nil {
		return domain.Principal{}, "", ErrInvalidRefresh
	}
	if err := cryptox.VerifySecret(token, *p.RefreshHash); err != nil {
		return domain.Principal{}, "", ErrInvalidRefresh
	}
	return p, *p.RefreshHash, nil
}
