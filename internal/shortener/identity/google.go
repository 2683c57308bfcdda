package identity

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/aussiebroadwan/snip/internal/shortener/domain"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/endpoints"
)

const googleUserinfoURL = "https://www.googleapis.com/oauth2/v2/userinfo"

type googleProvider struct {
	config *oauth2.Config
}

// NewGoogle builds the Google provider. Requested scopes only cover the
// profile basics we store.
func NewGoogle(creds Credentials) Provider {
	return &googleProvider{
		config: creds.oauthConfig(endpoints.Google, []string{
			"https://www.googleapis.com/auth/userinfo.email",
			"https://www.googleapis.com/auth/userinfo.profile",
		}),
	}
}

func (p *googleProvider) Name() domain.Provider {
	return domain.ProviderGoogle
}

func (p *googleProvider) AuthCodeURL(state string) string {
	return p.config.AuthCodeURL(state)
}

func (p *googleProvider) Exchange(ctx context.Context, code string) (Assertion, error) {
	token, err := p.config.Exchange(ctx, code)
	if err != nil {
		return Assertion{}, fmt.Errorf("%w: %v", ErrExchangeFailed, err)
	}

	resp, err := p.config.Client(ctx, token).Get(googleUserinfoURL)
	if err != nil {
		return Assertion{}, fmt.Errorf("%w: %v", ErrExchangeFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Assertion{}, fmt.Errorf("%w: userinfo returned %d", ErrExchangeFailed, resp.StatusCode)
	}

	var info struct {
		ID            string `json:"id"`
		Email         string `json:"email"`
		VerifiedEmail bool   `json:"verified_email"`
		Name          string `json:"name"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return Assertion{}, fmt.Errorf("%w: %v", ErrExchangeFailed, err)
	}

	// Unverified addresses could hijack an existing account via email match.
	if info.Email == "" || !info.VerifiedEmail {
		return Assertion{}, ErrNoVerifiedEmail
	}

	return Assertion{
		Provider:    domain.ProviderGoogle,
		ExternalID:  info.ID,
		Email:       info.Email,
		DisplayName: info.Name,
	}, nil
}
