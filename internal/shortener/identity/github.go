package identity

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/aussiebroadwan/snip/internal/shortener/domain"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/endpoints"
)

const (
	githubUserURL   = "https://api.github.com/user"
	githubEmailsURL = "https://api.github.com/user/emails"
)

type githubProvider struct {
	config *oauth2.Config
}

// NewGitHub builds the GitHub provider. The user:email scope is needed
// because profile emails can be hidden.
func NewGitHub(creds Credentials) Provider {
	return &githubProvider{
		config: creds.oauthConfig(endpoints.GitHub, []string{"read:user", "user:email"}),
	}
}

func (p *githubProvider) Name() domain.Provider {
	return domain.ProviderGitHub
}

func (p *githubProvider) AuthCodeURL(state string) string {
	return p.config.AuthCodeURL(state)
}

func (p *githubProvider) Exchange(ctx context.Context, code string) (Assertion, error) {
	token, err := p.config.Exchange(ctx, code)
	if err != nil {
		return Assertion{}, fmt.Errorf("%w: %v", ErrExchangeFailed, err)
	}
	client := p.config.Client(ctx, token)

	var user struct {
		ID    int64  `json:"id"`
		Login string `json:"login"`
		Name  string `json:"name"`
		Email string `json:"email"`
	}
	if err := getJSON(ctx, client, githubUserURL, &user); err != nil {
		return Assertion{}, err
	}

	email, err := p.primaryVerifiedEmail(ctx, client)
	if err != nil {
		return Assertion{}, err
	}

	displayName := user.Name
	if displayName == "" {
		displayName = user.Login
	}

	return Assertion{
		Provider:    domain.ProviderGitHub,
		ExternalID:  strconv.FormatInt(user.ID, 10),
		Email:       email,
		DisplayName: displayName,
	}, nil
}

// primaryVerifiedEmail walks the emails endpoint looking for the primary
// verified address, falling back to any verified one.
func (p *githubProvider) primaryVerifiedEmail(ctx context.Context, client *http.Client) (string, error) {
	var emails []struct {
		Email    string `json:"email"`
		Primary  bool   `json:"primary"`
		Verified bool   `json:"verified"`
	}
	if err := getJSON(ctx, client, githubEmailsURL, &emails); err != nil {
		return "", err
	}

	fallback := ""
	for _, e := range emails {
		if !e.Verified {
			continue
		}
		if e.Primary {
			return e.Email, nil
		}
		if fallback == "" {
			fallback = e.Email
		}
	}
	if fallback == "" {
		return "", ErrNoVerifiedEmail
	}
	return fallback, nil
}

func getJSON(ctx context.Context, client *http.Client, url string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrExchangeFailed, err)
	}
	req.Header.Set("Accept", "application/vnd.github+json")

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrExchangeFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: %s returned %d", ErrExchangeFailed, url, resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: %v", ErrExchangeFailed, err)
	}
	return nil
}
