// Package identity talks to upstream OAuth providers and reduces whatever
// they return to a minimal verified assertion about who the person is.
package identity

import (
	"context"
	"errors"

	"github.com/aussiebroadwan/snip/internal/shortener/domain"
	"golang.org/x/oauth2"
)

var (
	ErrUnknownProvider = errors.New("unknown_provider")
	ErrExchangeFailed  = errors.New("provider_exchange_failed")
	ErrNoVerifiedEmail = errors.New("no_verified_email")
)

// Assertion is what a provider tells us about a person after a successful
// code exchange. Email is always verified by the provider before we accept it.
type Assertion struct {
	Provider    domain.Provider
	ExternalID  string
	Email       string
	DisplayName string
}

// Provider wraps one upstream identity provider.
type Provider interface {
	// Name identifies the provider in routes and stored identities.
	Name() domain.Provider

	// AuthCodeURL builds the URL the browser is sent to, carrying state.
	AuthCodeURL(state string) string

	// Exchange swaps an authorization code for a verified assertion.
	Exchange(ctx context.Context, code string) (Assertion, error)
}

// Registry holds the configured providers keyed by name.
type Registry struct {
	providers map[domain.Provider]Provider
}

func NewRegistry(providers ...Provider) *Registry {
	r := &Registry{providers: make(map[domain.Provider]Provider, len(providers))}
	for _, p := range providers {
		r.providers[p.Name()] = p
	}
	return r
}

// Get returns the provider for a name, or ErrUnknownProvider.
func (r *Registry) Get(name domain.Provider) (Provider, error) {
	p, ok := r.providers[name]
	if !ok {
		return nil, ErrUnknownProvider
	}
	return p, nil
}

// Names lists the configured providers.
func (r *Registry) Names() []domain.Provider {
	names := make([]domain.Provider, 0, len(r.providers))
	for name := range r.providers {
		names = append(names, name)
	}
	return names
}

// Credentials are the client id/secret pair registered with a provider.
type Credentials struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
}

// Configured reports whether both halves of the credential are present.
func (c Credentials) Configured() bool {
	return c.ClientID != "" && c.ClientSecret != ""
}

func (c Credentials) oauthConfig(endpoint oauth2.Endpoint, scopes []string) *oauth2.Config {
	return &oauth2.Config{
		ClientID:     c.ClientID,
		ClientSecret: c.ClientSecret,
		RedirectURL:  c.RedirectURL,
		Endpoint:     endpoint,
		Scopes:       scopes,
	}
}
