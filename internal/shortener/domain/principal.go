package domain

import "time"

// Provider identifies an upstream identity provider.
type Provider string

const (
	ProviderGoogle Provider = "google"
	ProviderGitHub Provider = "github"
)

// Valid reports whether the provider is one we know how to talk to.
func (p Provider) Valid() bool {
	switch p {
	case ProviderGoogle, ProviderGitHub:
		return true
	}
	return false
}

// Principal is an account established through an identity provider.
type Principal struct {
	ID          string
	Provider    Provider
	ExternalID  string // provider-scoped subject identifier
	Email       string
	DisplayName string
	RefreshHash *string // argon2 encoded refresh secret (nullable)
	CreatedAt   time.Time
	UpdatedAt   time.Time
}
