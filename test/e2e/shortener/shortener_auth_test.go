package shortener_test

import (
	"errors"
	"net/http"
	"testing"

	"github.com/aussiebroadwan/snip/pkg/snipsdk"
	"github.com/stretchr/testify/require"
)

// Provider round trips need live OAuth credentials, so the end-to-end suite
// covers the unauthenticated surface of the session endpoints. The full
// login flow is exercised against a stub provider in the router tests.
func TestSessionEndpointsWithoutLogin(t *testing.T) {
	baseURL, cleanup := setupShortenerContainer(t)
	defer cleanup()

	client := snipsdk.NewSDKClient(baseURL)

	t.Run("status is unauthenticated", func(t *testing.T) {
		status, err := client.Status(t.Context())
		require.NoError(t, err)
		require.False(t, status.Authenticated)
		require.Nil(t, status.Principal)
	})

	t.Run("refresh without a cookie fails", func(t *testing.T) {
		_, err := client.RefreshSession(t.Context())
		require.Error(t, err)

		var apiErr *snipsdk.APIError
		require.True(t, errors.As(err, &apiErr))
		require.Equal(t, http.StatusUnauthorized, apiErr.StatusCode)
		require.Equal(t, snipsdk.ErrorCodeInvalidRefresh, apiErr.Code)
	})

	t.Run("logout without a cookie is a no-op", func(t *testing.T) {
		require.NoError(t, client.Logout(t.Context()))
	})

	t.Run("unconfigured provider is not found", func(t *testing.T) {
		resp, err := http.Get(baseURL + "/auth/google")
		require.NoError(t, err)
		defer resp.Body.Close()
		require.Equal(t, http.StatusNotFound, resp.StatusCode)
	})

	t.Run("dashboard requires a token", func(t *testing.T) {
		resp, err := http.Get(baseURL + "/url/dashboard")
		require.NoError(t, err)
		defer resp.Body.Close()
		require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})
}
