package shortener_test

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/aussiebroadwan/snip/pkg/snipsdk"
	"github.com/stretchr/testify/require"
)

// TestAnonymousCreateRateLimit verifies the strict limit on the anonymous
// creation endpoint using production defaults (5 requests per minute).
func TestAnonymousCreateRateLimit(t *testing.T) {
	baseURL, cleanup := setupShortenerContainerWithDefaultRateLimits(t)
	defer cleanup()

	client := snipsdk.NewSDKClient(baseURL)

	var limited bool
	for i := 0; i < 10; i++ {
		_, err := client.CreateAnonymousLink(t.Context(),
			fmt.Sprintf("https://example.com/page/%d", i))
		if err == nil {
			continue
		}

		var apiErr *snipsdk.APIError
		require.True(t, errors.As(err, &apiErr), "unexpected error: %v", err)
		require.Equal(t, http.StatusTooManyRequests, apiErr.StatusCode)
		limited = true
		break
	}
	require.True(t, limited, "strict limit should reject within 10 rapid requests")
}

// TestRedirectLimitIsLenient verifies the public redirect path tolerates
// bursts well beyond the creation limits.
func TestRedirectLimitIsLenient(t *testing.T) {
	baseURL, cleanup := setupShortenerContainerWithDefaultRateLimits(t)
	defer cleanup()

	client := snipsdk.NewSDKClient(baseURL)

	link, err := client.CreateAnonymousLink(t.Context(), "https://example.com/hot")
	require.NoError(t, err)

	// Well under the public profile but far over the strict one.
	for i := 0; i < 50; i++ {
		location, err := client.ResolveLocation(t.Context(), link.ShortCode)
		require.NoError(t, err)
		require.Equal(t, "https://example.com/hot", location)
	}
}
