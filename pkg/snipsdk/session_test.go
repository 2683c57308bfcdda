package snipsdk_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/aussiebroadwan/snip/pkg/snipsdk"
	"github.com/stretchr/testify/require"
)

// fakeService stands in for the HTTP surface the SDK talks to.
type fakeService struct {
	mux          *http.ServeMux
	refreshCalls atomic.Int64
	validToken   string
}

func newFakeService(t *testing.T) (*fakeService, *snipsdk.SDKClient) {
	t.Helper()

	f := &fakeService{mux: http.NewServeMux(), validToken: "access-1"}

	f.mux.HandleFunc("POST /auth/refresh", func(w http.ResponseWriter, r *http.Request) {
		n := f.refreshCalls.Add(1)
		f.validToken = "access-" + string(rune('0'+n))
		writeJSON(w, http.StatusOK, snipsdk.AuthPayload{
			AccessToken: f.validToken,
			TokenType:   "Bearer",
			ExpiresIn:   3600,
			Principal:   snipsdk.Principal{ID: "p1", Email: "alice@example.com"},
		})
	})

	f.mux.HandleFunc("GET /url/dashboard", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer "+f.validToken {
			snipsdk.ErrInvalidToken.WriteError(w)
			return
		}
		writeJSON(w, http.StatusOK, snipsdk.DashboardResponse{
			Links: []snipsdk.LinkRecord{{ID: "l1", ShortCode: "abc", ClickCount: 4, Active: true}},
			Stats: snipsdk.DashboardStats{TotalLinks: 1, TotalClicks: 4, ActiveLinks: 1},
		})
	})

	srv := httptest.NewServer(f.mux)
	t.Cleanup(srv.Close)

	return f, snipsdk.NewSDKClient(srv.URL)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func TestBootstrapAndAuthenticatedCall(t *testing.T) {
	ctx := context.Background()
	f, client := newFakeService(t)

	session, err := client.Bootstrap(ctx)
	require.NoError(t, err)
	require.Equal(t, "p1", session.Principal().ID)
	require.EqualValues(t, 1, f.refreshCalls.Load())

	dash, err := session.Dashboard(ctx, snipsdk.DashboardQuery{})
	require.NoError(t, err)
	require.Len(t, dash.Links, 1)
	require.EqualValues(t, 4, dash.Stats.TotalClicks)

	// The cached token was still fresh, so no extra refresh happened.
	require.EqualValues(t, 1, f.refreshCalls.Load())
}

func TestSessionRetriesOnUnauthorized(t *testing.T) {
	ctx := context.Background()
	f, client := newFakeService(t)

	session, err := client.Bootstrap(ctx)
	require.NoError(t, err)

	// Server-side the token gets invalidated behind the session's back.
	f.validToken = "rotated-elsewhere"

	dash, err := session.Dashboard(ctx, snipsdk.DashboardQuery{})
	require.NoError(t, err)
	require.Len(t, dash.Links, 1)

	// One extra refresh to recover from the 401.
	require.EqualValues(t, 2, f.refreshCalls.Load())
}

func TestSessionRefreshesExpiredToken(t *testing.T) {
	ctx := context.Background()
	f, client := newFakeService(t)

	// A payload that is already inside the expiry skew forces a refresh on
	// first use.
	session := client.NewSessionFromPayload(&snipsdk.AuthPayload{
		AccessToken: "stale",
		TokenType:   "Bearer",
		ExpiresIn:   1,
		Principal:   snipsdk.Principal{ID: "p1"},
	})

	_, err := session.Dashboard(ctx, snipsdk.DashboardQuery{})
	require.NoError(t, err)
	require.EqualValues(t, 1, f.refreshCalls.Load())
	require.NotEqual(t, "stale", session.AccessToken())
}

func TestBootstrapWithoutSessionFails(t *testing.T) {
	ctx := context.Background()

	mux := http.NewServeMux()
	mux.HandleFunc("POST /auth/refresh", func(w http.ResponseWriter, r *http.Request) {
		snipsdk.ErrInvalidRefresh.WriteError(w)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	_, err := snipsdk.NewSDKClient(srv.URL).Bootstrap(ctx)

	var apiErr *snipsdk.APIError
	require.ErrorAs(t, err, &apiErr)
	require.Equal(t, snipsdk.ErrorCodeInvalidRefresh, apiErr.Code)
	require.Equal(t, http.StatusUnauthorized, apiErr.StatusCode)
}

func TestCreateAnonymousLink(t *testing.T) {
	ctx := context.Background()

	mux := http.NewServeMux()
	mux.HandleFunc("POST /url/create-anonymous", func(w http.ResponseWriter, r *http.Request) {
		var req snipsdk.CreateLinkRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Equal(t, "https://example.com/long", req.URL)

		writeJSON(w, http.StatusCreated, snipsdk.LinkRecord{
			ID:        "l1",
			ShortCode: "abc12345",
			ShortURL:  "https://snip.example/abc12345",
			Active:    true,
			CreatedAt: time.Now(),
		})
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	link, err := snipsdk.NewSDKClient(srv.URL).CreateAnonymousLink(ctx, "https://example.com/long")
	require.NoError(t, err)
	require.Equal(t, "abc12345", link.ShortCode)
}

func TestResolveLocationDoesNotFollowRedirect(t *testing.T) {
	ctx := context.Background()

	mux := http.NewServeMux()
	mux.HandleFunc("GET /abc12345", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "https://example.com/target", http.StatusFound)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	loc, err := snipsdk.NewSDKClient(srv.URL).ResolveLocation(ctx, "abc12345")
	require.NoError(t, err)
	require.Equal(t, "https://example.com/target", loc)
}

func TestParseErrorResponse(t *testing.T) {
	t.Parallel()

	t.Run("valid envelope", func(t *testing.T) {
		apiErr := snipsdk.ParseErrorResponse(400, []byte(`{"error":"invalid_url","error_description":"bad"}`))
		require.Equal(t, "invalid_url", apiErr.Code)
		require.Equal(t, 400, apiErr.StatusCode)
	})

	t.Run("garbage body", func(t *testing.T) {
		apiErr := snipsdk.ParseErrorResponse(502, []byte("<html>bad gateway</html>"))
		require.Equal(t, snipsdk.ErrorCodeServerError, apiErr.Code)
		require.Equal(t, 502, apiErr.StatusCode)
	})
}
