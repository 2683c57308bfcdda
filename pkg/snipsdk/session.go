package snipsdk

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"
)

// ExpirySkew is subtracted from the advertised token lifetime so a token is
// refreshed shortly before the server would start rejecting it.
const ExpirySkew = 60 * time.Second

// Session is an authenticated session with transparent access token refresh.
// The access token lives only in memory; the refresh credential stays in the
// client's cookie jar. All Session methods refresh automatically when the
// cached token is stale.
type Session struct {
	client *SDKClient

	mu          sync.RWMutex
	accessToken string
	expiresAt   time.Time
	principal   Principal
}

// Bootstrap creates a Session from whatever refresh cookie the client's jar
// currently holds. Returns ErrInvalidRefresh (wrapped in APIError) when there
// is no live session to resume.
func (c *SDKClient) Bootstrap(ctx context.Context) (*Session, error) {
	payload, err := c.RefreshSession(ctx)
	if err != nil {
		return nil, err
	}
	return newSession(c, payload), nil
}

// NewSessionFromPayload creates a Session from a login payload delivered out
// of band, e.g. through the popup handshake.
func (c *SDKClient) NewSessionFromPayload(payload *AuthPayload) *Session {
	return newSession(c, payload)
}

func newSession(client *SDKClient, payload *AuthPayload) *Session {
	return &Session{
		client:      client,
		accessToken: payload.AccessToken,
		expiresAt:   expiryFrom(payload.ExpiresIn),
		principal:   payload.Principal,
	}
}

func expiryFrom(expiresIn int64) time.Time {
	return time.Now().Add(time.Duration(expiresIn)*time.Second - ExpirySkew)
}

// Principal returns the account this session belongs to.
func (s *Session) Principal() Principal {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.principal
}

// AccessToken returns the cached access token without checking expiry.
// Prefer the Session methods, which handle refresh automatically.
func (s *Session) AccessToken() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.accessToken
}

// getValidToken returns a usable access token, refreshing through the cookie
// jar when the cached one is stale.
func (s *Session) getValidToken(ctx context.Context) (string, error) {
	s.mu.RLock()
	if time.Now().Before(s.expiresAt) {
		token := s.accessToken
		s.mu.RUnlock()
		return token, nil
	}
	s.mu.RUnlock()

	s.mu.Lock()
	defer s.mu.Unlock()

	// Double-check after acquiring the write lock (another goroutine may
	// have refreshed already)
	if time.Now().Before(s.expiresAt) {
		return s.accessToken, nil
	}

	payload, err := s.client.RefreshSession(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to refresh session: %w", err)
	}

	s.accessToken = payload.AccessToken
	s.expiresAt = expiryFrom(payload.ExpiresIn)
	s.principal = payload.Principal
	return s.accessToken, nil
}

// invalidate drops the cached token so the next call refreshes.
func (s *Session) invalidate() {
	s.mu.Lock()
	s.expiresAt = time.Time{}
	s.mu.Unlock()
}

// doAuthRequest performs an authenticated request. On a 401 the cached token
// is dropped and the request retried once with a fresh one.
func (s *Session) doAuthRequest(
	ctx context.Context,
	method, path string,
	body []byte,
) (*http.Response, error) {
	for attempt := 0; ; attempt++ {
		token, err := s.getValidToken(ctx)
		if err != nil {
			return nil, err
		}

		var reader io.Reader
		if body != nil {
			reader = bytes.NewReader(body)
		}
		req, err := http.NewRequestWithContext(ctx, method, s.client.url(path), reader)
		if err != nil {
			return nil, fmt.Errorf("failed to create request: %w", err)
		}
		req.Header.Set("Authorization", "Bearer "+token)
		if body != nil {
			req.Header.Set("Content-Type", "application/json")
		}

		resp, err := s.client.HTTPClient.Do(req)
		if err != nil {
			return nil, fmt.Errorf("failed to send request: %w", err)
		}

		if resp.StatusCode == http.StatusUnauthorized && attempt == 0 {
			resp.Body.Close()
			s.invalidate()
			continue
		}
		return resp, nil
	}
}

func (s *Session) authJSON(ctx context.Context, method, path string, in, out any) error {
	var body []byte
	if in != nil {
		var err error
		body, err = json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
	}

	resp, err := s.doAuthRequest(ctx, method, path, body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	return decodeResponse(resp, out)
}

// CreateLink creates an owned short link. A nil expiry means it never expires.
func (s *Session) CreateLink(ctx context.Context, url string, expiresAt *time.Time) (*LinkRecord, error) {
	var link LinkRecord
	err := s.authJSON(ctx, http.MethodPost, "/url/create", CreateLinkRequest{URL: url, ExpiresAt: expiresAt}, &link)
	if err != nil {
		return nil, err
	}
	return &link, nil
}

// Dashboard fetches one page of the link listing with aggregate stats.
func (s *Session) Dashboard(ctx context.Context, q DashboardQuery) (*DashboardResponse, error) {
	params := url.Values{}
	if q.Page > 0 {
		params.Set("page", strconv.Itoa(q.Page))
	}
	if q.PageSize > 0 {
		params.Set("page_size", strconv.Itoa(q.PageSize))
	}
	if q.Sort != "" {
		params.Set("sort", q.Sort)
	}
	if q.Ascending {
		params.Set("order", "asc")
	}
	if q.Filter != "" {
		params.Set("q", q.Filter)
	}
	if q.State != "" {
		params.Set("state", q.State)
	}

	path := "/url/dashboard"
	if encoded := params.Encode(); encoded != "" {
		path += "?" + encoded
	}

	var dash DashboardResponse
	if err := s.authJSON(ctx, http.MethodGet, path, nil, &dash); err != nil {
		return nil, err
	}
	return &dash, nil
}

// ExtendLink moves a link's expiry; nil clears it so the link never expires.
func (s *Session) ExtendLink(ctx context.Context, linkID string, expiresAt *time.Time) (*LinkRecord, error) {
	var link LinkRecord
	err := s.authJSON(ctx, http.MethodPatch, "/url/"+linkID+"/extend", ExtendLinkRequest{ExpiresAt: expiresAt}, &link)
	if err != nil {
		return nil, err
	}
	return &link, nil
}

// RegenerateLink assigns a new short code. The old one stops working.
func (s *Session) RegenerateLink(ctx context.Context, linkID string) (*LinkRecord, error) {
	var link LinkRecord
	if err := s.authJSON(ctx, http.MethodPost, "/url/"+linkID+"/regenerate", nil, &link); err != nil {
		return nil, err
	}
	return &link, nil
}

// DeleteLink removes a single link.
func (s *Session) DeleteLink(ctx context.Context, linkID string) error {
	return s.authJSON(ctx, http.MethodDelete, "/url/"+linkID, nil, nil)
}

// DeleteAllLinks removes every link the principal owns.
func (s *Session) DeleteAllLinks(ctx context.Context) (int64, error) {
	var out DeleteAllResponse
	if err := s.authJSON(ctx, http.MethodDelete, "/url", nil, &out); err != nil {
		return 0, err
	}
	return out.Deleted, nil
}

// Logout revokes the session and clears the client-side state.
func (s *Session) Logout(ctx context.Context) error {
	err := s.client.Logout(ctx)

	s.mu.Lock()
	s.accessToken = ""
	s.expiresAt = time.Time{}
	s.mu.Unlock()

	return err
}
