package snipsdk

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"strings"
	"time"
)

// SDKClient is a client for the snip URL shortening service. It provides
// the unauthenticated operations and can bootstrap authenticated Sessions.
//
// The refresh token is an HttpOnly cookie, so the client always carries a
// cookie jar; the jar is the only place the refresh credential ever lives on
// the client side.
type SDKClient struct {
	BaseURL    string
	HTTPClient *http.Client
}

// NewSDKClient creates a new service client with a fresh cookie jar.
func NewSDKClient(baseURL string) *SDKClient {
	jar, _ := cookiejar.New(nil)
	return &SDKClient{
		BaseURL: strings.TrimSuffix(baseURL, "/"),
		HTTPClient: &http.Client{
			Timeout: 10 * time.Second,
			Jar:     jar,
			// Redirect responses from /{code} are the product, not a hop
			// to follow.
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
	}
}

// url builds a complete URL by appending the path to the base URL.
func (c *SDKClient) url(path string) string {
	return c.BaseURL + path
}

// doRequest performs an HTTP request with the SDKClient's HTTP client.
// This is for unauthenticated requests (no Authorization header).
func (c *SDKClient) doRequest(
	ctx context.Context,
	method, path string,
	body io.Reader,
	headers map[string]string,
) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.url(path), body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	for key, value := range headers {
		req.Header.Set(key, value)
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	return resp, nil
}

// postJSON sends a JSON body and decodes a JSON response into out.
func (c *SDKClient) postJSON(ctx context.Context, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		buf, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		body = bytes.NewReader(buf)
	}

	resp, err := c.doRequest(ctx, http.MethodPost, path, body, map[string]string{
		"Content-Type": "application/json",
	})
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	return decodeResponse(resp, out)
}

// decodeResponse decodes a 2xx JSON body into out, or parses the error
// envelope for everything else.
func decodeResponse(resp *http.Response, out any) error {
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return ParseErrorResponse(resp.StatusCode, raw)
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// CreateAnonymousLink creates an unowned short link. No authentication
// required; the link expires on the server's anonymous TTL.
func (c *SDKClient) CreateAnonymousLink(ctx context.Context, url string) (*LinkRecord, error) {
	var link LinkRecord
	if err := c.postJSON(ctx, "/url/create-anonymous", CreateLinkRequest{URL: url}, &link); err != nil {
		return nil, err
	}
	return &link, nil
}

// ResolveLocation performs a redirect lookup and returns the Location header
// without following it.
func (c *SDKClient) ResolveLocation(ctx context.Context, code string) (string, error) {
	resp, err := c.doRequest(ctx, http.MethodGet, "/"+code, nil, nil)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusFound {
		raw, _ := io.ReadAll(resp.Body)
		return "", ParseErrorResponse(resp.StatusCode, raw)
	}
	return resp.Header.Get("Location"), nil
}

// Health fetches the readiness endpoint.
func (c *SDKClient) Health(ctx context.Context) (*HealthResponse, error) {
	resp, err := c.doRequest(ctx, http.MethodGet, "/readyz", nil, nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var health HealthResponse
	if err := decodeResponse(resp, &health); err != nil {
		return nil, err
	}
	return &health, nil
}

// AuthURL returns the URL that starts the login flow for a provider. The
// browser (or popup) is sent here; the SDK never handles provider
// credentials itself.
func (c *SDKClient) AuthURL(provider string) string {
	return c.url("/auth/" + provider)
}
