package snipsdk

import (
	"context"
	"net/http"
)

// RefreshSession exchanges the refresh cookie for a fresh access token. The
// rotated refresh cookie lands back in the client's jar automatically.
func (c *SDKClient) RefreshSession(ctx context.Context) (*AuthPayload, error) {
	var payload AuthPayload
	if err := c.postJSON(ctx, "/auth/refresh", nil, &payload); err != nil {
		return nil, err
	}
	return &payload, nil
}

// Status reports whether the refresh cookie still represents a live session.
func (c *SDKClient) Status(ctx context.Context) (*StatusResponse, error) {
	resp, err := c.doRequest(ctx, http.MethodGet, "/auth/status", nil, nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var status StatusResponse
	if err := decodeResponse(resp, &status); err != nil {
		return nil, err
	}
	return &status, nil
}

// Logout revokes the session server-side and clears the refresh cookie.
// It never fails on an already-dead session.
func (c *SDKClient) Logout(ctx context.Context) error {
	return c.postJSON(ctx, "/auth/logout", nil, nil)
}
