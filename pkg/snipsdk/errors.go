package snipsdk

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/aussiebroadwan/snip/pkg/httpx"
)

// ============================================================================
// API Error Codes
// ============================================================================

const (
	ErrorCodeInvalidRequest    = "invalid_request"
	ErrorCodeInvalidURL        = "invalid_url"
	ErrorCodeInvalidExpiry     = "invalid_expiry"
	ErrorCodeInvalidToken      = "invalid_token"
	ErrorCodeInvalidRefresh    = "invalid_refresh_token"
	ErrorCodeUnknownProvider   = "unknown_provider"
	ErrorCodeProviderExchange  = "provider_exchange_failed"
	ErrorCodeQuotaExceeded     = "quota_exceeded"
	ErrorCodeCodeExhausted     = "code_space_exhausted"
	ErrorCodeNotFound          = "not_found"
	ErrorCodeRateLimitExceeded = "rate_limit_exceeded"
	ErrorCodeServerError       = "server_error"
)

// ============================================================================
// APIError - the error envelope every JSON endpoint returns
// ============================================================================

// APIError is the error envelope the service returns on failure. It
// implements the error interface and is shared by the server (to write HTTP
// responses) and the SDK client (to represent errors).
type APIError struct {
	// StatusCode is the HTTP status code for this error
	StatusCode int `json:"-"`

	// Code is the machine-readable error code (e.g., "invalid_url")
	Code string `json:"error"`

	// Description is a human-readable description of the error
	Description string `json:"error_description"`
}

// Error implements the error interface.
func (e *APIError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Description)
}

// WriteError writes this APIError to an HTTP response writer.
func (e *APIError) WriteError(w http.ResponseWriter) {
	httpx.NoCache(w)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(e.StatusCode)
	_ = json.NewEncoder(w).Encode(map[string]string{
		"error":             e.Code,
		"error_description": e.Description,
	})
}

// ============================================================================
// Predefined API Errors
// ============================================================================

var (
	// ErrInvalidRequest is returned when the request body is malformed or
	// missing required fields.
	ErrInvalidRequest = &APIError{
		StatusCode:  http.StatusBadRequest,
		Code:        ErrorCodeInvalidRequest,
		Description: "the request is malformed or missing required parameters",
	}

	// ErrInvalidURL is returned when the destination URL is missing, too
	// long, or not an http(s) URL.
	ErrInvalidURL = &APIError{
		StatusCode:  http.StatusBadRequest,
		Code:        ErrorCodeInvalidURL,
		Description: "destination must be a valid http or https URL",
	}

	// ErrInvalidExpiry is returned when a link expiry is in the past or
	// beyond the allowed horizon.
	ErrInvalidExpiry = &APIError{
		StatusCode:  http.StatusBadRequest,
		Code:        ErrorCodeInvalidExpiry,
		Description: "expiry must be in the future and within the allowed range",
	}

	// ErrInvalidToken is returned when the access token is missing, expired,
	// or otherwise unusable.
	ErrInvalidToken = &APIError{
		StatusCode:  http.StatusUnauthorized,
		Code:        ErrorCodeInvalidToken,
		Description: "invalid or expired access token",
	}

	// ErrInvalidRefresh is returned when the refresh token is missing,
	// expired, superseded, or revoked.
	ErrInvalidRefresh = &APIError{
		StatusCode:  http.StatusUnauthorized,
		Code:        ErrorCodeInvalidRefresh,
		Description: "invalid or expired refresh token",
	}

	// ErrUnknownProvider is returned for a provider name we don't serve.
	ErrUnknownProvider = &APIError{
		StatusCode:  http.StatusNotFound,
		Code:        ErrorCodeUnknownProvider,
		Description: "unknown identity provider",
	}

	// ErrProviderExchange is returned when the upstream provider rejects the
	// authorization code or refuses to hand over a verified identity.
	ErrProviderExchange = &APIError{
		StatusCode:  http.StatusBadGateway,
		Code:        ErrorCodeProviderExchange,
		Description: "identity provider exchange failed",
	}

	// ErrQuotaExceeded is returned when a principal is at their link cap.
	ErrQuotaExceeded = &APIError{
		StatusCode:  http.StatusForbidden,
		Code:        ErrorCodeQuotaExceeded,
		Description: "link quota exceeded",
	}

	// ErrCodeExhausted is returned when code generation keeps colliding.
	ErrCodeExhausted = &APIError{
		StatusCode:  http.StatusConflict,
		Code:        ErrorCodeCodeExhausted,
		Description: "could not allocate a unique short code, retry the request",
	}

	// ErrNotFound is returned when the referenced link does not exist or
	// belongs to someone else.
	ErrNotFound = &APIError{
		StatusCode:  http.StatusNotFound,
		Code:        ErrorCodeNotFound,
		Description: "not found",
	}

	// ErrServerError is returned for unexpected internal failures.
	ErrServerError = &APIError{
		StatusCode:  http.StatusInternalServerError,
		Code:        ErrorCodeServerError,
		Description: "internal server error",
	}
)

// ParseErrorResponse decodes an error envelope from a response body. When the
// body isn't a valid envelope, a generic APIError carrying the status code is
// returned so callers always get something usable.
func ParseErrorResponse(statusCode int, body []byte) *APIError {
	var envelope struct {
		Code        string `json:"error"`
		Description string `json:"error_description"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil || envelope.Code == "" {
		return &APIError{
			StatusCode:  statusCode,
			Code:        ErrorCodeServerError,
			Description: fmt.Sprintf("unexpected response (status %d)", statusCode),
		}
	}
	return &APIError{
		StatusCode:  statusCode,
		Code:        envelope.Code,
		Description: envelope.Description,
	}
}
