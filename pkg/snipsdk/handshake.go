package snipsdk

import (
	"context"
	"errors"
	"sync"
	"time"
)

// DefaultHandshakeTimeout is how long a login popup gets before the
// handshake gives up.
const DefaultHandshakeTimeout = 5 * time.Minute

var (
	// ErrHandshakeTimeout is returned when the popup never settles.
	ErrHandshakeTimeout = errors.New("snipsdk: login handshake timed out")

	// ErrHandshakeCancelled is returned when the popup is closed before a
	// result arrives.
	ErrHandshakeCancelled = errors.New("snipsdk: login cancelled")
)

// Handshake collects the result of a popup login flow. The popup posts a
// Message back to its opener; the opener feeds it into Deliver. A handshake
// settles exactly once: the first Deliver, Cancel, or timeout wins and
// everything after it is ignored.
type Handshake struct {
	allowedOrigins map[string]bool
	timeout        time.Duration

	mu      sync.Mutex
	settled bool
	done    chan struct{}
	payload *AuthPayload
	err     error
}

// NewHandshake creates a handshake that only accepts messages from the given
// origins. Messages from any other origin are silently ignored, since a login
// popup can be navigated anywhere by the provider.
func NewHandshake(allowedOrigins ...string) *Handshake {
	origins := make(map[string]bool, len(allowedOrigins))
	for _, o := range allowedOrigins {
		origins[o] = true
	}
	return &Handshake{
		allowedOrigins: origins,
		timeout:        DefaultHandshakeTimeout,
		done:           make(chan struct{}),
	}
}

// SetTimeout overrides the default timeout. Must be called before Wait.
func (h *Handshake) SetTimeout(d time.Duration) {
	if d > 0 {
		h.timeout = d
	}
}

// Deliver feeds a message from the popup into the handshake. Messages from
// origins outside the allowlist are dropped without settling. Returns whether
// this call settled the handshake.
func (h *Handshake) Deliver(origin string, msg Message) bool {
	if !h.allowedOrigins[origin] {
		return false
	}

	switch msg.Type {
	case MessageTypeSuccess:
		if msg.Payload == nil {
			return h.settle(nil, errors.New("snipsdk: success message missing payload"))
		}
		return h.settle(msg.Payload, nil)
	case MessageTypeError:
		reason := msg.Error
		if reason == "" {
			reason = "login failed"
		}
		return h.settle(nil, errors.New("snipsdk: "+reason))
	default:
		// Unknown message types never settle; other scripts may post
		// unrelated messages to the same window.
		return false
	}
}

// Cancel settles the handshake as cancelled, e.g. when the popup window is
// observed closed.
func (h *Handshake) Cancel() {
	h.settle(nil, ErrHandshakeCancelled)
}

func (h *Handshake) settle(payload *AuthPayload, err error) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.settled {
		return false
	}
	h.settled = true
	h.payload = payload
	h.err = err
	close(h.done)
	return true
}

// Wait blocks until the handshake settles or times out and returns the login
// payload.
func (h *Handshake) Wait(ctx context.Context) (*AuthPayload, error) {
	timer := time.NewTimer(h.timeout)
	defer timer.Stop()

	select {
	case <-h.done:
		h.mu.Lock()
		defer h.mu.Unlock()
		return h.payload, h.err
	case <-timer.C:
		h.settle(nil, ErrHandshakeTimeout)
		h.mu.Lock()
		defer h.mu.Unlock()
		return h.payload, h.err
	case <-ctx.Done():
		h.settle(nil, ctx.Err())
		h.mu.Lock()
		defer h.mu.Unlock()
		return h.payload, h.err
	}
}
