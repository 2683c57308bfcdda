// Package snipsdk is the Go client for the snip URL shortening service.
//
// Unauthenticated operations (anonymous link creation, redirect lookup,
// health) hang off SDKClient. Authenticated operations hang off Session,
// which caches the access token in memory and refreshes it transparently
// through the HttpOnly refresh cookie held in the client's jar.
//
// Login happens in a browser popup; Handshake collects the result the popup
// posts back to its opener and settles exactly once.
package snipsdk
