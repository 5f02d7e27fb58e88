// Package authtest runs an in-process stand-in for the authentication
// backend so client behavior can be tested without the real service.
//
// The server speaks the backend's wire format: the four user endpoints under
// /api/users, JSON bodies wrapped in the {success, message, data, errors}
// envelope, HS256 bearer tokens and 401 for any token it does not accept.
// Hooks let tests expire tokens, inject failures, add latency and hold
// requests at a gate to order concurrent flows.
package authtest
