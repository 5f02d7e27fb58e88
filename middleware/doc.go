// Package middleware adapts authclient route decisions to net/http.
//
// # Guards
//
//   - [Guard] enforces one [authclient.Requirement] on a handler.
//   - [RequireRole] and [RequireAdmin] are shorthands for role rules.
//   - [Routes] resolves each request path through an [authclient.RouteTable].
//
// Each guard takes a fresh session snapshot per request and applies the
// decision: pending sessions get 503 with Retry-After, redirects become 303
// (replace) or 302 responses, and allowed requests carry the session in
// their context.
//
// # Architecture boundaries
//
// This package translates decisions into HTTP. It does not decide access
// itself; every decision comes from [authclient.Guard].
package middleware
