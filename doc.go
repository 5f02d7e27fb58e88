// Package authclient is the client-side session and access-control core of a
// multi-role web application (MEMBER, MODERATOR, ADMIN).
//
// It owns the lifecycle of the bearer token, decides which routes a user may
// enter, and mediates every outbound API call so that authentication,
// authorization and transport failures are handled in one place.
//
// # Components
//
//   - [Manager] owns the in-memory [Session] (status, token, user, epoch) and is
//     the only writer of the credential store.
//   - [Gateway] is the only component that issues network requests. It attaches
//     the bearer token, classifies failures into [APIError] kinds and triggers a
//     forced logout at most once per session epoch.
//   - [Decide] is the pure route guard over a [Session] snapshot.
//   - [Client] ties the pieces together and runs bootstrap exactly once.
//
// Everything is constructed through [Builder]; the package holds no global
// mutable state. Manager, Gateway and Client methods are safe for concurrent use.
//
// # Epochs
//
// Every logout, forced logout and failed bootstrap advances the session epoch.
// Asynchronous results computed under an older epoch are discarded on arrival,
// which keeps a late login or profile response from resurrecting a session the
// user already left, and collapses concurrent 401 responses into a single
// forced logout, redirect and notification.
package authclient
