package authclient

import (
	"path"
	"strings"
)

// DecisionKind is the outcome of a route check.
type DecisionKind uint8

const (
	// DecisionPending means the session is still bootstrapping; show a
	// loading state and ask again on the next status change.
	DecisionPending DecisionKind = iota
	DecisionAllow
	DecisionRedirect
)

func (k DecisionKind) String() string {
	switch k {
	case DecisionPending:
		return "pending"
	case DecisionAllow:
		return "allow"
	case DecisionRedirect:
		return "redirect"
	}
	return "unknown"
}

// Decision is what the navigation layer should do with a route. Path and
// Replace are only meaningful for DecisionRedirect.
type Decision struct {
	Kind    DecisionKind
	Path    string
	Replace bool
}

// Requirement describes who may enter a route. The zero value admits any
// authenticated user.
type Requirement struct {
	// Public routes are open to everyone, in every state.
	Public bool
	// MinRole, when set, admits roles ranked at or above it.
	MinRole Role
	// ExactRole, when set, admits only that role.
	ExactRole Role
}

// RequireAuth admits any authenticated user.
func RequireAuth() Requirement { return Requirement{} }

// RequireRole admits users ranked at or above min.
func RequireRole(min Role) Requirement { return Requirement{MinRole: min} }

// RequireExactRole admits only users holding exactly role. The administrator
// area uses this rule.
func RequireExactRole(role Role) Requirement { return Requirement{ExactRole: role} }

// PublicRoute admits everyone.
func PublicRoute() Requirement { return Requirement{Public: true} }

// Guard decides route access. It holds only the two redirect targets.
type Guard struct {
	LoginPath    string
	FallbackPath string
}

// NewGuard returns a Guard for the configured routes.
func NewGuard(routes RoutesConfig) Guard {
	return Guard{
		LoginPath:    message(routes.LoginPath, "/login"),
		FallbackPath: message(routes.FallbackPath, "/dashboard"),
	}
}

// Decide applies the default Guard (/login, /dashboard).
func Decide(s Session, req Requirement) Decision {
	return Guard{LoginPath: "/login", FallbackPath: "/dashboard"}.Decide(s, req)
}

// Decide is a pure function of its inputs; callers re-run it on every
// session change rather than caching an Allow.
func (g Guard) Decide(s Session, req Requirement) Decision {
	if req.Public {
		return Decision{Kind: DecisionAllow}
	}
	if s.Status == StatusBootstrapping {
		return Decision{Kind: DecisionPending}
	}
	if s.Status != StatusAuthenticated || s.User == nil {
		return g.redirect(g.LoginPath)
	}
	if req.ExactRole != "" && !s.HasExactRole(req.ExactRole) {
		return g.redirect(g.FallbackPath)
	}
	if req.MinRole != "" && !s.HasRole(req.MinRole) {
		return g.redirect(g.FallbackPath)
	}
	return Decision{Kind: DecisionAllow}
}

func (g Guard) redirect(to string) Decision {
	return Decision{Kind: DecisionRedirect, Path: to, Replace: true}
}

/*
====================================
ROUTE TABLE
====================================
*/

// RouteTable maps application paths to requirements. Paths not in the
// table, and the root path, redirect to the fallback.
type RouteTable struct {
	guard  Guard
	routes map[string]Requirement
}

// NewRouteTable returns an empty table using guard.
func NewRouteTable(guard Guard) *RouteTable {
	return &RouteTable{guard: guard, routes: make(map[string]Requirement)}
}

// DefaultRouteTable returns the application's routes: the login and
// registration pages are public, the administrator page needs exactly ADMIN
// and every other page needs a session.
func DefaultRouteTable(guard Guard) *RouteTable {
	t := NewRouteTable(guard)
	t.Handle(guard.LoginPath, PublicRoute())
	t.Handle("/register", PublicRoute())
	t.Handle("/dashboard", RequireAuth())
	t.Handle("/messages", RequireAuth())
	t.Handle("/community", RequireAuth())
	t.Handle("/balance", RequireAuth())
	t.Handle("/profile", RequireAuth())
	t.Handle("/admin", RequireExactRole(RoleAdmin))
	return t
}

// Handle sets the requirement for p. Not safe for use concurrently with
// Decide; build the table before serving.
func (t *RouteTable) Handle(p string, req Requirement) {
	t.routes[cleanRoute(p)] = req
}

// Lookup returns the requirement registered for p.
func (t *RouteTable) Lookup(p string) (Requirement, bool) {
	req, ok := t.routes[cleanRoute(p)]
	return req, ok
}

// Decide resolves p and applies the guard. Unknown paths redirect to the
// fallback. The root path is treated as the authenticated landing page: it
// runs the session checks first and then redirects to the fallback.
func (t *RouteTable) Decide(s Session, p string) Decision {
	clean := cleanRoute(p)
	if req, ok := t.routes[clean]; ok {
		return t.guard.Decide(s, req)
	}
	if clean == "/" {
		if d := t.guard.Decide(s, RequireAuth()); d.Kind != DecisionAllow {
			return d
		}
	}
	return t.guard.redirect(t.guard.FallbackPath)
}

func cleanRoute(p string) string {
	if p == "" {
		return "/"
	}
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	return path.Clean(p)
}
