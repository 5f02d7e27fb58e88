package authclient

import "testing"

func session(status Status, role Role) Session {
	s := Session{Status: status}
	if status == StatusAuthenticated {
		s.Token = "tok"
		s.User = &UserProfile{ID: 1, Username: "u", Role: role}
	}
	return s
}

func TestDecide(t *testing.T) {
	allow := Decision{Kind: DecisionAllow}
	pending := Decision{Kind: DecisionPending}
	toLogin := Decision{Kind: DecisionRedirect, Path: "/login", Replace: true}
	toFallback := Decision{Kind: DecisionRedirect, Path: "/dashboard", Replace: true}

	tests := []struct {
		name string
		s    Session
		req  Requirement
		want Decision
	}{
		{name: "bootstrapping waits", s: session(StatusBootstrapping, ""), req: RequireAuth(), want: pending},
		{name: "bootstrapping waits for role routes", s: session(StatusBootstrapping, ""), req: RequireExactRole(RoleAdmin), want: pending},
		{name: "anonymous to login", s: session(StatusAnonymous, ""), req: RequireAuth(), want: toLogin},
		{name: "anonymous to login before role check", s: session(StatusAnonymous, ""), req: RequireRole(RoleModerator), want: toLogin},
		{name: "member allowed", s: session(StatusAuthenticated, RoleMember), req: RequireAuth(), want: allow},
		{name: "member below moderator", s: session(StatusAuthenticated, RoleMember), req: RequireRole(RoleModerator), want: toFallback},
		{name: "moderator meets moderator", s: session(StatusAuthenticated, RoleModerator), req: RequireRole(RoleModerator), want: allow},
		{name: "admin outranks moderator", s: session(StatusAuthenticated, RoleAdmin), req: RequireRole(RoleModerator), want: allow},
		{name: "admin exact", s: session(StatusAuthenticated, RoleAdmin), req: RequireExactRole(RoleAdmin), want: allow},
		{name: "moderator not admin", s: session(StatusAuthenticated, RoleModerator), req: RequireExactRole(RoleAdmin), want: toFallback},
		{name: "unknown role denied", s: session(StatusAuthenticated, Role("GUEST")), req: RequireRole(RoleMember), want: toFallback},
		{name: "alias role accepted", s: session(StatusAuthenticated, Role("user")), req: RequireRole(RoleMember), want: allow},
		{name: "public while bootstrapping", s: session(StatusBootstrapping, ""), req: PublicRoute(), want: allow},
		{name: "public while anonymous", s: session(StatusAnonymous, ""), req: PublicRoute(), want: allow},
		{name: "authenticated without user", s: Session{Status: StatusAuthenticated, Token: "tok"}, req: RequireAuth(), want: toLogin},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Decide(tt.s, tt.req); got != tt.want {
				t.Fatalf("Decide = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestGuardUsesConfiguredPaths(t *testing.T) {
	g := NewGuard(RoutesConfig{LoginPath: "/signin", FallbackPath: "/home"})

	if d := g.Decide(session(StatusAnonymous, ""), RequireAuth()); d.Path != "/signin" {
		t.Fatalf("expected /signin, got %+v", d)
	}
	if d := g.Decide(session(StatusAuthenticated, RoleMember), RequireExactRole(RoleAdmin)); d.Path != "/home" {
		t.Fatalf("expected /home, got %+v", d)
	}
}

func TestRouteTable(t *testing.T) {
	table := DefaultRouteTable(NewGuard(DefaultConfig().Routes))

	tests := []struct {
		name string
		s    Session
		path string
		kind DecisionKind
		to   string
	}{
		{name: "login public", s: session(StatusAnonymous, ""), path: "/login", kind: DecisionAllow},
		{name: "register public", s: session(StatusBootstrapping, ""), path: "/register", kind: DecisionAllow},
		{name: "dashboard needs session", s: session(StatusAnonymous, ""), path: "/dashboard", kind: DecisionRedirect, to: "/login"},
		{name: "messages allowed", s: session(StatusAuthenticated, RoleMember), path: "/messages/", kind: DecisionAllow},
		{name: "admin for admin", s: session(StatusAuthenticated, RoleAdmin), path: "/admin", kind: DecisionAllow},
		{name: "admin not for moderator", s: session(StatusAuthenticated, RoleModerator), path: "/admin", kind: DecisionRedirect, to: "/dashboard"},
		{name: "root anonymous", s: session(StatusAnonymous, ""), path: "/", kind: DecisionRedirect, to: "/login"},
		{name: "root pending", s: session(StatusBootstrapping, ""), path: "", kind: DecisionPending},
		{name: "root authenticated", s: session(StatusAuthenticated, RoleMember), path: "/", kind: DecisionRedirect, to: "/dashboard"},
		{name: "unknown path", s: session(StatusAnonymous, ""), path: "/does/not/exist", kind: DecisionRedirect, to: "/dashboard"},
		{name: "relative path cleaned", s: session(StatusAuthenticated, RoleMember), path: "profile", kind: DecisionAllow},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := table.Decide(tt.s, tt.path)
			if d.Kind != tt.kind || d.Path != tt.to {
				t.Fatalf("Decide(%q) = %+v, want %s %q", tt.path, d, tt.kind, tt.to)
			}
		})
	}

	table.Handle("/moderation", RequireRole(RoleModerator))
	if req, ok := table.Lookup("/moderation/"); !ok || req.MinRole != RoleModerator {
		t.Fatalf("expected registered moderation route, got %+v %v", req, ok)
	}
}

func TestDecisionKindString(t *testing.T) {
	if DecisionPending.String() != "pending" || DecisionAllow.String() != "allow" || DecisionRedirect.String() != "redirect" {
		t.Fatalf("unexpected decision names")
	}
}
