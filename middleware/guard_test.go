package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/MrEthical07/authclient"
)

type fixedSource authclient.Session

func (f fixedSource) Snapshot() authclient.Session { return authclient.Session(f) }

func authenticated(role authclient.Role) fixedSource {
	return fixedSource{
		Status: authclient.StatusAuthenticated,
		Token:  "tok",
		User:   &authclient.UserProfile{ID: 1, Username: "alice", Role: role},
	}
}

var testGuard = authclient.Guard{LoginPath: "/login", FallbackPath: "/dashboard"}

func serve(t *testing.T, h http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, path, nil))
	return rr
}

func TestGuardPendingReturns503(t *testing.T) {
	src := fixedSource{Status: authclient.StatusBootstrapping}
	h := Guard(src, testGuard, authclient.RequireAuth())(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		t.Fatalf("next handler must not run while bootstrapping")
	}))

	rr := serve(t, h, "/profile")
	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rr.Code)
	}
	if rr.Header().Get("Retry-After") != "1" {
		t.Fatalf("expected Retry-After header, got %q", rr.Header().Get("Retry-After"))
	}
}

func TestGuardAnonymousRedirectsToLogin(t *testing.T) {
	src := fixedSource{Status: authclient.StatusAnonymous}
	h := Guard(src, testGuard, authclient.RequireAuth())(http.NotFoundHandler())

	rr := serve(t, h, "/profile")
	if rr.Code != http.StatusSeeOther {
		t.Fatalf("expected 303, got %d", rr.Code)
	}
	if loc := rr.Header().Get("Location"); loc != "/login" {
		t.Fatalf("expected /login, got %q", loc)
	}
}

func TestGuardAllowInjectsSession(t *testing.T) {
	var seen authclient.Session
	h := Guard(authenticated(authclient.RoleMember), testGuard, authclient.RequireAuth())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s, ok := SessionFromContext(r.Context())
		if !ok {
			t.Fatalf("expected session in context")
		}
		seen = s
		w.WriteHeader(http.StatusNoContent)
	}))

	rr := serve(t, h, "/profile")
	if rr.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", rr.Code)
	}
	if seen.User == nil || seen.User.Username != "alice" {
		t.Fatalf("unexpected session user: %+v", seen.User)
	}
}

func TestRequireAdminRejectsModerator(t *testing.T) {
	ok := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusOK) })

	rr := serve(t, RequireAdmin(authenticated(authclient.RoleModerator), testGuard)(ok), "/admin")
	if rr.Code != http.StatusSeeOther || rr.Header().Get("Location") != "/dashboard" {
		t.Fatalf("moderator must be sent to fallback, got %d %q", rr.Code, rr.Header().Get("Location"))
	}

	rr = serve(t, RequireAdmin(authenticated(authclient.RoleAdmin), testGuard)(ok), "/admin")
	if rr.Code != http.StatusOK {
		t.Fatalf("admin must be allowed, got %d", rr.Code)
	}

	rr = serve(t, RequireRole(authenticated(authclient.RoleAdmin), testGuard, authclient.RoleModerator)(ok), "/mod")
	if rr.Code != http.StatusOK {
		t.Fatalf("admin outranks moderator, got %d", rr.Code)
	}
}

func TestRoutesUsesTable(t *testing.T) {
	table := authclient.DefaultRouteTable(testGuard)
	ok := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusOK) })
	h := Routes(fixedSource{Status: authclient.StatusAnonymous}, table)(ok)

	if rr := serve(t, h, "/login"); rr.Code != http.StatusOK {
		t.Fatalf("login page is public, got %d", rr.Code)
	}
	if rr := serve(t, h, "/balance"); rr.Header().Get("Location") != "/login" {
		t.Fatalf("expected login redirect, got %q", rr.Header().Get("Location"))
	}
	if rr := serve(t, h, "/nowhere"); rr.Header().Get("Location") != "/dashboard" {
		t.Fatalf("unknown paths go to fallback, got %q", rr.Header().Get("Location"))
	}
}

func TestGuardNilSource(t *testing.T) {
	h := Guard(nil, testGuard, authclient.RequireAuth())(http.NotFoundHandler())
	if rr := serve(t, h, "/"); rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rr.Code)
	}
}
