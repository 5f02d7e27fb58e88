package authclient

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"testing"
	"time"
)

const opaqueToken = "opaque-session-token"

// newBackend serves the profile endpoint for opaqueToken and delegates every
// other path to h.
func newBackend(t *testing.T, h http.HandlerFunc) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/api/users/me", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer "+opaqueToken {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"success":true,"data":{"id":7,"username":"alice","role":"USER"}}`))
	})
	mux.HandleFunc("/api/", h)
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func writeBody(status int, body string) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		if body != "" {
			w.Header().Set("Content-Type", "application/json")
		}
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}
}

func TestGatewayClassifiesFailures(t *testing.T) {
	defaults := DefaultConfig().Messages
	tests := []struct {
		name   string
		status int
		body   string
		kind   ErrorKind
		notify string
	}{
		{name: "forbidden", status: 403, body: `{"success":false,"message":"nope"}`, kind: KindForbidden, notify: defaults.AccessDenied},
		{name: "not found", status: 404, kind: KindNotFound, notify: defaults.NotFound},
		{name: "validation", status: 400, body: `{"success":false,"message":"Validation failed","errors":{"email":"Email must be valid"}}`, kind: KindValidationFailed, notify: "Validation failed"},
		{name: "bad request without fields", status: 400, body: `{"success":false,"message":"Bad input"}`, kind: KindClientError, notify: "Bad input"},
		{name: "conflict", status: 409, kind: KindClientError, notify: defaults.RequestFailed},
		{name: "server error", status: 500, body: `{"success":false,"message":"boom"}`, kind: KindServerError, notify: defaults.ServerError},
		{name: "unavailable", status: 503, kind: KindServerError, notify: defaults.ServerError},
		{name: "not json", status: 200, body: `<html>`, kind: KindMalformedResponse, notify: defaults.MalformedResponse},
		{name: "unsuccessful envelope", status: 200, body: `{"success":false,"message":"Rule already exists"}`, kind: KindClientError, notify: "Rule already exists"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newBackend(t, writeBody(tt.status, tt.body))
			h := newHarness(t, srv.URL+"/api", opaqueToken)
			if err := h.client.Start(context.Background()); err != nil {
				t.Fatalf("Start failed: %v", err)
			}

			_, err := h.gateway.Get(context.Background(), "/items", nil)
			if KindOf(err) != tt.kind {
				t.Fatalf("expected %s, got %v", tt.kind, err)
			}
			notes := h.notes.all()
			if len(notes) != 1 || notes[0].msg != tt.notify || notes[0].level != LevelError {
				t.Fatalf("expected notification %q, got %+v", tt.notify, notes)
			}
			if h.manager.Status() != StatusAuthenticated {
				t.Fatalf("non-401 failures must not end the session")
			}
		})
	}
}

func TestGatewayValidationFieldErrors(t *testing.T) {
	srv := newBackend(t, writeBody(400, `{"success":false,"message":"Validation failed","errors":{"username":"Username is required","age":12}}`))
	h := newHarness(t, srv.URL+"/api", "")

	_, err := h.gateway.Post(context.Background(), "/things", map[string]string{})
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected *APIError, got %v", err)
	}
	if !errors.Is(err, ErrValidationFailed) {
		t.Fatalf("expected ErrValidationFailed, got %v", err)
	}
	if apiErr.FieldErrors["username"] != "Username is required" || apiErr.FieldErrors["age"] != "12" {
		t.Fatalf("unexpected field errors: %+v", apiErr.FieldErrors)
	}
}

func TestGatewayUnwrapsEnvelope(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{name: "envelope", body: `{"success":true,"message":"ok","data":{"n":1}}`, want: `{"n":1}`},
		{name: "bare object", body: `{"n":1}`, want: `{"n":1}`},
		{name: "bare array", body: `[1,2]`, want: `[1,2]`},
		{name: "envelope without data", body: `{"success":true,"message":"done"}`, want: ``},
		{name: "empty", body: ``, want: ``},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newBackend(t, writeBody(200, tt.body))
			h := newHarness(t, srv.URL+"/api", "")

			data, err := h.gateway.Get(context.Background(), "/x", nil)
			if err != nil {
				t.Fatalf("Get failed: %v", err)
			}
			if string(data) != tt.want {
				t.Fatalf("expected %q, got %q", tt.want, data)
			}
		})
	}
}

func TestGatewayRequestHeaders(t *testing.T) {
	var mu sync.Mutex
	var got http.Header
	var query url.Values
	srv := newBackend(t, func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		got = r.Header.Clone()
		query = r.URL.Query()
		mu.Unlock()
		w.WriteHeader(http.StatusNoContent)
	})
	h := newHarness(t, srv.URL+"/api/", opaqueToken)
	if err := h.client.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	ctx := WithRequestID(context.Background(), "req-123")
	if _, err := h.gateway.Put(ctx, "items/1", map[string]int{"n": 1}); err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	mu.Lock()
	if got.Get("Authorization") != "Bearer "+opaqueToken {
		t.Fatalf("expected bearer token, got %q", got.Get("Authorization"))
	}
	if got.Get("X-Request-ID") != "req-123" {
		t.Fatalf("expected propagated request id, got %q", got.Get("X-Request-ID"))
	}
	if got.Get("Content-Type") != "application/json" {
		t.Fatalf("expected JSON content type, got %q", got.Get("Content-Type"))
	}
	if got.Get("User-Agent") != DefaultConfig().Gateway.UserAgent {
		t.Fatalf("unexpected user agent %q", got.Get("User-Agent"))
	}
	mu.Unlock()

	if _, err := h.gateway.Get(context.Background(), "/search", url.Values{"q": {"go"}}); err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	mu.Lock()
	defer mu.Unlock()
	if query.Get("q") != "go" {
		t.Fatalf("expected query to be sent, got %v", query)
	}
	if got.Get("X-Request-ID") == "" {
		t.Fatalf("expected generated request id")
	}
}

func TestGatewayQuietSuppressesNotification(t *testing.T) {
	srv := newBackend(t, writeBody(500, ""))
	h := newHarness(t, srv.URL+"/api", "")

	_, err := h.gateway.Do(context.Background(), Request{Method: http.MethodGet, Path: "/x", Quiet: true})
	if !errors.Is(err, ErrServerError) {
		t.Fatalf("expected server error, got %v", err)
	}
	if notes := h.notes.all(); len(notes) != 0 {
		t.Fatalf("quiet request must not notify, got %+v", notes)
	}
}

func TestGatewayNetworkUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	base := srv.URL + "/api"
	srv.Close()
	h := newHarness(t, base, "")

	_, err := h.gateway.Get(context.Background(), "/x", nil)
	if !errors.Is(err, ErrNetworkUnreachable) {
		t.Fatalf("expected network error, got %v", err)
	}
	if h.notes.count(h.defaults.NetworkError) != 1 {
		t.Fatalf("expected network notification, got %+v", h.notes.all())
	}
}

func TestGatewayCancellationIsNotReported(t *testing.T) {
	release := make(chan struct{})
	srv := newBackend(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	})
	defer close(release)
	h := newHarness(t, srv.URL+"/api", "")

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(20*time.Millisecond, cancel)
	_, err := h.gateway.Get(ctx, "/slow", nil)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if KindOf(err) != KindUnknown {
		t.Fatalf("cancellation must not be classified, got %s", KindOf(err))
	}
	if notes := h.notes.all(); len(notes) != 0 {
		t.Fatalf("cancellation must not notify, got %+v", notes)
	}
}

func TestGatewayDeadlineIsNetworkError(t *testing.T) {
	release := make(chan struct{})
	srv := newBackend(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	})
	defer close(release)
	h := newHarness(t, srv.URL+"/api", "")

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := h.gateway.Get(ctx, "/slow", nil)
	if !errors.Is(err, ErrNetworkUnreachable) {
		t.Fatalf("expected network error on deadline, got %v", err)
	}
}

func TestGatewayUnauthorizedWithoutToken(t *testing.T) {
	srv := newBackend(t, writeBody(401, `{"success":false,"message":"Authentication required"}`))
	h := newHarness(t, srv.URL+"/api", "")
	if err := h.client.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	_, err := h.gateway.Get(context.Background(), "/private", nil)
	if !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected unauthorized, got %v", err)
	}
	if h.notes.count("Authentication required") != 1 {
		t.Fatalf("expected server message notification, got %+v", h.notes.all())
	}
	if r := h.nav.all(); len(r) != 0 {
		t.Fatalf("no session means no forced redirect, got %+v", r)
	}
	if got := h.client.Metrics().Value(MetricForcedLogout); got != 0 {
		t.Fatalf("expected no forced logout, got %d", got)
	}
}

func TestGatewayUnauthorizedForcesLogout(t *testing.T) {
	srv := newBackend(t, writeBody(401, ""))
	h := newHarness(t, srv.URL+"/api", opaqueToken)
	if err := h.client.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	if _, err := h.gateway.Delete(context.Background(), "/items/1"); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected unauthorized, got %v", err)
	}
	if h.manager.Status() != StatusAnonymous {
		t.Fatalf("expected forced logout")
	}
	redirects := h.nav.all()
	if len(redirects) != 1 || redirects[0].path != "/login" || !redirects[0].opts.Replace {
		t.Fatalf("expected replace redirect to /login, got %+v", redirects)
	}
	if h.notes.count(h.defaults.SessionExpired) != 1 || len(h.notes.all()) != 1 {
		t.Fatalf("expected one session expired notification, got %+v", h.notes.all())
	}
}

func TestGatewayLocalExpiryForcesLogoutWithoutRequest(t *testing.T) {
	var mu sync.Mutex
	now := time.Now()
	clock := func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		return now
	}
	h := newServerHarness(t, "alice", withNow(clock))
	if err := h.client.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	mu.Lock()
	now = now.Add(25 * time.Hour)
	mu.Unlock()

	if _, err := h.gateway.Get(context.Background(), "/protected", nil); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected unauthorized, got %v", err)
	}
	if n := h.server.Requests("/protected"); n != 0 {
		t.Fatalf("expired token must not be sent, got %d requests", n)
	}
	if h.manager.Status() != StatusAnonymous {
		t.Fatalf("expected forced logout")
	}
	if len(h.nav.all()) != 1 {
		t.Fatalf("expected one redirect, got %+v", h.nav.all())
	}
}

func TestGatewayDecodeInto(t *testing.T) {
	srv := newBackend(t, writeBody(200, `{"success":true,"data":{"name":"rule","votes":3}}`))
	h := newHarness(t, srv.URL+"/api", "")

	var out struct {
		Name  string `json:"name"`
		Votes int    `json:"votes"`
	}
	if err := h.gateway.DecodeInto(context.Background(), Request{Path: "/rules/1"}, &out); err != nil {
		t.Fatalf("DecodeInto failed: %v", err)
	}
	if out.Name != "rule" || out.Votes != 3 {
		t.Fatalf("unexpected decode: %+v", out)
	}

	var wrong []string
	err := h.gateway.DecodeInto(context.Background(), Request{Path: "/rules/1"}, &wrong)
	if !errors.Is(err, ErrMalformedResponse) {
		t.Fatalf("expected malformed response, got %v", err)
	}
}

func TestGatewayCurrentUserNormalizesRole(t *testing.T) {
	srv := newBackend(t, writeBody(404, ""))
	h := newHarness(t, srv.URL+"/api", opaqueToken)
	if err := h.client.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	user, err := h.gateway.CurrentUser(context.Background())
	if err != nil {
		t.Fatalf("CurrentUser failed: %v", err)
	}
	if user.ID != 7 || user.Role != RoleMember {
		t.Fatalf("expected USER normalized to MEMBER, got %+v", user)
	}
	raw, _ := json.Marshal(user)
	if len(raw) == 0 {
		t.Fatalf("expected marshalable profile")
	}
}
