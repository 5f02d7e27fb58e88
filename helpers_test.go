package authclient

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/MrEthical07/authclient/authtest"
	"github.com/MrEthical07/authclient/credential"
)

type note struct {
	level Level
	msg   string
}

type recordingNotifier struct {
	mu    sync.Mutex
	notes []note
}

func (r *recordingNotifier) Notify(level Level, msg string) {
	r.mu.Lock()
	r.notes = append(r.notes, note{level: level, msg: msg})
	r.mu.Unlock()
}

func (r *recordingNotifier) all() []note {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]note(nil), r.notes...)
}

func (r *recordingNotifier) count(msg string) int {
	n := 0
	for _, got := range r.all() {
		if got.msg == msg {
			n++
		}
	}
	return n
}

type redirect struct {
	path string
	opts RedirectOptions
}

type recordingNavigator struct {
	mu        sync.Mutex
	redirects []redirect
}

func (r *recordingNavigator) Redirect(path string, opts RedirectOptions) {
	r.mu.Lock()
	r.redirects = append(r.redirects, redirect{path: path, opts: opts})
	r.mu.Unlock()
}

func (r *recordingNavigator) all() []redirect {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]redirect(nil), r.redirects...)
}

type harness struct {
	client   *Client
	manager  *Manager
	gateway  *Gateway
	store    *credential.Memory
	notes    *recordingNotifier
	nav      *recordingNavigator
	server   *authtest.Server
	defaults MessagesConfig
}

type harnessOption func(*Builder, *Config)

func withServerLogout(enabled bool) harnessOption {
	return func(_ *Builder, c *Config) { c.Gateway.ServerLogout = enabled }
}

func withNow(now func() time.Time) harnessOption {
	return func(b *Builder, _ *Config) { b.withClock(now) }
}

func newAuthServer(t *testing.T) *authtest.Server {
	t.Helper()
	srv, err := authtest.New(authtest.Options{})
	if err != nil {
		t.Fatalf("authtest.New failed: %v", err)
	}
	t.Cleanup(srv.Close)
	return srv
}

// newHarness builds a client against baseURL. The store starts with seed
// under the default credential key when seed is non-empty.
func newHarness(t *testing.T, baseURL, seed string, opts ...harnessOption) *harness {
	t.Helper()

	cfg := DefaultConfig()
	cfg.Gateway.BaseURL = baseURL
	cfg.Gateway.Timeout = 5 * time.Second
	cfg.Gateway.ServerLogout = false

	var initial map[string]string
	if seed != "" {
		initial = map[string]string{cfg.Credential.Key: seed}
	}
	h := &harness{
		store:    credential.NewMemory(initial),
		notes:    &recordingNotifier{},
		nav:      &recordingNavigator{},
		defaults: cfg.Messages,
	}

	b := New()
	for _, opt := range opts {
		opt(b, &cfg)
	}
	client, err := b.WithConfig(cfg).
		WithCredentialStore(h.store).
		WithNotifier(h.notes).
		WithNavigator(h.nav).
		Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	t.Cleanup(client.Close)

	h.client = client
	h.manager = client.Manager()
	h.gateway = client.Gateway()
	return h
}

func newServerHarness(t *testing.T, seedUser string, opts ...harnessOption) *harness {
	t.Helper()
	srv := newAuthServer(t)
	seed := ""
	if seedUser != "" {
		tok, err := srv.Token(seedUser)
		if err != nil {
			t.Fatalf("Token failed: %v", err)
		}
		seed = tok
	}
	h := newHarness(t, srv.BaseURL, seed, opts...)
	h.server = srv
	return h
}

func (h *harness) storedToken(t *testing.T) (string, bool) {
	t.Helper()
	tok, ok, err := h.store.Get(context.Background(), DefaultConfig().Credential.Key)
	if err != nil {
		t.Fatalf("store Get failed: %v", err)
	}
	return tok, ok
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}
