package authtest

import (
	"context"
	"crypto/rand"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"time"

	"github.com/MrEthical07/authclient/token"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

// Options configures a Server.
type Options struct {
	// Users are the seeded accounts. DefaultUsers is used when empty.
	Users []User
	// TTL is the lifetime of issued tokens. Defaults to 24h.
	TTL time.Duration
	// Secret is the HS256 key. A random key is generated when empty.
	Secret []byte
	// Raw disables the response envelope: successes carry the bare payload
	// and failures an empty body.
	Raw bool
}

// Server is a running stub backend. BaseURL is the value for the client's
// Gateway.BaseURL.
type Server struct {
	*httptest.Server
	BaseURL string

	issuer *token.Issuer
	router chi.Router
	raw    bool

	mu       sync.Mutex
	users    map[string]*account
	nextID   int64
	revoked  map[string]struct{}
	counts   map[string]int
	auths    map[string][]string
	failNext []int
	delays   map[string]time.Duration
	gates    map[string]*Gate
}

// New starts a Server. Call Close when done.
func New(opts Options) (*Server, error) {
	if opts.TTL <= 0 {
		opts.TTL = 24 * time.Hour
	}
	if len(opts.Secret) == 0 {
		opts.Secret = make([]byte, 32)
		if _, err := rand.Read(opts.Secret); err != nil {
			return nil, err
		}
	}
	if len(opts.Users) == 0 {
		opts.Users = DefaultUsers()
	}

	issuer, err := token.NewIssuer(token.IssuerConfig{
		TTL:           opts.TTL,
		SigningMethod: token.MethodHS256,
		PrivateKey:    opts.Secret,
		Issuer:        "authtest",
	})
	if err != nil {
		return nil, err
	}

	s := &Server{
		issuer:  issuer,
		raw:     opts.Raw,
		users:   make(map[string]*account, len(opts.Users)),
		revoked: make(map[string]struct{}),
		counts:  make(map[string]int),
		auths:   make(map[string][]string),
		delays:  make(map[string]time.Duration),
		gates:   make(map[string]*Gate),
	}
	for _, u := range opts.Users {
		if err := s.addUser(u); err != nil {
			return nil, err
		}
	}

	r := chi.NewRouter()
	r.Use(s.hooks)
	r.Route("/api/users", func(r chi.Router) {
		r.Post("/login", s.login)
		r.Post("/register", s.register)
		r.Get("/me", s.me)
		r.Post("/logout", s.logout)
	})
	r.Get("/api/protected", s.protected)
	s.router = r

	s.Server = httptest.NewServer(r)
	s.BaseURL = s.Server.URL + "/api"
	return s, nil
}

// Route mounts an extra handler under /api. Register routes before sending
// requests to them.
func (s *Server) Route(method, pattern string, h http.HandlerFunc) {
	s.router.Method(method, "/api"+pattern, h)
}

func (s *Server) addUser(u User) error {
	h, err := hashPassword(u.Password)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if u.ID == 0 {
		u.ID = s.nextID + 1
	}
	if u.ID > s.nextID {
		s.nextID = u.ID
	}
	s.users[u.Username] = &account{User: u, hash: h}
	return nil
}

/*
====================================
TEST HOOKS
====================================
*/

// Token issues a valid token for a seeded user.
func (s *Server) Token(username string) (string, error) {
	return s.tokenWithTTL(username, 0)
}

// ExpiredToken issues a token for username whose exp is already in the past.
func (s *Server) ExpiredToken(username string) (string, error) {
	return s.tokenWithTTL(username, -time.Hour)
}

func (s *Server) tokenWithTTL(username string, ttl time.Duration) (string, error) {
	s.mu.Lock()
	acct, ok := s.users[username]
	s.mu.Unlock()
	if !ok {
		return "", errors.New("authtest: unknown user " + username)
	}
	var (
		tok string
		err error
	)
	if ttl == 0 {
		tok, _, err = s.issuer.Issue(acct.Username, acct.Username, acct.Role)
	} else {
		tok, _, err = s.issuer.IssueWithTTL(acct.Username, acct.Username, acct.Role, ttl)
	}
	return tok, err
}

// Expire revokes tok; later requests carrying it get 401.
func (s *Server) Expire(tok string) {
	s.mu.Lock()
	s.revoked[tok] = struct{}{}
	s.mu.Unlock()
}

// FailNext makes the next request, on any path, fail with status. Calls
// queue up.
func (s *Server) FailNext(status int) {
	s.mu.Lock()
	s.failNext = append(s.failNext, status)
	s.mu.Unlock()
}

// Delay adds latency to every request for path, e.g. "/users/me".
func (s *Server) Delay(path string, d time.Duration) {
	s.mu.Lock()
	s.delays[path] = d
	s.mu.Unlock()
}

// Requests returns how many requests reached path.
func (s *Server) Requests(path string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.counts[path]
}

// Authorizations returns the bearer tokens sent to path, in arrival order.
// Requests without a token record an empty string.
func (s *Server) Authorizations(path string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.auths[path]...)
}

// Gate holds requests for one path until released.
type Gate struct {
	arrived     chan struct{}
	release     chan struct{}
	arriveOnce  sync.Once
	releaseOnce sync.Once
}

// Arrived is closed when the first request reaches the gate.
func (g *Gate) Arrived() <-chan struct{} { return g.arrived }

// Release lets held and future requests through.
func (g *Gate) Release() { g.releaseOnce.Do(func() { close(g.release) }) }

// Hold parks requests for path until the returned gate is released.
func (s *Server) Hold(path string) *Gate {
	g := &Gate{arrived: make(chan struct{}), release: make(chan struct{})}
	s.mu.Lock()
	s.gates[path] = g
	s.mu.Unlock()
	return g
}

// Close releases every gate and shuts the server down.
func (s *Server) Close() {
	s.mu.Lock()
	for _, g := range s.gates {
		g.Release()
	}
	s.mu.Unlock()
	s.Server.Close()
}

func (s *Server) hooks(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path := strings.TrimPrefix(r.URL.Path, "/api")
		tok, _ := bearer(r)

		s.mu.Lock()
		s.counts[path]++
		s.auths[path] = append(s.auths[path], tok)
		delay := s.delays[path]
		gate := s.gates[path]
		fail := 0
		if len(s.failNext) > 0 {
			fail = s.failNext[0]
			s.failNext = s.failNext[1:]
		}
		s.mu.Unlock()

		if id := r.Header.Get("X-Request-ID"); id != "" {
			w.Header().Set("X-Request-ID", id)
		} else {
			w.Header().Set("X-Request-ID", uuid.NewString())
		}

		if gate != nil {
			gate.arriveOnce.Do(func() { close(gate.arrived) })
			if !wait(r.Context(), gate.release) {
				return
			}
		}
		if delay > 0 && !sleep(r.Context(), delay) {
			return
		}
		if fail != 0 {
			s.fail(w, fail, http.StatusText(fail), nil)
			return
		}
		next.ServeHTTP(w, r)
	})
}

/*
====================================
ENDPOINTS
====================================
*/

type credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type authResponse struct {
	Token     string  `json:"token"`
	User      profile `json:"user"`
	ExpiresAt string  `json:"expiresAt"`
}

func (s *Server) login(w http.ResponseWriter, r *http.Request) {
	var in credentials
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		s.fail(w, http.StatusBadRequest, "Malformed request body", nil)
		return
	}

	s.mu.Lock()
	acct, ok := s.users[in.Username]
	s.mu.Unlock()
	if !ok || !acct.hash.matches(in.Password) {
		s.fail(w, http.StatusUnauthorized, "Invalid username or password", nil)
		return
	}

	tok, exp, err := s.issuer.Issue(acct.Username, acct.Username, acct.Role)
	if err != nil {
		s.fail(w, http.StatusInternalServerError, "Token issuance failed", nil)
		return
	}
	s.ok(w, http.StatusOK, "Login successful", authResponse{
		Token:     tok,
		User:      acct.profile(),
		ExpiresAt: exp.UTC().Format("2006-01-02T15:04:05"),
	})
}

func (s *Server) register(w http.ResponseWriter, r *http.Request) {
	var in registration
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		s.fail(w, http.StatusBadRequest, "Malformed request body", nil)
		return
	}
	if errs := in.validate(); len(errs) > 0 {
		s.fail(w, http.StatusBadRequest, "Validation failed", errs)
		return
	}

	s.mu.Lock()
	_, taken := s.users[in.Username]
	s.mu.Unlock()
	if taken {
		s.fail(w, http.StatusConflict, "Username already exists", nil)
		return
	}

	u := User{
		Username:  in.Username,
		Password:  in.Password,
		Role:      "MEMBER",
		Email:     in.Email,
		FirstName: in.FirstName,
		LastName:  in.LastName,
	}
	if err := s.addUser(u); err != nil {
		s.fail(w, http.StatusInternalServerError, "Registration failed", nil)
		return
	}

	s.mu.Lock()
	acct := s.users[in.Username]
	s.mu.Unlock()
	s.ok(w, http.StatusCreated, "User registered successfully", acct.profile())
}

func (s *Server) me(w http.ResponseWriter, r *http.Request) {
	acct, ok := s.authenticate(r)
	if !ok {
		s.fail(w, http.StatusUnauthorized, "Authentication required", nil)
		return
	}
	s.ok(w, http.StatusOK, "", acct.profile())
}

func (s *Server) logout(w http.ResponseWriter, r *http.Request) {
	if tok, ok := bearer(r); ok {
		s.Expire(tok)
	}
	s.ok(w, http.StatusOK, "Logged out", nil)
}

func (s *Server) protected(w http.ResponseWriter, r *http.Request) {
	acct, ok := s.authenticate(r)
	if !ok {
		s.fail(w, http.StatusUnauthorized, "Authentication required", nil)
		return
	}
	s.ok(w, http.StatusOK, "", map[string]string{"username": acct.Username})
}

func (s *Server) authenticate(r *http.Request) (*account, bool) {
	tok, ok := bearer(r)
	if !ok {
		return nil, false
	}
	claims, err := s.issuer.Verify(tok)
	if err != nil {
		return nil, false
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, revoked := s.revoked[tok]; revoked {
		return nil, false
	}
	acct, ok := s.users[claims.Subject]
	return acct, ok
}

/*
====================================
RESPONSES
====================================
*/

type envelope struct {
	Success bool              `json:"success"`
	Message string            `json:"message,omitempty"`
	Data    any               `json:"data,omitempty"`
	Errors  map[string]string `json:"errors,omitempty"`
}

func (s *Server) ok(w http.ResponseWriter, status int, message string, data any) {
	if s.raw {
		if data == nil {
			w.WriteHeader(status)
			return
		}
		writeJSON(w, status, data)
		return
	}
	writeJSON(w, status, envelope{Success: true, Message: message, Data: data})
}

func (s *Server) fail(w http.ResponseWriter, status int, message string, errs map[string]string) {
	if s.raw {
		w.WriteHeader(status)
		return
	}
	writeJSON(w, status, envelope{Success: false, Message: message, Errors: errs})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func bearer(r *http.Request) (string, bool) {
	const prefix = "Bearer "
	h := r.Header.Get("Authorization")
	if !strings.HasPrefix(h, prefix) || len(h) == len(prefix) {
		return "", false
	}
	return h[len(prefix):], true
}

func wait(ctx context.Context, ch <-chan struct{}) bool {
	select {
	case <-ch:
		return true
	case <-ctx.Done():
		return false
	}
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}
