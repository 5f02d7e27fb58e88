package authclient

import (
	"net/url"
)

// Status is the session state machine position.
type Status uint8

const (
	// StatusBootstrapping is the initial state: a persisted token may exist but
	// has not been confirmed by the server yet.
	StatusBootstrapping Status = iota
	// StatusAuthenticated means the token was confirmed and a user is loaded.
	StatusAuthenticated
	// StatusAnonymous means there is no usable credential.
	StatusAnonymous
)

func (s Status) String() string {
	switch s {
	case StatusBootstrapping:
		return "bootstrapping"
	case StatusAuthenticated:
		return "authenticated"
	case StatusAnonymous:
		return "anonymous"
	}
	return "unknown"
}

// Session is a point-in-time copy of the client identity. Token is empty when
// absent; User is non-nil exactly when Status is StatusAuthenticated.
type Session struct {
	Status Status
	Token  string
	User   *UserProfile
	Epoch  uint64
}

// HasRole reports whether the session is authenticated with a role ranked at
// or above min.
func (s Session) HasRole(min Role) bool {
	return s.Status == StatusAuthenticated && s.User != nil && s.User.Role.AtLeast(min)
}

// HasExactRole reports whether the session is authenticated with exactly role.
func (s Session) HasExactRole(role Role) bool {
	return s.Status == StatusAuthenticated && s.User != nil && s.User.Role.Exactly(role)
}

// UserProfile is the current user as returned by the backend. Score and
// bookkeeping fields are passed through without interpretation.
type UserProfile struct {
	ID              int64  `json:"id"`
	Username        string `json:"username"`
	Role            Role   `json:"role"`
	Email           string `json:"email,omitempty"`
	FirstName       string `json:"firstName,omitempty"`
	LastName        string `json:"lastName,omitempty"`
	FreedomScore    *int   `json:"freedomScore,omitempty"`
	SecurityScore   *int   `json:"securityScore,omitempty"`
	ReputationScore *int   `json:"reputationScore,omitempty"`
	IsActive        *bool  `json:"isActive,omitempty"`
	CreatedAt       string `json:"createdAt,omitempty"`
	LastLoginAt     string `json:"lastLoginAt,omitempty"`
}

// DisplayName is the name used in user-facing messages.
func (u *UserProfile) DisplayName() string {
	if u == nil {
		return ""
	}
	return u.Username
}

func (u *UserProfile) clone() *UserProfile {
	if u == nil {
		return nil
	}
	c := *u
	c.FreedomScore = cloneIntPtr(u.FreedomScore)
	c.SecurityScore = cloneIntPtr(u.SecurityScore)
	c.ReputationScore = cloneIntPtr(u.ReputationScore)
	if u.IsActive != nil {
		v := *u.IsActive
		c.IsActive = &v
	}
	return &c
}

func cloneIntPtr(p *int) *int {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

// ProfileDraft is the registration payload.
type ProfileDraft struct {
	Username  string `json:"username" validate:"required,min=3,max=50"`
	Email     string `json:"email" validate:"required,email,max=100"`
	Password  string `json:"password" validate:"required,min=8,max=255"`
	FirstName string `json:"firstName" validate:"required,max=50"`
	LastName  string `json:"lastName" validate:"required,max=50"`
}

// Request describes one call through the Gateway. Path is relative to the
// configured base URL. Body, when non-nil, is JSON encoded.
type Request struct {
	Method string
	Path   string
	Body   any
	Query  url.Values

	// Quiet suppresses the default notification for non-401 failures. The
	// caller becomes responsible for telling the user.
	Quiet bool
}

// RedirectOptions controls how the navigation layer performs a redirect.
type RedirectOptions struct {
	Replace bool
}

// Navigator is the navigation collaborator.
type Navigator interface {
	Redirect(path string, opts RedirectOptions)
}

// NavigatorFunc adapts a function to Navigator.
type NavigatorFunc func(path string, opts RedirectOptions)

func (f NavigatorFunc) Redirect(path string, opts RedirectOptions) {
	f(path, opts)
}

type noopNavigator struct{}

func (noopNavigator) Redirect(string, RedirectOptions) {}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token     string       `json:"token"`
	User      *UserProfile `json:"user"`
	ExpiresAt string       `json:"expiresAt,omitempty"`
}
