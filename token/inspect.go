package token

import (
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrNotJWT is returned by Inspect for tokens that are not three-segment JWTs.
var ErrNotJWT = errors.New("token is not a JWT")

// Claims is the subset of JWT claims the client and stub server care about.
type Claims struct {
	Username string `json:"username,omitempty"`
	Role     string `json:"role,omitempty"`
	jwt.RegisteredClaims
}

// Inspect parses raw without verifying its signature.
func Inspect(raw string) (*Claims, error) {
	if strings.Count(raw, ".") != 2 {
		return nil, ErrNotJWT
	}
	claims := &Claims{}
	if _, _, err := jwt.NewParser().ParseUnverified(raw, claims); err != nil {
		return nil, err
	}
	return claims, nil
}

// Expired reports whether the token's exp lies before now minus leeway.
// Tokens without exp never expire locally.
func (c *Claims) Expired(now time.Time, leeway time.Duration) bool {
	if c == nil || c.ExpiresAt == nil {
		return false
	}
	return now.After(c.ExpiresAt.Time.Add(leeway))
}

// ExpiredAt is a convenience for callers holding only the raw token. Opaque
// or unparsable tokens report false; the server decides for those.
func ExpiredAt(raw string, now time.Time, leeway time.Duration) bool {
	claims, err := Inspect(raw)
	if err != nil {
		return false
	}
	return claims.Expired(now, leeway)
}
