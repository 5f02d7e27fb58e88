package credential

import (
	"context"
	"errors"
)

// ErrUnavailable wraps backend failures so callers can tell "store broken"
// from "key absent".
var ErrUnavailable = errors.New("credential store unavailable")

// Store persists the session token across restarts. Implementations must be
// safe for concurrent use. Remove of an absent key is not an error.
type Store interface {
	Get(ctx context.Context, key string) (value string, ok bool, err error)
	Set(ctx context.Context, key, value string) error
	Remove(ctx context.Context, key string) error
}
