package authclient

import (
	"context"

	"github.com/google/uuid"
)

type requestIDContextKey struct{}
type exemptContextKey struct{}
type bearerContextKey struct{}

// WithRequestID attaches a request correlation ID to ctx. The Gateway sends it
// as X-Request-ID; without one a fresh UUID is generated per request.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDContextKey{}, id)
}

// RequestIDFromContext returns the ID attached by WithRequestID, if any.
func RequestIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	id, _ := ctx.Value(requestIDContextKey{}).(string)
	return id
}

func requestIDOrNew(ctx context.Context) string {
	if id := RequestIDFromContext(ctx); id != "" {
		return id
	}
	return uuid.NewString()
}

// withoutForcedLogout marks a request whose 401 belongs to the caller. The
// Gateway classifies it but neither forces a logout nor notifies.
func withoutForcedLogout(ctx context.Context) context.Context {
	return context.WithValue(ctx, exemptContextKey{}, true)
}

func isForcedLogoutExempt(ctx context.Context) bool {
	if ctx == nil {
		return false
	}
	v, _ := ctx.Value(exemptContextKey{}).(bool)
	return v
}

// withBearer pins the Authorization token for one request instead of reading
// it from the session. An empty token sends no Authorization header. Pinned
// requests are always exempt from forced logout.
func withBearer(ctx context.Context, token string) context.Context {
	return context.WithValue(ctx, bearerContextKey{}, token)
}

func bearerFromContext(ctx context.Context) (string, bool) {
	if ctx == nil {
		return "", false
	}
	token, ok := ctx.Value(bearerContextKey{}).(string)
	return token, ok
}
