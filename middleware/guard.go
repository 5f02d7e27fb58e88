package middleware

import (
	"context"
	"net/http"

	"github.com/MrEthical07/authclient"
)

// SessionSource supplies the session a request is checked against.
// *authclient.Client and *authclient.Manager both satisfy it.
type SessionSource interface {
	Snapshot() authclient.Session
}

type sessionContextKey struct{}

// SessionFromContext returns the session an allowed request was admitted
// with.
func SessionFromContext(ctx context.Context) (authclient.Session, bool) {
	s, ok := ctx.Value(sessionContextKey{}).(authclient.Session)
	return s, ok
}

// Guard admits requests whose session satisfies req.
func Guard(src SessionSource, guard authclient.Guard, req authclient.Requirement) func(http.Handler) http.Handler {
	return decide(src, func(s authclient.Session, _ *http.Request) authclient.Decision {
		return guard.Decide(s, req)
	})
}

// Routes checks each request path against table.
func Routes(src SessionSource, table *authclient.RouteTable) func(http.Handler) http.Handler {
	return decide(src, func(s authclient.Session, r *http.Request) authclient.Decision {
		return table.Decide(s, r.URL.Path)
	})
}

func decide(src SessionSource, fn func(authclient.Session, *http.Request) authclient.Decision) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if src == nil {
				http.Error(w, "session unavailable", http.StatusServiceUnavailable)
				return
			}

			s := src.Snapshot()
			d := fn(s, r)
			switch d.Kind {
			case authclient.DecisionAllow:
				ctx := context.WithValue(r.Context(), sessionContextKey{}, s)
				next.ServeHTTP(w, r.WithContext(ctx))
			case authclient.DecisionRedirect:
				code := http.StatusFound
				if d.Replace {
					code = http.StatusSeeOther
				}
				http.Redirect(w, r, d.Path, code)
			default:
				w.Header().Set("Retry-After", "1")
				http.Error(w, "session loading", http.StatusServiceUnavailable)
			}
		})
	}
}
