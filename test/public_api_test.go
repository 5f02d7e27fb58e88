package test

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/MrEthical07/authclient"
	"github.com/MrEthical07/authclient/credential"
	"github.com/MrEthical07/authclient/middleware"
)

// Guards the public API shape for consumers.
func TestPublicAPISurfaceCompile(t *testing.T) {
	_ = authclient.New
	_ = authclient.DefaultConfig
	_ = authclient.LoadConfigFromEnv
	_ = authclient.Decide

	var _ *authclient.Client
	var _ *authclient.Manager
	var _ *authclient.Gateway
	var _ authclient.Session
	var _ authclient.UserProfile
	var _ authclient.ProfileDraft
	var _ authclient.Requirement
	var _ authclient.Decision
	var _ authclient.Notifier = authclient.LogNotifier{}
	var _ authclient.Navigator = authclient.NavigatorFunc(nil)
	var _ authclient.AuditSink = authclient.NoOpSink{}
	var _ credential.Store = credential.NewMemory(nil)

	var _ error = authclient.ErrUnauthorized
	var _ error = authclient.ErrInvalidCredentials
	var _ error = authclient.ErrForbidden
	var _ error = authclient.ErrNetworkUnreachable
	var _ error = authclient.ErrSessionChanged

	var _ middleware.SessionSource = (*authclient.Client)(nil)
	var _ middleware.SessionSource = (*authclient.Manager)(nil)
	var _ func(middleware.SessionSource, authclient.Guard, authclient.Requirement) func(http.Handler) http.Handler = middleware.Guard

	var _ func(*authclient.Client, context.Context) error = (*authclient.Client).Start
	var _ func(*authclient.Manager, context.Context, string, string) bool = (*authclient.Manager).Login
	var _ func(*authclient.Manager, context.Context, string, string) error = (*authclient.Manager).Authenticate
	var _ func(*authclient.Manager, context.Context) = (*authclient.Manager).Logout
	var _ func(*authclient.Gateway, context.Context, authclient.Request) (json.RawMessage, error) = (*authclient.Gateway).Do
}
