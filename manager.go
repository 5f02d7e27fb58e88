package authclient

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/MrEthical07/authclient/credential"
	"github.com/MrEthical07/authclient/internal/audit"
	"github.com/MrEthical07/authclient/token"
	"github.com/go-playground/validator/v10"
	"golang.org/x/sync/singleflight"
)

// serverLogoutTimeout bounds the best-effort logout call made after the
// local session has already ended.
const serverLogoutTimeout = 5 * time.Second

// Manager owns the session state machine and the persisted token.
//
// State changes happen under mu. Credential writes are serialized by storeMu
// and issued in the same order as the state changes they follow, so a late
// login can never persist a token after a logout removed it.
type Manager struct {
	mu     sync.Mutex
	status Status
	token  string
	user   *UserProfile
	epoch  uint64

	storeMu sync.Mutex
	store   credential.Store

	gateway   *Gateway
	notifier  Notifier
	logger    *slog.Logger
	metrics   *Metrics
	audit     *audit.Dispatcher
	validate  *validator.Validate
	refreshes singleflight.Group

	credKey      string
	serverLogout bool
	tokenCfg     TokenConfig
	routes       RoutesConfig
	msgs         MessagesConfig
	now          func() time.Time

	listenerMu   sync.Mutex
	listeners    map[uint64]func(Session)
	nextListener uint64

	background sync.WaitGroup
}

/*
====================================
BOOTSTRAP
====================================
*/

// Bootstrap resolves the initial state from the persisted token. It runs at
// most once meaningfully: after the session leaves StatusBootstrapping it
// returns nil without doing anything.
//
// A token that fails confirmation is removed and the session becomes
// anonymous. The returned error is informational; the state is already
// resolved when Bootstrap returns.
func (m *Manager) Bootstrap(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	tok, ok, err := m.store.Get(ctx, m.credKey)
	if err != nil {
		m.logger.Warn("authclient: credential read failed", "error", err)
	}
	if err != nil || !ok || tok == "" {
		m.mu.Lock()
		if m.status != StatusBootstrapping {
			m.mu.Unlock()
			return nil
		}
		m.status = StatusAnonymous
		m.token = ""
		m.user = nil
		snap := m.snapshotLocked()
		m.mu.Unlock()

		m.metrics.Inc(MetricBootstrapAnonymous)
		m.audit.Emit(ctx, auditEvent(ctx, AuditBootstrap, nil, snap.Epoch, err))
		m.publish(snap)
		if err != nil {
			return fmt.Errorf("bootstrap: read credential: %w", err)
		}
		return nil
	}

	// Already Bootstrapping: no transition, so the epoch is unchanged.
	m.mu.Lock()
	if m.status != StatusBootstrapping {
		m.mu.Unlock()
		return nil
	}
	epoch := m.epoch
	m.token = tok
	m.mu.Unlock()

	var user *UserProfile
	if m.tokenCfg.LocalExpiryCheck && token.ExpiredAt(tok, m.now(), m.tokenCfg.Leeway) {
		err = &APIError{Kind: KindUnauthorized, Status: http.StatusUnauthorized, Message: m.msgs.SessionExpired}
	} else {
		user, err = m.gateway.currentUser(withoutForcedLogout(ctx), false)
	}

	if err == nil {
		m.mu.Lock()
		if m.epoch != epoch || m.status != StatusBootstrapping {
			m.mu.Unlock()
			m.logger.Debug("authclient: stale bootstrap result discarded", "epoch", epoch)
			return nil
		}
		m.user = user
		m.status = StatusAuthenticated
		snap := m.snapshotLocked()
		m.mu.Unlock()

		m.metrics.Inc(MetricBootstrapSuccess)
		m.audit.Emit(ctx, auditEvent(ctx, AuditBootstrap, user, epoch, nil))
		m.logger.Info("authclient: session restored", "username", user.Username, "role", string(user.Role))
		m.publish(snap)
		return nil
	}

	if errors.Is(err, context.Canceled) {
		return m.abandonBootstrap(epoch, err)
	}

	m.storeMu.Lock()
	m.mu.Lock()
	if m.epoch != epoch || m.status != StatusBootstrapping {
		m.mu.Unlock()
		m.storeMu.Unlock()
		m.logger.Debug("authclient: stale bootstrap failure discarded", "epoch", epoch)
		return nil
	}
	m.clearLocked()
	snap := m.snapshotLocked()
	m.mu.Unlock()
	m.removeCredential(ctx)
	m.storeMu.Unlock()

	if KindOf(err) == KindUnauthorized {
		m.notifier.Notify(LevelError, m.msgs.SessionExpired)
	}
	m.metrics.Inc(MetricBootstrapFailure)
	m.audit.Emit(ctx, auditEvent(ctx, AuditBootstrap, nil, epoch, err))
	m.logger.Info("authclient: persisted session rejected", "kind", KindOf(err).String())
	m.publish(snap)
	return fmt.Errorf("bootstrap: %w", err)
}

// abandonBootstrap resolves a bootstrap whose caller gave up before the
// token was confirmed. The session is anonymous for this run but the
// persisted token is kept for the next one.
func (m *Manager) abandonBootstrap(epoch uint64, err error) error {
	m.mu.Lock()
	if m.epoch != epoch || m.status != StatusBootstrapping {
		m.mu.Unlock()
		return nil
	}
	m.clearLocked()
	snap := m.snapshotLocked()
	m.mu.Unlock()

	m.logger.Info("authclient: bootstrap canceled, persisted token kept", "epoch", epoch)
	m.publish(snap)
	return fmt.Errorf("bootstrap: %w", err)
}

/*
====================================
LOGIN / REGISTER
====================================
*/

// Login authenticates and reports whether the session is now authenticated.
// Failures are reported through the Notifier.
func (m *Manager) Login(ctx context.Context, identifier, secret string) bool {
	return m.Authenticate(ctx, identifier, secret) == nil
}

// Authenticate is Login with the classified failure returned. A 401 from the
// server is reported as ErrInvalidCredentials and never ends another
// session.
func (m *Manager) Authenticate(ctx context.Context, identifier, secret string) error {
	if ctx == nil {
		ctx = context.Background()
	}

	m.mu.Lock()
	epoch := m.epoch
	m.mu.Unlock()

	var resp loginResponse
	err := m.gateway.DecodeInto(withBearer(ctx, ""), Request{
		Method: http.MethodPost,
		Path:   m.routes.LoginEndpoint,
		Body:   loginRequest{Username: identifier, Password: secret},
		Quiet:  true,
	}, &resp)
	if err == nil && (resp.Token == "" || resp.User == nil || resp.User.Username == "") {
		err = &APIError{
			Kind:    KindMalformedResponse,
			Status:  http.StatusOK,
			Message: m.msgs.MalformedResponse,
			Err:     errors.New("login response without token or user"),
		}
	}
	if err != nil {
		return m.loginFailed(ctx, identifier, epoch, err)
	}
	if r, ok := ParseRole(string(resp.User.Role)); ok {
		resp.User.Role = r
	}

	m.storeMu.Lock()
	m.mu.Lock()
	if m.epoch != epoch {
		m.mu.Unlock()
		m.storeMu.Unlock()
		m.metrics.Inc(MetricLoginDiscarded)
		m.logger.Info("authclient: login result discarded after logout", "username", resp.User.Username)
		m.notifier.Notify(LevelError, m.msgs.LoginFailed)
		m.audit.Emit(ctx, auditEvent(ctx, AuditLoginFailed, resp.User, epoch, ErrSessionChanged))
		if m.serverLogout {
			m.notifyServerLogout(ctx, resp.Token)
		}
		return ErrSessionChanged
	}
	m.token = resp.Token
	m.user = resp.User.clone()
	m.status = StatusAuthenticated
	snap := m.snapshotLocked()
	m.mu.Unlock()
	if err := m.store.Set(context.WithoutCancel(ctx), m.credKey, resp.Token); err != nil {
		m.logger.Warn("authclient: credential write failed", "error", err)
	}
	m.storeMu.Unlock()

	m.notifier.Notify(LevelSuccess, m.msgs.WelcomeBack+resp.User.DisplayName()+"!")
	m.metrics.Inc(MetricLoginSuccess)
	m.audit.Emit(ctx, auditEvent(ctx, AuditLogin, resp.User, snap.Epoch, nil))
	m.logger.Info("authclient: logged in", "username", resp.User.Username, "role", string(resp.User.Role))
	m.publish(snap)
	return nil
}

func (m *Manager) loginFailed(ctx context.Context, identifier string, epoch uint64, err error) error {
	m.metrics.Inc(MetricLoginFailure)
	if errors.Is(err, context.Canceled) {
		m.notifier.Notify(LevelError, m.msgs.LoginFailed)
		m.audit.Emit(ctx, auditEvent(ctx, AuditLoginFailed, &UserProfile{Username: identifier}, epoch, err))
		return err
	}

	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.Kind == KindUnauthorized {
		credErr := &APIError{
			Kind:      KindInvalidCredentials,
			Status:    apiErr.Status,
			Message:   m.msgs.InvalidCredentials,
			RequestID: apiErr.RequestID,
			Err:       ErrUnauthorized,
		}
		if apiErr.serverMessage {
			credErr.Message = apiErr.Message
			credErr.serverMessage = true
		}
		err, apiErr = credErr, credErr
	}

	msg := m.msgs.LoginFailed
	if apiErr != nil && apiErr.Message != "" {
		msg = apiErr.Message
	}
	m.notifier.Notify(LevelError, msg)
	m.audit.Emit(ctx, auditEvent(ctx, AuditLoginFailed, &UserProfile{Username: identifier}, epoch, err))
	m.logger.Info("authclient: login failed", "username", identifier, "kind", KindOf(err).String())
	return err
}

// Register submits a new account and reports whether the server accepted
// it. The session is not changed; the user logs in afterwards.
func (m *Manager) Register(ctx context.Context, draft ProfileDraft) bool {
	return m.SignUp(ctx, draft) == nil
}

// SignUp is Register with the classified failure returned. Drafts failing
// local validation never reach the network.
func (m *Manager) SignUp(ctx context.Context, draft ProfileDraft) error {
	if ctx == nil {
		ctx = context.Background()
	}

	err := validateDraft(m.validate, draft, m.msgs.ValidationFailed)
	if err == nil {
		_, err = m.gateway.Do(withBearer(ctx, ""), Request{
			Method: http.MethodPost,
			Path:   m.routes.RegisterEndpoint,
			Body:   draft,
			Quiet:  true,
		})
	}

	epoch := m.Epoch()
	if err != nil {
		m.metrics.Inc(MetricRegisterFailure)
		if errors.Is(err, context.Canceled) {
			return err
		}
		msg := m.msgs.RegistrationFailed
		var apiErr *APIError
		if errors.As(err, &apiErr) {
			switch {
			case len(apiErr.FieldErrors) > 0:
				msg = joinFieldErrors(apiErr.FieldErrors)
			case apiErr.Message != "":
				msg = apiErr.Message
			}
		}
		m.notifier.Notify(LevelError, msg)
		m.audit.Emit(ctx, auditEvent(ctx, AuditRegister, &UserProfile{Username: draft.Username}, epoch, err))
		return err
	}

	m.notifier.Notify(LevelSuccess, m.msgs.RegistrationSuccess)
	m.metrics.Inc(MetricRegisterSuccess)
	m.audit.Emit(ctx, auditEvent(ctx, AuditRegister, &UserProfile{Username: draft.Username}, epoch, nil))
	return nil
}

/*
====================================
LOGOUT
====================================
*/

// Logout ends the session. Calling it while already anonymous does nothing:
// no store write and no notification.
func (m *Manager) Logout(ctx context.Context) {
	if ctx == nil {
		ctx = context.Background()
	}

	m.storeMu.Lock()
	m.mu.Lock()
	if m.status == StatusAnonymous && m.token == "" {
		m.mu.Unlock()
		m.storeMu.Unlock()
		return
	}
	oldToken, oldUser := m.token, m.user
	m.clearLocked()
	snap := m.snapshotLocked()
	m.mu.Unlock()
	m.removeCredential(ctx)
	m.storeMu.Unlock()

	m.notifier.Notify(LevelInfo, m.msgs.LoggedOut)
	m.metrics.Inc(MetricLogout)
	m.audit.Emit(ctx, auditEvent(ctx, AuditLogout, oldUser, snap.Epoch, nil))
	m.logger.Info("authclient: logged out", "epoch", snap.Epoch)
	m.publish(snap)

	if m.serverLogout && oldToken != "" {
		m.notifyServerLogout(ctx, oldToken)
	}
}

// notifyServerLogout tells the backend about the logout. Its outcome never
// affects local state.
func (m *Manager) notifyServerLogout(ctx context.Context, oldToken string) {
	m.background.Add(1)
	go func() {
		defer m.background.Done()
		callCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), serverLogoutTimeout)
		defer cancel()
		_, err := m.gateway.Do(withBearer(callCtx, oldToken), Request{
			Method: http.MethodPost,
			Path:   m.routes.LogoutEndpoint,
			Quiet:  true,
		})
		if err != nil {
			m.logger.Warn("authclient: server logout failed", "error", err)
		}
	}()
}

// ForceLogout ends the session because a request dispatched in epoch with
// tok was rejected as unauthorized. It acts only if that session is still
// the current one, and reports whether it did.
func (m *Manager) ForceLogout(epoch uint64, tok string) bool {
	m.storeMu.Lock()
	m.mu.Lock()
	if m.epoch != epoch || m.token == "" || m.token != tok || m.status == StatusAnonymous {
		m.mu.Unlock()
		m.storeMu.Unlock()
		return false
	}
	oldUser := m.user
	m.clearLocked()
	snap := m.snapshotLocked()
	m.mu.Unlock()
	m.removeCredential(context.Background())
	m.storeMu.Unlock()

	m.notifier.Notify(LevelError, m.msgs.SessionExpired)
	m.metrics.Inc(MetricForcedLogout)
	m.audit.Emit(context.Background(), auditEvent(context.Background(), AuditForcedLogout, oldUser, epoch, &APIError{Kind: KindUnauthorized, Status: http.StatusUnauthorized}))
	m.logger.Info("authclient: session expired", "epoch", epoch)
	m.publish(snap)
	return true
}

/*
====================================
REFRESH
====================================
*/

// Refresh re-fetches the current user's profile. Concurrent calls within
// one session share a single request. The result is dropped if the session
// changed meanwhile.
func (m *Manager) Refresh(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	m.mu.Lock()
	status, epoch := m.status, m.epoch
	m.mu.Unlock()
	if status != StatusAuthenticated {
		return ErrUnauthorized
	}

	// The shared fetch outlives any single caller; each caller stops waiting
	// when its own context ends.
	flight := m.refreshes.DoChan(strconv.FormatUint(epoch, 10), func() (any, error) {
		return m.gateway.currentUser(context.WithoutCancel(ctx), true)
	})
	var res singleflight.Result
	select {
	case <-ctx.Done():
		return fmt.Errorf("refresh: %w", ctx.Err())
	case res = <-flight:
	}
	v, err := res.Val, res.Err
	if err != nil {
		m.metrics.Inc(MetricRefreshFailure)
		m.logger.Warn("authclient: profile refresh failed", "error", err)
		return fmt.Errorf("refresh: %w", err)
	}
	user := v.(*UserProfile)

	m.mu.Lock()
	if m.epoch != epoch || m.status != StatusAuthenticated {
		m.mu.Unlock()
		return nil
	}
	m.user = user.clone()
	snap := m.snapshotLocked()
	m.mu.Unlock()

	m.metrics.Inc(MetricRefreshSuccess)
	m.audit.Emit(ctx, auditEvent(ctx, AuditRefresh, user, epoch, nil))
	m.publish(snap)
	return nil
}

/*
====================================
QUERIES
====================================
*/

// Snapshot returns a copy of the current session.
func (m *Manager) Snapshot() Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.snapshotLocked()
}

// Status returns the current state.
func (m *Manager) Status() Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.status
}

// Token returns the current token, empty when absent.
func (m *Manager) Token() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.token
}

// Epoch returns the current session epoch.
func (m *Manager) Epoch() uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.epoch
}

// CurrentUser returns a copy of the authenticated user, or nil.
func (m *Manager) CurrentUser() *UserProfile {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.status != StatusAuthenticated {
		return nil
	}
	return m.user.clone()
}

// HasRole reports whether the user ranks at or above min.
func (m *Manager) HasRole(min Role) bool {
	return m.Snapshot().HasRole(min)
}

// IsAdmin reports whether the user is exactly ADMIN.
func (m *Manager) IsAdmin() bool {
	return m.Snapshot().HasExactRole(RoleAdmin)
}

// IsModerator reports whether the user is MODERATOR or ADMIN.
func (m *Manager) IsModerator() bool {
	return m.Snapshot().HasRole(RoleModerator)
}

// Subscribe registers fn to receive the session after every state change.
// fn runs on the goroutine that made the change, outside any Manager lock.
// The returned function removes the subscription.
func (m *Manager) Subscribe(fn func(Session)) func() {
	if fn == nil {
		return func() {}
	}
	m.listenerMu.Lock()
	id := m.nextListener
	m.nextListener++
	m.listeners[id] = fn
	m.listenerMu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			m.listenerMu.Lock()
			delete(m.listeners, id)
			m.listenerMu.Unlock()
		})
	}
}

/*
====================================
INTERNALS
====================================
*/

func (m *Manager) dispatchState() (string, uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.token, m.epoch
}

// clearLocked moves to StatusAnonymous and starts a new epoch.
func (m *Manager) clearLocked() {
	m.status = StatusAnonymous
	m.token = ""
	m.user = nil
	m.epoch++
}

func (m *Manager) snapshotLocked() Session {
	return Session{
		Status: m.status,
		Token:  m.token,
		User:   m.user.clone(),
		Epoch:  m.epoch,
	}
}

// removeCredential must be called with storeMu held.
func (m *Manager) removeCredential(ctx context.Context) {
	if err := m.store.Remove(context.WithoutCancel(ctx), m.credKey); err != nil {
		m.logger.Warn("authclient: credential remove failed", "error", err)
	}
}

func (m *Manager) publish(s Session) {
	m.listenerMu.Lock()
	if len(m.listeners) == 0 {
		m.listenerMu.Unlock()
		return
	}
	fns := make([]func(Session), 0, len(m.listeners))
	for _, fn := range m.listeners {
		fns = append(fns, fn)
	}
	m.listenerMu.Unlock()

	for _, fn := range fns {
		fn(s)
	}
}

// waitBackground blocks until background server logouts finish.
func (m *Manager) waitBackground() {
	m.background.Wait()
}

var _ sessionSource = (*Manager)(nil)
