package authclient

import (
	"errors"
	"net/url"
	"strings"
	"time"
)

// Config holds everything a Client needs apart from its collaborators.
//
// Config values are copied into the Client at Build time; later mutation of
// the original has no effect.
type Config struct {
	Gateway    GatewayConfig
	Routes     RoutesConfig
	Credential CredentialConfig
	Token      TokenConfig
	Messages   MessagesConfig
	Audit      AuditConfig
	Metrics    MetricsConfig
}

/*
====================================
GATEWAY CONFIG
====================================
*/

// GatewayConfig controls the outbound HTTP client.
type GatewayConfig struct {
	BaseURL   string
	Timeout   time.Duration // 0 means no client-imposed timeout
	UserAgent string

	// ServerLogout enables the best-effort POST /users/logout on Logout.
	ServerLogout bool
	// Tracing wraps the transport with OpenTelemetry HTTP instrumentation.
	Tracing bool
}

/*
====================================
ROUTES CONFIG
====================================
*/

// RoutesConfig names the well-known navigation targets.
type RoutesConfig struct {
	LoginPath    string
	FallbackPath string

	LoginEndpoint    string
	RegisterEndpoint string
	ProfileEndpoint  string
	LogoutEndpoint   string
}

/*
====================================
CREDENTIAL CONFIG
====================================
*/

// CredentialConfig describes how the token is persisted.
type CredentialConfig struct {
	Key string
	// RedisPrefix and TTL only apply to the Redis credential store.
	RedisPrefix string
	TTL         time.Duration
}

/*
====================================
TOKEN CONFIG
====================================
*/

// TokenConfig controls local inspection of JWT bearer tokens. Opaque tokens
// are never inspected.
type TokenConfig struct {
	LocalExpiryCheck bool
	Leeway           time.Duration
}

/*
====================================
MESSAGES CONFIG
====================================
*/

// MessagesConfig holds every user-visible string the core emits.
// WelcomeBack is a prefix; the user's display name and "!" are appended.
type MessagesConfig struct {
	WelcomeBack          string
	LoginFailed          string
	InvalidCredentials   string
	RegistrationSuccess  string
	RegistrationFailed   string
	LoggedOut            string
	SessionExpired       string
	AccessDenied         string
	NotFound             string
	ServerError          string
	NetworkError         string
	RequestFailed        string
	ValidationFailed     string
	MalformedResponse    string
	ProfileRefreshFailed string
}

// AuditConfig controls the asynchronous session event trail.
type AuditConfig struct {
	Enabled    bool
	BufferSize int
	DropIfFull bool
}

// MetricsConfig toggles the in-process counters.
type MetricsConfig struct {
	Enabled bool
}

/*
====================================
DEFAULT CONFIG
====================================
*/

// DefaultConfig returns the configuration used when none is supplied.
func DefaultConfig() Config {
	return Config{
		Gateway: GatewayConfig{
			BaseURL:      "http://localhost:8080/api",
			Timeout:      30 * time.Second,
			UserAgent:    "authclient/1",
			ServerLogout: true,
			Tracing:      false,
		},
		Routes: RoutesConfig{
			LoginPath:        "/login",
			FallbackPath:     "/dashboard",
			LoginEndpoint:    "/users/login",
			RegisterEndpoint: "/users/register",
			ProfileEndpoint:  "/users/me",
			LogoutEndpoint:   "/users/logout",
		},
		Credential: CredentialConfig{
			Key:         "token",
			RedisPrefix: "authclient",
			TTL:         0,
		},
		Token: TokenConfig{
			LocalExpiryCheck: true,
			Leeway:           5 * time.Second,
		},
		Messages: MessagesConfig{
			WelcomeBack:          "Welcome back, ",
			LoginFailed:          "Login failed",
			InvalidCredentials:   "Invalid username or password",
			RegistrationSuccess:  "Registration successful! Please login.",
			RegistrationFailed:   "Registration failed",
			LoggedOut:            "Logged out successfully",
			SessionExpired:       "Session expired. Please login again.",
			AccessDenied:         "Access denied. Insufficient privileges.",
			NotFound:             "Resource not found.",
			ServerError:          "Server error. Please try again later.",
			NetworkError:         "Network error. Please check your connection.",
			RequestFailed:        "Request failed.",
			ValidationFailed:     "Validation failed",
			MalformedResponse:    "Unexpected response from server.",
			ProfileRefreshFailed: "Could not refresh your profile.",
		},
		Audit: AuditConfig{
			Enabled:    false,
			BufferSize: 256,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			Enabled: true,
		},
	}
}

/*
====================================
VALIDATION
====================================
*/

// Validate reports the first configuration problem found.
func (c *Config) Validate() error {
	if c == nil {
		return errors.New("config is nil")
	}

	// Gateway
	if strings.TrimSpace(c.Gateway.BaseURL) == "" {
		return errors.New("Gateway BaseURL must be set")
	}
	u, err := url.Parse(c.Gateway.BaseURL)
	if err != nil {
		return errors.New("Gateway BaseURL is not a valid URL")
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return errors.New("Gateway BaseURL must use http or https")
	}
	if u.Host == "" {
		return errors.New("Gateway BaseURL must include a host")
	}
	if c.Gateway.Timeout < 0 {
		return errors.New("Gateway Timeout must be >= 0")
	}

	// Routes
	for name, p := range map[string]string{
		"LoginPath":        c.Routes.LoginPath,
		"FallbackPath":     c.Routes.FallbackPath,
		"LoginEndpoint":    c.Routes.LoginEndpoint,
		"RegisterEndpoint": c.Routes.RegisterEndpoint,
		"ProfileEndpoint":  c.Routes.ProfileEndpoint,
		"LogoutEndpoint":   c.Routes.LogoutEndpoint,
	} {
		if !strings.HasPrefix(p, "/") {
			return errors.New("Routes " + name + " must start with /")
		}
	}
	if c.Routes.LoginPath == c.Routes.FallbackPath {
		return errors.New("Routes LoginPath and FallbackPath must differ")
	}

	// Credential
	if strings.TrimSpace(c.Credential.Key) == "" {
		return errors.New("Credential Key must be set")
	}
	if c.Credential.TTL < 0 {
		return errors.New("Credential TTL must be >= 0")
	}

	// Token
	if c.Token.Leeway < 0 || c.Token.Leeway > 2*time.Minute {
		return errors.New("Token Leeway must be between 0 and 2m")
	}

	// Audit
	if c.Audit.Enabled && c.Audit.BufferSize <= 0 {
		return errors.New("Audit BufferSize must be > 0 when enabled")
	}

	return nil
}

// message returns s, or fallback when s is empty, so partially filled
// Messages sections still produce text.
func message(s, fallback string) string {
	if s == "" {
		return fallback
	}
	return s
}
