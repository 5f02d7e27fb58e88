package authclient

import (
	"time"

	"github.com/kelseyhightower/envconfig"
)

// envConfig is the flat environment view of Config. Variables are read as
// <PREFIX>_<NAME>, e.g. AUTHCLIENT_BASE_URL.
type envConfig struct {
	BaseURL      string        `envconfig:"BASE_URL"`
	Timeout      time.Duration `envconfig:"TIMEOUT"`
	UserAgent    string        `envconfig:"USER_AGENT"`
	ServerLogout bool          `envconfig:"SERVER_LOGOUT"`
	Tracing      bool          `envconfig:"TRACING"`

	LoginPath    string `envconfig:"LOGIN_PATH"`
	FallbackPath string `envconfig:"FALLBACK_PATH"`

	CredentialKey string        `envconfig:"CREDENTIAL_KEY"`
	RedisPrefix   string        `envconfig:"REDIS_PREFIX"`
	CredentialTTL time.Duration `envconfig:"CREDENTIAL_TTL"`

	LocalExpiryCheck bool          `envconfig:"LOCAL_EXPIRY_CHECK"`
	Leeway           time.Duration `envconfig:"TOKEN_LEEWAY"`

	AuditEnabled   bool `envconfig:"AUDIT_ENABLED"`
	MetricsEnabled bool `envconfig:"METRICS_ENABLED"`
}

// LoadConfigFromEnv starts from DefaultConfig and overrides the fields whose
// variables are set. An empty prefix reads unprefixed names.
func LoadConfigFromEnv(prefix string) (Config, error) {
	cfg := DefaultConfig()
	env := envConfig{
		BaseURL:          cfg.Gateway.BaseURL,
		Timeout:          cfg.Gateway.Timeout,
		UserAgent:        cfg.Gateway.UserAgent,
		ServerLogout:     cfg.Gateway.ServerLogout,
		Tracing:          cfg.Gateway.Tracing,
		LoginPath:        cfg.Routes.LoginPath,
		FallbackPath:     cfg.Routes.FallbackPath,
		CredentialKey:    cfg.Credential.Key,
		RedisPrefix:      cfg.Credential.RedisPrefix,
		CredentialTTL:    cfg.Credential.TTL,
		LocalExpiryCheck: cfg.Token.LocalExpiryCheck,
		Leeway:           cfg.Token.Leeway,
		AuditEnabled:     cfg.Audit.Enabled,
		MetricsEnabled:   cfg.Metrics.Enabled,
	}
	if err := envconfig.Process(prefix, &env); err != nil {
		return Config{}, err
	}

	cfg.Gateway.BaseURL = env.BaseURL
	cfg.Gateway.Timeout = env.Timeout
	cfg.Gateway.UserAgent = env.UserAgent
	cfg.Gateway.ServerLogout = env.ServerLogout
	cfg.Gateway.Tracing = env.Tracing
	cfg.Routes.LoginPath = env.LoginPath
	cfg.Routes.FallbackPath = env.FallbackPath
	cfg.Credential.Key = env.CredentialKey
	cfg.Credential.RedisPrefix = env.RedisPrefix
	cfg.Credential.TTL = env.CredentialTTL
	cfg.Token.LocalExpiryCheck = env.LocalExpiryCheck
	cfg.Token.Leeway = env.Leeway
	cfg.Audit.Enabled = env.AuditEnabled
	cfg.Metrics.Enabled = env.MetricsEnabled

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}
