package authclient

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/MrEthical07/authclient/credential"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/MrEthical07/authclient"

// Builder assembles a Client. Configure it once during initialization and
// call Build; a Builder cannot be reused.
type Builder struct {
	config Config

	store      credential.Store
	redis      redis.UniversalClient
	notifier   Notifier
	navigator  Navigator
	httpClient *http.Client
	logger     *slog.Logger
	auditSink  AuditSink
	tracer     trace.TracerProvider
	now        func() time.Time

	// Overrides applied on top of whatever Config is set last.
	auditOn   bool
	metricsOn *bool

	built bool
}

// New returns a Builder holding DefaultConfig.
func New() *Builder {
	return &Builder{
		config: DefaultConfig(),
	}
}

// WithConfig replaces the whole configuration.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cfg
	return b
}

// WithCredentialStore sets where the token is persisted. Without one, a
// Redis client set by WithRedis is used, and otherwise an in-memory store.
func (b *Builder) WithCredentialStore(store credential.Store) *Builder {
	b.store = store
	return b
}

// WithRedis persists the token in Redis using the Credential section's
// prefix and TTL.
func (b *Builder) WithRedis(client redis.UniversalClient) *Builder {
	b.redis = client
	return b
}

// WithNotifier sets the user-facing message sink.
func (b *Builder) WithNotifier(n Notifier) *Builder {
	b.notifier = n
	return b
}

// WithNavigator sets the redirect capability used on forced logout.
func (b *Builder) WithNavigator(n Navigator) *Builder {
	b.navigator = n
	return b
}

// WithHTTPClient overrides the HTTP client. Its Timeout is left as given.
func (b *Builder) WithHTTPClient(c *http.Client) *Builder {
	b.httpClient = c
	return b
}

// WithLogger sets the structured logger. The default discards everything.
func (b *Builder) WithLogger(l *slog.Logger) *Builder {
	b.logger = l
	return b
}

// WithAuditSink sets the audit destination and enables auditing, even if
// WithConfig is called afterwards.
func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	b.auditOn = sink != nil
	return b
}

// WithTracerProvider sets the provider for gateway spans. The global
// provider is used otherwise.
func (b *Builder) WithTracerProvider(tp trace.TracerProvider) *Builder {
	b.tracer = tp
	return b
}

// WithMetricsEnabled toggles the in-process counters. It takes precedence
// over the Metrics section of any Config.
func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.metricsOn = &enabled
	return b
}

// withClock is used by tests to control token expiry checks.
func (b *Builder) withClock(now func() time.Time) *Builder {
	b.now = now
	return b
}

// Build validates the configuration and wires the Client.
func (b *Builder) Build() (*Client, error) {
	if b.built {
		return nil, ErrBuilderUsed
	}

	cfg := b.config
	if b.auditOn {
		cfg.Audit.Enabled = true
	}
	if b.metricsOn != nil {
		cfg.Metrics.Enabled = *b.metricsOn
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	store := b.store
	if store == nil {
		if b.redis != nil {
			store = credential.NewRedis(b.redis, cfg.Credential.RedisPrefix, cfg.Credential.TTL)
		} else {
			store = credential.NewMemory(nil)
		}
	}

	logger := b.logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	var notifier Notifier = noopNotifier{}
	if b.notifier != nil {
		notifier = b.notifier
	}
	var navigator Navigator = noopNavigator{}
	if b.navigator != nil {
		navigator = b.navigator
	}
	tp := b.tracer
	if tp == nil {
		tp = otel.GetTracerProvider()
	}
	now := b.now
	if now == nil {
		now = time.Now
	}

	metrics := NewMetrics(cfg.Metrics)
	dispatcher := newAuditDispatcher(cfg.Audit, b.auditSink)

	gateway := &Gateway{
		baseURL:   cfg.Gateway.BaseURL,
		http:      buildHTTPClient(b.httpClient, cfg.Gateway),
		notifier:  notifier,
		navigator: navigator,
		logger:    logger,
		metrics:   metrics,
		tracer:    tp.Tracer(tracerName),
		userAgent: cfg.Gateway.UserAgent,
		routes:    cfg.Routes,
		tokenCfg:  cfg.Token,
		msgs:      cfg.Messages,
		now:       now,
	}

	manager := &Manager{
		status:       StatusBootstrapping,
		store:        store,
		gateway:      gateway,
		notifier:     notifier,
		logger:       logger,
		metrics:      metrics,
		audit:        dispatcher,
		validate:     newValidator(),
		credKey:      cfg.Credential.Key,
		serverLogout: cfg.Gateway.ServerLogout,
		tokenCfg:     cfg.Token,
		routes:       cfg.Routes,
		msgs:         cfg.Messages,
		now:          now,
		listeners:    make(map[uint64]func(Session)),
	}
	gateway.session = manager

	b.built = true

	return &Client{
		manager: manager,
		gateway: gateway,
		routes:  DefaultRouteTable(NewGuard(cfg.Routes)),
		guard:   NewGuard(cfg.Routes),
		metrics: metrics,
		audit:   dispatcher,
		ready:   make(chan struct{}),
	}, nil
}

func buildHTTPClient(given *http.Client, cfg GatewayConfig) *http.Client {
	var c http.Client
	if given != nil {
		c = *given
	} else {
		c.Timeout = cfg.Timeout
	}
	if cfg.Tracing {
		base := c.Transport
		if base == nil {
			base = http.DefaultTransport
		}
		c.Transport = otelhttp.NewTransport(base)
	}
	return &c
}
