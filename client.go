package authclient

import (
	"sync"

	"github.com/MrEthical07/authclient/internal/audit"
)

// Client bundles the Manager, the Gateway and bootstrap sequencing. Create
// one with New().Build().
type Client struct {
	manager *Manager
	gateway *Gateway
	guard   Guard
	routes  *RouteTable
	metrics *Metrics
	audit   *audit.Dispatcher

	startOnce sync.Once
	startErr  error
	ready     chan struct{}

	closeOnce sync.Once
}

// Manager returns the session manager.
func (c *Client) Manager() *Manager { return c.manager }

// Gateway returns the API gateway.
func (c *Client) Gateway() *Gateway { return c.gateway }

// Routes returns the application route table.
func (c *Client) Routes() *RouteTable { return c.routes }

// Snapshot returns the current session.
func (c *Client) Snapshot() Session { return c.manager.Snapshot() }

// CurrentUser returns the authenticated user. It is nil until bootstrap has
// resolved, so no caller can observe a user that was never confirmed.
func (c *Client) CurrentUser() *UserProfile {
	return c.manager.CurrentUser()
}

// Decide checks req against the current session.
func (c *Client) Decide(req Requirement) Decision {
	return c.guard.Decide(c.manager.Snapshot(), req)
}

// DecidePath checks a route table path against the current session.
func (c *Client) DecidePath(p string) Decision {
	return c.routes.Decide(c.manager.Snapshot(), p)
}

// Metrics returns the in-process counters.
func (c *Client) Metrics() *Metrics { return c.metrics }

// MetricsSnapshot copies the counters for exporters.
func (c *Client) MetricsSnapshot() MetricsSnapshot {
	return c.metrics.Snapshot()
}

// AuditDropped reports how many audit events were discarded.
func (c *Client) AuditDropped() uint64 {
	return c.audit.Dropped()
}

// Close waits for background server logouts and flushes the audit trail.
// The session itself is left as is.
func (c *Client) Close() {
	if c == nil {
		return
	}
	c.closeOnce.Do(func() {
		c.manager.waitBackground()
		c.audit.Close()
	})
}
