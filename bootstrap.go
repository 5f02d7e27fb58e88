package authclient

import "context"

// Start bootstraps the session. Only the first call does work; later and
// concurrent calls wait for it and return its result.
func (c *Client) Start(ctx context.Context) error {
	if c == nil {
		return ErrClientNotReady
	}
	c.startOnce.Do(func() {
		defer close(c.ready)
		c.startErr = c.manager.Bootstrap(ctx)
	})
	return c.startErr
}

// Ready is closed once bootstrap has resolved.
func (c *Client) Ready() <-chan struct{} {
	return c.ready
}

// Wait blocks until bootstrap has resolved or ctx is done.
func (c *Client) Wait(ctx context.Context) error {
	select {
	case <-c.ready:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
