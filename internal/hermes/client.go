// Package hermes publishes Sadhana events to the Hermes message bus and
// listens for catalog changes on it.
package hermes

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/MikeSquared-Agency/Sadhana/internal/metrics"
)

const (
	connectTimeout = 5 * time.Second
	drainTimeout   = 10 * time.Second
)

// Client holds the bus connection shared by the publisher and subscriber.
type Client struct {
	conn   *nats.Conn
	js     nats.JetStreamContext
	name   string
	logger *slog.Logger
}

// NewClient dials url as the named client. The connection keeps retrying in
// the background, so an unreachable server at startup is not an error.
func NewClient(url, name string, logger *slog.Logger) (*Client, error) {
	c := &Client{name: name, logger: logger}

	nc, err := nats.Connect(url,
		nats.Name(name),
		nats.Timeout(connectTimeout),
		nats.DrainTimeout(drainTimeout),
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(-1),
		nats.ConnectHandler(func(_ *nats.Conn) {
			metrics.BusConnected.Set(1)
			logger.Info("event bus connected", "client", name)
		}),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			metrics.BusConnected.Set(0)
			if err != nil {
				logger.Warn("event bus disconnected", "client", name, "error", err)
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			metrics.BusConnected.Set(1)
			metrics.BusReconnects.Inc()
			logger.Info("event bus reconnected", "client", name, "server", nc.ConnectedUrl())
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connecting to NATS: %w", err)
	}
	if nc.IsConnected() {
		metrics.BusConnected.Set(1)
	}

	js, err := nc.JetStream()
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("creating JetStream context: %w", err)
	}

	c.conn = nc
	c.js = js
	return c, nil
}

// Close drains in-flight events and subscriptions before closing. If the
// drain cannot start the connection is closed directly.
func (c *Client) Close() {
	if c.conn == nil {
		return
	}
	if err := c.conn.Drain(); err != nil {
		c.logger.Warn("event bus drain failed", "client", c.name, "error", err)
		c.conn.Close()
	}
	metrics.BusConnected.Set(0)
}

// IsConnected reports whether the bus connection is currently up.
func (c *Client) IsConnected() bool {
	return c.conn != nil && c.conn.IsConnected()
}
