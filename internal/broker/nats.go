// Package broker fans watcher alerts out to a NATS subject hierarchy.
package broker

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"github.com/blackwell-systems/kpiwatch/internal/watcher"
)

// NATSPublisher publishes alerts to <prefix>.<level> using core NATS.
type NATSPublisher struct {
	nc     *nats.Conn
	prefix string
	logger *zap.Logger
}

// NewNATSPublisher connects to natsURL. The connection retries in the
// background if the server is not reachable yet.
func NewNATSPublisher(natsURL, prefix string, log *zap.Logger) (*NATSPublisher, error) {
	if log == nil {
		log = zap.NewNop()
	}
	nc, err := nats.Connect(natsURL,
		nats.Name("kpiwatch"),
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(10),
		nats.ReconnectWait(2*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				log.Warn("NATS disconnected", zap.Error(err))
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Info("NATS reconnected", zap.String("url", nc.ConnectedUrl()))
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	log.Info("connected to NATS", zap.String("url", natsURL), zap.String("prefix", prefix))

	return &NATSPublisher{nc: nc, prefix: prefix, logger: log}, nil
}

// Subject returns the subject an alert of the given level is published on.
func Subject(prefix, level string) string {
	prefix = strings.TrimSuffix(prefix, ".")
	if level == "" {
		level = "unknown"
	}
	if prefix == "" {
		return level
	}
	return prefix + "." + level
}

// Publish sends the alert as JSON. It does not wait for the server.
func (p *NATSPublisher) Publish(ctx context.Context, a watcher.Alert) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := json.Marshal(a)
	if err != nil {
		return fmt.Errorf("failed to marshal alert: %w", err)
	}

	subject := Subject(p.prefix, a.Level)
	if err := p.nc.Publish(subject, data); err != nil {
		return fmt.Errorf("failed to publish alert: %w", err)
	}

	p.logger.Debug("alert published",
		zap.String("subject", subject),
		zap.String("alert_id", a.ID),
		zap.Int("size", len(data)),
	)
	return nil
}

// Close flushes pending messages and closes the connection.
func (p *NATSPublisher) Close() error {
	if p.nc == nil {
		return nil
	}
	p.logger.Info("closing NATS connection")
	if p.nc.IsConnected() {
		if err := p.nc.FlushTimeout(2 * time.Second); err != nil {
			p.logger.Warn("NATS flush failed", zap.Error(err))
		}
	}
	p.nc.Close()
	return nil
}

var _ watcher.Publisher = (*NATSPublisher)(nil)
