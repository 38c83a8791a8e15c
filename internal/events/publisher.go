// Package events publishes exchange notifications to NATS. The publisher
// is optional; a nil *Publisher is safe to call and does nothing.
package events

import (
	"encoding/json"
	"time"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"github.com/chatloom/chatloom/internal/model"
	"github.com/chatloom/chatloom/pkg/logger"
)

// Config holds NATS connection configuration.
type Config struct {
	URL   string
	Token string
}

// Publisher emits fire-and-forget exchange events.
type Publisher struct {
	conn   *nats.Conn
	logger *logger.Logger
}

// Connect establishes a NATS connection. Returns (nil, nil) when no URL
// is configured, which disables eventing.
func Connect(cfg Config, log *logger.Logger) (*Publisher, error) {
	if cfg.URL == "" {
		return nil, nil
	}

	opts := []nats.Option{
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2 * time.Second),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			log.Warn("NATS disconnected", zap.Error(err))
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Info("NATS reconnected")
		}),
	}
	if cfg.Token != "" {
		opts = append(opts, nats.Token(cfg.Token))
	}

	conn, err := nats.Connect(cfg.URL, opts...)
	if err != nil {
		return nil, err
	}
	return &Publisher{conn: conn, logger: log}, nil
}

// ExchangeCompleted publishes an event for a finished exchange. Publish
// failures are logged, never propagated; eventing must not fail a chat.
func (p *Publisher) ExchangeCompleted(ev model.ExchangeEvent) {
	if p == nil {
		return
	}
	data, err := json.Marshal(ev)
	if err != nil {
		p.logger.Error("failed to marshal exchange event", zap.Error(err))
		return
	}
	subject := "chat.exchange." + ev.OwnerID
	if err := p.conn.Publish(subject, data); err != nil {
		p.logger.Warn("failed to publish exchange event",
			zap.String("subject", subject),
			zap.Error(err),
		)
	}
}

// Connected reports whether the publisher has a live connection.
func (p *Publisher) Connected() bool {
	return p != nil && p.conn != nil && p.conn.IsConnected()
}

// Close drains the connection.
func (p *Publisher) Close() {
	if p != nil && p.conn != nil {
		p.conn.Close()
	}
}
