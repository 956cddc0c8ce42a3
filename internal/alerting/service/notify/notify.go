// Package notify publishes fired alert events for downstream consumers.
package notify

import (
	"context"
	"encoding/json"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog/log"

	"github.com/qiniu/alertdash/internal/alerting/metrics"
	"github.com/qiniu/alertdash/internal/alerting/model"
)

// Notifier receives every committed alert event. Delivery is best effort.
type Notifier interface {
	Notify(ctx context.Context, e model.AlertEvent)
}

// Noop discards events.
type Noop struct{}

func (Noop) Notify(context.Context, model.AlertEvent) {}

type publisher interface {
	Publish(subject string, data []byte) error
}

// Publisher sends event JSON to NATS on <prefix>.<user_id>.
type Publisher struct {
	conn   *nats.Conn
	pub    publisher
	prefix string
}

func NewPublisher(url, prefix string) (*Publisher, error) {
	conn, err := nats.Connect(url, nats.Name("alertdash"), nats.MaxReconnects(-1))
	if err != nil {
		return nil, err
	}
	log.Info().Str("url", conn.ConnectedUrl()).Str("prefix", prefix).Msg("nats notifier connected")
	return &Publisher{conn: conn, pub: conn, prefix: prefix}, nil
}

// Subject returns the subject events for userID are published on.
func (p *Publisher) Subject(userID string) string {
	return p.prefix + "." + userID
}

func (p *Publisher) Notify(ctx context.Context, e model.AlertEvent) {
	data, err := json.Marshal(e)
	if err != nil {
		log.Error().Err(err).Str("event_id", e.ID).Msg("marshal alert event")
		return
	}
	if err := p.pub.Publish(p.Subject(e.UserID), data); err != nil {
		metrics.NotificationsPublished.WithLabelValues("failed").Inc()
		log.Warn().Err(err).Str("event_id", e.ID).Str("alert_id", e.AlertID).Msg("publish alert event")
		return
	}
	metrics.NotificationsPublished.WithLabelValues("success").Inc()
	log.Debug().Str("event_id", e.ID).Str("subject", p.Subject(e.UserID)).Msg("alert event published")
}

func (p *Publisher) Close() {
	if p.conn != nil {
		_ = p.conn.Drain()
		p.conn.Close()
	}
}
