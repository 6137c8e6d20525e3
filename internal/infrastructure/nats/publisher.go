package natsinfra

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/claytile-api/internal/domain"
	"github.com/nats-io/nats.go"
	"go.uber.org/zap"
)

// Publisher emits domain events. Delivery is best effort.
type Publisher interface {
	Publish(ctx context.Context, ev domain.Event) error
}

// Conn is the subset of *nats.Conn the publisher uses.
type Conn interface {
	Publish(subj string, data []byte) error
}

type publisher struct {
	conn Conn
}

// Connect dials url with reconnects enabled.
func Connect(url string) (*nats.Conn, error) {
	nc, err := nats.Connect(url,
		nats.Name("claytile-api"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				zap.L().Warn("nats disconnected", zap.Error(err))
			}
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect nats: %w", err)
	}
	return nc, nil
}

func NewPublisher(conn Conn) Publisher {
	return &publisher{conn: conn}
}

func (p *publisher) Publish(ctx context.Context, ev domain.Event) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if ev.OccurredAt.IsZero() {
		ev.OccurredAt = time.Now().UTC()
	}
	b, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", ev.Subject, err)
	}
	if err := p.conn.Publish(ev.Subject, b); err != nil {
		zap.L().Warn("publish event failed", zap.String("subject", ev.Subject), zap.Error(err))
		return err
	}
	return nil
}

type nopPublisher struct{}

// NewNopPublisher returns a Publisher that discards events, used when no
// NATS server is configured.
func NewNopPublisher() Publisher { return nopPublisher{} }

func (nopPublisher) Publish(context.Context, domain.Event) error { return nil }
