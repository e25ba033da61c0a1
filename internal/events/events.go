package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/sirupsen/logrus"

	"imobiliaria/server/internal/models"
)

const (
	Created = "created"
	Updated = "updated"
	Deleted = "deleted"
)

// Event describes one listing lifecycle change. Listing is omitted for
// deletions.
type Event struct {
	Type       string          `json:"type"`
	ListingID  int64           `json:"listingId"`
	Listing    *models.Listing `json:"listing,omitempty"`
	OccurredAt time.Time       `json:"occurredAt"`
}

func NewEvent(eventType string, id int64, l *models.Listing) Event {
	return Event{Type: eventType, ListingID: id, Listing: l, OccurredAt: time.Now().UTC()}
}

type Publisher interface {
	Publish(ctx context.Context, ev Event) error
	Close()
}

type conn interface {
	Publish(subject string, data []byte) error
	Close()
}

// NATSPublisher publishes events on <prefix>.<type>, e.g. listings.created.
type NATSPublisher struct {
	conn   conn
	prefix string
}

func NewNATSPublisher(url, prefix string, logger *logrus.Logger) (*NATSPublisher, error) {
	nc, err := nats.Connect(url,
		nats.Name("imobiliaria-server"),
		nats.MaxReconnects(-1),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.WithError(err).Warn("Disconnected from NATS")
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.WithField("url", nc.ConnectedUrl()).Info("Reconnected to NATS")
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to nats at %s: %w", url, err)
	}
	return newNATSPublisher(nc, prefix), nil
}

func newNATSPublisher(c conn, prefix string) *NATSPublisher {
	if prefix == "" {
		prefix = "listings"
	}
	return &NATSPublisher{conn: c, prefix: prefix}
}

func (p *NATSPublisher) Subject(eventType string) string {
	return p.prefix + "." + eventType
}

func (p *NATSPublisher) Publish(ctx context.Context, ev Event) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("failed to encode %s event: %w", ev.Type, err)
	}
	if err := p.conn.Publish(p.Subject(ev.Type), data); err != nil {
		return fmt.Errorf("failed to publish %s event: %w", ev.Type, err)
	}
	return nil
}

func (p *NATSPublisher) Close() {
	p.conn.Close()
}

// Nop discards every event. Used when NATS_URL is not set.
type Nop struct{}

func (Nop) Publish(context.Context, Event) error { return nil }

func (Nop) Close() {}
