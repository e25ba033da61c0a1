package events

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"imobiliaria/server/internal/models"
)

type message struct {
	subject string
	data    []byte
}

type fakeConn struct {
	sent   []message
	err    error
	closed bool
}

func (c *fakeConn) Publish(subject string, data []byte) error {
	if c.err != nil {
		return c.err
	}
	c.sent = append(c.sent, message{subject: subject, data: data})
	return nil
}

func (c *fakeConn) Close() { c.closed = true }

func TestNATSPublisher_Publish(t *testing.T) {
	tests := []struct {
		name    string
		event   Event
		subject string
	}{
		{name: "created", event: NewEvent(Created, 1, &models.Listing{ID: 1, Title: "Casa"}), subject: "listings.created"},
		{name: "updated", event: NewEvent(Updated, 2, &models.Listing{ID: 2}), subject: "listings.updated"},
		{name: "deleted", event: NewEvent(Deleted, 3, nil), subject: "listings.deleted"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := &fakeConn{}
			p := newNATSPublisher(c, "")
			require.NoError(t, p.Publish(context.Background(), tt.event))
			require.Len(t, c.sent, 1)
			assert.Equal(t, tt.subject, c.sent[0].subject)

			var decoded map[string]any
			require.NoError(t, json.Unmarshal(c.sent[0].data, &decoded))
			assert.Equal(t, tt.name, decoded["type"])
			assert.EqualValues(t, tt.event.ListingID, decoded["listingId"])
			_, hasListing := decoded["listing"]
			assert.Equal(t, tt.event.Listing != nil, hasListing)
		})
	}
}

func TestNATSPublisher_Errors(t *testing.T) {
	c := &fakeConn{err: errors.New("nats: connection closed")}
	p := newNATSPublisher(c, "imoveis")
	assert.Equal(t, "imoveis.created", p.Subject(Created))

	err := p.Publish(context.Background(), NewEvent(Created, 1, nil))
	assert.ErrorContains(t, err, "connection closed")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, p.Publish(ctx, NewEvent(Created, 1, nil)), context.Canceled)

	p.Close()
	assert.True(t, c.closed)
}
