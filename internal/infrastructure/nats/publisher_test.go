package natsinfra

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/claytile-api/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingConn struct {
	subjects []string
	payloads [][]byte
	err      error
}

func (c *recordingConn) Publish(subj string, data []byte) error {
	c.subjects = append(c.subjects, subj)
	c.payloads = append(c.payloads, data)
	return c.err
}

func TestPublisher_Publish(t *testing.T) {
	conn := &recordingConn{}
	p := NewPublisher(conn)

	err := p.Publish(context.Background(), domain.Event{
		Subject:    domain.EventSessionCreated,
		Attributes: map[string]string{"kind": "email"},
	})
	require.NoError(t, err)
	require.Len(t, conn.subjects, 1)
	assert.Equal(t, domain.EventSessionCreated, conn.subjects[0])

	var ev domain.Event
	require.NoError(t, json.Unmarshal(conn.payloads[0], &ev))
	assert.Equal(t, "email", ev.Attributes["kind"])
	assert.False(t, ev.OccurredAt.IsZero())
}

func TestPublisher_PublishError(t *testing.T) {
	conn := &recordingConn{err: errors.New("nats: connection closed")}
	err := NewPublisher(conn).Publish(context.Background(), domain.Event{Subject: domain.EventUploadCompleted})
	assert.Error(t, err)
}

func TestNopPublisher(t *testing.T) {
	assert.NoError(t, NewNopPublisher().Publish(context.Background(), domain.Event{Subject: "x"}))
}
