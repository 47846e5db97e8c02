package events

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

// failingDispatcher rejects every publish.
type failingDispatcher struct{ Dispatcher }

func (failingDispatcher) Publish(context.Context, Event) error {
	return errors.New("handler exploded")
}

func TestRedisQueue_DeliverLogsPublishFailure(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	q := &RedisQueue{key: "events"}

	q.deliver(context.Background(), []byte(`{"id":"evt-1","type":"work_order.created"}`), failingDispatcher{}, zap.New(core))

	entries := logs.FilterMessage("event publish failed").All()
	require.Len(t, entries, 1)
	assert.Equal(t, zapcore.WarnLevel, entries[0].Level)
	fields := entries[0].ContextMap()
	assert.Equal(t, "evt-1", fields["event_id"])
	assert.Equal(t, "events", fields["queue"])
	assert.Equal(t, "handler exploded", fields["error"])
}

func TestRedisQueue_DeliverDropsUndecodable(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	q := &RedisQueue{key: "events"}

	q.deliver(context.Background(), []byte(`not json`), failingDispatcher{}, zap.New(core))

	assert.Equal(t, 1, logs.FilterMessage("dropping undecodable event").Len())
	assert.Zero(t, logs.FilterMessage("event publish failed").Len())
}
