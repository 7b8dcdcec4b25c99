package notify

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"transport-booking/internal/event"
	"transport-booking/pkg/utils"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/redis/go-redis/v9"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func testEnvelope() event.Envelope {
	return event.Envelope{
		ID:            uuid.New(),
		TenantID:      uuid.New(),
		AggregateType: "booking",
		AggregateID:   uuid.New(),
		Type:          event.BookingConfirmed,
		Version:       event.SchemaVersion,
		Payload:       json.RawMessage(`{"booking_reference":"BK-1"}`),
		OccurredAt:    time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC),
	}
}

type countingPublisher struct {
	calls int
	err   error
}

func (p *countingPublisher) Publish(context.Context, event.Envelope) error {
	p.calls++
	return p.err
}

type memoryDedup struct {
	keys map[string]bool
}

func (m *memoryDedup) SetNX(_ context.Context, key string, _ interface{}, _ time.Duration) *redis.BoolCmd {
	if m.keys[key] {
		return redis.NewBoolResult(false, nil)
	}
	m.keys[key] = true
	return redis.NewBoolResult(true, nil)
}

func (m *memoryDedup) Del(_ context.Context, keys ...string) *redis.IntCmd {
	for _, k := range keys {
		delete(m.keys, k)
	}
	return redis.NewIntResult(int64(len(keys)), nil)
}

func TestDedupPublisher(t *testing.T) {
	t.Run("repeat delivery is skipped", func(t *testing.T) {
		inner := &countingPublisher{}
		p := NewDedupPublisher(inner, &memoryDedup{keys: map[string]bool{}}, time.Hour, zap.NewNop())
		env := testEnvelope()

		require.NoError(t, p.Publish(context.Background(), env))
		require.NoError(t, p.Publish(context.Background(), env))
		assert.Equal(t, 1, inner.calls)

		other := testEnvelope()
		require.NoError(t, p.Publish(context.Background(), other))
		assert.Equal(t, 2, inner.calls)
	})

	t.Run("failure releases the marker", func(t *testing.T) {
		inner := &countingPublisher{err: errors.New("broker down")}
		store := &memoryDedup{keys: map[string]bool{}}
		p := NewDedupPublisher(inner, store, time.Hour, zap.NewNop())
		env := testEnvelope()

		assert.Error(t, p.Publish(context.Background(), env))
		assert.Empty(t, store.keys)

		inner.err = nil
		require.NoError(t, p.Publish(context.Background(), env))
		assert.Equal(t, 2, inner.calls)
	})
}

type recordedPublish struct {
	exchange string
	key      string
	msg      amqp.Publishing
}

type fakeChannel struct {
	published []recordedPublish
}

func (c *fakeChannel) PublishWithContext(_ context.Context, exchange, key string, _, _ bool, msg amqp.Publishing) error {
	c.published = append(c.published, recordedPublish{exchange: exchange, key: key, msg: msg})
	return nil
}

func (c *fakeChannel) Close() error { return nil }

func TestAMQPPublisherRoutesByEventType(t *testing.T) {
	ch := &fakeChannel{}
	p := &AMQPPublisher{ch: ch, exchange: "booking.events", log: zap.NewNop()}
	env := testEnvelope()

	require.NoError(t, p.Publish(context.Background(), env))

	require.Len(t, ch.published, 1)
	got := ch.published[0]
	assert.Equal(t, "booking.events", got.exchange)
	assert.Equal(t, string(event.BookingConfirmed), got.key)
	assert.Equal(t, env.ID.String(), got.msg.MessageId)
	assert.Equal(t, uint8(amqp.Persistent), got.msg.DeliveryMode)

	var decoded event.Envelope
	require.NoError(t, json.Unmarshal(got.msg.Body, &decoded))
	assert.Equal(t, env.AggregateID, decoded.AggregateID)
	assert.JSONEq(t, string(env.Payload), string(decoded.Payload))
}

type fakeWriter struct {
	msgs []kafka.Message
	err  error
}

func (w *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if w.err != nil {
		return w.err
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *fakeWriter) Close() error { return nil }

func TestKafkaPublisherKeysByAggregate(t *testing.T) {
	w := &fakeWriter{}
	p := &KafkaPublisher{writer: w, log: zap.NewNop()}
	env := testEnvelope()

	require.NoError(t, p.Publish(context.Background(), env))
	require.Len(t, w.msgs, 1)
	assert.Equal(t, env.AggregateID.String(), string(w.msgs[0].Key))

	w.err = errors.New("leader not available")
	assert.Error(t, p.Publish(context.Background(), env))
}

func TestNewPublisher(t *testing.T) {
	pub, closeFn, err := New(utils.NotifyConfig{Driver: "log"}, utils.RedisConfig{}, zap.NewNop())
	require.NoError(t, err)
	assert.IsType(t, &LogPublisher{}, pub)
	assert.NoError(t, closeFn())

	_, _, err = New(utils.NotifyConfig{Driver: "carrier-pigeon"}, utils.RedisConfig{}, zap.NewNop())
	assert.Error(t, err)
}

func TestNewPublisherClosesBrokerOnBadRedisURL(t *testing.T) {
	var closed []string
	closers := []func() error{
		func() error { closed = append(closed, "broker"); return nil },
		func() error { closed = append(closed, "second"); return errors.New("already closed") },
	}

	pub, rest, err := withDedup(NewLogPublisher(zap.NewNop()), closers, utils.RedisConfig{URL: "not-a-redis-url"}, time.Hour, zap.NewNop())

	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse redis url")
	assert.Nil(t, pub)
	assert.Nil(t, rest)
	assert.Equal(t, []string{"second", "broker"}, closed)
}

func TestNewPublisherWithRedisDedup(t *testing.T) {
	pub, closeFn, err := New(utils.NotifyConfig{Driver: "log", DedupTTL: time.Hour}, utils.RedisConfig{URL: "redis://localhost:6379/0"}, zap.NewNop())
	require.NoError(t, err)
	assert.IsType(t, &DedupPublisher{}, pub)
	assert.NoError(t, closeFn())
}
