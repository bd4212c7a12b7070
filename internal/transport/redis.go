package transport

import (
	"context"
	"errors"
	"sync"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/noah-isme/runar/internal/events"
)

// RedisTransport carries frames over a Redis pub/sub channel.
type RedisTransport struct {
	client   *redis.Client
	channel  string
	codec    Codec
	identity Identity
	logger   zerolog.Logger

	mu     sync.Mutex
	pubsub *redis.PubSub
	closed bool
}

// NewRedisTransport constructs a transport bound to channel.
func NewRedisTransport(client *redis.Client, channel string, codec Codec, identity Identity, logger zerolog.Logger) *RedisTransport {
	return &RedisTransport{
		client:   client,
		channel:  channel,
		codec:    codec,
		identity: identity,
		logger:   logger.With().Str("component", "redis_transport").Logger(),
	}
}

func (t *RedisTransport) Emit(ctx context.Context, env events.Envelope, recipients []string) error {
	t.mu.Lock()
	closed := t.closed
	t.mu.Unlock()
	if closed {
		return ErrClosed
	}

	payload, err := t.codec.Encode(newFrame(t.identity, env, recipients))
	if err != nil {
		return err
	}
	return t.client.Publish(ctx, t.channel, payload).Err()
}

// Subscribe blocks until the subscription is confirmed, then consumes in the background until ctx ends.
func (t *RedisTransport) Subscribe(ctx context.Context, handler Handler) error {
	pubsub := t.client.Subscribe(ctx, t.channel)
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return err
	}

	t.mu.Lock()
	t.pubsub = pubsub
	t.mu.Unlock()

	go t.consume(ctx, pubsub, handler)
	return nil
}

func (t *RedisTransport) consume(ctx context.Context, pubsub *redis.PubSub, handler Handler) {
	defer func() {
		_ = pubsub.Close()
	}()
	for {
		msg, err := pubsub.ReceiveMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, redis.ErrClosed) {
				return
			}
			t.logger.Error().Err(err).Msg("relay redis subscription closed")
			return
		}
		dispatch(t.codec, t.identity, []byte(msg.Payload), handler, t.logger)
	}
}

func (t *RedisTransport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.closed = true
	if t.pubsub != nil {
		err := t.pubsub.Close()
		t.pubsub = nil
		return err
	}
	return nil
}
