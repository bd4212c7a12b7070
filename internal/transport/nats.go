package transport

import (
	"context"
	"sync"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"

	"github.com/noah-isme/runar/internal/events"
)

// NATSTransport carries frames over a NATS subject. Every session needs every
// frame, so it uses a plain subscription rather than a queue group.
type NATSTransport struct {
	conn     *nats.Conn
	subject  string
	codec    Codec
	identity Identity
	logger   zerolog.Logger

	mu     sync.Mutex
	sub    *nats.Subscription
	closed bool
}

// NewNATSTransport constructs a transport bound to subject.
func NewNATSTransport(conn *nats.Conn, subject string, codec Codec, identity Identity, logger zerolog.Logger) *NATSTransport {
	return &NATSTransport{
		conn:     conn,
		subject:  subject,
		codec:    codec,
		identity: identity,
		logger:   logger.With().Str("component", "nats_transport").Logger(),
	}
}

func (t *NATSTransport) Emit(_ context.Context, env events.Envelope, recipients []string) error {
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
	return t.conn.Publish(t.subject, payload)
}

func (t *NATSTransport) Subscribe(ctx context.Context, handler Handler) error {
	sub, err := t.conn.Subscribe(t.subject, func(msg *nats.Msg) {
		dispatch(t.codec, t.identity, msg.Data, handler, t.logger)
	})
	if err != nil {
		return err
	}

	t.mu.Lock()
	t.sub = sub
	t.mu.Unlock()

	go func() {
		<-ctx.Done()
		if err := sub.Drain(); err != nil {
			t.logger.Warn().Err(err).Msg("failed to drain relay nats subscription")
		}
	}()
	return nil
}

func (t *NATSTransport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.closed = true
	if t.sub != nil {
		err := t.sub.Unsubscribe()
		t.sub = nil
		return err
	}
	return nil
}
