package transport

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/noah-isme/runar/internal/events"
)

// ErrClosed is returned by Emit after Close.
var ErrClosed = errors.New("transport closed")

// Handler receives envelopes addressed to the local session.
type Handler func(env events.Envelope)

// Transport is the emit/on surface of the shared channel. An empty recipient list broadcasts to every session.
type Transport interface {
	Emit(ctx context.Context, env events.Envelope, recipients []string) error
	Subscribe(ctx context.Context, handler Handler) error
	Close() error
}

// Identity identifies the local end of a transport.
type Identity struct {
	NodeID string
	UserID string
}

// Options configure a broker-backed transport.
type Options struct {
	Driver  string
	Channel string
	Codec   Codec
	Redis   *redis.Client
	NATS    *nats.Conn
	Bus     *MemoryBus
}

// New builds the transport selected by opts.Driver.
func New(opts Options, identity Identity, logger zerolog.Logger) (Transport, error) {
	codec := opts.Codec
	if codec == nil {
		codec = JSONCodec{}
	}
	switch strings.ToLower(strings.TrimSpace(opts.Driver)) {
	case "redis":
		if opts.Redis == nil {
			return nil, fmt.Errorf("redis transport requires a client")
		}
		return NewRedisTransport(opts.Redis, opts.Channel, codec, identity, logger), nil
	case "nats":
		if opts.NATS == nil {
			return nil, fmt.Errorf("nats transport requires a connection")
		}
		return NewNATSTransport(opts.NATS, opts.Channel, codec, identity, logger), nil
	case "", "memory":
		bus := opts.Bus
		if bus == nil {
			bus = NewMemoryBus()
		}
		return bus.Connect(identity), nil
	default:
		return nil, fmt.Errorf("unsupported transport driver %q", opts.Driver)
	}
}

// accepts reports whether a frame should be handed to the local session.
func accepts(frame Frame, identity Identity) bool {
	if frame.Source != "" && frame.Source == identity.NodeID {
		return false
	}
	if len(frame.Recipients) == 0 {
		return true
	}
	for _, recipient := range frame.Recipients {
		if recipient == identity.UserID {
			return true
		}
	}
	return false
}

func newFrame(identity Identity, env events.Envelope, recipients []string) Frame {
	return Frame{
		Source:     identity.NodeID,
		Recipients: append([]string(nil), recipients...),
		SentAt:     time.Now().UTC(),
		Envelope:   env,
	}
}

// dispatch decodes a raw payload and forwards it when addressed to identity.
func dispatch(codec Codec, identity Identity, data []byte, handler Handler, logger zerolog.Logger) {
	frame, err := codec.Decode(data)
	if err != nil {
		logger.Warn().Err(err).Msg("invalid relay frame")
		return
	}
	if !accepts(frame, identity) {
		return
	}
	handler(frame.Envelope)
}
