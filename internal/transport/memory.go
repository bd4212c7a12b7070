package transport

import (
	"context"
	"sync"

	"github.com/rs/zerolog"

	"github.com/noah-isme/runar/internal/events"
)

// MemoryBus is an in-process channel shared by several sessions. Delivery is
// synchronous and every frame goes through the codec, so receivers never share
// memory with the emitter.
type MemoryBus struct {
	mu        sync.RWMutex
	codec     Codec
	endpoints map[*MemoryTransport]struct{}
}

// NewMemoryBus creates an empty bus using the JSON codec.
func NewMemoryBus() *MemoryBus {
	return &MemoryBus{
		codec:     JSONCodec{},
		endpoints: make(map[*MemoryTransport]struct{}),
	}
}

// Connect attaches a new endpoint for identity.
func (b *MemoryBus) Connect(identity Identity) *MemoryTransport {
	endpoint := &MemoryTransport{bus: b, identity: identity, logger: zerolog.Nop()}
	b.mu.Lock()
	b.endpoints[endpoint] = struct{}{}
	b.mu.Unlock()
	return endpoint
}

func (b *MemoryBus) publish(data []byte) {
	b.mu.RLock()
	targets := make([]*MemoryTransport, 0, len(b.endpoints))
	for endpoint := range b.endpoints {
		targets = append(targets, endpoint)
	}
	b.mu.RUnlock()

	for _, endpoint := range targets {
		endpoint.deliver(data)
	}
}

func (b *MemoryBus) detach(endpoint *MemoryTransport) {
	b.mu.Lock()
	delete(b.endpoints, endpoint)
	b.mu.Unlock()
}

// MemoryTransport is one session's end of a MemoryBus.
type MemoryTransport struct {
	bus      *MemoryBus
	identity Identity
	logger   zerolog.Logger

	mu      sync.RWMutex
	handler Handler
	closed  bool
}

func (t *MemoryTransport) Emit(_ context.Context, env events.Envelope, recipients []string) error {
	t.mu.RLock()
	closed := t.closed
	t.mu.RUnlock()
	if closed {
		return ErrClosed
	}

	data, err := t.bus.codec.Encode(newFrame(t.identity, env, recipients))
	if err != nil {
		return err
	}
	t.bus.publish(data)
	return nil
}

func (t *MemoryTransport) Subscribe(ctx context.Context, handler Handler) error {
	t.mu.Lock()
	t.handler = handler
	t.mu.Unlock()

	go func() {
		<-ctx.Done()
		t.mu.Lock()
		t.handler = nil
		t.mu.Unlock()
	}()
	return nil
}

func (t *MemoryTransport) deliver(data []byte) {
	t.mu.RLock()
	handler := t.handler
	t.mu.RUnlock()
	if handler == nil {
		return
	}
	dispatch(t.bus.codec, t.identity, data, handler, t.logger)
}

func (t *MemoryTransport) Close() error {
	t.mu.Lock()
	t.closed = true
	t.handler = nil
	t.mu.Unlock()
	t.bus.detach(t)
	return nil
}
