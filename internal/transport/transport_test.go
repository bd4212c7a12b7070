package transport

import (
	"context"
	"sync"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/runar/internal/events"
	"github.com/noah-isme/runar/internal/models"
)

type recorder struct {
	mu        sync.Mutex
	envelopes []events.Envelope
}

func (r *recorder) handle(env events.Envelope) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.envelopes = append(r.envelopes, env)
}

func (r *recorder) snapshot() []events.Envelope {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]events.Envelope(nil), r.envelopes...)
}

func sampleEnvelope() events.Envelope {
	return events.NewEnvelope("alice", &events.PrivateMessage{
		RecipientID: "bob",
		Message: models.Message{
			ID:             "m1",
			SenderID:       "alice",
			SenderName:     "Alice",
			MessageContent: "hello",
			Timestamp:      1700000000000,
			Reactions:      models.Reactions{"🔥": {"bob"}},
		},
	})
}

func TestCodecsPreserveTypedPayload(t *testing.T) {
	cborCodec, err := NewCBORCodec()
	require.NoError(t, err)

	for _, codec := range []Codec{JSONCodec{}, cborCodec} {
		frame := Frame{Source: "node-a", Recipients: []string{"bob"}, SentAt: time.UnixMilli(1700000000000).UTC(), Envelope: sampleEnvelope()}

		data, err := codec.Encode(frame)
		require.NoError(t, err, codec.Name())

		decoded, err := codec.Decode(data)
		require.NoError(t, err, codec.Name())
		require.Equal(t, "node-a", decoded.Source)
		require.Equal(t, []string{"bob"}, decoded.Recipients)
		require.Equal(t, events.TypePrivateMessage, decoded.Envelope.Type)
		require.Equal(t, "alice", decoded.Envelope.SenderID)

		payload, ok := decoded.Envelope.Event.(*events.PrivateMessage)
		require.True(t, ok, codec.Name())
		require.Equal(t, "hello", payload.Message.MessageContent)
		require.Equal(t, []string{"bob"}, payload.Message.Reactions["🔥"])
	}
}

func TestJSONCodecRejectsUnknownType(t *testing.T) {
	_, err := JSONCodec{}.Decode([]byte(`{"type":"nope","payload":{},"source":"x"}`))
	require.ErrorIs(t, err, events.ErrUnknownType)
}

func TestNewCodecByName(t *testing.T) {
	codec, err := NewCodec("CBOR")
	require.NoError(t, err)
	require.Equal(t, "cbor", codec.Name())

	_, err = NewCodec("xml")
	require.Error(t, err)
}

func TestMemoryBusRoutesByRecipientAndSkipsOwnNode(t *testing.T) {
	bus := NewMemoryBus()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	alice := bus.Connect(Identity{NodeID: "n-alice", UserID: "alice"})
	bob := bus.Connect(Identity{NodeID: "n-bob", UserID: "bob"})
	carol := bus.Connect(Identity{NodeID: "n-carol", UserID: "carol"})

	var aliceGot, bobGot, carolGot recorder
	require.NoError(t, alice.Subscribe(ctx, aliceGot.handle))
	require.NoError(t, bob.Subscribe(ctx, bobGot.handle))
	require.NoError(t, carol.Subscribe(ctx, carolGot.handle))

	require.NoError(t, alice.Emit(ctx, sampleEnvelope(), []string{"bob"}))
	require.Len(t, bobGot.snapshot(), 1)
	require.Empty(t, carolGot.snapshot())
	require.Empty(t, aliceGot.snapshot())

	require.NoError(t, alice.Emit(ctx, events.NewEnvelope("alice", &events.ThemeUpdate{Theme: "dark"}), nil))
	require.Len(t, bobGot.snapshot(), 2)
	require.Len(t, carolGot.snapshot(), 1)
	require.Empty(t, aliceGot.snapshot())
}

func TestMemoryTransportEmitAfterClose(t *testing.T) {
	bus := NewMemoryBus()
	endpoint := bus.Connect(Identity{NodeID: "n1", UserID: "u1"})
	require.NoError(t, endpoint.Close())
	require.ErrorIs(t, endpoint.Emit(context.Background(), sampleEnvelope(), nil), ErrClosed)
}

func TestRedisTransportDeliversToAddressedSession(t *testing.T) {
	mini, err := miniredis.Run()
	require.NoError(t, err)
	defer mini.Close()

	client := redis.NewClient(&redis.Options{Addr: mini.Addr()})
	defer client.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sender := NewRedisTransport(client, "module.runar", JSONCodec{}, Identity{NodeID: "n-alice", UserID: "alice"}, zerolog.Nop())
	receiver := NewRedisTransport(client, "module.runar", JSONCodec{}, Identity{NodeID: "n-bob", UserID: "bob"}, zerolog.Nop())
	bystander := NewRedisTransport(client, "module.runar", JSONCodec{}, Identity{NodeID: "n-carol", UserID: "carol"}, zerolog.Nop())

	var bobGot, carolGot recorder
	require.NoError(t, receiver.Subscribe(ctx, bobGot.handle))
	require.NoError(t, bystander.Subscribe(ctx, carolGot.handle))

	require.NoError(t, sender.Emit(ctx, sampleEnvelope(), []string{"bob"}))

	require.Eventually(t, func() bool {
		return len(bobGot.snapshot()) == 1
	}, 2*time.Second, 10*time.Millisecond)
	require.Empty(t, carolGot.snapshot())

	got := bobGot.snapshot()[0]
	payload, ok := got.Event.(*events.PrivateMessage)
	require.True(t, ok)
	require.Equal(t, "m1", payload.Message.ID)

	require.NoError(t, receiver.Close())
	require.NoError(t, bystander.Close())
}

func TestNewSelectsDriver(t *testing.T) {
	tr, err := New(Options{Driver: "memory"}, Identity{NodeID: "n", UserID: "u"}, zerolog.Nop())
	require.NoError(t, err)
	require.IsType(t, &MemoryTransport{}, tr)

	_, err = New(Options{Driver: "redis"}, Identity{}, zerolog.Nop())
	require.Error(t, err)

	_, err = New(Options{Driver: "carrier-pigeon"}, Identity{}, zerolog.Nop())
	require.Error(t, err)
}
