package transport

import (
	"encoding/json"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/fxamacker/cbor/v2"

	"github.com/noah-isme/runar/internal/events"
)

// Frame is what travels on the shared channel: an envelope plus routing metadata.
type Frame struct {
	Source     string
	Recipients []string
	SentAt     time.Time
	Envelope   events.Envelope
}

// Codec turns frames into bytes and back.
type Codec interface {
	Name() string
	Encode(frame Frame) ([]byte, error)
	Decode(data []byte) (Frame, error)
}

// NewCodec resolves a codec by configuration name.
func NewCodec(name string) (Codec, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "json":
		return JSONCodec{}, nil
	case "cbor":
		return NewCBORCodec()
	default:
		return nil, fmt.Errorf("unsupported transport codec %q", name)
	}
}

type jsonFrame struct {
	Type       events.Type     `json:"type"`
	Payload    json.RawMessage `json:"payload"`
	SenderID   string          `json:"senderId,omitempty"`
	Source     string          `json:"source"`
	Recipients []string        `json:"recipients,omitempty"`
	SentAt     time.Time       `json:"sentAt"`
}

// JSONCodec writes frames as {"type", "payload", ...} JSON documents.
type JSONCodec struct{}

func (JSONCodec) Name() string { return "json" }

func (JSONCodec) Encode(frame Frame) ([]byte, error) {
	if frame.Envelope.Event == nil {
		return nil, fmt.Errorf("frame has no event")
	}
	payload, err := json.Marshal(frame.Envelope.Event)
	if err != nil {
		return nil, err
	}
	return json.Marshal(jsonFrame{
		Type:       frame.Envelope.Type,
		Payload:    payload,
		SenderID:   frame.Envelope.SenderID,
		Source:     frame.Source,
		Recipients: frame.Recipients,
		SentAt:     frame.SentAt,
	})
}

func (JSONCodec) Decode(data []byte) (Frame, error) {
	var wire jsonFrame
	if err := json.Unmarshal(data, &wire); err != nil {
		return Frame{}, err
	}
	event, err := events.Decode(wire.Type, func(target any) error {
		return json.Unmarshal(wire.Payload, target)
	})
	if err != nil {
		return Frame{}, err
	}
	return Frame{
		Source:     wire.Source,
		Recipients: wire.Recipients,
		SentAt:     wire.SentAt,
		Envelope:   events.Envelope{Type: wire.Type, SenderID: wire.SenderID, Event: event},
	}, nil
}

type cborFrame struct {
	Type       events.Type     `cbor:"type"`
	Payload    cbor.RawMessage `cbor:"payload"`
	SenderID   string          `cbor:"senderId,omitempty"`
	Source     string          `cbor:"source"`
	Recipients []string        `cbor:"recipients,omitempty"`
	SentAt     int64           `cbor:"sentAt"`
}

// CBORCodec writes frames using Core Deterministic CBOR.
type CBORCodec struct {
	enc cbor.EncMode
	dec cbor.DecMode
}

// NewCBORCodec builds the deterministic encoder and a decoder that maps untyped maps to map[string]any.
func NewCBORCodec() (*CBORCodec, error) {
	enc, err := cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		return nil, fmt.Errorf("cbor encoder: %w", err)
	}
	dec, err := cbor.DecOptions{
		DefaultMapType: reflect.TypeOf(map[string]any(nil)),
	}.DecMode()
	if err != nil {
		return nil, fmt.Errorf("cbor decoder: %w", err)
	}
	return &CBORCodec{enc: enc, dec: dec}, nil
}

func (c *CBORCodec) Name() string { return "cbor" }

func (c *CBORCodec) Encode(frame Frame) ([]byte, error) {
	if frame.Envelope.Event == nil {
		return nil, fmt.Errorf("frame has no event")
	}
	payload, err := c.enc.Marshal(frame.Envelope.Event)
	if err != nil {
		return nil, err
	}
	return c.enc.Marshal(cborFrame{
		Type:       frame.Envelope.Type,
		Payload:    payload,
		SenderID:   frame.Envelope.SenderID,
		Source:     frame.Source,
		Recipients: frame.Recipients,
		SentAt:     frame.SentAt.UnixMilli(),
	})
}

func (c *CBORCodec) Decode(data []byte) (Frame, error) {
	var wire cborFrame
	if err := c.dec.Unmarshal(data, &wire); err != nil {
		return Frame{}, err
	}
	event, err := events.Decode(wire.Type, func(target any) error {
		return c.dec.Unmarshal(wire.Payload, target)
	})
	if err != nil {
		return Frame{}, err
	}
	return Frame{
		Source:     wire.Source,
		Recipients: wire.Recipients,
		SentAt:     time.UnixMilli(wire.SentAt).UTC(),
		Envelope:   events.Envelope{Type: wire.Type, SenderID: wire.SenderID, Event: event},
	}, nil
}
