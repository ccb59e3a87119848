// Package serde is the serializer/hook pipeline of spec.md §4.10: four
// parallel slots (key, value, header key, header value), each an
// independent encoder on the produce side and decoder on the consume side,
// plus before-serialization/before-deserialization hooks a schema registry
// collaborator can use to stamp or resolve a schema id before the wire
// bytes are built.
package serde

import (
	"context"

	"github.com/kafkaclient/kafka/kerrors"
)

// Slot identifies which of the four parallel serializer positions a hook
// or encoder applies to.
type Slot int

const (
	SlotKey Slot = iota
	SlotValue
	SlotHeaderKey
	SlotHeaderValue
)

func (s Slot) String() string {
	switch s {
	case SlotKey:
		return "key"
	case SlotValue:
		return "value"
	case SlotHeaderKey:
		return "header_key"
	case SlotHeaderValue:
		return "header_value"
	default:
		return "unknown"
	}
}

// Message is the mutable envelope hooks and encoders see. Metadata is
// opaque storage a hook can use to pass state to its slot's encoder (e.g. a
// schema id resolved by a registry lookup).
type Message struct {
	Topic    string
	Key      []byte
	Value    []byte
	Headers  map[string][]byte
	Metadata map[string]interface{}
}

// Encoder turns a typed value into wire bytes for one slot.
type Encoder interface {
	Encode(ctx context.Context, topic string, v interface{}) ([]byte, error)
}

// Decoder turns wire bytes from one slot back into a typed value.
type Decoder interface {
	Decode(ctx context.Context, topic string, b []byte) (interface{}, error)
}

// EncoderFunc adapts a function to an Encoder.
type EncoderFunc func(ctx context.Context, topic string, v interface{}) ([]byte, error)

func (f EncoderFunc) Encode(ctx context.Context, topic string, v interface{}) ([]byte, error) {
	return f(ctx, topic, v)
}

// DecoderFunc adapts a function to a Decoder.
type DecoderFunc func(ctx context.Context, topic string, b []byte) (interface{}, error)

func (f DecoderFunc) Decode(ctx context.Context, topic string, b []byte) (interface{}, error) {
	return f(ctx, topic, b)
}

// BeforeSerializationHook runs before a slot's Encoder; it may mutate
// msg.Metadata (e.g. stash a resolved schema id) but not msg.Key/Value
// directly — those are the encoder's job.
type BeforeSerializationHook func(ctx context.Context, slot Slot, msg *Message) error

// BeforeDeserializationHook is the symmetric consume-side hook.
type BeforeDeserializationHook func(ctx context.Context, slot Slot, msg *Message) error

// Pipeline wires one Encoder/Decoder pair per slot plus the two hooks.
// A nil Encoder/Decoder in a slot means that slot passes bytes through
// unchanged (the common case for Key and Headers).
type Pipeline struct {
	KeyEncoder         Encoder
	ValueEncoder       Encoder
	HeaderKeyEncoder   Encoder
	HeaderValueEncoder Encoder

	KeyDecoder         Decoder
	ValueDecoder       Decoder
	HeaderKeyDecoder   Decoder
	HeaderValueDecoder Decoder

	BeforeSerialization   BeforeSerializationHook
	BeforeDeserialization BeforeDeserializationHook
}

func (p *Pipeline) encoderFor(slot Slot) Encoder {
	switch slot {
	case SlotKey:
		return p.KeyEncoder
	case SlotValue:
		return p.ValueEncoder
	case SlotHeaderKey:
		return p.HeaderKeyEncoder
	case SlotHeaderValue:
		return p.HeaderValueEncoder
	default:
		return nil
	}
}

func (p *Pipeline) decoderFor(slot Slot) Decoder {
	switch slot {
	case SlotKey:
		return p.KeyDecoder
	case SlotValue:
		return p.ValueDecoder
	case SlotHeaderKey:
		return p.HeaderKeyDecoder
	case SlotHeaderValue:
		return p.HeaderValueDecoder
	default:
		return nil
	}
}

// EncodeSlot runs the before-serialization hook then the slot's encoder,
// or returns b unchanged if v is already []byte and no encoder is wired.
func (p *Pipeline) EncodeSlot(ctx context.Context, slot Slot, msg *Message, v interface{}) ([]byte, error) {
	if p.BeforeSerialization != nil {
		if err := p.BeforeSerialization(ctx, slot, msg); err != nil {
			return nil, kerrors.Wrap(kerrors.UserError, err, "before-serialization hook: "+slot.String())
		}
	}
	enc := p.encoderFor(slot)
	if enc == nil {
		if b, ok := v.([]byte); ok || v == nil {
			return b, nil
		}
		return nil, kerrors.User("serde: no encoder registered for slot %s", slot)
	}
	b, err := enc.Encode(ctx, msg.Topic, v)
	if err != nil {
		return nil, kerrors.Wrap(kerrors.UserError, err, "encode slot "+slot.String())
	}
	return b, nil
}

// DecodeSlot runs the before-deserialization hook then the slot's decoder,
// or returns b unchanged if no decoder is wired.
func (p *Pipeline) DecodeSlot(ctx context.Context, slot Slot, msg *Message, b []byte) (interface{}, error) {
	if p.BeforeDeserialization != nil {
		if err := p.BeforeDeserialization(ctx, slot, msg); err != nil {
			return nil, kerrors.Wrap(kerrors.UserError, err, "before-deserialization hook: "+slot.String())
		}
	}
	dec := p.decoderFor(slot)
	if dec == nil {
		return b, nil
	}
	v, err := dec.Decode(ctx, msg.Topic, b)
	if err != nil {
		return nil, kerrors.Wrap(kerrors.UserError, err, "decode slot "+slot.String())
	}
	return v, nil
}
