package serde

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

type jsonValue struct {
	Name string `json:"name"`
}

func jsonEncoder() Encoder {
	return EncoderFunc(func(ctx context.Context, topic string, v interface{}) ([]byte, error) {
		return json.Marshal(v)
	})
}

func jsonDecoder() Decoder {
	return DecoderFunc(func(ctx context.Context, topic string, b []byte) (interface{}, error) {
		var v jsonValue
		if err := json.Unmarshal(b, &v); err != nil {
			return nil, err
		}
		return v, nil
	})
}

func TestEncodeSlotPassesBytesThroughWithNoEncoder(t *testing.T) {
	p := &Pipeline{}
	msg := &Message{Topic: "orders"}
	b, err := p.EncodeSlot(context.Background(), SlotKey, msg, []byte("k1"))
	require.NoError(t, err)
	require.Equal(t, []byte("k1"), b)
}

func TestEncodeSlotRejectsNonBytesWithNoEncoder(t *testing.T) {
	p := &Pipeline{}
	msg := &Message{Topic: "orders"}
	_, err := p.EncodeSlot(context.Background(), SlotValue, msg, 42)
	require.Error(t, err)
}

func TestEncodeDecodeSlotRoundTrip(t *testing.T) {
	p := &Pipeline{ValueEncoder: jsonEncoder(), ValueDecoder: jsonDecoder()}
	msg := &Message{Topic: "orders"}

	b, err := p.EncodeSlot(context.Background(), SlotValue, msg, jsonValue{Name: "widget"})
	require.NoError(t, err)

	v, err := p.DecodeSlot(context.Background(), SlotValue, msg, b)
	require.NoError(t, err)
	require.Equal(t, jsonValue{Name: "widget"}, v)
}

func TestBeforeSerializationHookRuns(t *testing.T) {
	var seenSlot Slot
	p := &Pipeline{
		BeforeSerialization: func(ctx context.Context, slot Slot, msg *Message) error {
			seenSlot = slot
			msg.Metadata = map[string]interface{}{"stamped": true}
			return nil
		},
	}
	msg := &Message{Topic: "orders"}
	_, err := p.EncodeSlot(context.Background(), SlotHeaderValue, msg, []byte("v"))
	require.NoError(t, err)
	require.Equal(t, SlotHeaderValue, seenSlot)
	require.Equal(t, true, msg.Metadata["stamped"])
}

func TestSchemaFrameRoundTrip(t *testing.T) {
	framed := FrameSchema(7, []byte("payload"))
	id, payload, err := UnframeSchema(framed)
	require.NoError(t, err)
	require.EqualValues(t, 7, id)
	require.Equal(t, []byte("payload"), payload)
}

func TestUnframeSchemaRejectsShortInput(t *testing.T) {
	_, _, err := UnframeSchema([]byte{0x00, 0x01})
	require.Error(t, err)
}

func TestUnframeSchemaRejectsBadMagicByte(t *testing.T) {
	b := FrameSchema(1, []byte("x"))
	b[0] = 0x01
	_, _, err := UnframeSchema(b)
	require.Error(t, err)
}

type fakeRegistry struct {
	nextID int32
}

func (f *fakeRegistry) Resolve(ctx context.Context, subject string, schema []byte) (int32, error) {
	f.nextID++
	return f.nextID, nil
}

func (f *fakeRegistry) Lookup(ctx context.Context, id int32) ([]byte, error) {
	return []byte("schema"), nil
}

func TestSchemaHooksStampsSchemaID(t *testing.T) {
	reg := &fakeRegistry{}
	before, _ := SchemaHooks(reg, func(topic string, slot Slot) string { return topic + "-" + slot.String() })

	msg := &Message{Topic: "orders", Metadata: map[string]interface{}{"schema": []byte("{}")}}
	require.NoError(t, before(context.Background(), SlotValue, msg))
	require.EqualValues(t, 1, msg.Metadata["schema_id"])
}

func TestSchemaHooksAfterwardReadsSchemaID(t *testing.T) {
	reg := &fakeRegistry{}
	_, afterward := SchemaHooks(reg, func(topic string, slot Slot) string { return topic })

	msg := &Message{Topic: "orders", Value: FrameSchema(9, []byte("payload"))}
	require.NoError(t, afterward(context.Background(), SlotValue, msg))
	require.EqualValues(t, 9, msg.Metadata["schema_id"])
}
