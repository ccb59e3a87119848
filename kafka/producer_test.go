package kafka

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/kafkaclient/kafka/serde"
)

func TestProducerConfigValidateRejectsIdempotentWithoutAcksAll(t *testing.T) {
	cfg := ProducerConfig{Idempotent: true, Acks: AcksLeader}
	err := cfg.Validate()
	require.Error(t, err)
}

func TestProducerConfigValidateAcceptsIdempotentWithAcksAll(t *testing.T) {
	cfg := ProducerConfig{Idempotent: true, Acks: AcksAll}
	require.NoError(t, cfg.Validate())
}

func TestProducerConfigValidateRejectsNegativeTimeout(t *testing.T) {
	cfg := ProducerConfig{Acks: AcksLeader, TimeoutMs: -1}
	require.Error(t, cfg.Validate())
}

func TestProducerConfigWithDefaults(t *testing.T) {
	cfg := ProducerConfig{}.withDefaults()
	require.NotNil(t, cfg.Partitioner)
	require.EqualValues(t, 30000, cfg.TimeoutMs)
}

func TestNextSequenceAdvancesPerPartition(t *testing.T) {
	p := &Producer{sequences: make(map[string]map[int32]int32)}

	first := p.nextSequence("orders", 0, 3)
	require.EqualValues(t, 0, first)
	second := p.nextSequence("orders", 0, 2)
	require.EqualValues(t, 3, second)

	// A distinct partition on the same topic tracks its own counter.
	otherPartition := p.nextSequence("orders", 1, 5)
	require.EqualValues(t, 0, otherPartition)
}

func TestEncodeSlotWithoutPipelinePassesBytesThrough(t *testing.T) {
	p := &Producer{}
	b, err := p.encodeSlot(context.Background(), serde.SlotValue, "orders", []byte("payload"))
	require.NoError(t, err)
	require.Equal(t, []byte("payload"), b)
}

func TestEncodeSlotWithoutPipelineRejectsNonBytes(t *testing.T) {
	p := &Producer{}
	_, err := p.encodeSlot(context.Background(), serde.SlotValue, "orders", 42)
	require.Error(t, err)
}

func TestEncodeSlotWithoutPipelinePassesNilThrough(t *testing.T) {
	p := &Producer{}
	b, err := p.encodeSlot(context.Background(), serde.SlotKey, "orders", nil)
	require.NoError(t, err)
	require.Nil(t, b)
}

func TestEncodeSlotWithPipelineRunsEncoder(t *testing.T) {
	pipeline := &serde.Pipeline{
		ValueEncoder: serde.EncoderFunc(func(ctx context.Context, topic string, v interface{}) ([]byte, error) {
			return []byte(topic + ":" + v.(string)), nil
		}),
	}
	p := &Producer{cfg: ProducerConfig{Serde: pipeline}}
	b, err := p.encodeSlot(context.Background(), serde.SlotValue, "orders", "hello")
	require.NoError(t, err)
	require.Equal(t, []byte("orders:hello"), b)
}

func TestEncodeHeadersBuildsKeyValuePairs(t *testing.T) {
	p := &Producer{}
	headers, err := p.encodeHeaders(context.Background(), "orders", map[string]interface{}{
		"trace-id": []byte("abc123"),
	})
	require.NoError(t, err)
	require.Len(t, headers, 1)
	require.Equal(t, "trace-id", headers[0].Key)
	require.Equal(t, []byte("abc123"), headers[0].Value)
}

func TestEncodeHeadersEmptyReturnsNil(t *testing.T) {
	p := &Producer{}
	headers, err := p.encodeHeaders(context.Background(), "orders", nil)
	require.NoError(t, err)
	require.Nil(t, headers)
}
