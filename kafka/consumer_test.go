package kafka

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/kafkaclient/kafka/serde"
)

func TestConsumerConfigValidateRequiresGroupID(t *testing.T) {
	cfg := ConsumerConfig{Topics: []string{"orders"}}
	require.Error(t, cfg.Validate())
}

func TestConsumerConfigValidateRequiresTopics(t *testing.T) {
	cfg := ConsumerConfig{GroupID: "g1"}
	require.Error(t, cfg.Validate())
}

func TestConsumerConfigValidateRejectsBadResetPolicy(t *testing.T) {
	cfg := ConsumerConfig{GroupID: "g1", Topics: []string{"orders"}, ResetPolicy: ResetPolicy(99)}
	require.Error(t, cfg.Validate())
}

func TestConsumerConfigValidateAcceptsMinimalConfig(t *testing.T) {
	cfg := ConsumerConfig{GroupID: "g1", Topics: []string{"orders"}}
	require.NoError(t, cfg.Validate())
}

func TestConsumerConfigWithDefaults(t *testing.T) {
	cfg := ConsumerConfig{}.withDefaults()
	require.EqualValues(t, 10000, cfg.SessionTimeoutMs)
	require.EqualValues(t, 30000, cfg.RebalanceTimeoutMs)
	require.EqualValues(t, 500, cfg.MaxWaitMs)
	require.EqualValues(t, 1, cfg.MinBytes)
	require.EqualValues(t, 1<<20, cfg.MaxBytes)
	require.EqualValues(t, 1<<20, cfg.PartitionMaxBytes)
	require.Equal(t, 5*1e9, float64(cfg.AutoCommitInterval))
}

func TestConsumerConfigWithDefaultsPreservesSetValues(t *testing.T) {
	cfg := ConsumerConfig{MaxWaitMs: 250}.withDefaults()
	require.EqualValues(t, 250, cfg.MaxWaitMs)
}

func TestSetPositionAndSnapshotPositions(t *testing.T) {
	c := &Consumer{positions: make(map[string]map[int32]int64)}
	c.setPosition("orders", 0, 10)
	c.setPosition("orders", 1, 20)
	c.setPosition("payments", 0, 5)

	snap := c.snapshotPositions()
	require.Equal(t, int64(10), snap["orders"][0])
	require.Equal(t, int64(20), snap["orders"][1])
	require.Equal(t, int64(5), snap["payments"][0])

	// The snapshot must be a deep copy: mutating it must not affect the
	// consumer's own position map.
	snap["orders"][0] = 999
	require.Equal(t, int64(10), c.positions["orders"][0])
}

func TestDecodeSlotWithoutPipelinePassesBytesThrough(t *testing.T) {
	c := &Consumer{}
	v, err := c.decodeSlot(context.Background(), serde.SlotValue, "orders", []byte("payload"))
	require.NoError(t, err)
	require.Equal(t, []byte("payload"), v)
}

func TestDecodeSlotWithPipelineRunsDecoder(t *testing.T) {
	pipeline := serde.Pipeline{
		ValueDecoder: serde.DecoderFunc(func(ctx context.Context, topic string, b []byte) (interface{}, error) {
			return string(b) + "-decoded", nil
		}),
	}
	c := &Consumer{cfg: ConsumerConfig{Serde: &pipeline}}
	v, err := c.decodeSlot(context.Background(), serde.SlotValue, "orders", []byte("payload"))
	require.NoError(t, err)
	require.Equal(t, "payload-decoded", v)
}
