package kafka

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRoundRobinPartitionerKeyedIsDeterministic(t *testing.T) {
	p := newRoundRobinPartitioner()
	a := p.partition([]byte("order-1"), 4)
	b := p.partition([]byte("order-1"), 4)
	require.Equal(t, a, b)
}

func TestRoundRobinPartitionerKeylessCyclesPartitions(t *testing.T) {
	p := newRoundRobinPartitioner()
	require.EqualValues(t, 0, p.partition(nil, 3))
	require.EqualValues(t, 1, p.partition(nil, 3))
	require.EqualValues(t, 2, p.partition(nil, 3))
	require.EqualValues(t, 0, p.partition(nil, 3))
}

func TestRoundRobinPartitionerZeroPartitionsReturnsZero(t *testing.T) {
	p := newRoundRobinPartitioner()
	require.EqualValues(t, 0, p.partition(nil, 0))
	require.EqualValues(t, 0, p.partition([]byte("k"), 0))
}

func TestProducerConfigWithDefaultsUsesRoundRobinForKeylessMessages(t *testing.T) {
	cfg := ProducerConfig{}.withDefaults()
	require.EqualValues(t, 0, cfg.Partitioner(nil, 2))
	require.EqualValues(t, 1, cfg.Partitioner(nil, 2))
}
