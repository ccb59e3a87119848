package kafka

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/kafkaclient/kafka/kafkatest"
)

// TestProducerSendAgainstMockBroker exercises Dial and Producer.Send end to
// end against kafkatest's mock broker, the way a real cluster would answer
// ApiVersions, Metadata and Produce.
func TestProducerSendAgainstMockBroker(t *testing.T) {
	server, err := kafkatest.NewServer()
	require.NoError(t, err)
	defer server.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	cfg := NewConfig()
	cfg.Brokers = []string{server.Addr.String()}
	client, err := Dial(ctx, cfg)
	require.NoError(t, err)
	defer client.Close()

	producer, err := NewProducer(client, ProducerConfig{Acks: AcksLeader})
	require.NoError(t, err)
	defer producer.Close()

	// Same key for both messages so the partitioner routes them to the same
	// partition, keeping their relative order deterministic for the
	// assertions below (Producer groups by leader/partition using a map, so
	// cross-partition ordering is not guaranteed).
	results, err := producer.Send(ctx, []ProducerMessage{
		{Topic: "orders", Key: []byte("k1"), Value: []byte("v1")},
		{Topic: "orders", Key: []byte("k1"), Value: []byte("v2")},
	})
	require.NoError(t, err)
	require.Len(t, results, 2)
	for _, r := range results {
		require.Equal(t, "orders", r.Topic)
	}
	require.Equal(t, results[0].Partition, results[1].Partition)
	require.Equal(t, results[0].Offset+1, results[1].Offset)

	msgs := server.Messages()
	require.Len(t, msgs, 2)
	require.Equal(t, []byte("v1"), msgs[0].Value)
	require.Equal(t, []byte("v2"), msgs[1].Value)
	require.Equal(t, results[0].Offset, msgs[0].Offset)
	require.Equal(t, results[1].Offset, msgs[1].Offset)
}
