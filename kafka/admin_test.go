package kafka

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/kafkaclient/kafka/kerrors"
)

func TestCreateTopicResultCarriesErrorCode(t *testing.T) {
	msg := "already exists"
	r := CreateTopicResult{Name: "orders", ErrorCode: kerrors.ProtocolCode(36), ErrorMessage: &msg}
	require.Equal(t, "orders", r.Name)
	require.EqualValues(t, 36, r.ErrorCode)
	require.Equal(t, "already exists", *r.ErrorMessage)
}

func TestTopicSpecConfigsAreOptional(t *testing.T) {
	spec := TopicSpec{Name: "orders", NumPartitions: 3, ReplicationFactor: 2}
	require.Nil(t, spec.Configs)
}

func TestClusterInfoAggregatesBrokers(t *testing.T) {
	info := ClusterInfo{
		ControllerID: 1,
		Brokers: []BrokerInfo{
			{NodeID: 1, Addr: "broker-1:9092"},
			{NodeID: 2, Addr: "broker-2:9092"},
		},
	}
	require.Len(t, info.Brokers, 2)
	require.EqualValues(t, 1, info.ControllerID)
}
