package metadata

import (
	"context"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/kafkaclient/kafka/protocol/registry"
)

type fakeRequester struct {
	calls int32
	resp  *registry.MetadataResponse
	err   error
}

func (f *fakeRequester) RequestMetadata(ctx context.Context, topics []string) (*registry.MetadataResponse, error) {
	atomic.AddInt32(&f.calls, 1)
	return f.resp, f.err
}

func sampleResponse() *registry.MetadataResponse {
	return &registry.MetadataResponse{
		ControllerID: 1,
		Brokers: []registry.MetadataBroker{
			{NodeID: 1, Host: "b1", Port: 9092},
			{NodeID: 2, Host: "b2", Port: 9092},
		},
		Topics: []registry.MetadataTopic{
			{Name: "orders", Partitions: []registry.MetadataPartition{
				{PartitionIndex: 0, LeaderID: 1, ReplicaNodes: []int32{1, 2}, IsrNodes: []int32{1, 2}},
				{PartitionIndex: 1, LeaderID: 2, ReplicaNodes: []int32{2, 1}, IsrNodes: []int32{2, 1}},
			}},
		},
	}
}

func TestRefreshPublishesSnapshot(t *testing.T) {
	req := &fakeRequester{resp: sampleResponse()}
	c := New(req, nil)

	require.NoError(t, c.Refresh(context.Background(), nil))

	snap := c.Current()
	leader, ok := snap.Leader("orders", 0)
	require.True(t, ok)
	require.EqualValues(t, 1, leader)
	leader, ok = snap.Leader("orders", 1)
	require.True(t, ok)
	require.EqualValues(t, 2, leader)
	require.Equal(t, 2, snap.PartitionCount("orders"))
}

func TestRefreshIsIdempotentOnUnchangedTopology(t *testing.T) {
	req := &fakeRequester{resp: sampleResponse()}
	c := New(req, nil)
	require.NoError(t, c.Refresh(context.Background(), nil))
	first := c.Current()

	require.NoError(t, c.Refresh(context.Background(), nil))
	second := c.Current()

	require.Same(t, first, second)
}

func TestRefreshOnStaleErrorOnlyRefreshesForStaleCodes(t *testing.T) {
	req := &fakeRequester{resp: sampleResponse()}
	c := New(req, nil)

	require.NoError(t, c.RefreshOnStaleError(context.Background(), 0, nil))
	require.EqualValues(t, 0, atomic.LoadInt32(&req.calls))

	require.NoError(t, c.RefreshOnStaleError(context.Background(), 3 /* UNKNOWN_TOPIC_OR_PARTITION */, nil))
	require.EqualValues(t, 1, atomic.LoadInt32(&req.calls))
}

func TestLeaderUnknownTopicReturnsFalse(t *testing.T) {
	c := New(&fakeRequester{resp: sampleResponse()}, nil)
	_, ok := c.Current().Leader("missing", 0)
	require.False(t, ok)
}

func TestLeaderNoCurrentLeaderReturnsFalse(t *testing.T) {
	resp := &registry.MetadataResponse{
		Brokers: []registry.MetadataBroker{{NodeID: 1, Host: "b1", Port: 9092}},
		Topics: []registry.MetadataTopic{
			{Name: "orders", Partitions: []registry.MetadataPartition{
				{PartitionIndex: 0, LeaderID: -1, ReplicaNodes: []int32{1}, IsrNodes: []int32{1}},
			}},
		},
	}
	c := New(&fakeRequester{resp: resp}, nil)
	require.NoError(t, c.Refresh(context.Background(), nil))

	_, ok := c.Current().Leader("orders", 0)
	require.False(t, ok, "LeaderID -1 (no current leader) must not be reported as a usable leader")
}
