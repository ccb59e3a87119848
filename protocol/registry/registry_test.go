package registry

import (
	"testing"

	"github.com/kafkaclient/kafka/protocol"
	"github.com/stretchr/testify/require"
)

func TestLookupKnownAndUnknown(t *testing.T) {
	e, err := Lookup(APIKeyMetadata, 9)
	require.NoError(t, err)
	require.Equal(t, APIKeyMetadata, e.APIKey)

	_, err = Lookup(APIKeyMetadata, 999)
	require.Error(t, err)
}

func TestMaxVersion(t *testing.T) {
	v, ok := MaxVersion(APIKeyProduce)
	require.True(t, ok)
	require.EqualValues(t, 9, v)

	_, ok = MaxVersion(APIKey(-100))
	require.False(t, ok)
}

func TestApiVersionsIsNotTagged(t *testing.T) {
	e, err := Lookup(APIKeyApiVersions, 3)
	require.NoError(t, err)
	require.False(t, e.Flags.RequestHeaderTagged)
	require.False(t, e.Flags.ResponseHeaderTagged)
}

func TestProduceRequestResponseRoundTrip(t *testing.T) {
	req := &ProduceRequest{
		Acks:      -1,
		TimeoutMs: 1000,
		Topics: []ProduceTopicData{
			{Name: "orders", Partitions: []ProducePartitionData{
				{Index: 0, Records: []byte{1, 2, 3}},
			}},
		},
	}
	w := protocol.NewWriter()
	req.Encode(w, protocol.Compact)

	resp := &ProduceResponse{
		ThrottleTimeMs: 5,
		Topics: []ProduceTopicResponse{
			{Name: "orders", Partitions: []ProducePartitionResponse{
				{Index: 0, ErrorCode: 0, BaseOffset: 42},
			}},
		},
	}
	rw := protocol.NewWriter()
	protocol.WriteArray(rw, len(resp.Topics), protocol.Compact, true, func(rw *protocol.Writer, i int) {
		tt := resp.Topics[i]
		rw.WriteStringValue(tt.Name, protocol.Compact)
		protocol.WriteArray(rw, len(tt.Partitions), protocol.Compact, true, func(rw *protocol.Writer, j int) {
			p := tt.Partitions[j]
			rw.WriteInt32(p.Index)
			rw.WriteInt16(p.ErrorCode)
			rw.WriteInt64(p.BaseOffset)
			rw.WriteInt64(p.LogAppendTime)
			rw.WriteInt64(p.LogStartOffset)
			protocol.WriteArray(rw, 0, protocol.Compact, true, nil)
			rw.WriteString(nil, protocol.Compact)
		})
	})
	rw.WriteInt32(resp.ThrottleTimeMs)
	rw.WriteTaggedFieldTrailer()

	var got ProduceResponse
	r := protocol.NewReader(rw.Bytes())
	require.NoError(t, got.Decode(r, protocol.Compact))
	require.Equal(t, 0, r.Len())
	require.Equal(t, resp.ThrottleTimeMs, got.ThrottleTimeMs)
	require.Equal(t, "orders", got.Topics[0].Name)
	require.EqualValues(t, 42, got.Topics[0].Partitions[0].BaseOffset)
}

func TestFindCoordinatorRoundTrip(t *testing.T) {
	req := &FindCoordinatorRequest{Key: "my-group", KeyType: CoordinatorKeyGroup}
	w := protocol.NewWriter()
	req.Encode(w, protocol.Compact)
	r := protocol.NewReader(w.Bytes())
	key, err := r.ReadString(protocol.Compact)
	require.NoError(t, err)
	require.Equal(t, "my-group", *key)
	kt, err := r.ReadInt8()
	require.NoError(t, err)
	require.EqualValues(t, CoordinatorKeyGroup, kt)
	require.NoError(t, r.ReadTaggedFieldTrailer())
}

func TestOffsetCommitRequestEncode(t *testing.T) {
	req := &OffsetCommitRequest{
		GroupID:      "g1",
		GenerationID: 3,
		MemberID:     "m1",
		Topics: []OffsetCommitTopic{
			{Name: "t1", Partitions: []OffsetCommitPartition{
				{PartitionIndex: 0, CommittedOffset: 10, CommittedLeaderEpoch: -1},
			}},
		},
	}
	w := protocol.NewWriter()
	req.Encode(w, protocol.Compact)
	require.NotZero(t, w.Len())
}
