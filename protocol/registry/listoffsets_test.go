package registry

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/kafkaclient/kafka/protocol"
)

func TestListOffsetsRequestEncode(t *testing.T) {
	req := &ListOffsetsRequest{
		ReplicaID:      -1,
		IsolationLevel: 0,
		Topics: []ListOffsetsTopicRequest{
			{Name: "orders", Partitions: []ListOffsetsPartitionRequest{
				{PartitionIndex: 0, CurrentLeaderEpoch: -1, Timestamp: ListOffsetsLatest},
			}},
		},
	}
	w := protocol.NewWriter()
	req.Encode(w, protocol.Compact)

	r := protocol.NewReader(w.Bytes())
	replicaID, err := r.ReadInt32()
	require.NoError(t, err)
	require.EqualValues(t, -1, replicaID)
	isolation, err := r.ReadInt8()
	require.NoError(t, err)
	require.EqualValues(t, 0, isolation)

	n, err := protocol.ReadArray(r, protocol.Compact, true, func(r *protocol.Reader) error {
		name, e := r.ReadString(protocol.Compact)
		require.NoError(t, e)
		require.Equal(t, "orders", *name)
		_, e = protocol.ReadArray(r, protocol.Compact, true, func(r *protocol.Reader) error {
			idx, e := r.ReadInt32()
			require.NoError(t, e)
			require.EqualValues(t, 0, idx)
			epoch, e := r.ReadInt32()
			require.NoError(t, e)
			require.EqualValues(t, -1, epoch)
			ts, e := r.ReadInt64()
			require.NoError(t, e)
			require.EqualValues(t, ListOffsetsLatest, ts)
			return nil
		})
		return e
	})
	require.NoError(t, err)
	require.Equal(t, 1, n)
	require.NoError(t, r.ReadTaggedFieldTrailer())
	require.Equal(t, 0, r.Len())
}

func TestListOffsetsResponseRoundTrip(t *testing.T) {
	w := protocol.NewWriter()
	w.WriteInt32(10) // throttle_time_ms
	protocol.WriteArray(w, 1, protocol.Compact, true, func(w *protocol.Writer, i int) {
		w.WriteStringValue("orders", protocol.Compact)
		protocol.WriteArray(w, 1, protocol.Compact, true, func(w *protocol.Writer, j int) {
			w.WriteInt32(0) // partition_index
			w.WriteInt16(0) // error_code
			w.WriteInt64(-1)
			w.WriteInt64(1024) // offset
			w.WriteInt32(3)    // leader_epoch
		})
	})
	w.WriteTaggedFieldTrailer()

	var resp ListOffsetsResponse
	r := protocol.NewReader(w.Bytes())
	require.NoError(t, resp.Decode(r, protocol.Compact))
	require.Equal(t, 0, r.Len())
	require.EqualValues(t, 10, resp.ThrottleTimeMs)
	require.Len(t, resp.Topics, 1)
	require.Equal(t, "orders", resp.Topics[0].Name)
	require.Len(t, resp.Topics[0].Partitions, 1)
	p := resp.Topics[0].Partitions[0]
	require.EqualValues(t, 0, p.ErrorCode)
	require.EqualValues(t, 1024, p.Offset)
	require.EqualValues(t, 3, p.LeaderEpoch)
}

func TestListOffsetsRegisteredEntry(t *testing.T) {
	entry, err := Lookup(APIKeyListOffsets, 7)
	require.NoError(t, err)
	require.True(t, entry.Flags.RequestHeaderTagged)
	require.True(t, entry.Flags.ResponseHeaderTagged)
}
