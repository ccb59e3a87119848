package registry

import (
	"testing"

	"github.com/kafkaclient/kafka/protocol"
	"github.com/stretchr/testify/require"
)

// TestJoinGroupMemberArrayScoping pins the fix for the nested-array lexical
// capture bug: decoding a JoinGroupResponse with multiple members must
// recover each member's own MemberID/Metadata, not the last member's values
// leaking across entries via a captured outer reader.
func TestJoinGroupMemberArrayScoping(t *testing.T) {
	w := protocol.NewWriter()
	w.WriteInt32(0) // throttle
	w.WriteInt16(0) // error
	w.WriteInt32(7) // generation
	protoType := "consumer"
	w.WriteString(&protoType, protocol.Compact)
	protoName := "range"
	w.WriteString(&protoName, protocol.Compact)
	w.WriteStringValue("leader-1", protocol.Compact)
	w.WriteStringValue("leader-1", protocol.Compact)

	members := []JoinGroupMember{
		{MemberID: "member-a", Metadata: []byte{1, 2, 3}},
		{MemberID: "member-b", Metadata: []byte{4, 5}},
		{MemberID: "member-c", Metadata: []byte{6}},
	}
	protocol.WriteArray(w, len(members), protocol.Compact, true, func(w *protocol.Writer, i int) {
		m := members[i]
		w.WriteStringValue(m.MemberID, protocol.Compact)
		w.WriteString(nil, protocol.Compact)
		w.WriteBytes(m.Metadata, protocol.Compact)
	})
	w.WriteTaggedFieldTrailer()

	r := protocol.NewReader(w.Bytes())
	var resp JoinGroupResponse
	require.NoError(t, resp.Decode(r, protocol.Compact))
	require.Equal(t, 0, r.Len())

	require.Len(t, resp.Members, len(members))
	for i, want := range members {
		require.Equal(t, want.MemberID, resp.Members[i].MemberID, "member %d id", i)
		require.Equal(t, want.Metadata, resp.Members[i].Metadata, "member %d metadata", i)
	}
}

// TestMetadataTripleNestedArrayScoping exercises the deepest nesting in the
// registry (topics -> partitions -> replica/isr/offline arrays) to confirm
// each level reads through its own element-scoped Reader.
func TestMetadataTripleNestedArrayScoping(t *testing.T) {
	w := protocol.NewWriter()
	w.WriteInt32(0)
	protocol.WriteArray(w, 0, protocol.Compact, true, nil) // brokers
	w.WriteString(nil, protocol.Compact)
	w.WriteInt32(1)

	topics := []struct {
		name       string
		partitions []int32
	}{
		{"topic-a", []int32{0, 1}},
		{"topic-b", []int32{0}},
	}
	protocol.WriteArray(w, len(topics), protocol.Compact, true, func(w *protocol.Writer, i int) {
		topic := topics[i]
		w.WriteInt16(0)
		w.WriteStringValue(topic.name, protocol.Compact)
		w.WriteBool(false)
		protocol.WriteArray(w, len(topic.partitions), protocol.Compact, true, func(w *protocol.Writer, j int) {
			idx := topic.partitions[j]
			w.WriteInt16(0)
			w.WriteInt32(idx)
			w.WriteInt32(0)
			w.WriteInt32(0)
			protocol.WriteArray(w, 1, protocol.Compact, false, func(w *protocol.Writer, k int) { w.WriteInt32(idx * 10) })
			protocol.WriteArray(w, 1, protocol.Compact, false, func(w *protocol.Writer, k int) { w.WriteInt32(idx * 10) })
			protocol.WriteArray(w, 0, protocol.Compact, false, nil)
		})
	})
	w.WriteTaggedFieldTrailer()

	r := protocol.NewReader(w.Bytes())
	var resp MetadataResponse
	require.NoError(t, resp.Decode(r, protocol.Compact))
	require.Equal(t, 0, r.Len())
	require.Len(t, resp.Topics, 2)
	require.Equal(t, "topic-a", resp.Topics[0].Name)
	require.Len(t, resp.Topics[0].Partitions, 2)
	require.Equal(t, int32(1), resp.Topics[0].Partitions[1].PartitionIndex)
	require.Equal(t, []int32{10}, resp.Topics[0].Partitions[1].ReplicaNodes)
	require.Equal(t, "topic-b", resp.Topics[1].Name)
	require.Len(t, resp.Topics[1].Partitions, 1)
}
