package registry

import "github.com/kafkaclient/kafka/protocol"

func init() {
	Register(&Entry{
		APIKey:      APIKeyListOffsets,
		APIVersion:  7,
		Encoding:    protocol.Compact,
		Flags:       Flags{RequestHeaderTagged: true, ResponseHeaderTagged: true},
		NewRequest:  func() Request { return &ListOffsetsRequest{} },
		NewResponse: func() Response { return &ListOffsetsResponse{} },
	})
}

// Special ListOffsets timestamps, per the broker's ListOffsets contract.
const (
	ListOffsetsLatest   int64 = -1
	ListOffsetsEarliest int64 = -2
)

type ListOffsetsPartitionRequest struct {
	PartitionIndex     int32
	CurrentLeaderEpoch int32
	Timestamp          int64
}

type ListOffsetsTopicRequest struct {
	Name       string
	Partitions []ListOffsetsPartitionRequest
}

type ListOffsetsRequest struct {
	ReplicaID      int32
	IsolationLevel int8
	Topics         []ListOffsetsTopicRequest
}

func (req *ListOffsetsRequest) Encode(w *protocol.Writer, enc protocol.Encoding) {
	w.WriteInt32(req.ReplicaID)
	w.WriteInt8(req.IsolationLevel)
	protocol.WriteArray(w, len(req.Topics), enc, true, func(w *protocol.Writer, i int) {
		t := req.Topics[i]
		w.WriteStringValue(t.Name, enc)
		protocol.WriteArray(w, len(t.Partitions), enc, true, func(w *protocol.Writer, j int) {
			p := t.Partitions[j]
			w.WriteInt32(p.PartitionIndex)
			w.WriteInt32(p.CurrentLeaderEpoch)
			w.WriteInt64(p.Timestamp)
		})
	})
	w.WriteTaggedFieldTrailer()
}

type ListOffsetsPartitionResponse struct {
	PartitionIndex int32
	ErrorCode      int16
	Timestamp      int64
	Offset         int64
	LeaderEpoch    int32
}

type ListOffsetsTopicResponse struct {
	Name       string
	Partitions []ListOffsetsPartitionResponse
}

type ListOffsetsResponse struct {
	ThrottleTimeMs int32
	Topics         []ListOffsetsTopicResponse
}

func (resp *ListOffsetsResponse) Decode(r *protocol.Reader, enc protocol.Encoding) error {
	var err error
	if resp.ThrottleTimeMs, err = r.ReadInt32(); err != nil {
		return err
	}
	_, err = protocol.ReadArray(r, enc, true, func(r *protocol.Reader) error {
		var t ListOffsetsTopicResponse
		name, e := r.ReadString(enc)
		if e != nil {
			return e
		}
		if name != nil {
			t.Name = *name
		}
		if _, e = protocol.ReadArray(r, enc, true, func(r *protocol.Reader) error {
			var p ListOffsetsPartitionResponse
			var e error
			if p.PartitionIndex, e = r.ReadInt32(); e != nil {
				return e
			}
			if p.ErrorCode, e = r.ReadInt16(); e != nil {
				return e
			}
			if p.Timestamp, e = r.ReadInt64(); e != nil {
				return e
			}
			if p.Offset, e = r.ReadInt64(); e != nil {
				return e
			}
			if p.LeaderEpoch, e = r.ReadInt32(); e != nil {
				return e
			}
			t.Partitions = append(t.Partitions, p)
			return nil
		}); e != nil {
			return e
		}
		resp.Topics = append(resp.Topics, t)
		return nil
	})
	if err != nil {
		return err
	}
	return r.ReadTaggedFieldTrailer()
}
