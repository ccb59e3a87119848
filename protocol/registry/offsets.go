package registry

import "github.com/kafkaclient/kafka/protocol"

func init() {
	Register(&Entry{
		APIKey:      APIKeyOffsetCommit,
		APIVersion:  8,
		Encoding:    protocol.Compact,
		Flags:       Flags{RequestHeaderTagged: true, ResponseHeaderTagged: true},
		NewRequest:  func() Request { return &OffsetCommitRequest{} },
		NewResponse: func() Response { return &OffsetCommitResponse{} },
	})
	Register(&Entry{
		APIKey:      APIKeyOffsetFetch,
		APIVersion:  8,
		Encoding:    protocol.Compact,
		Flags:       Flags{RequestHeaderTagged: true, ResponseHeaderTagged: true},
		NewRequest:  func() Request { return &OffsetFetchRequest{} },
		NewResponse: func() Response { return &OffsetFetchResponse{} },
	})
}

// OffsetCommitPartition mirrors the vendored offsetcommit.go's per-partition
// shape (partition index, committed offset, optional metadata string).
type OffsetCommitPartition struct {
	PartitionIndex    int32
	CommittedOffset   int64
	CommittedLeaderEpoch int32
	CommittedMetadata *string
}

type OffsetCommitTopic struct {
	Name       string
	Partitions []OffsetCommitPartition
}

type OffsetCommitRequest struct {
	GroupID         string
	GenerationID    int32
	MemberID        string
	GroupInstanceID *string
	Topics          []OffsetCommitTopic
}

func (req *OffsetCommitRequest) Encode(w *protocol.Writer, enc protocol.Encoding) {
	w.WriteStringValue(req.GroupID, enc)
	w.WriteInt32(req.GenerationID)
	w.WriteStringValue(req.MemberID, enc)
	w.WriteString(req.GroupInstanceID, enc)
	protocol.WriteArray(w, len(req.Topics), enc, true, func(w *protocol.Writer, i int) {
		t := req.Topics[i]
		w.WriteStringValue(t.Name, enc)
		protocol.WriteArray(w, len(t.Partitions), enc, true, func(w *protocol.Writer, j int) {
			p := t.Partitions[j]
			w.WriteInt32(p.PartitionIndex)
			w.WriteInt64(p.CommittedOffset)
			w.WriteInt32(p.CommittedLeaderEpoch)
			w.WriteString(p.CommittedMetadata, enc)
		})
	})
	w.WriteTaggedFieldTrailer()
}

type OffsetCommitPartitionResponse struct {
	PartitionIndex int32
	ErrorCode      int16
}

type OffsetCommitTopicResponse struct {
	Name       string
	Partitions []OffsetCommitPartitionResponse
}

type OffsetCommitResponse struct {
	ThrottleTimeMs int32
	Topics         []OffsetCommitTopicResponse
}

func (resp *OffsetCommitResponse) Decode(r *protocol.Reader, enc protocol.Encoding) error {
	var err error
	if resp.ThrottleTimeMs, err = r.ReadInt32(); err != nil {
		return err
	}
	_, err = protocol.ReadArray(r, enc, true, func(r *protocol.Reader) error {
		var t OffsetCommitTopicResponse
		name, e := r.ReadString(enc)
		if e != nil {
			return e
		}
		if name != nil {
			t.Name = *name
		}
		if _, e = protocol.ReadArray(r, enc, true, func(r *protocol.Reader) error {
			var p OffsetCommitPartitionResponse
			var e error
			if p.PartitionIndex, e = r.ReadInt32(); e != nil {
				return e
			}
			if p.ErrorCode, e = r.ReadInt16(); e != nil {
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

type OffsetFetchTopic struct {
	Name            string
	PartitionIndexes []int32
}

type OffsetFetchRequest struct {
	GroupID                string
	Topics                 []OffsetFetchTopic
	RequireStable          bool
}

func (req *OffsetFetchRequest) Encode(w *protocol.Writer, enc protocol.Encoding) {
	w.WriteStringValue(req.GroupID, enc)
	protocol.WriteArray(w, len(req.Topics), enc, true, func(w *protocol.Writer, i int) {
		t := req.Topics[i]
		w.WriteStringValue(t.Name, enc)
		protocol.WriteArray(w, len(t.PartitionIndexes), enc, false, func(w *protocol.Writer, j int) {
			w.WriteInt32(t.PartitionIndexes[j])
		})
	})
	w.WriteBool(req.RequireStable)
	w.WriteTaggedFieldTrailer()
}

type OffsetFetchPartitionResponse struct {
	PartitionIndex  int32
	CommittedOffset int64
	LeaderEpoch     int32
	Metadata        *string
	ErrorCode       int16
}

type OffsetFetchTopicResponse struct {
	Name       string
	Partitions []OffsetFetchPartitionResponse
}

type OffsetFetchResponse struct {
	ThrottleTimeMs int32
	Topics         []OffsetFetchTopicResponse
	ErrorCode      int16
}

func (resp *OffsetFetchResponse) Decode(r *protocol.Reader, enc protocol.Encoding) error {
	var err error
	if resp.ThrottleTimeMs, err = r.ReadInt32(); err != nil {
		return err
	}
	_, err = protocol.ReadArray(r, enc, true, func(r *protocol.Reader) error {
		var t OffsetFetchTopicResponse
		name, e := r.ReadString(enc)
		if e != nil {
			return e
		}
		if name != nil {
			t.Name = *name
		}
		if _, e = protocol.ReadArray(r, enc, true, func(r *protocol.Reader) error {
			var p OffsetFetchPartitionResponse
			var e error
			if p.PartitionIndex, e = r.ReadInt32(); e != nil {
				return e
			}
			if p.CommittedOffset, e = r.ReadInt64(); e != nil {
				return e
			}
			if p.LeaderEpoch, e = r.ReadInt32(); e != nil {
				return e
			}
			if p.Metadata, e = r.ReadString(enc); e != nil {
				return e
			}
			if p.ErrorCode, e = r.ReadInt16(); e != nil {
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
	if resp.ErrorCode, err = r.ReadInt16(); err != nil {
		return err
	}
	return r.ReadTaggedFieldTrailer()
}
