package registry

import "github.com/kafkaclient/kafka/protocol"

func init() {
	Register(&Entry{
		APIKey:      APIKeyFetch,
		APIVersion:  13,
		Encoding:    protocol.Compact,
		Flags:       Flags{RequestHeaderTagged: true, ResponseHeaderTagged: true},
		NewRequest:  func() Request { return &FetchRequest{} },
		NewResponse: func() Response { return &FetchResponse{} },
	})
}

type FetchPartitionRequest struct {
	Partition          int32
	CurrentLeaderEpoch int32
	FetchOffset        int64
	LastFetchedEpoch   int32
	LogStartOffset     int64
	PartitionMaxBytes  int32
}

type FetchTopicRequest struct {
	Topic      string
	Partitions []FetchPartitionRequest
}

type FetchRequest struct {
	ReplicaID      int32
	MaxWaitMs      int32
	MinBytes       int32
	MaxBytes       int32
	IsolationLevel int8
	SessionID      int32
	SessionEpoch   int32
	Topics         []FetchTopicRequest
}

func (req *FetchRequest) Encode(w *protocol.Writer, enc protocol.Encoding) {
	w.WriteInt32(req.ReplicaID)
	w.WriteInt32(req.MaxWaitMs)
	w.WriteInt32(req.MinBytes)
	w.WriteInt32(req.MaxBytes)
	w.WriteInt8(req.IsolationLevel)
	w.WriteInt32(req.SessionID)
	w.WriteInt32(req.SessionEpoch)
	protocol.WriteArray(w, len(req.Topics), enc, true, func(w *protocol.Writer, i int) {
		t := req.Topics[i]
		w.WriteStringValue(t.Topic, enc)
		protocol.WriteArray(w, len(t.Partitions), enc, true, func(w *protocol.Writer, j int) {
			p := t.Partitions[j]
			w.WriteInt32(p.Partition)
			w.WriteInt32(p.CurrentLeaderEpoch)
			w.WriteInt64(p.FetchOffset)
			w.WriteInt32(p.LastFetchedEpoch)
			w.WriteInt64(p.LogStartOffset)
			w.WriteInt32(p.PartitionMaxBytes)
		})
	})
	// forgotten topics (session incremental fetch) are never populated by
	// this client: it always issues full fetch sessions.
	protocol.WriteArray(w, 0, enc, true, nil)
	w.WriteString(nil, enc) // rack id
	w.WriteTaggedFieldTrailer()
}

type FetchPartitionResponse struct {
	Partition      int32
	ErrorCode      int16
	HighWatermark  int64
	LastStableOffset int64
	LogStartOffset int64
	Records        []byte
}

type FetchTopicResponse struct {
	Topic      string
	Partitions []FetchPartitionResponse
}

type FetchResponse struct {
	ThrottleTimeMs int32
	ErrorCode      int16
	SessionID      int32
	Topics         []FetchTopicResponse
}

func (resp *FetchResponse) Decode(r *protocol.Reader, enc protocol.Encoding) error {
	var err error
	if resp.ThrottleTimeMs, err = r.ReadInt32(); err != nil {
		return err
	}
	if resp.ErrorCode, err = r.ReadInt16(); err != nil {
		return err
	}
	if resp.SessionID, err = r.ReadInt32(); err != nil {
		return err
	}
	_, err = protocol.ReadArray(r, enc, true, func(r *protocol.Reader) error {
		var t FetchTopicResponse
		name, e := r.ReadString(enc)
		if e != nil {
			return e
		}
		if name != nil {
			t.Topic = *name
		}
		if _, e = protocol.ReadArray(r, enc, true, func(r *protocol.Reader) error {
			var p FetchPartitionResponse
			var e error
			if p.Partition, e = r.ReadInt32(); e != nil {
				return e
			}
			if p.ErrorCode, e = r.ReadInt16(); e != nil {
				return e
			}
			if p.HighWatermark, e = r.ReadInt64(); e != nil {
				return e
			}
			if p.LastStableOffset, e = r.ReadInt64(); e != nil {
				return e
			}
			if p.LogStartOffset, e = r.ReadInt64(); e != nil {
				return e
			}
			// aborted transactions array: always empty from this client's
			// perspective (read_committed is not implemented).
			if _, e = protocol.ReadArray(r, enc, true, func(r *protocol.Reader) error {
				if _, e := r.ReadInt64(); e != nil {
					return e
				}
				_, e = r.ReadInt64()
				return e
			}); e != nil {
				return e
			}
			if _, e = r.ReadInt32(); e != nil { // preferred read replica
				return e
			}
			if p.Records, e = r.ReadBytes(enc); e != nil {
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
