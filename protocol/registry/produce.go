package registry

import (
	"github.com/kafkaclient/kafka/protocol"
	"github.com/kafkaclient/kafka/protocol/batch"
)

func init() {
	Register(&Entry{
		APIKey:      APIKeyProduce,
		APIVersion:  9,
		Encoding:    protocol.Compact,
		Flags:       Flags{RequestHeaderTagged: true, ResponseHeaderTagged: true},
		NewRequest:  func() Request { return &ProduceRequest{} },
		NewResponse: func() Response { return &ProduceResponse{} },
	})
}

type ProducePartitionData struct {
	Index   int32
	Records []byte // already-encoded record batch, see protocol/batch.Encode
}

type ProduceTopicData struct {
	Name       string
	Partitions []ProducePartitionData
}

type ProduceRequest struct {
	TransactionalID *string
	Acks            int16
	TimeoutMs       int32
	Topics          []ProduceTopicData
}

func (req *ProduceRequest) Encode(w *protocol.Writer, enc protocol.Encoding) {
	w.WriteString(req.TransactionalID, enc)
	w.WriteInt16(req.Acks)
	w.WriteInt32(req.TimeoutMs)
	protocol.WriteArray(w, len(req.Topics), enc, true, func(w *protocol.Writer, i int) {
		t := req.Topics[i]
		w.WriteStringValue(t.Name, enc)
		protocol.WriteArray(w, len(t.Partitions), enc, true, func(w *protocol.Writer, j int) {
			p := t.Partitions[j]
			w.WriteInt32(p.Index)
			w.WriteBytes(p.Records, enc)
		})
	})
	w.WriteTaggedFieldTrailer()
}

type ProduceRecordError struct {
	BatchIndex        int32
	BatchIndexErrCode int16
}

type ProducePartitionResponse struct {
	Index          int32
	ErrorCode      int16
	BaseOffset     int64
	LogAppendTime  int64
	LogStartOffset int64
	RecordErrors   []ProduceRecordError
	ErrorMessage   *string
}

type ProduceTopicResponse struct {
	Name       string
	Partitions []ProducePartitionResponse
}

type ProduceResponse struct {
	Topics         []ProduceTopicResponse
	ThrottleTimeMs int32
}

func (resp *ProduceResponse) Decode(r *protocol.Reader, enc protocol.Encoding) error {
	_, err := protocol.ReadArray(r, enc, true, func(r *protocol.Reader) error {
		var t ProduceTopicResponse
		name, e := r.ReadString(enc)
		if e != nil {
			return e
		}
		if name != nil {
			t.Name = *name
		}
		if _, e = protocol.ReadArray(r, enc, true, func(r *protocol.Reader) error {
			var p ProducePartitionResponse
			var e error
			if p.Index, e = r.ReadInt32(); e != nil {
				return e
			}
			if p.ErrorCode, e = r.ReadInt16(); e != nil {
				return e
			}
			if p.BaseOffset, e = r.ReadInt64(); e != nil {
				return e
			}
			if p.LogAppendTime, e = r.ReadInt64(); e != nil {
				return e
			}
			if p.LogStartOffset, e = r.ReadInt64(); e != nil {
				return e
			}
			if _, e = protocol.ReadArray(r, enc, true, func(r *protocol.Reader) error {
				var re ProduceRecordError
				var e error
				if re.BatchIndex, e = r.ReadInt32(); e != nil {
					return e
				}
				if re.BatchIndexErrCode, e = r.ReadInt16(); e != nil {
					return e
				}
				p.RecordErrors = append(p.RecordErrors, re)
				return nil
			}); e != nil {
				return e
			}
			if p.ErrorMessage, e = r.ReadString(enc); e != nil {
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
	if resp.ThrottleTimeMs, err = r.ReadInt32(); err != nil {
		return err
	}
	return r.ReadTaggedFieldTrailer()
}

// DecodeBatches decodes every record batch stamped into a produce request's
// raw Records payload; producers normally send exactly one.
func DecodeBatches(raw []byte, verifyCRC bool) ([]*batch.Batch, error) {
	var out []*batch.Batch
	for len(raw) > 0 {
		b, n, err := batch.Decode(raw, verifyCRC)
		if err != nil {
			return nil, err
		}
		out = append(out, b)
		raw = raw[n:]
	}
	return out, nil
}
