package registry

import "github.com/kafkaclient/kafka/protocol"

func init() {
	Register(&Entry{
		APIKey:      APIKeyMetadata,
		APIVersion:  9,
		Encoding:    protocol.Compact,
		Flags:       Flags{RequestHeaderTagged: true, ResponseHeaderTagged: true},
		NewRequest:  func() Request { return &MetadataRequest{} },
		NewResponse: func() Response { return &MetadataResponse{} },
	})
}

type MetadataRequest struct {
	// Topics is nil for "all topics"; empty (non-nil) means no topics.
	Topics                             []string
	AllowAutoTopicCreation             bool
	IncludeClusterAuthorizedOperations bool
	IncludeTopicAuthorizedOperations   bool
}

func (req *MetadataRequest) Encode(w *protocol.Writer, enc protocol.Encoding) {
	if req.Topics == nil {
		w.WriteArrayLength(-1, enc)
	} else {
		protocol.WriteArray(w, len(req.Topics), enc, true, func(w *protocol.Writer, i int) {
			w.WriteStringValue(req.Topics[i], enc)
		})
	}
	w.WriteBool(req.AllowAutoTopicCreation)
	w.WriteBool(req.IncludeClusterAuthorizedOperations)
	w.WriteBool(req.IncludeTopicAuthorizedOperations)
	w.WriteTaggedFieldTrailer()
}

type MetadataBroker struct {
	NodeID int32
	Host   string
	Port   int32
	Rack   *string
}

type MetadataPartition struct {
	ErrorCode      int16
	PartitionIndex int32
	LeaderID       int32
	LeaderEpoch    int32
	ReplicaNodes   []int32
	IsrNodes       []int32
	OfflineReplicas []int32
}

type MetadataTopic struct {
	ErrorCode  int16
	Name       string
	IsInternal bool
	Partitions []MetadataPartition
}

type MetadataResponse struct {
	ThrottleTimeMs int32
	Brokers        []MetadataBroker
	ClusterID      *string
	ControllerID   int32
	Topics         []MetadataTopic
}

func (resp *MetadataResponse) Decode(r *protocol.Reader, enc protocol.Encoding) error {
	var err error
	if resp.ThrottleTimeMs, err = r.ReadInt32(); err != nil {
		return err
	}
	if _, err = protocol.ReadArray(r, enc, true, func(r *protocol.Reader) error {
		var b MetadataBroker
		var e error
		if b.NodeID, e = r.ReadInt32(); e != nil {
			return e
		}
		host, e := r.ReadString(enc)
		if e != nil {
			return e
		}
		if host != nil {
			b.Host = *host
		}
		if b.Port, e = r.ReadInt32(); e != nil {
			return e
		}
		if b.Rack, e = r.ReadString(enc); e != nil {
			return e
		}
		resp.Brokers = append(resp.Brokers, b)
		return nil
	}); err != nil {
		return err
	}

	if resp.ClusterID, err = r.ReadString(enc); err != nil {
		return err
	}
	if resp.ControllerID, err = r.ReadInt32(); err != nil {
		return err
	}

	if _, err = protocol.ReadArray(r, enc, true, func(r *protocol.Reader) error {
		var t MetadataTopic
		var e error
		if t.ErrorCode, e = r.ReadInt16(); e != nil {
			return e
		}
		name, e := r.ReadString(enc)
		if e != nil {
			return e
		}
		if name != nil {
			t.Name = *name
		}
		if t.IsInternal, e = r.ReadBool(); e != nil {
			return e
		}
		if _, e = protocol.ReadArray(r, enc, true, func(r *protocol.Reader) error {
			var p MetadataPartition
			var e error
			if p.ErrorCode, e = r.ReadInt16(); e != nil {
				return e
			}
			if p.PartitionIndex, e = r.ReadInt32(); e != nil {
				return e
			}
			if p.LeaderID, e = r.ReadInt32(); e != nil {
				return e
			}
			if p.LeaderEpoch, e = r.ReadInt32(); e != nil {
				return e
			}
			if _, e = protocol.ReadArray(r, enc, false, func(r *protocol.Reader) error {
				v, e := r.ReadInt32()
				if e != nil {
					return e
				}
				p.ReplicaNodes = append(p.ReplicaNodes, v)
				return nil
			}); e != nil {
				return e
			}
			if _, e = protocol.ReadArray(r, enc, false, func(r *protocol.Reader) error {
				v, e := r.ReadInt32()
				if e != nil {
					return e
				}
				p.IsrNodes = append(p.IsrNodes, v)
				return nil
			}); e != nil {
				return e
			}
			if _, e = protocol.ReadArray(r, enc, false, func(r *protocol.Reader) error {
				v, e := r.ReadInt32()
				if e != nil {
					return e
				}
				p.OfflineReplicas = append(p.OfflineReplicas, v)
				return nil
			}); e != nil {
				return e
			}
			t.Partitions = append(t.Partitions, p)
			return nil
		}); e != nil {
			return e
		}
		resp.Topics = append(resp.Topics, t)
		return nil
	}); err != nil {
		return err
	}

	return r.ReadTaggedFieldTrailer()
}
