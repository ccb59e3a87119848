package registry

import "github.com/kafkaclient/kafka/protocol"

func init() {
	Register(&Entry{
		APIKey:      APIKeyCreateTopics,
		APIVersion:  7,
		Encoding:    protocol.Compact,
		Flags:       Flags{RequestHeaderTagged: true, ResponseHeaderTagged: true},
		NewRequest:  func() Request { return &CreateTopicsRequest{} },
		NewResponse: func() Response { return &CreateTopicsResponse{} },
	})
	Register(&Entry{
		APIKey:      APIKeyDeleteTopics,
		APIVersion:  6,
		Encoding:    protocol.Compact,
		Flags:       Flags{RequestHeaderTagged: true, ResponseHeaderTagged: true},
		NewRequest:  func() Request { return &DeleteTopicsRequest{} },
		NewResponse: func() Response { return &DeleteTopicsResponse{} },
	})
	Register(&Entry{
		APIKey:      APIKeyDescribeConfigs,
		APIVersion:  4,
		Encoding:    protocol.Compact,
		Flags:       Flags{RequestHeaderTagged: true, ResponseHeaderTagged: true},
		NewRequest:  func() Request { return &DescribeConfigsRequest{} },
		NewResponse: func() Response { return &DescribeConfigsResponse{} },
	})
}

type CreateTopicAssignment struct {
	PartitionIndex int32
	BrokerIDs      []int32
}

type CreateTopicConfig struct {
	Name  string
	Value *string
}

type CreateTopicRequestData struct {
	Name              string
	NumPartitions     int32
	ReplicationFactor int16
	Assignments       []CreateTopicAssignment
	Configs           []CreateTopicConfig
}

type CreateTopicsRequest struct {
	Topics       []CreateTopicRequestData
	TimeoutMs    int32
	ValidateOnly bool
}

func (req *CreateTopicsRequest) Encode(w *protocol.Writer, enc protocol.Encoding) {
	protocol.WriteArray(w, len(req.Topics), enc, true, func(w *protocol.Writer, i int) {
		t := req.Topics[i]
		w.WriteStringValue(t.Name, enc)
		w.WriteInt32(t.NumPartitions)
		w.WriteInt16(t.ReplicationFactor)
		protocol.WriteArray(w, len(t.Assignments), enc, true, func(w *protocol.Writer, j int) {
			a := t.Assignments[j]
			w.WriteInt32(a.PartitionIndex)
			protocol.WriteArray(w, len(a.BrokerIDs), enc, false, func(w *protocol.Writer, k int) {
				w.WriteInt32(a.BrokerIDs[k])
			})
		})
		protocol.WriteArray(w, len(t.Configs), enc, true, func(w *protocol.Writer, j int) {
			c := t.Configs[j]
			w.WriteStringValue(c.Name, enc)
			w.WriteString(c.Value, enc)
		})
	})
	w.WriteInt32(req.TimeoutMs)
	w.WriteBool(req.ValidateOnly)
	w.WriteTaggedFieldTrailer()
}

type CreateTopicResult struct {
	Name         string
	ErrorCode    int16
	ErrorMessage *string
}

type CreateTopicsResponse struct {
	ThrottleTimeMs int32
	Topics         []CreateTopicResult
}

func (resp *CreateTopicsResponse) Decode(r *protocol.Reader, enc protocol.Encoding) error {
	var err error
	if resp.ThrottleTimeMs, err = r.ReadInt32(); err != nil {
		return err
	}
	_, err = protocol.ReadArray(r, enc, true, func(r *protocol.Reader) error {
		var t CreateTopicResult
		name, e := r.ReadString(enc)
		if e != nil {
			return e
		}
		if name != nil {
			t.Name = *name
		}
		if t.ErrorCode, e = r.ReadInt16(); e != nil {
			return e
		}
		if t.ErrorMessage, e = r.ReadString(enc); e != nil {
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

type DeleteTopicsRequest struct {
	TopicNames []string
	TimeoutMs  int32
}

func (req *DeleteTopicsRequest) Encode(w *protocol.Writer, enc protocol.Encoding) {
	protocol.WriteArray(w, len(req.TopicNames), enc, true, func(w *protocol.Writer, i int) {
		w.WriteStringValue(req.TopicNames[i], enc)
	})
	w.WriteInt32(req.TimeoutMs)
	w.WriteTaggedFieldTrailer()
}

type DeleteTopicResult struct {
	Name         string
	ErrorCode    int16
	ErrorMessage *string
}

type DeleteTopicsResponse struct {
	ThrottleTimeMs int32
	Responses      []DeleteTopicResult
}

func (resp *DeleteTopicsResponse) Decode(r *protocol.Reader, enc protocol.Encoding) error {
	var err error
	if resp.ThrottleTimeMs, err = r.ReadInt32(); err != nil {
		return err
	}
	_, err = protocol.ReadArray(r, enc, true, func(r *protocol.Reader) error {
		var t DeleteTopicResult
		name, e := r.ReadString(enc)
		if e != nil {
			return e
		}
		if name != nil {
			t.Name = *name
		}
		if t.ErrorCode, e = r.ReadInt16(); e != nil {
			return e
		}
		if t.ErrorMessage, e = r.ReadString(enc); e != nil {
			return e
		}
		resp.Responses = append(resp.Responses, t)
		return nil
	})
	if err != nil {
		return err
	}
	return r.ReadTaggedFieldTrailer()
}

// DescribeConfigResource identifies the resource (topic=2, broker=4) whose
// configuration is being described.
const (
	ResourceTypeTopic  int8 = 2
	ResourceTypeBroker int8 = 4
)

type DescribeConfigsResource struct {
	ResourceType int8
	ResourceName string
	ConfigNames  []string
}

type DescribeConfigsRequest struct {
	Resources            []DescribeConfigsResource
	IncludeSynonyms      bool
	IncludeDocumentation bool
}

func (req *DescribeConfigsRequest) Encode(w *protocol.Writer, enc protocol.Encoding) {
	protocol.WriteArray(w, len(req.Resources), enc, true, func(w *protocol.Writer, i int) {
		r := req.Resources[i]
		w.WriteInt8(r.ResourceType)
		w.WriteStringValue(r.ResourceName, enc)
		if r.ConfigNames == nil {
			w.WriteArrayLength(-1, enc)
		} else {
			protocol.WriteArray(w, len(r.ConfigNames), enc, false, func(w *protocol.Writer, j int) {
				w.WriteStringValue(r.ConfigNames[j], enc)
			})
		}
	})
	w.WriteBool(req.IncludeSynonyms)
	w.WriteBool(req.IncludeDocumentation)
	w.WriteTaggedFieldTrailer()
}

type DescribeConfigsEntry struct {
	Name         string
	Value        *string
	ReadOnly     bool
	IsDefault    bool
	Sensitive    bool
}

type DescribeConfigsResult struct {
	ErrorCode    int16
	ErrorMessage *string
	ResourceType int8
	ResourceName string
	Configs      []DescribeConfigsEntry
}

type DescribeConfigsResponse struct {
	ThrottleTimeMs int32
	Results        []DescribeConfigsResult
}

func (resp *DescribeConfigsResponse) Decode(r *protocol.Reader, enc protocol.Encoding) error {
	var err error
	if resp.ThrottleTimeMs, err = r.ReadInt32(); err != nil {
		return err
	}
	_, err = protocol.ReadArray(r, enc, true, func(r *protocol.Reader) error {
		var res DescribeConfigsResult
		var e error
		if res.ErrorCode, e = r.ReadInt16(); e != nil {
			return e
		}
		if res.ErrorMessage, e = r.ReadString(enc); e != nil {
			return e
		}
		if res.ResourceType, e = r.ReadInt8(); e != nil {
			return e
		}
		name, e := r.ReadString(enc)
		if e != nil {
			return e
		}
		if name != nil {
			res.ResourceName = *name
		}
		if _, e = protocol.ReadArray(r, enc, true, func(r *protocol.Reader) error {
			var c DescribeConfigsEntry
			var e error
			name, e := r.ReadString(enc)
			if e != nil {
				return e
			}
			if name != nil {
				c.Name = *name
			}
			if c.Value, e = r.ReadString(enc); e != nil {
				return e
			}
			if c.ReadOnly, e = r.ReadBool(); e != nil {
				return e
			}
			if c.IsDefault, e = r.ReadBool(); e != nil {
				return e
			}
			if c.Sensitive, e = r.ReadBool(); e != nil {
				return e
			}
			res.Configs = append(res.Configs, c)
			return nil
		}); e != nil {
			return e
		}
		resp.Results = append(resp.Results, res)
		return nil
	})
	if err != nil {
		return err
	}
	return r.ReadTaggedFieldTrailer()
}
