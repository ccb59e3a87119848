package registry

import "github.com/kafkaclient/kafka/protocol"

func init() {
	Register(&Entry{
		APIKey:      APIKeyFindCoordinator,
		APIVersion:  4,
		Encoding:    protocol.Compact,
		Flags:       Flags{RequestHeaderTagged: true, ResponseHeaderTagged: true},
		NewRequest:  func() Request { return &FindCoordinatorRequest{} },
		NewResponse: func() Response { return &FindCoordinatorResponse{} },
	})
	Register(&Entry{
		APIKey:      APIKeyInitProducerID,
		APIVersion:  4,
		Encoding:    protocol.Compact,
		Flags:       Flags{RequestHeaderTagged: true, ResponseHeaderTagged: true},
		NewRequest:  func() Request { return &InitProducerIDRequest{} },
		NewResponse: func() Response { return &InitProducerIDResponse{} },
	})
}

// CoordinatorKeyType selects between a consumer-group coordinator (0) and a
// transaction coordinator (1).
const (
	CoordinatorKeyGroup       int8 = 0
	CoordinatorKeyTransaction int8 = 1
)

type FindCoordinatorRequest struct {
	Key     string
	KeyType int8
}

func (req *FindCoordinatorRequest) Encode(w *protocol.Writer, enc protocol.Encoding) {
	w.WriteStringValue(req.Key, enc)
	w.WriteInt8(req.KeyType)
	w.WriteTaggedFieldTrailer()
}

type FindCoordinatorResponse struct {
	ThrottleTimeMs int32
	ErrorCode      int16
	ErrorMessage   *string
	NodeID         int32
	Host           string
	Port           int32
}

func (resp *FindCoordinatorResponse) Decode(r *protocol.Reader, enc protocol.Encoding) error {
	var err error
	if resp.ThrottleTimeMs, err = r.ReadInt32(); err != nil {
		return err
	}
	if resp.ErrorCode, err = r.ReadInt16(); err != nil {
		return err
	}
	if resp.ErrorMessage, err = r.ReadString(enc); err != nil {
		return err
	}
	if resp.NodeID, err = r.ReadInt32(); err != nil {
		return err
	}
	host, err := r.ReadString(enc)
	if err != nil {
		return err
	}
	if host != nil {
		resp.Host = *host
	}
	if resp.Port, err = r.ReadInt32(); err != nil {
		return err
	}
	return r.ReadTaggedFieldTrailer()
}

type InitProducerIDRequest struct {
	TransactionalID      *string
	TransactionTimeoutMs int32
	ProducerID           int64
	ProducerEpoch        int16
}

func (req *InitProducerIDRequest) Encode(w *protocol.Writer, enc protocol.Encoding) {
	w.WriteString(req.TransactionalID, enc)
	w.WriteInt32(req.TransactionTimeoutMs)
	w.WriteInt64(req.ProducerID)
	w.WriteInt16(req.ProducerEpoch)
	w.WriteTaggedFieldTrailer()
}

type InitProducerIDResponse struct {
	ThrottleTimeMs int32
	ErrorCode      int16
	ProducerID     int64
	ProducerEpoch  int16
}

func (resp *InitProducerIDResponse) Decode(r *protocol.Reader, enc protocol.Encoding) error {
	var err error
	if resp.ThrottleTimeMs, err = r.ReadInt32(); err != nil {
		return err
	}
	if resp.ErrorCode, err = r.ReadInt16(); err != nil {
		return err
	}
	if resp.ProducerID, err = r.ReadInt64(); err != nil {
		return err
	}
	if resp.ProducerEpoch, err = r.ReadInt16(); err != nil {
		return err
	}
	return r.ReadTaggedFieldTrailer()
}
