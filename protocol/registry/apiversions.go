package registry

import "github.com/kafkaclient/kafka/protocol"

func init() {
	Register(&Entry{
		APIKey:     APIKeyApiVersions,
		APIVersion: 3,
		Encoding:   protocol.Compact,
		// ApiVersions bootstraps version discovery, so it is framed without
		// either tagged-field trailer regardless of what the connection
		// eventually negotiates (spec.md §4.4).
		Flags:       Flags{RequestHeaderTagged: false, ResponseHeaderTagged: false},
		NewRequest:  func() Request { return &ApiVersionsRequest{} },
		NewResponse: func() Response { return &ApiVersionsResponse{} },
	})
}

type ApiVersionsRequest struct {
	ClientSoftwareName    string
	ClientSoftwareVersion string
}

func (req *ApiVersionsRequest) Encode(w *protocol.Writer, enc protocol.Encoding) {
	w.WriteStringValue(req.ClientSoftwareName, enc)
	w.WriteStringValue(req.ClientSoftwareVersion, enc)
	w.WriteTaggedFieldTrailer()
}

type ApiVersionRange struct {
	APIKey     int16
	MinVersion int16
	MaxVersion int16
}

type ApiVersionsResponse struct {
	ErrorCode      int16
	APIVersions    []ApiVersionRange
	ThrottleTimeMs int32
}

func (resp *ApiVersionsResponse) Decode(r *protocol.Reader, enc protocol.Encoding) error {
	var err error
	if resp.ErrorCode, err = r.ReadInt16(); err != nil {
		return err
	}
	_, err = protocol.ReadArray(r, enc, true, func(r *protocol.Reader) error {
		var v ApiVersionRange
		var e error
		if v.APIKey, e = r.ReadInt16(); e != nil {
			return e
		}
		if v.MinVersion, e = r.ReadInt16(); e != nil {
			return e
		}
		if v.MaxVersion, e = r.ReadInt16(); e != nil {
			return e
		}
		resp.APIVersions = append(resp.APIVersions, v)
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
