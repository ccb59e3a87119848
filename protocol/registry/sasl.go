package registry

import "github.com/kafkaclient/kafka/protocol"

func init() {
	Register(&Entry{
		APIKey:      APIKeySaslHandshake,
		APIVersion:  1,
		Encoding:    protocol.Legacy,
		Flags:       Flags{RequestHeaderTagged: false, ResponseHeaderTagged: false},
		NewRequest:  func() Request { return &SaslHandshakeRequest{} },
		NewResponse: func() Response { return &SaslHandshakeResponse{} },
	})
	Register(&Entry{
		APIKey:      APIKeySaslAuthenticate,
		APIVersion:  2,
		Encoding:    protocol.Compact,
		Flags:       Flags{RequestHeaderTagged: true, ResponseHeaderTagged: true},
		NewRequest:  func() Request { return &SaslAuthenticateRequest{} },
		NewResponse: func() Response { return &SaslAuthenticateResponse{} },
	})
}

// SaslHandshake predates flexible versions on the wire (v0/v1 only), so it
// stays on legacy int16-length-prefixed strings even though every other
// entry in this registry negotiates compact encoding.
type SaslHandshakeRequest struct {
	Mechanism string
}

func (req *SaslHandshakeRequest) Encode(w *protocol.Writer, enc protocol.Encoding) {
	w.WriteStringValue(req.Mechanism, enc)
}

type SaslHandshakeResponse struct {
	ErrorCode         int16
	EnabledMechanisms []string
}

func (resp *SaslHandshakeResponse) Decode(r *protocol.Reader, enc protocol.Encoding) error {
	var err error
	if resp.ErrorCode, err = r.ReadInt16(); err != nil {
		return err
	}
	_, err = protocol.ReadArray(r, enc, false, func(r *protocol.Reader) error {
		s, e := r.ReadString(enc)
		if e != nil {
			return e
		}
		if s != nil {
			resp.EnabledMechanisms = append(resp.EnabledMechanisms, *s)
		}
		return nil
	})
	return err
}

type SaslAuthenticateRequest struct {
	AuthBytes []byte
}

func (req *SaslAuthenticateRequest) Encode(w *protocol.Writer, enc protocol.Encoding) {
	w.WriteBytes(req.AuthBytes, enc)
	w.WriteTaggedFieldTrailer()
}

type SaslAuthenticateResponse struct {
	ErrorCode        int16
	ErrorMessage     *string
	AuthBytes        []byte
	SessionLifetimeMs int64
}

func (resp *SaslAuthenticateResponse) Decode(r *protocol.Reader, enc protocol.Encoding) error {
	var err error
	if resp.ErrorCode, err = r.ReadInt16(); err != nil {
		return err
	}
	if resp.ErrorMessage, err = r.ReadString(enc); err != nil {
		return err
	}
	if resp.AuthBytes, err = r.ReadBytes(enc); err != nil {
		return err
	}
	if resp.SessionLifetimeMs, err = r.ReadInt64(); err != nil {
		return err
	}
	return r.ReadTaggedFieldTrailer()
}
