package registry

import "github.com/kafkaclient/kafka/protocol"

func init() {
	Register(&Entry{
		APIKey:      APIKeyJoinGroup,
		APIVersion:  9,
		Encoding:    protocol.Compact,
		Flags:       Flags{RequestHeaderTagged: true, ResponseHeaderTagged: true},
		NewRequest:  func() Request { return &JoinGroupRequest{} },
		NewResponse: func() Response { return &JoinGroupResponse{} },
	})
	Register(&Entry{
		APIKey:      APIKeySyncGroup,
		APIVersion:  5,
		Encoding:    protocol.Compact,
		Flags:       Flags{RequestHeaderTagged: true, ResponseHeaderTagged: true},
		NewRequest:  func() Request { return &SyncGroupRequest{} },
		NewResponse: func() Response { return &SyncGroupResponse{} },
	})
	Register(&Entry{
		APIKey:      APIKeyHeartbeat,
		APIVersion:  4,
		Encoding:    protocol.Compact,
		Flags:       Flags{RequestHeaderTagged: true, ResponseHeaderTagged: true},
		NewRequest:  func() Request { return &HeartbeatRequest{} },
		NewResponse: func() Response { return &HeartbeatResponse{} },
	})
	Register(&Entry{
		APIKey:      APIKeyLeaveGroup,
		APIVersion:  5,
		Encoding:    protocol.Compact,
		Flags:       Flags{RequestHeaderTagged: true, ResponseHeaderTagged: true},
		NewRequest:  func() Request { return &LeaveGroupRequest{} },
		NewResponse: func() Response { return &LeaveGroupResponse{} },
	})
}

// JoinGroupProtocol mirrors the vendored kafka-go joinGroupRequestGroupProtocolV2
// shape (ProtocolName + opaque ProtocolMetadata), generalized onto compact
// encoding.
type JoinGroupProtocol struct {
	Name     string
	Metadata []byte
}

type JoinGroupRequest struct {
	GroupID            string
	SessionTimeoutMs   int32
	RebalanceTimeoutMs int32
	MemberID           string
	GroupInstanceID    *string
	ProtocolType       string
	Protocols          []JoinGroupProtocol
}

func (req *JoinGroupRequest) Encode(w *protocol.Writer, enc protocol.Encoding) {
	w.WriteStringValue(req.GroupID, enc)
	w.WriteInt32(req.SessionTimeoutMs)
	w.WriteInt32(req.RebalanceTimeoutMs)
	w.WriteStringValue(req.MemberID, enc)
	w.WriteString(req.GroupInstanceID, enc)
	w.WriteStringValue(req.ProtocolType, enc)
	protocol.WriteArray(w, len(req.Protocols), enc, true, func(w *protocol.Writer, i int) {
		p := req.Protocols[i]
		w.WriteStringValue(p.Name, enc)
		w.WriteBytes(p.Metadata, enc)
	})
	w.WriteTaggedFieldTrailer()
}

// JoinGroupMember is the response's per-member entry. This is the nested
// array-of-struct-with-opaque-bytes shape spec.md §9 calls out: decoding
// Members must read each member through the Reader handed to its own
// element closure, never a reader captured from an enclosing scope, or a
// multi-member JoinGroup response silently corrupts past the first member.
type JoinGroupMember struct {
	MemberID        string
	GroupInstanceID *string
	Metadata        []byte
}

type JoinGroupResponse struct {
	ThrottleTimeMs int32
	ErrorCode      int16
	GenerationID   int32
	ProtocolType   *string
	ProtocolName   *string
	LeaderID       string
	MemberID       string
	Members        []JoinGroupMember
}

func (resp *JoinGroupResponse) Decode(r *protocol.Reader, enc protocol.Encoding) error {
	var err error
	if resp.ThrottleTimeMs, err = r.ReadInt32(); err != nil {
		return err
	}
	if resp.ErrorCode, err = r.ReadInt16(); err != nil {
		return err
	}
	if resp.GenerationID, err = r.ReadInt32(); err != nil {
		return err
	}
	if resp.ProtocolType, err = r.ReadString(enc); err != nil {
		return err
	}
	if resp.ProtocolName, err = r.ReadString(enc); err != nil {
		return err
	}
	leaderID, err := r.ReadString(enc)
	if err != nil {
		return err
	}
	if leaderID != nil {
		resp.LeaderID = *leaderID
	}
	memberID, err := r.ReadString(enc)
	if err != nil {
		return err
	}
	if memberID != nil {
		resp.MemberID = *memberID
	}
	_, err = protocol.ReadArray(r, enc, true, func(r *protocol.Reader) error {
		var m JoinGroupMember
		id, e := r.ReadString(enc)
		if e != nil {
			return e
		}
		if id != nil {
			m.MemberID = *id
		}
		if m.GroupInstanceID, e = r.ReadString(enc); e != nil {
			return e
		}
		if m.Metadata, e = r.ReadBytes(enc); e != nil {
			return e
		}
		resp.Members = append(resp.Members, m)
		return nil
	})
	if err != nil {
		return err
	}
	return r.ReadTaggedFieldTrailer()
}

type SyncGroupAssignment struct {
	MemberID   string
	Assignment []byte
}

type SyncGroupRequest struct {
	GroupID         string
	GenerationID    int32
	MemberID        string
	GroupInstanceID *string
	ProtocolType    *string
	ProtocolName    *string
	Assignments     []SyncGroupAssignment
}

func (req *SyncGroupRequest) Encode(w *protocol.Writer, enc protocol.Encoding) {
	w.WriteStringValue(req.GroupID, enc)
	w.WriteInt32(req.GenerationID)
	w.WriteStringValue(req.MemberID, enc)
	w.WriteString(req.GroupInstanceID, enc)
	w.WriteString(req.ProtocolType, enc)
	w.WriteString(req.ProtocolName, enc)
	protocol.WriteArray(w, len(req.Assignments), enc, true, func(w *protocol.Writer, i int) {
		a := req.Assignments[i]
		w.WriteStringValue(a.MemberID, enc)
		w.WriteBytes(a.Assignment, enc)
	})
	w.WriteTaggedFieldTrailer()
}

type SyncGroupResponse struct {
	ThrottleTimeMs int32
	ErrorCode      int16
	ProtocolType   *string
	ProtocolName   *string
	Assignment     []byte
}

func (resp *SyncGroupResponse) Decode(r *protocol.Reader, enc protocol.Encoding) error {
	var err error
	if resp.ThrottleTimeMs, err = r.ReadInt32(); err != nil {
		return err
	}
	if resp.ErrorCode, err = r.ReadInt16(); err != nil {
		return err
	}
	if resp.ProtocolType, err = r.ReadString(enc); err != nil {
		return err
	}
	if resp.ProtocolName, err = r.ReadString(enc); err != nil {
		return err
	}
	if resp.Assignment, err = r.ReadBytes(enc); err != nil {
		return err
	}
	return r.ReadTaggedFieldTrailer()
}

type HeartbeatRequest struct {
	GroupID         string
	GenerationID    int32
	MemberID        string
	GroupInstanceID *string
}

func (req *HeartbeatRequest) Encode(w *protocol.Writer, enc protocol.Encoding) {
	w.WriteStringValue(req.GroupID, enc)
	w.WriteInt32(req.GenerationID)
	w.WriteStringValue(req.MemberID, enc)
	w.WriteString(req.GroupInstanceID, enc)
	w.WriteTaggedFieldTrailer()
}

type HeartbeatResponse struct {
	ThrottleTimeMs int32
	ErrorCode      int16
}

func (resp *HeartbeatResponse) Decode(r *protocol.Reader, enc protocol.Encoding) error {
	var err error
	if resp.ThrottleTimeMs, err = r.ReadInt32(); err != nil {
		return err
	}
	if resp.ErrorCode, err = r.ReadInt16(); err != nil {
		return err
	}
	return r.ReadTaggedFieldTrailer()
}

type LeaveGroupMember struct {
	MemberID        string
	GroupInstanceID *string
}

type LeaveGroupRequest struct {
	GroupID string
	Members []LeaveGroupMember
}

func (req *LeaveGroupRequest) Encode(w *protocol.Writer, enc protocol.Encoding) {
	w.WriteStringValue(req.GroupID, enc)
	protocol.WriteArray(w, len(req.Members), enc, true, func(w *protocol.Writer, i int) {
		m := req.Members[i]
		w.WriteStringValue(m.MemberID, enc)
		w.WriteString(m.GroupInstanceID, enc)
	})
	w.WriteTaggedFieldTrailer()
}

type LeaveGroupMemberResponse struct {
	MemberID        string
	GroupInstanceID *string
	ErrorCode       int16
}

type LeaveGroupResponse struct {
	ThrottleTimeMs int32
	ErrorCode      int16
	Members        []LeaveGroupMemberResponse
}

func (resp *LeaveGroupResponse) Decode(r *protocol.Reader, enc protocol.Encoding) error {
	var err error
	if resp.ThrottleTimeMs, err = r.ReadInt32(); err != nil {
		return err
	}
	if resp.ErrorCode, err = r.ReadInt16(); err != nil {
		return err
	}
	_, err = protocol.ReadArray(r, enc, true, func(r *protocol.Reader) error {
		var m LeaveGroupMemberResponse
		id, e := r.ReadString(enc)
		if e != nil {
			return e
		}
		if id != nil {
			m.MemberID = *id
		}
		if m.GroupInstanceID, e = r.ReadString(enc); e != nil {
			return e
		}
		if m.ErrorCode, e = r.ReadInt16(); e != nil {
			return e
		}
		resp.Members = append(resp.Members, m)
		return nil
	})
	if err != nil {
		return err
	}
	return r.ReadTaggedFieldTrailer()
}
