package protocol

import "github.com/google/uuid"

// UUID is the 16 raw bytes of a protocol UUID field, rendered with standard
// hyphenation on String(). Adapted from the host application's own uuid
// package (which wraps github.com/google/uuid for its string-keyed UUID
// type) down to the fixed-size array the wire format actually carries.
type UUID [16]byte

var Nil UUID

func NewUUID() UUID {
	return UUID(uuid.New())
}

func ParseUUID(s string) (UUID, error) {
	u, err := uuid.Parse(s)
	if err != nil {
		return Nil, err
	}
	return UUID(u), nil
}

func (u UUID) String() string {
	return uuid.UUID(u).String()
}

func (u UUID) IsNil() bool {
	return u == Nil
}
