package protocol

import (
	"encoding/binary"
	"math"

	"github.com/kafkaclient/kafka/kerrors"
)

// Encoding selects compact (unsigned-varint-length) versus legacy
// (fixed-width-length) framing for a string, byte array, or array/map
// length prefix.
type Encoding int

const (
	Compact Encoding = iota
	Legacy
)

// Reader is a typed cursor over a byte slice holding big-endian integers.
// Every Read* method advances the cursor; every Peek* method does not.
type Reader struct {
	buf []byte
	pos int
}

func NewReader(buf []byte) *Reader {
	return &Reader{buf: buf}
}

// Len returns the number of unread bytes remaining.
func (r *Reader) Len() int { return len(r.buf) - r.pos }

// Bytes returns the remaining unread bytes without consuming them.
func (r *Reader) Bytes() []byte { return r.buf[r.pos:] }

func (r *Reader) require(n int) error {
	if r.Len() < n {
		return kerrors.Malformed("need %d bytes, have %d", n, r.Len())
	}
	return nil
}

func (r *Reader) ReadInt8() (int8, error) {
	if err := r.require(1); err != nil {
		return 0, err
	}
	v := int8(r.buf[r.pos])
	r.pos++
	return v, nil
}

func (r *Reader) ReadUint8() (uint8, error) {
	v, err := r.ReadInt8()
	return uint8(v), err
}

func (r *Reader) ReadBool() (bool, error) {
	v, err := r.ReadInt8()
	return v != 0, err
}

func (r *Reader) ReadInt16() (int16, error) {
	if err := r.require(2); err != nil {
		return 0, err
	}
	v := int16(binary.BigEndian.Uint16(r.buf[r.pos:]))
	r.pos += 2
	return v, nil
}

func (r *Reader) ReadUint16() (uint16, error) {
	v, err := r.ReadInt16()
	return uint16(v), err
}

func (r *Reader) ReadInt32() (int32, error) {
	if err := r.require(4); err != nil {
		return 0, err
	}
	v := int32(binary.BigEndian.Uint32(r.buf[r.pos:]))
	r.pos += 4
	return v, nil
}

func (r *Reader) ReadUint32() (uint32, error) {
	v, err := r.ReadInt32()
	return uint32(v), err
}

func (r *Reader) ReadInt64() (int64, error) {
	if err := r.require(8); err != nil {
		return 0, err
	}
	v := int64(binary.BigEndian.Uint64(r.buf[r.pos:]))
	r.pos += 8
	return v, nil
}

func (r *Reader) ReadUint64() (uint64, error) {
	v, err := r.ReadInt64()
	return uint64(v), err
}

func (r *Reader) ReadFloat64() (float64, error) {
	v, err := r.ReadInt64()
	return math.Float64frombits(uint64(v)), err
}

// PeekInt8 reads without advancing the cursor.
func (r *Reader) PeekInt8() (int8, error) {
	if err := r.require(1); err != nil {
		return 0, err
	}
	return int8(r.buf[r.pos]), nil
}

func (r *Reader) ReadUUID() (UUID, error) {
	if err := r.require(16); err != nil {
		return UUID{}, err
	}
	var u UUID
	copy(u[:], r.buf[r.pos:r.pos+16])
	r.pos += 16
	return u, nil
}

func (r *Reader) ReadVarInt() (int32, error) {
	u, err := r.ReadUnsignedVarInt()
	if err != nil {
		return 0, err
	}
	return unZigZag32(u), nil
}

func (r *Reader) ReadVarInt64() (int64, error) {
	u, err := r.ReadUnsignedVarInt64()
	if err != nil {
		return 0, err
	}
	return unZigZag64(u), nil
}

func (r *Reader) ReadUnsignedVarInt() (uint32, error) {
	v, n, err := readUnsignedVarint(r.buf, r.pos, maxVarintLen32)
	if err != nil {
		return 0, err
	}
	r.pos += n
	return uint32(v), nil
}

func (r *Reader) ReadUnsignedVarInt64() (uint64, error) {
	v, n, err := readUnsignedVarint(r.buf, r.pos, maxVarintLen64)
	if err != nil {
		return 0, err
	}
	r.pos += n
	return v, nil
}

// ReadString reads a string using enc. Compact: length = unsignedVarInt-1,
// 0 means null (returned as nil). Legacy: length = int16, -1 means null.
func (r *Reader) ReadString(enc Encoding) (*string, error) {
	b, err := r.readLengthPrefixed(enc, true)
	if err != nil || b == nil {
		return nil, err
	}
	s := string(b)
	return &s, nil
}

// ReadBytes reads a byte slice using enc. Compact: unsignedVarInt-1, 0 is
// null. Legacy: int32 length, -1 is null.
func (r *Reader) ReadBytes(enc Encoding) ([]byte, error) {
	return r.readLengthPrefixed(enc, false)
}

// ReadVarIntBytes reads a byte slice whose length is a non-negative signed
// varint (used for v2 record key/value/header fields).
func (r *Reader) ReadVarIntBytes() ([]byte, error) {
	n, err := r.ReadVarInt()
	if err != nil {
		return nil, err
	}
	if n < 0 {
		return nil, nil
	}
	if err := r.require(int(n)); err != nil {
		return nil, err
	}
	b := r.buf[r.pos : r.pos+int(n)]
	r.pos += int(n)
	return b, nil
}

func (r *Reader) readLengthPrefixed(enc Encoding, isString bool) ([]byte, error) {
	var n int
	switch enc {
	case Compact:
		uv, err := r.ReadUnsignedVarInt()
		if err != nil {
			return nil, err
		}
		if uv == 0 {
			return nil, nil
		}
		n = int(uv) - 1
	case Legacy:
		if isString {
			v, err := r.ReadInt16()
			if err != nil {
				return nil, err
			}
			if v < 0 {
				return nil, nil
			}
			n = int(v)
		} else {
			v, err := r.ReadInt32()
			if err != nil {
				return nil, err
			}
			if v < 0 {
				return nil, nil
			}
			n = int(v)
		}
	}
	if n < 0 {
		return nil, kerrors.Malformed("negative length %d", n)
	}
	if err := r.require(n); err != nil {
		return nil, err
	}
	b := r.buf[r.pos : r.pos+n]
	r.pos += n
	if n == 0 {
		return []byte{}, nil
	}
	return b, nil
}

// ReadArrayLength reads an array/map length prefix for enc. Compact arrays
// use unsignedVarInt-1 (0 == null, represented as -1); legacy arrays use a
// plain int32 (-1 == null).
func (r *Reader) ReadArrayLength(enc Encoding) (int, error) {
	if enc == Compact {
		uv, err := r.ReadUnsignedVarInt()
		if err != nil {
			return 0, err
		}
		if uv == 0 {
			return -1, nil
		}
		return int(uv) - 1, nil
	}
	v, err := r.ReadInt32()
	if err != nil {
		return 0, err
	}
	return int(v), nil
}

// ReadArray reads a length-prefixed array, invoking elem once per entry with
// a Reader scoped to the remaining buffer (per spec.md §9, inner elements
// must use this element-scoped reader, not a captured outer reader).
func ReadArray(r *Reader, enc Encoding, withTags bool, elem func(r *Reader) error) (int, error) {
	n, err := r.ReadArrayLength(enc)
	if err != nil {
		return 0, err
	}
	if n < 0 {
		return 0, nil
	}
	for i := 0; i < n; i++ {
		if err := elem(r); err != nil {
			return i, err
		}
		if withTags {
			if err := r.ReadTaggedFieldTrailer(); err != nil {
				return i, err
			}
		}
	}
	return n, nil
}

// ReadTaggedFieldTrailer reads the tagged-field count. A non-zero count is
// UnsupportedFeature per spec.md §4.2 — this client does not implement
// skip-by-length-and-tag-id traversal.
func (r *Reader) ReadTaggedFieldTrailer() error {
	n, err := r.ReadUnsignedVarInt()
	if err != nil {
		return err
	}
	if n != 0 {
		return kerrors.Unsupported("tagged fields are not supported (count=%d)", n)
	}
	return nil
}
