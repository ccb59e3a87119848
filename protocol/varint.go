// Package protocol implements the typed, big-endian wire codec: fixed-width
// integers, zig-zag varints, compact and legacy length-prefixed strings and
// byte arrays, UUIDs, and the tagged-field trailer. It has no knowledge of
// any particular broker API — protocol/registry builds request/response
// schemas on top of the Reader and Writer defined here.
package protocol

import "github.com/kafkaclient/kafka/kerrors"

const (
	maxVarintLen32 = 5
	maxVarintLen64 = 10
)

// zigZag32 maps a signed int32 to an unsigned value so that small magnitude
// numbers (positive or negative) encode in few bytes.
func zigZag32(n int32) uint32 {
	return uint32((n << 1) ^ (n >> 31))
}

func unZigZag32(n uint32) int32 {
	return int32(n>>1) ^ -int32(n&1)
}

func zigZag64(n int64) uint64 {
	return uint64((n << 1) ^ (n >> 63))
}

func unZigZag64(n uint64) int64 {
	return int64(n>>1) ^ -int64(n&1)
}

// sizeOfUnsignedVarint returns the exact number of bytes encode would
// produce for v, without allocating.
func sizeOfUnsignedVarint(v uint64) int {
	n := 1
	for v >= 0x80 {
		v >>= 7
		n++
	}
	return n
}

func sizeOfVarint32(v int32) int {
	return sizeOfUnsignedVarint(uint64(zigZag32(v)))
}

func sizeOfVarint64(v int64) int {
	return sizeOfUnsignedVarint(zigZag64(v))
}

func appendUnsignedVarint(buf []byte, v uint64) []byte {
	for v >= 0x80 {
		buf = append(buf, byte(v)|0x80)
		v >>= 7
	}
	return append(buf, byte(v))
}

// readUnsignedVarint reads an unsigned LEB128 varint from buf[pos:],
// returning the decoded value, the number of bytes consumed, and an error
// if the buffer underflows or the continuation bit runs past maxBytes.
func readUnsignedVarint(buf []byte, pos int, maxBytes int) (uint64, int, error) {
	var result uint64
	var shift uint
	for i := 0; ; i++ {
		if i == maxBytes {
			return 0, 0, kerrors.Malformed("varint continuation exceeds %d bytes", maxBytes)
		}
		if pos+i >= len(buf) {
			return 0, 0, kerrors.Malformed("buffer underflow reading varint")
		}
		b := buf[pos+i]
		result |= uint64(b&0x7f) << shift
		if b&0x80 == 0 {
			return result, i + 1, nil
		}
		shift += 7
	}
}
