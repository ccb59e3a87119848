package protocol

import (
	"encoding/binary"
	"math"
)

// Writer is a growable big-endian byte buffer. It supports Prepend so that
// request framing can build the body first and prefix the total length
// afterward (spec.md §9's "growable buffer with prepend" design note); this
// implementation takes the two-phase-build option (reserve nothing, build
// the body, then prepend the header bytes once at the end) rather than a
// chunk list, since requests are built once and never partially flushed.
type Writer struct {
	buf []byte
}

func NewWriter() *Writer {
	return &Writer{}
}

func NewWriterSize(n int) *Writer {
	return &Writer{buf: make([]byte, 0, n)}
}

func (w *Writer) Bytes() []byte { return w.buf }

func (w *Writer) Len() int { return len(w.buf) }

// Prepend inserts b at the front of the buffer. O(n) in the current buffer
// size; requests are framed once so this runs a small, bounded number of
// times per request rather than per field.
func (w *Writer) Prepend(b []byte) {
	w.buf = append(b[:len(b):len(b)], w.buf...)
}

// PrependLengthInt32 prepends a big-endian int32 holding the buffer's
// current length — the request/response size frame of spec.md §4.4.
func (w *Writer) PrependLengthInt32() {
	var hdr [4]byte
	binary.BigEndian.PutUint32(hdr[:], uint32(len(w.buf)))
	w.Prepend(hdr[:])
}

func (w *Writer) WriteInt8(v int8) {
	w.buf = append(w.buf, byte(v))
}

func (w *Writer) WriteUint8(v uint8) { w.WriteInt8(int8(v)) }

func (w *Writer) WriteBool(v bool) {
	if v {
		w.WriteInt8(1)
	} else {
		w.WriteInt8(0)
	}
}

func (w *Writer) WriteInt16(v int16) {
	var b [2]byte
	binary.BigEndian.PutUint16(b[:], uint16(v))
	w.buf = append(w.buf, b[:]...)
}

func (w *Writer) WriteUint16(v uint16) { w.WriteInt16(int16(v)) }

func (w *Writer) WriteInt32(v int32) {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], uint32(v))
	w.buf = append(w.buf, b[:]...)
}

func (w *Writer) WriteUint32(v uint32) { w.WriteInt32(int32(v)) }

func (w *Writer) WriteInt64(v int64) {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], uint64(v))
	w.buf = append(w.buf, b[:]...)
}

func (w *Writer) WriteUint64(v uint64) { w.WriteInt64(int64(v)) }

func (w *Writer) WriteFloat64(v float64) {
	w.WriteInt64(int64(math.Float64bits(v)))
}

func (w *Writer) WriteUUID(u UUID) {
	w.buf = append(w.buf, u[:]...)
}

func (w *Writer) WriteVarInt(v int32) {
	w.buf = appendUnsignedVarint(w.buf, uint64(zigZag32(v)))
}

func (w *Writer) WriteVarInt64(v int64) {
	w.buf = appendUnsignedVarint(w.buf, zigZag64(v))
}

func (w *Writer) WriteUnsignedVarInt(v uint32) {
	w.buf = appendUnsignedVarint(w.buf, uint64(v))
}

func (w *Writer) WriteUnsignedVarInt64(v uint64) {
	w.buf = appendUnsignedVarint(w.buf, v)
}

// WriteString writes s using enc. A nil s writes the encoding's null
// representation.
func (w *Writer) WriteString(s *string, enc Encoding) {
	if s == nil {
		w.writeNullLength(enc, true)
		return
	}
	w.writeLengthPrefixed([]byte(*s), enc, true)
}

// WriteStringValue writes a non-nullable string (convenience over
// WriteString for the common case).
func (w *Writer) WriteStringValue(s string, enc Encoding) {
	w.writeLengthPrefixed([]byte(s), enc, true)
}

func (w *Writer) WriteBytes(b []byte, enc Encoding) {
	if b == nil {
		w.writeNullLength(enc, false)
		return
	}
	w.writeLengthPrefixed(b, enc, false)
}

// WriteRaw appends b verbatim with no length prefix, for callers that have
// already framed a sub-buffer themselves (e.g. a compressed record batch
// payload).
func (w *Writer) WriteRaw(b []byte) {
	w.buf = append(w.buf, b...)
}

func (w *Writer) WriteVarIntBytes(b []byte) {
	if b == nil {
		w.WriteVarInt(-1)
		return
	}
	w.WriteVarInt(int32(len(b)))
	w.buf = append(w.buf, b...)
}

func (w *Writer) writeNullLength(enc Encoding, isString bool) {
	switch enc {
	case Compact:
		w.WriteUnsignedVarInt(0)
	case Legacy:
		if isString {
			w.WriteInt16(-1)
		} else {
			w.WriteInt32(-1)
		}
	}
}

func (w *Writer) writeLengthPrefixed(b []byte, enc Encoding, isString bool) {
	switch enc {
	case Compact:
		w.WriteUnsignedVarInt(uint32(len(b)) + 1)
	case Legacy:
		if isString {
			w.WriteInt16(int16(len(b)))
		} else {
			w.WriteInt32(int32(len(b)))
		}
	}
	w.buf = append(w.buf, b...)
}

// WriteArrayLength writes an array/map length prefix. n == -1 writes the
// encoding's null representation.
func (w *Writer) WriteArrayLength(n int, enc Encoding) {
	if enc == Compact {
		if n < 0 {
			w.WriteUnsignedVarInt(0)
		} else {
			w.WriteUnsignedVarInt(uint32(n) + 1)
		}
		return
	}
	w.WriteInt32(int32(n))
}

// WriteArray writes a length-prefixed array, invoking elem once per index.
func WriteArray(w *Writer, n int, enc Encoding, withTags bool, elem func(w *Writer, i int)) {
	w.WriteArrayLength(n, enc)
	for i := 0; i < n; i++ {
		elem(w, i)
		if withTags {
			w.WriteTaggedFieldTrailer()
		}
	}
}

// WriteTaggedFieldTrailer writes the zero-count tagged-field trailer; this
// client never emits non-empty tagged-field sets.
func (w *Writer) WriteTaggedFieldTrailer() {
	w.WriteUnsignedVarInt(0)
}

func (w *Writer) SizeOfVarInt(v int32) int   { return sizeOfVarint32(v) }
func (w *Writer) SizeOfVarInt64(v int64) int { return sizeOfVarint64(v) }
