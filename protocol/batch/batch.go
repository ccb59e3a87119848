// Package batch implements the v2 record-batch codec: encode/decode,
// CRC-32C validation, and pluggable compression (spec.md §3/§4.3).
package batch

import (
	"github.com/kafkaclient/kafka/kerrors"
	"github.com/kafkaclient/kafka/protocol"
)

const magic = int8(2)

// attribute bit positions within the 16-bit attributes field, beyond the
// 3 compression bits (see compression.go's compressionMask).
const (
	attrTransactional = 1 << 4
	attrControl       = 1 << 5
)

// Header holds a single record header key/value pair.
type Header struct {
	Key   string
	Value []byte
}

// Record is one v2 record inside a Batch.
type Record struct {
	Attributes     int8
	TimestampDelta int64
	OffsetDelta    int32
	Key            []byte
	Value          []byte
	Headers        []Header

	// Timestamp and Offset are populated on decode as
	// Batch.FirstTimestamp+TimestampDelta and Batch.FirstOffset+OffsetDelta;
	// they are ignored on encode (recomputed from the deltas).
	Timestamp int64
	Offset    int64
}

// Batch is a v2 record batch, the on-wire unit of production/consumption.
type Batch struct {
	FirstOffset          int64
	PartitionLeaderEpoch int32
	Attributes           int16
	LastOffsetDelta      int32
	FirstTimestamp       int64
	MaxTimestamp         int64
	ProducerID           int64
	ProducerEpoch        int16
	FirstSequence        int32
	Records              []Record
}

func (b *Batch) Compression() Compression {
	c, err := CompressionOf(b.Attributes)
	if err != nil {
		return CompressionNone
	}
	return c
}

func (b *Batch) IsTransactional() bool { return b.Attributes&attrTransactional != 0 }
func (b *Batch) IsControl() bool       { return b.Attributes&attrControl != 0 }

// Encode lays out the batch, compresses the records section under c,
// stamps the compression bits into attributes, computes the CRC-32C over
// bytes from attributes onward, and writes the final length (spec.md §4.3,
// "length self-consistency" invariant: length == totalBytes-12).
func Encode(b *Batch, c Compression) ([]byte, error) {
	recordsBuf := protocol.NewWriter()
	for i := range b.Records {
		encodeRecord(recordsBuf, &b.Records[i])
	}

	compressed, err := Compress(c, recordsBuf.Bytes())
	if err != nil {
		return nil, err
	}

	lastOffsetDelta := b.LastOffsetDelta
	if lastOffsetDelta == 0 && len(b.Records) > 0 {
		lastOffsetDelta = int32(len(b.Records) - 1)
	}

	// body is everything after the firstOffset+length frame header, i.e.
	// what length itself measures.
	body := protocol.NewWriter()
	body.WriteInt32(b.PartitionLeaderEpoch)
	body.WriteInt8(magic)
	crcAt := body.Len()
	body.WriteUint32(0) // crc placeholder, patched below
	attributes := withCompression(b.Attributes, c)
	body.WriteInt16(attributes)
	body.WriteInt32(lastOffsetDelta)
	body.WriteInt64(b.FirstTimestamp)
	body.WriteInt64(b.MaxTimestamp)
	body.WriteInt64(b.ProducerID)
	body.WriteInt16(b.ProducerEpoch)
	body.WriteInt32(b.FirstSequence)
	body.WriteInt32(int32(len(b.Records)))
	body.WriteRaw(compressed)

	raw := body.Bytes()
	crc := crc32c(raw[crcAt+4:])
	patchUint32(raw, crcAt, crc)

	out := protocol.NewWriter()
	out.WriteInt64(b.FirstOffset)
	out.WriteInt32(int32(len(raw)))
	out.WriteRaw(raw)
	return out.Bytes(), nil
}

func patchUint32(buf []byte, at int, v uint32) {
	buf[at] = byte(v >> 24)
	buf[at+1] = byte(v >> 16)
	buf[at+2] = byte(v >> 8)
	buf[at+3] = byte(v)
}

func encodeRecord(w *protocol.Writer, r *Record) {
	body := protocol.NewWriter()
	body.WriteInt8(r.Attributes)
	body.WriteVarInt64(r.TimestampDelta)
	body.WriteVarInt(r.OffsetDelta)
	body.WriteVarIntBytes(r.Key)
	body.WriteVarIntBytes(r.Value)
	body.WriteVarInt(int32(len(r.Headers)))
	for _, h := range r.Headers {
		body.WriteVarIntBytes([]byte(h.Key))
		body.WriteVarIntBytes(h.Value)
	}

	w.WriteVarInt(int32(body.Len()))
	w.WriteRaw(body.Bytes())
}

// Decode reads one batch starting at the beginning of buf (the firstOffset
// field), returning the batch and the number of bytes consumed.
func Decode(buf []byte, verifyCRC bool) (*Batch, int, error) {
	r := protocol.NewReader(buf)
	firstOffset, err := r.ReadInt64()
	if err != nil {
		return nil, 0, err
	}
	length, err := r.ReadInt32()
	if err != nil {
		return nil, 0, err
	}
	if length < 0 || r.Len() < int(length) {
		return nil, 0, kerrors.Malformed("batch length %d exceeds remaining %d bytes", length, r.Len())
	}
	bodyStart := len(buf) - r.Len()
	body := buf[bodyStart : bodyStart+int(length)]
	consumed := bodyStart + int(length)

	br := protocol.NewReader(body)
	partitionLeaderEpoch, err := br.ReadInt32()
	if err != nil {
		return nil, 0, err
	}
	magicByte, err := br.ReadInt8()
	if err != nil {
		return nil, 0, err
	}
	if magicByte != magic {
		return nil, 0, kerrors.Malformed("unsupported record batch magic %d", magicByte)
	}
	crcStart := len(body) - br.Len()
	storedCRC, err := br.ReadUint32()
	if err != nil {
		return nil, 0, err
	}
	if verifyCRC {
		computed := crc32c(body[crcStart+4:])
		if computed != storedCRC {
			return nil, 0, kerrors.Malformed("crc mismatch")
		}
	}
	attributes, err := br.ReadInt16()
	if err != nil {
		return nil, 0, err
	}
	lastOffsetDelta, err := br.ReadInt32()
	if err != nil {
		return nil, 0, err
	}
	firstTimestamp, err := br.ReadInt64()
	if err != nil {
		return nil, 0, err
	}
	maxTimestamp, err := br.ReadInt64()
	if err != nil {
		return nil, 0, err
	}
	producerID, err := br.ReadInt64()
	if err != nil {
		return nil, 0, err
	}
	producerEpoch, err := br.ReadInt16()
	if err != nil {
		return nil, 0, err
	}
	firstSequence, err := br.ReadInt32()
	if err != nil {
		return nil, 0, err
	}
	recordCount, err := br.ReadInt32()
	if err != nil {
		return nil, 0, err
	}
	if recordCount < 0 {
		return nil, 0, kerrors.Malformed("negative record count %d", recordCount)
	}

	compression, err := CompressionOf(attributes)
	if err != nil {
		return nil, 0, err
	}
	recordsPayload, err := Decompress(compression, br.Bytes())
	if err != nil {
		return nil, 0, err
	}

	b := &Batch{
		FirstOffset:          firstOffset,
		PartitionLeaderEpoch: partitionLeaderEpoch,
		Attributes:           attributes,
		LastOffsetDelta:      lastOffsetDelta,
		FirstTimestamp:       firstTimestamp,
		MaxTimestamp:         maxTimestamp,
		ProducerID:           producerID,
		ProducerEpoch:        producerEpoch,
		FirstSequence:        firstSequence,
	}

	rr := protocol.NewReader(recordsPayload)
	for i := int32(0); i < recordCount; i++ {
		rec, err := decodeRecord(rr)
		if err != nil {
			return nil, 0, err
		}
		rec.Timestamp = firstTimestamp + rec.TimestampDelta
		rec.Offset = firstOffset + int64(rec.OffsetDelta)
		b.Records = append(b.Records, *rec)
	}
	if rr.Len() != 0 {
		return nil, 0, kerrors.Malformed("record count %d did not consume entire records payload", recordCount)
	}

	return b, consumed, nil
}

func decodeRecord(r *protocol.Reader) (*Record, error) {
	length, err := r.ReadVarInt()
	if err != nil {
		return nil, err
	}
	if length < 0 {
		return nil, kerrors.Malformed("negative record length %d", length)
	}
	start := r.Len()
	rec := &Record{}
	rec.Attributes, err = r.ReadInt8()
	if err != nil {
		return nil, err
	}
	rec.TimestampDelta, err = r.ReadVarInt64()
	if err != nil {
		return nil, err
	}
	rec.OffsetDelta, err = r.ReadVarInt()
	if err != nil {
		return nil, err
	}
	rec.Key, err = r.ReadVarIntBytes()
	if err != nil {
		return nil, err
	}
	rec.Value, err = r.ReadVarIntBytes()
	if err != nil {
		return nil, err
	}
	headerCount, err := r.ReadVarInt()
	if err != nil {
		return nil, err
	}
	if headerCount < 0 {
		return nil, kerrors.Malformed("negative header count %d", headerCount)
	}
	for i := int32(0); i < headerCount; i++ {
		keyBytes, err := r.ReadVarIntBytes()
		if err != nil {
			return nil, err
		}
		val, err := r.ReadVarIntBytes()
		if err != nil {
			return nil, err
		}
		rec.Headers = append(rec.Headers, Header{Key: string(keyBytes), Value: val})
	}
	consumed := start - r.Len()
	if consumed != int(length) {
		return nil, kerrors.Malformed("record length %d does not match decoded size %d", length, consumed)
	}
	return rec, nil
}
