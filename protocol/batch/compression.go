package batch

import (
	"bytes"
	"compress/gzip"
	"io"

	"github.com/eapache/go-xerial-snappy"
	"github.com/kafkaclient/kafka/kerrors"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// Compression identifies a record-batch compression codec by the 3 low
// bits of the batch attributes field (spec.md §4.3/§6).
type Compression int8

const (
	CompressionNone   Compression = 0
	CompressionGzip   Compression = 1
	CompressionSnappy Compression = 2
	CompressionLZ4    Compression = 3
	CompressionZstd   Compression = 4

	compressionMask = 0x07
)

func (c Compression) String() string {
	switch c {
	case CompressionNone:
		return "none"
	case CompressionGzip:
		return "gzip"
	case CompressionSnappy:
		return "snappy"
	case CompressionLZ4:
		return "lz4"
	case CompressionZstd:
		return "zstd"
	default:
		return "unknown"
	}
}

// Compress returns the compressed form of records under c, or records
// itself unmodified for CompressionNone.
func Compress(c Compression, records []byte) ([]byte, error) {
	switch c {
	case CompressionNone:
		return records, nil
	case CompressionGzip:
		var buf bytes.Buffer
		zw := gzip.NewWriter(&buf)
		if _, err := zw.Write(records); err != nil {
			return nil, kerrors.Wrap(kerrors.MalformedInput, err, "gzip compress")
		}
		if err := zw.Close(); err != nil {
			return nil, kerrors.Wrap(kerrors.MalformedInput, err, "gzip compress")
		}
		return buf.Bytes(), nil
	case CompressionSnappy:
		return snappy.Encode(records), nil
	case CompressionLZ4:
		var buf bytes.Buffer
		zw := lz4.NewWriter(&buf)
		if _, err := zw.Write(records); err != nil {
			return nil, kerrors.Wrap(kerrors.MalformedInput, err, "lz4 compress")
		}
		if err := zw.Close(); err != nil {
			return nil, kerrors.Wrap(kerrors.MalformedInput, err, "lz4 compress")
		}
		return buf.Bytes(), nil
	case CompressionZstd:
		enc, err := zstd.NewWriter(nil)
		if err != nil {
			return nil, kerrors.Wrap(kerrors.MalformedInput, err, "zstd compress")
		}
		defer enc.Close()
		return enc.EncodeAll(records, nil), nil
	default:
		return nil, kerrors.Unsupported("unsupported compression codec %d", c)
	}
}

// Decompress inverts Compress. An attributes bitmask outside
// {0,1,2,3,4} surfaces UnsupportedCompression (modeled as
// kerrors.UnsupportedFeature) per spec.md §4.3.
func Decompress(c Compression, payload []byte) ([]byte, error) {
	switch c {
	case CompressionNone:
		return payload, nil
	case CompressionGzip:
		zr, err := gzip.NewReader(bytes.NewReader(payload))
		if err != nil {
			return nil, kerrors.Wrap(kerrors.MalformedInput, err, "gzip decompress")
		}
		defer zr.Close()
		out, err := io.ReadAll(zr)
		if err != nil {
			return nil, kerrors.Wrap(kerrors.MalformedInput, err, "gzip decompress")
		}
		return out, nil
	case CompressionSnappy:
		out, err := snappy.Decode(payload)
		if err != nil {
			return nil, kerrors.Wrap(kerrors.MalformedInput, err, "snappy decompress")
		}
		return out, nil
	case CompressionLZ4:
		zr := lz4.NewReader(bytes.NewReader(payload))
		out, err := io.ReadAll(zr)
		if err != nil {
			return nil, kerrors.Wrap(kerrors.MalformedInput, err, "lz4 decompress")
		}
		return out, nil
	case CompressionZstd:
		dec, err := zstd.NewReader(nil)
		if err != nil {
			return nil, kerrors.Wrap(kerrors.MalformedInput, err, "zstd decompress")
		}
		defer dec.Close()
		out, err := dec.DecodeAll(payload, nil)
		if err != nil {
			return nil, kerrors.Wrap(kerrors.MalformedInput, err, "zstd decompress")
		}
		return out, nil
	default:
		return nil, kerrors.Unsupported("unsupported compression codec %d", c)
	}
}

// CompressionOf extracts the compression codec from a batch attributes
// field; bits outside the known set surface UnsupportedFeature.
func CompressionOf(attributes int16) (Compression, error) {
	c := Compression(attributes & compressionMask)
	switch c {
	case CompressionNone, CompressionGzip, CompressionSnappy, CompressionLZ4, CompressionZstd:
		return c, nil
	default:
		return 0, kerrors.Unsupported("unsupported compression bitmask %d", attributes&compressionMask)
	}
}

func withCompression(attributes int16, c Compression) int16 {
	return (attributes &^ compressionMask) | int16(c)
}
