package batch

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
)

func sampleBatch() *Batch {
	return &Batch{
		FirstOffset:    100,
		FirstTimestamp: 1000,
		MaxTimestamp:   1020,
		ProducerID:     -1,
		ProducerEpoch:  -1,
		FirstSequence:  -1,
		Records: []Record{
			{TimestampDelta: 0, OffsetDelta: 0, Key: []byte("k1"), Value: []byte("v1")},
			{TimestampDelta: 10, OffsetDelta: 1, Key: nil, Value: []byte("v2"),
				Headers: []Header{{Key: "trace", Value: []byte{1, 2, 3}}}},
			{TimestampDelta: 20, OffsetDelta: 2, Key: []byte("k3"), Value: nil},
		},
	}
}

// TestRoundTripUncompressed pins spec.md §8 invariant 1 (encode then decode
// reproduces every record field exactly): it builds the expected decoded
// records by hand from the input deltas and diffs the whole slice against
// what Decode actually returns, so a mismatch in any single field — not just
// the ones a hand-picked assertion happens to check — fails the test with a
// structural diff instead of a bare "not equal".
func TestRoundTripUncompressed(t *testing.T) {
	b := sampleBatch()
	encoded, err := Encode(b, CompressionNone)
	require.NoError(t, err)

	decoded, consumed, err := Decode(encoded, true)
	require.NoError(t, err)
	require.Equal(t, len(encoded), consumed)
	require.Equal(t, b.FirstOffset, decoded.FirstOffset)
	require.Equal(t, CompressionNone, decoded.Compression())

	want := make([]Record, len(b.Records))
	for i, rec := range b.Records {
		want[i] = rec
		want[i].Timestamp = b.FirstTimestamp + rec.TimestampDelta
		want[i].Offset = b.FirstOffset + int64(rec.OffsetDelta)
	}
	if diff := cmp.Diff(want, decoded.Records); diff != "" {
		t.Fatalf("decoded records mismatch (-want +got):\n%s", diff)
	}
}

func TestRoundTripEachCompression(t *testing.T) {
	for _, c := range []Compression{CompressionNone, CompressionGzip, CompressionSnappy, CompressionLZ4, CompressionZstd} {
		c := c
		t.Run(c.String(), func(t *testing.T) {
			b := sampleBatch()
			encoded, err := Encode(b, c)
			require.NoError(t, err)

			decoded, _, err := Decode(encoded, true)
			require.NoError(t, err)
			require.Equal(t, c, decoded.Compression())
			require.Len(t, decoded.Records, len(b.Records))
			require.Equal(t, b.Records[0].Value, decoded.Records[0].Value)
		})
	}
}

// TestLengthSelfConsistency pins spec.md §4.3's length invariant: the
// length field equals the number of bytes that follow it.
func TestLengthSelfConsistency(t *testing.T) {
	b := sampleBatch()
	encoded, err := Encode(b, CompressionNone)
	require.NoError(t, err)

	r := encoded
	length := int32(r[8])<<24 | int32(r[9])<<16 | int32(r[10])<<8 | int32(r[11])
	require.EqualValues(t, len(encoded)-12, length)
}

// TestCRCCatchesCorruption pins spec.md's CRC-closure invariant and the
// "CRC catch" scenario: a single flipped byte inside the CRC-covered range
// must be rejected when verification is requested.
func TestCRCCatchesCorruption(t *testing.T) {
	b := sampleBatch()
	encoded, err := Encode(b, CompressionNone)
	require.NoError(t, err)

	corrupted := append([]byte(nil), encoded...)
	// Byte 30 lies inside firstTimestamp (bytes 27..34): covered by the CRC,
	// but flipping it leaves every length and varint intact.
	corrupted[30] ^= 0xFF

	_, _, err = Decode(corrupted, true)
	require.Error(t, err)

	// Without verification the same bytes decode without complaint.
	_, _, err = Decode(corrupted, false)
	require.NoError(t, err)
}

func TestDecodeRejectsWrongMagic(t *testing.T) {
	b := sampleBatch()
	encoded, err := Encode(b, CompressionNone)
	require.NoError(t, err)
	encoded[16] = 1 // magic byte offset: 8 (firstOffset) + 4 (length) + 4 (partitionLeaderEpoch)

	_, _, err = Decode(encoded, false)
	require.Error(t, err)
}

func TestDecodeRejectsTruncatedBatch(t *testing.T) {
	b := sampleBatch()
	encoded, err := Encode(b, CompressionNone)
	require.NoError(t, err)

	_, _, err = Decode(encoded[:len(encoded)-5], true)
	require.Error(t, err)
}

func TestMultipleBatchesInStream(t *testing.T) {
	b1 := sampleBatch()
	b2 := sampleBatch()
	b2.FirstOffset = 200

	e1, err := Encode(b1, CompressionNone)
	require.NoError(t, err)
	e2, err := Encode(b2, CompressionGzip)
	require.NoError(t, err)

	stream := append(append([]byte(nil), e1...), e2...)

	d1, n1, err := Decode(stream, true)
	require.NoError(t, err)
	require.Equal(t, int64(100), d1.FirstOffset)

	d2, n2, err := Decode(stream[n1:], true)
	require.NoError(t, err)
	require.Equal(t, int64(200), d2.FirstOffset)
	require.Equal(t, len(stream), n1+n2)
}
