package protocol

import (
	"testing"

	"github.com/kafkaclient/kafka/kerrors"
	"github.com/stretchr/testify/require"
)

func TestFixedWidthRoundTrip(t *testing.T) {
	w := NewWriter()
	w.WriteInt8(-12)
	w.WriteInt16(-1000)
	w.WriteInt32(123456789)
	w.WriteInt64(-9000000000000)
	w.WriteBool(true)
	w.WriteFloat64(3.14159)
	u := NewUUID()
	w.WriteUUID(u)

	r := NewReader(w.Bytes())
	i8, err := r.ReadInt8()
	require.NoError(t, err)
	require.EqualValues(t, -12, i8)

	i16, err := r.ReadInt16()
	require.NoError(t, err)
	require.EqualValues(t, -1000, i16)

	i32, err := r.ReadInt32()
	require.NoError(t, err)
	require.EqualValues(t, 123456789, i32)

	i64, err := r.ReadInt64()
	require.NoError(t, err)
	require.EqualValues(t, -9000000000000, i64)

	b, err := r.ReadBool()
	require.NoError(t, err)
	require.True(t, b)

	f, err := r.ReadFloat64()
	require.NoError(t, err)
	require.InDelta(t, 3.14159, f, 1e-9)

	gotUUID, err := r.ReadUUID()
	require.NoError(t, err)
	require.Equal(t, u, gotUUID)
	require.Equal(t, 0, r.Len())
}

func TestCompactStringNullAndEmpty(t *testing.T) {
	w := NewWriter()
	w.WriteString(nil, Compact)
	empty := ""
	w.WriteString(&empty, Compact)
	hello := "hello"
	w.WriteString(&hello, Compact)

	r := NewReader(w.Bytes())
	s, err := r.ReadString(Compact)
	require.NoError(t, err)
	require.Nil(t, s)

	s, err = r.ReadString(Compact)
	require.NoError(t, err)
	require.NotNil(t, s)
	require.Equal(t, "", *s)

	s, err = r.ReadString(Compact)
	require.NoError(t, err)
	require.Equal(t, "hello", *s)
}

func TestLegacyStringNullAndEmpty(t *testing.T) {
	w := NewWriter()
	w.WriteString(nil, Legacy)
	empty := ""
	w.WriteString(&empty, Legacy)
	hello := "hello"
	w.WriteString(&hello, Legacy)

	r := NewReader(w.Bytes())
	s, err := r.ReadString(Legacy)
	require.NoError(t, err)
	require.Nil(t, s)

	s, err = r.ReadString(Legacy)
	require.NoError(t, err)
	require.Equal(t, "", *s)

	s, err = r.ReadString(Legacy)
	require.NoError(t, err)
	require.Equal(t, "hello", *s)
}

func TestBytesRoundTrip(t *testing.T) {
	for _, enc := range []Encoding{Compact, Legacy} {
		w := NewWriter()
		w.WriteBytes(nil, enc)
		w.WriteBytes([]byte{}, enc)
		w.WriteBytes([]byte{1, 2, 3}, enc)

		r := NewReader(w.Bytes())
		b, err := r.ReadBytes(enc)
		require.NoError(t, err)
		require.Nil(t, b)

		b, err = r.ReadBytes(enc)
		require.NoError(t, err)
		require.Equal(t, []byte{}, b)

		b, err = r.ReadBytes(enc)
		require.NoError(t, err)
		require.Equal(t, []byte{1, 2, 3}, b)
	}
}

func TestVarIntBytesRoundTrip(t *testing.T) {
	w := NewWriter()
	w.WriteVarIntBytes(nil)
	w.WriteVarIntBytes([]byte{9, 8, 7})

	r := NewReader(w.Bytes())
	b, err := r.ReadVarIntBytes()
	require.NoError(t, err)
	require.Nil(t, b)

	b, err = r.ReadVarIntBytes()
	require.NoError(t, err)
	require.Equal(t, []byte{9, 8, 7}, b)
}

func TestArrayRoundTrip(t *testing.T) {
	for _, enc := range []Encoding{Compact, Legacy} {
		values := []int32{1, 2, 3, 4}
		w := NewWriter()
		WriteArray(w, len(values), enc, false, func(w *Writer, i int) {
			w.WriteInt32(values[i])
		})

		r := NewReader(w.Bytes())
		var got []int32
		n, err := ReadArray(r, enc, false, func(r *Reader) error {
			v, err := r.ReadInt32()
			if err != nil {
				return err
			}
			got = append(got, v)
			return nil
		})
		require.NoError(t, err)
		require.Equal(t, len(values), n)
		require.Equal(t, values, got)
	}
}

func TestNullArray(t *testing.T) {
	w := NewWriter()
	w.WriteArrayLength(-1, Compact)
	r := NewReader(w.Bytes())
	n, err := ReadArray(r, Compact, false, func(r *Reader) error {
		t.Fatal("element callback should not run for a null array")
		return nil
	})
	require.NoError(t, err)
	require.Equal(t, 0, n)
}

func TestTaggedFieldTrailer(t *testing.T) {
	w := NewWriter()
	w.WriteTaggedFieldTrailer()
	r := NewReader(w.Bytes())
	require.NoError(t, r.ReadTaggedFieldTrailer())
}

func TestNonZeroTaggedFieldIsUnsupported(t *testing.T) {
	w := NewWriter()
	w.WriteUnsignedVarInt(1)
	r := NewReader(w.Bytes())
	err := r.ReadTaggedFieldTrailer()
	require.Error(t, err)
	require.True(t, kerrors.Is(err, kerrors.UnsupportedFeature))
}

func TestPrependLengthFraming(t *testing.T) {
	w := NewWriter()
	w.WriteInt16(7)
	w.WriteInt16(9)
	w.PrependLengthInt32()

	r := NewReader(w.Bytes())
	size, err := r.ReadInt32()
	require.NoError(t, err)
	require.EqualValues(t, 4, size)
	v1, _ := r.ReadInt16()
	v2, _ := r.ReadInt16()
	require.EqualValues(t, 7, v1)
	require.EqualValues(t, 9, v2)
}
