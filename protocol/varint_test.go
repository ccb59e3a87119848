package protocol

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestZigZagRoundTrip32(t *testing.T) {
	values := []int32{0, 1, -1, 63, -64, 127, -128, math.MaxInt32, math.MinInt32}
	for _, v := range values {
		got := unZigZag32(zigZag32(v))
		require.Equal(t, v, got)
	}
}

func TestZigZagRoundTrip64(t *testing.T) {
	values := []int64{0, 1, -1, math.MaxInt64, math.MinInt64}
	for _, v := range values {
		got := unZigZag64(zigZag64(v))
		require.Equal(t, v, got)
	}
}

func TestVarIntSizes(t *testing.T) {
	tests := []struct {
		v    uint64
		size int
	}{
		{0, 1},
		{127, 1},
		{128, 2},
		{16383, 2},
		{16384, 3},
		{2097151, 3},
		{2097152, 4},
		{268435455, 4},
		{268435456, 5},
	}
	for _, tt := range tests {
		require.Equal(t, tt.size, sizeOfUnsignedVarint(tt.v), "size of %d", tt.v)
	}
}

func TestUnsignedVarIntRoundTrip(t *testing.T) {
	w := NewWriter()
	values := []uint32{0, 1, 127, 128, 300, math.MaxUint32}
	for _, v := range values {
		w.WriteUnsignedVarInt(v)
	}
	r := NewReader(w.Bytes())
	for _, v := range values {
		got, err := r.ReadUnsignedVarInt()
		require.NoError(t, err)
		require.Equal(t, v, got)
	}
	require.Equal(t, 0, r.Len())
}

func TestVarIntOverlongFails(t *testing.T) {
	// 5 bytes, all with continuation bit set: exceeds maxVarintLen32.
	buf := []byte{0xff, 0xff, 0xff, 0xff, 0xff, 0x01}
	r := NewReader(buf)
	_, err := r.ReadUnsignedVarInt()
	require.Error(t, err)
}

func TestVarIntUnderflowFails(t *testing.T) {
	buf := []byte{0x80}
	r := NewReader(buf)
	_, err := r.ReadUnsignedVarInt()
	require.Error(t, err)
}
