package dagcbor

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func Test_Decode_Scalars(t *testing.T) {
	cases := []struct {
		name string
		buf  []byte
		want any
	}{
		{"uint-small", EncodeUint(nil, 5), uint64(5)},
		{"uint-1byte", EncodeUint(nil, 200), uint64(200)},
		{"uint-2byte", EncodeUint(nil, 40000), uint64(40000)},
		{"uint-4byte", EncodeUint(nil, 5_000_000_000>>2), uint64(1_250_000_000)},
		{"nint", EncodeNint(nil, -10), int64(-10)},
		{"bool-true", EncodeBool(nil, true), true},
		{"bool-false", EncodeBool(nil, false), false},
		{"null", EncodeNull(nil), nil},
		{"float", EncodeFloat64(nil, 3.5), 3.5},
		{"text", EncodeText(nil, "abc"), "abc"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := Decode(tc.buf)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func Test_Decode_BytesRoundTrip(t *testing.T) {
	payload := []byte{1, 2, 3, 4, 5}
	got, err := Decode(EncodeBytes(nil, payload))
	require.NoError(t, err)
	assert.Equal(t, payload, got)
}

func Test_Decode_ArrayAndMap(t *testing.T) {
	buf := EncodeArrayHeader(nil, 2)
	buf = EncodeUint(buf, 1)
	buf = EncodeUint(buf, 2)
	got, err := Decode(buf)
	require.NoError(t, err)
	assert.Equal(t, []any{uint64(1), uint64(2)}, got)

	buf = EncodeMapHeader(nil, 1)
	buf = EncodeText(buf, "k")
	buf = EncodeUint(buf, 7)
	got, err = Decode(buf)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"k": uint64(7)}, got)
}

func Test_Decode_TrailingBytesRejected(t *testing.T) {
	buf := append(EncodeUint(nil, 1), 0xff)
	_, err := Decode(buf)
	assert.ErrorIs(t, err, ErrTrailingData)
}

func Test_Decode_TruncatedRejected(t *testing.T) {
	buf := EncodeBytes(nil, []byte{1, 2, 3})
	_, err := Decode(buf[:len(buf)-1])
	assert.ErrorIs(t, err, ErrTruncated)
}
