package dagcbor

import (
	"testing"

	dagcid "github.com/datatrails/go-merklelog-ipfs/cid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustLeafCid(t *testing.T, payload []byte) dagcid.Cid {
	t.Helper()
	c, _, err := EncodeBlock(EncodeLeaf(payload))
	require.NoError(t, err)
	return c
}

func Test_EncodeBlock_Determinism(t *testing.T) {
	encoded := EncodeLeaf([]byte("hello"))
	c1, e1, err := EncodeBlock(encoded)
	require.NoError(t, err)
	c2, e2, err := EncodeBlock(encoded)
	require.NoError(t, err)

	assert.Equal(t, e1, e2)
	assert.True(t, c1.Equals(c2))
	assert.Equal(t, c1.String(), c2.String())
}

func Test_NullCID_IsEncodeOfNull(t *testing.T) {
	c, encoded, err := EncodeBlock(EncodeNull(nil))
	require.NoError(t, err)
	assert.Equal(t, []byte{0xf6}, encoded)
	assert.True(t, c.Equals(NullCID()))
}

func Test_DecodeNode_Leaf(t *testing.T) {
	payload := []byte{0x01, 0x02, 0x03}
	node, err := DecodeNode(EncodeLeaf(payload))
	require.NoError(t, err)

	leaf, ok := node.(LeafNode)
	require.True(t, ok)
	assert.Equal(t, payload, []byte(leaf))
}

func Test_DecodeNode_Inner_RoundTrip(t *testing.T) {
	l := mustLeafCid(t, []byte{0xaa})
	r := mustLeafCid(t, []byte{0xbb})

	encoded := EncodeInner(l, r)
	node, err := DecodeNode(encoded)
	require.NoError(t, err)

	inner, ok := node.(InnerNode)
	require.True(t, ok)
	assert.True(t, inner.L.Equals(l))
	assert.True(t, inner.R.Equals(r))

	c, _, err := EncodeBlock(encoded)
	require.NoError(t, err)
	assert.NoError(t, VerifyCidChecked(encoded, c))
}

func Test_DecodeNode_BareLink(t *testing.T) {
	l := mustLeafCid(t, []byte{0x01})

	buf := encodeLinkValue(nil, l)
	node, err := DecodeNode(buf)
	require.NoError(t, err)

	link, ok := node.(LinkNode)
	require.True(t, ok)
	assert.True(t, link.Cid.Equals(l))
}

func Test_DecodeNode_RejectsBadTag42Prefix(t *testing.T) {
	// tag 42 payload must start with 0x00; flip it and expect failure.
	l := mustLeafCid(t, []byte{0x01})
	buf := encodeLinkValue(nil, l)

	// locate and corrupt the 0x00 prefix byte that immediately follows the
	// byte-string header for the tag-42 payload.
	corrupted := append([]byte{}, buf...)
	for i := range corrupted {
		if corrupted[i] == 0x00 && i > 0 {
			corrupted[i] = 0x01
			break
		}
	}
	_, err := DecodeNode(corrupted)
	assert.Error(t, err)
}

func Test_VerifyCid_DetectsMismatch(t *testing.T) {
	encoded := EncodeLeaf([]byte("payload"))
	other := mustLeafCid(t, []byte("different"))
	assert.False(t, VerifyCid(encoded, other))
	assert.ErrorIs(t, VerifyCidChecked(encoded, other), ErrCidMismatch)
}
