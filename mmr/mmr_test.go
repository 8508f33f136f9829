package mmr

import (
	"testing"

	dagcid "github.com/datatrails/go-merklelog-ipfs/cid"
	"github.com/datatrails/go-merklelog-ipfs/dagcbor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func leafCid(t *testing.T, payload byte) dagcid.Cid {
	t.Helper()
	c, _, err := dagcbor.EncodeBlock(dagcbor.EncodeLeaf([]byte{payload}))
	require.NoError(t, err)
	return c
}

func linkCid(t *testing.T, l, r dagcid.Cid) dagcid.Cid {
	t.Helper()
	c, _, err := dagcbor.EncodeBlock(dagcbor.EncodeInner(l, r))
	require.NoError(t, err)
	return c
}

func Test_Empty_RootIsNullCID(t *testing.T) {
	m := New()
	root, err := m.Root()
	require.NoError(t, err)
	assert.True(t, root.Equals(dagcbor.NullCID()))
	assert.Equal(t, uint64(0), m.LeafCount)
}

// Test_ThreeLeafMMR walks through spec §8 scenario 1.
func Test_ThreeLeafMMR(t *testing.T) {
	m := New()

	r0, err := m.Append(0, []byte{0x01})
	require.NoError(t, err)
	c1 := leafCid(t, 0x01)
	assert.Equal(t, []dagcid.Cid{c1}, m.Peaks)
	assert.Empty(t, r0.LeftInputs)

	r1, err := m.Append(1, []byte{0x02})
	require.NoError(t, err)
	c2 := leafCid(t, 0x02)
	h1 := linkCid(t, c1, c2)
	assert.Equal(t, []dagcid.Cid{h1}, m.Peaks)
	assert.Equal(t, []dagcid.Cid{c1}, r1.LeftInputs)
	assert.Len(t, r1.Trail, 2) // leaf, merge link; single peak, no bagging

	r2, err := m.Append(2, []byte{0x03})
	require.NoError(t, err)
	c3 := leafCid(t, 0x03)
	assert.Equal(t, []dagcid.Cid{h1, c3}, m.Peaks)
	assert.Empty(t, r2.LeftInputs)
	// leaf + bagging link, no merges
	require.Len(t, r2.Trail, 2)
	root := linkCid(t, h1, c3)
	assert.True(t, r2.Root.Equals(root))
}

// Test_FourLeafMMR walks through spec §8 scenario 2.
func Test_FourLeafMMR(t *testing.T) {
	m := New()
	payloads := []byte{0xAA, 0xBB, 0xCC, 0xDD}
	for i, p := range payloads[:3] {
		_, err := m.Append(uint64(i), []byte{p})
		require.NoError(t, err)
	}

	result, err := m.Append(3, []byte{0xDD})
	require.NoError(t, err)

	require.Len(t, m.Peaks, 1)
	assert.True(t, result.Root.Equals(m.Peaks[0]))
	require.Len(t, result.LeftInputs, 2)

	// leaf(DD), link_h1, link_h2: no bagging links since a single peak remains.
	require.Len(t, result.Trail, 3)
}

func Test_Append_OutOfOrder(t *testing.T) {
	m := New()
	_, err := m.Append(1, []byte{0x01})
	assert.ErrorIs(t, err, ErrOutOfOrder)
}

func Test_Append_MaxPayload(t *testing.T) {
	m := New()
	payload := make([]byte, 1_000_000)
	result, err := m.Append(0, payload)
	require.NoError(t, err)
	assert.True(t, result.Root.Defined())
}

// Test_AppendInverseRoundtrip exercises the testable property from spec §8:
// previous_root_and_peaks(append(S,p).peaks, p, append(S,p).left_inputs) ==
// (S.root, S.peaks), across a run long enough to see several merge depths.
func Test_AppendInverseRoundtrip(t *testing.T) {
	m := New()
	for i := 0; i < 20; i++ {
		before := append([]dagcid.Cid{}, m.Peaks...)
		beforeRoot, err := m.Root()
		require.NoError(t, err)

		payload := []byte{byte(i)}
		result, err := m.Append(uint64(i), payload)
		require.NoError(t, err)

		gotRoot, gotPeaks, err := PreviousRootAndPeaks(m.Peaks, payload, result.LeftInputs)
		require.NoError(t, err)

		assert.Equal(t, before, gotPeaks, "leaf %d", i)
		assert.True(t, beforeRoot.Equals(gotRoot), "leaf %d", i)
	}
}

func Test_InverseFromEmptyLeftInputs(t *testing.T) {
	m := New()
	for _, p := range []byte{0x11, 0x22, 0x33} {
		_, err := m.Append(m.LeafCount, []byte{p})
		require.NoError(t, err)
	}

	c1 := leafCid(t, 0x11)
	c2 := leafCid(t, 0x22)
	h1 := linkCid(t, c1, c2)

	_, peaks, err := PreviousRootAndPeaks(m.Peaks, []byte{0x33}, nil)
	require.NoError(t, err)
	assert.Equal(t, []dagcid.Cid{h1}, peaks)
}

func Test_PeakHeights_DescendingLeftToRight(t *testing.T) {
	// leafCount = 0b1011 -> peaks at heights 3,1,0
	heights := PeakHeights(0b1011)
	assert.Equal(t, []uint8{3, 1, 0}, heights)
}

func Test_Notifier_BroadcastsOnAppend(t *testing.T) {
	m := New()
	var notifier Notifier
	var seen []Trail

	unsub := notifier.Subscribe(func(trail Trail) { seen = append(seen, trail) })
	_, err := m.AppendNotifying(&notifier, 0, []byte{0x01})
	require.NoError(t, err)
	assert.Len(t, seen, 1)

	unsub()
	_, err = m.AppendNotifying(&notifier, 1, []byte{0x02})
	require.NoError(t, err)
	assert.Len(t, seen, 1, "unsubscribed observer must not fire again")
}

func Test_Notifier_SurvivesPanickingObserver(t *testing.T) {
	m := New()
	var notifier Notifier
	notifier.Subscribe(func(Trail) { panic("boom") })

	var called bool
	notifier.Subscribe(func(Trail) { called = true })

	_, err := m.AppendNotifying(&notifier, 0, []byte{0x01})
	require.NoError(t, err)
	assert.True(t, called)
}
