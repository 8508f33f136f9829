package mmr

import (
	"math/bits"

	dagcid "github.com/datatrails/go-merklelog-ipfs/cid"
	"github.com/datatrails/go-merklelog-ipfs/dagcbor"
)

// Peak pairs a peak CID with its height, the form storage and the chain
// adapter exchange (the engine itself never stores heights — see doc.go).
type Peak struct {
	Cid    dagcid.Cid
	Height uint8
}

// TrailPair is one CID/encoded-bytes entry in an append or bagging trail.
type TrailPair struct {
	Cid     dagcid.Cid
	Encoded []byte
}

// Trail is the ordered sequence of blocks produced by a single call to
// Append: the leaf, then each merge link in ascending height order, then
// each bagging link in left-to-right order.
type Trail []TrailPair

// Mmr is the in-memory accumulator state: the left-to-right peak CIDs and
// the count of leaves appended so far. leaf_count = sum(2^height) over the
// peaks, and peak heights are always strictly decreasing left to right —
// both are invariants Append maintains, never recomputes from storage.
type Mmr struct {
	Peaks     []dagcid.Cid
	LeafCount uint64
}

// New returns the empty MMR.
func New() Mmr {
	return Mmr{}
}

// PeakHeights returns the heights of the peaks implied by leafCount, in the
// same left-to-right order Append maintains them: highest (most
// significant set bit) first. This is the only place peak height is ever
// derived, and it is derived purely from leafCount's binary representation.
func PeakHeights(leafCount uint64) []uint8 {
	heights := make([]uint8, 0, bits.OnesCount64(leafCount))
	for h := bits.Len64(leafCount); h > 0; h-- {
		height := h - 1
		if leafCount&(1<<uint(height)) != 0 {
			heights = append(heights, uint8(height))
		}
	}
	return heights
}

// PeaksWithHeights zips m's current peaks with their implied heights, the
// shape storage persists as a leaf record's pre-append accumulator state.
func (m Mmr) PeaksWithHeights() []Peak {
	heights := PeakHeights(m.LeafCount)
	out := make([]Peak, len(m.Peaks))
	for i, c := range m.Peaks {
		out[i] = Peak{Cid: c, Height: heights[i]}
	}
	return out
}

// Root returns the current MMR root: NullCID when empty, the lone peak when
// there is exactly one, or the left-to-right bagging of all peaks.
func (m Mmr) Root() (dagcid.Cid, error) {
	root, _, err := bagPeaks(m.Peaks)
	return root, err
}

// bagPeaks folds peaks left to right via encode({L: acc, R: peak}), emitting
// each intermediate link onto a trail. An empty peaks list bags to the
// null-CID; a single peak is returned unchanged with no trail entries.
func bagPeaks(peaks []dagcid.Cid) (dagcid.Cid, Trail, error) {
	if len(peaks) == 0 {
		return dagcbor.NullCID(), nil, nil
	}
	acc := peaks[0]
	var trail Trail
	for _, peak := range peaks[1:] {
		encoded := dagcbor.EncodeInner(acc, peak)
		c, enc, err := dagcbor.EncodeBlock(encoded)
		if err != nil {
			return dagcid.Cid{}, nil, err
		}
		trail = append(trail, TrailPair{Cid: c, Encoded: enc})
		acc = c
	}
	return acc, trail, nil
}
