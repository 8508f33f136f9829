package mmr

import (
	"fmt"

	dagcid "github.com/datatrails/go-merklelog-ipfs/cid"
	"github.com/datatrails/go-merklelog-ipfs/dagcbor"
)

// AppendResult is everything one Append call produces: the full trail (leaf,
// merge links, bagging links), the new root, and the ordered left-operands
// of each merge triggered by this append — exactly the left_inputs the
// on-chain LeafAppended event carries, lowest height first.
type AppendResult struct {
	Trail      Trail
	Root       dagcid.Cid
	LeftInputs []dagcid.Cid
}

// Append adds payload as the next leaf (at index leafIndex, which must equal
// m.LeafCount) and returns the resulting trail. It mutates m in place.
//
// The algorithm: encode the leaf; then, for as long as the bit of the
// pre-append leaf count at the current height is set, pop the rightmost
// peak as the left operand and merge it with the carried value, climbing
// one height per merge. The final carried value becomes the new rightmost
// peak. Finally the whole peak list is re-bagged to produce the root.
func (m *Mmr) Append(leafIndex uint64, payload []byte) (AppendResult, error) {
	if leafIndex != m.LeafCount {
		return AppendResult{}, fmt.Errorf("%w: got %d, expected %d", ErrOutOfOrder, leafIndex, m.LeafCount)
	}

	leafEncoded := dagcbor.EncodeLeaf(payload)
	leafCid, _, err := dagcbor.EncodeBlock(leafEncoded)
	if err != nil {
		return AppendResult{}, err
	}

	trail := Trail{{Cid: leafCid, Encoded: leafEncoded}}
	leftInputs := []dagcid.Cid{}

	carry := leafCid
	height := uint(0)
	for (m.LeafCount>>height)&1 == 1 {
		n := len(m.Peaks)
		left := m.Peaks[n-1]
		m.Peaks = m.Peaks[:n-1]

		leftInputs = append(leftInputs, left)

		encoded := dagcbor.EncodeInner(left, carry)
		linkCid, enc, err := dagcbor.EncodeBlock(encoded)
		if err != nil {
			return AppendResult{}, err
		}
		trail = append(trail, TrailPair{Cid: linkCid, Encoded: enc})

		carry = linkCid
		height++
	}

	m.Peaks = append(m.Peaks, carry)
	m.LeafCount++

	if len(m.Peaks) > MaxPeaks {
		return AppendResult{}, fmt.Errorf("%w: peak count %d exceeds %d", ErrInvariant, len(m.Peaks), MaxPeaks)
	}

	root, bagTrail, err := bagPeaks(m.Peaks)
	if err != nil {
		return AppendResult{}, err
	}
	trail = append(trail, bagTrail...)

	return AppendResult{Trail: trail, Root: root, LeftInputs: leftInputs}, nil
}
