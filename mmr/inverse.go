package mmr

import (
	"fmt"

	dagcid "github.com/datatrails/go-merklelog-ipfs/cid"
	"github.com/datatrails/go-merklelog-ipfs/dagcbor"
)

// PreviousRootAndPeaks is the static inverse of Append: given the peak set
// after an append, the payload that was appended, and the ordered
// left-operands of each merge that append triggered (lowest height first,
// exactly as the chain's LeafAppended event records them), it recovers the
// root and peak set from immediately before that append.
//
// The peaks an append's merge cascade consumes are always the rightmost
// len(leftInputs) entries of the pre-append peak list, in descending-height
// (left to right) order; Append records them into leftInputs in the order
// it pops them, which is the reverse of that. So the pre-append peak list
// is simply: every peak Append left untouched (the prefix peaksAfter had
// before its own final, newly-appended peak) followed by leftInputs
// reversed back into descending-height order. When no merge happened
// (leftInputs is empty) this reduces to "drop the rightmost peak" exactly
// as the zero-merge append case requires.
func PreviousRootAndPeaks(peaksAfter []dagcid.Cid, payload []byte, leftInputs []dagcid.Cid) (dagcid.Cid, []dagcid.Cid, error) {
	if len(peaksAfter) == 0 {
		return dagcid.Cid{}, nil, fmt.Errorf("%w: peaks_after must contain at least the freshly appended peak", ErrInvariant)
	}

	prefix := peaksAfter[:len(peaksAfter)-1]

	peaksBefore := make([]dagcid.Cid, 0, len(prefix)+len(leftInputs))
	peaksBefore = append(peaksBefore, prefix...)
	for i := len(leftInputs) - 1; i >= 0; i-- {
		peaksBefore = append(peaksBefore, leftInputs[i])
	}

	// Defensive corroboration of the documented invariant: when no merge
	// occurred, the peak that was dropped must be exactly the fresh leaf.
	if len(leftInputs) == 0 {
		leafCid, _, err := dagcbor.EncodeBlock(dagcbor.EncodeLeaf(payload))
		if err != nil {
			return dagcid.Cid{}, nil, err
		}
		dropped := peaksAfter[len(peaksAfter)-1]
		if !dropped.Equals(leafCid) {
			return dagcid.Cid{}, nil, fmt.Errorf("%w: dropped peak is not the fresh leaf", ErrInvariant)
		}
	}

	root, _, err := bagPeaks(peaksBefore)
	if err != nil {
		return dagcid.Cid{}, nil, err
	}
	return root, peaksBefore, nil
}
