package chain

import (
	"fmt"
	"math/big"

	dagcid "github.com/datatrails/go-merklelog-ipfs/cid"
	"github.com/datatrails/go-merklelog-ipfs/mmr"
)

// StateWordSize is the byte length of the packed state word.
const StateWordSize = 32

// State is the decoded form of the contract's packed state word plus the
// raw peak digest array returned alongside it by a bulk view call.
//
// Bit layout of the word, bit 0 being the least significant bit: 32 5-bit
// peak heights occupy bits 0-159 (entry i at bits [5i, 5i+4]); peak_count
// occupies bits 160-164; leaf_count occupies bits 165-196;
// previous_append_block occupies bits 197-228; deploy_block occupies the
// remaining high bits, 229-255.
type State struct {
	PeakHeights          [32]uint8
	PeakCount            uint8
	LeafCount            uint64
	PreviousAppendBlock  uint32
	DeployBlock          uint32
}

func extractBits(word *big.Int, from, length int) uint64 {
	mask := new(big.Int).Lsh(big.NewInt(1), uint(length))
	mask.Sub(mask, big.NewInt(1))
	shifted := new(big.Int).Rsh(word, uint(from))
	shifted.And(shifted, mask)
	return shifted.Uint64()
}

// DecodeState unpacks a 32-byte big-endian state word into a State.
func DecodeState(word []byte) (State, error) {
	if len(word) != StateWordSize {
		return State{}, fmt.Errorf("%w: got %d bytes", ErrShortWord, len(word))
	}
	v := new(big.Int).SetBytes(word)

	var s State
	for i := 0; i < 32; i++ {
		s.PeakHeights[i] = uint8(extractBits(v, 5*i, 5))
	}
	s.PeakCount = uint8(extractBits(v, 160, 5))
	s.LeafCount = extractBits(v, 165, 32)
	s.PreviousAppendBlock = uint32(extractBits(v, 197, 32))
	s.DeployBlock = uint32(extractBits(v, 229, 27))
	return s, nil
}

// PeaksWithHeights zips the state's leading PeakCount peak digests (wrapped
// as CIDs, no rehash) with their recorded heights, in the MMR's left-to-
// right order.
func PeaksWithHeights(s State, peakDigests [][32]byte) ([]mmr.Peak, error) {
	if int(s.PeakCount) > len(peakDigests) {
		return nil, fmt.Errorf("%w: peak_count %d exceeds %d returned digests", ErrMalformedABI, s.PeakCount, len(peakDigests))
	}
	out := make([]mmr.Peak, s.PeakCount)
	for i := 0; i < int(s.PeakCount); i++ {
		c, err := dagcid.FromDigest(peakDigests[i][:])
		if err != nil {
			return nil, err
		}
		out[i] = mmr.Peak{Cid: c, Height: s.PeakHeights[i]}
	}
	return out, nil
}
