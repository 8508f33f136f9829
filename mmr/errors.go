package mmr

import "errors"

var (
	// ErrOutOfOrder is returned by Append when leafIndex does not equal the
	// current leaf count.
	ErrOutOfOrder = errors.New("mmr: append called out of order")
	// ErrInvariant signals a post-condition violation: a peak count that
	// would overflow the 32-slot on-chain array, or an inverse computation
	// that could not find the expected peak to unwind.
	ErrInvariant = errors.New("mmr: invariant violation")
)

// MaxPeaks is the width of the on-chain packed peak array (spec §4.4); a
// leaf count requiring more than this many simultaneous peaks can never
// occur for any leaf count representable in the contract's uint32 counters,
// but Append still checks it defensively.
const MaxPeaks = 32
