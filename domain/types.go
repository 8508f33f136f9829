// Package domain holds the entities shared across the chain adapter,
// storage, and reconciliation pipeline, so each of those packages can
// depend on a single definition rather than redeclaring the same shape.
package domain

import (
	dagcid "github.com/datatrails/go-merklelog-ipfs/cid"
	"github.com/datatrails/go-merklelog-ipfs/mmr"
)

// AppendedEvent is the decoded form of the chain contract's LeafAppended
// log, per spec §3 and §4.4. LeftInputs is ordered lowest height first,
// exactly as emitted during the merge cascade that produced it.
type AppendedEvent struct {
	LeafIndex            uint32
	PreviousAppendBlock  uint32
	NewData              []byte
	LeftInputs           []dagcid.Cid
	BlockNumber          uint64
	TxHash               string
	Removed              bool
}

// LeafRecord is the durable, write-once record of one leaf: its payload,
// the event that produced it (when observed live or backfilled), and the
// accumulator state from immediately before it was appended.
type LeafRecord struct {
	NewData                     []byte
	Event                       *AppendedEvent
	BlockNumber                 uint64
	RootCidBeforeAppend         dagcid.Cid
	PeaksWithHeightsBeforeAppend []mmr.Peak
}
