/*
Package mmr implements the append-only Merkle Mountain Range accumulator
this system mirrors from its authoritative on-chain contract.

Unlike a position-addressed MMR (where every interior node lives at a known
flat-array index and heights are recovered from bit arithmetic on that
index), this MMR's nodes are content-addressed: every leaf and every merge
produces a CID over its dag-cbor encoding, and the engine's state is nothing
more than the current left-to-right peak CIDs plus a leaf count. Heights are
never stored — they fall out of the binary representation of leaf_count, the
same property position-addressed MMRs exploit, just applied to a peak slice
rather than a flat node array.

Append does two things in one pass: it merges any peaks that complete a
perfect subtree (mirroring the "back-fill" property described in the wider
literature on this structure — an append can cascade through several
already-complete mountains), and it re-bags the resulting peak list into a
single root, left to right. Both phases emit their CIDs, in order, onto a
"trail" — the ordered list of blocks an observer needs in order to
reconstruct and verify everything this append touched.

The static inverse, PreviousRootAndPeaks, undoes exactly this cascade given
only the event data the chain emits (the new leaf's payload and the ordered
left-operands of each merge), which is what lets the reconciliation pipeline
walk the chain backwards without ever holding the full historical MMR in
memory.
*/
package mmr
