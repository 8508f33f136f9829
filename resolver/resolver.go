// Package resolver walks a dag-cbor DAG rooted at a CID and recovers the
// ordered sequence of leaf payloads it encodes (spec §4.6).
package resolver

import (
	"context"
	"errors"
	"fmt"

	dagcid "github.com/datatrails/go-merklelog-ipfs/cid"
	"github.com/datatrails/go-merklelog-ipfs/dagcbor"
)

// ErrCancelled is returned by ResolveTree when ctx is done partway through
// a traversal; it is returned in place of ctx.Err() so callers can
// distinguish a resolver cancellation from any other context error
// surfaced by the block source itself.
var ErrCancelled = errors.New("resolver: traversal cancelled")

// BlockSource fetches and verifies the encoded bytes for a CID. A
// *blockstore.Client satisfies this.
type BlockSource interface {
	Get(ctx context.Context, c dagcid.Cid) ([]byte, error)
}

// ResolveTree performs a depth-first, left-to-right traversal of the DAG
// rooted at root, returning every leaf payload in order. A null root (the
// canonical empty-MMR CID) resolves to zero leaves. ctx cancellation is
// checked before every fetch.
func ResolveTree(ctx context.Context, root dagcid.Cid, source BlockSource) ([][]byte, error) {
	if root.Equals(dagcbor.NullCID()) {
		return nil, nil
	}

	var leaves [][]byte
	if err := resolve(ctx, root, source, &leaves); err != nil {
		return nil, err
	}
	return leaves, nil
}

func resolve(ctx context.Context, c dagcid.Cid, source BlockSource, leaves *[][]byte) error {
	select {
	case <-ctx.Done():
		return ErrCancelled
	default:
	}

	encoded, err := source.Get(ctx, c)
	if err != nil {
		return fmt.Errorf("resolver: fetching %s: %w", c, err)
	}

	node, err := dagcbor.DecodeNode(encoded)
	if err != nil {
		return fmt.Errorf("resolver: decoding %s: %w", c, err)
	}

	switch n := node.(type) {
	case dagcbor.LeafNode:
		*leaves = append(*leaves, []byte(n))
		return nil
	case dagcbor.InnerNode:
		if err := resolve(ctx, n.L, source, leaves); err != nil {
			return err
		}
		return resolve(ctx, n.R, source, leaves)
	case dagcbor.LinkNode:
		return resolve(ctx, n.Cid, source, leaves)
	default:
		return fmt.Errorf("resolver: unrecognised node shape for %s", c)
	}
}
