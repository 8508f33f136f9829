package store

import (
	"context"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"

	dagcid "github.com/datatrails/go-merklelog-ipfs/cid"
)

const (
	trailIndexPrefix = "dag:trail:index:"
	trailMaxIndexKey = "dag:trail:maxIndex"
	cidSeenPrefix    = "cid:"
)

// TrailPair is one entry of the DAG trail append log: a block's CID
// alongside the exact bytes that hash to it, so the trail can be replayed
// without re-deriving anything from the MMR.
type TrailPair struct {
	Cid     dagcid.Cid
	Encoded []byte
}

func cidSeenKey(c dagcid.Cid) string { return cidSeenPrefix + c.String() }

// CidSeen reports whether c has previously been appended to the trail.
func CidSeen(ctx context.Context, kv KV, c dagcid.Cid) (bool, error) {
	_, ok, err := kv.Get(ctx, cidSeenKey(c))
	return ok, err
}

// TrailMaxIndex returns the highest index written to the trail log, or -1
// if the trail is empty.
func TrailMaxIndex(ctx context.Context, kv KV) (int64, error) {
	raw, ok, err := kv.Get(ctx, trailMaxIndexKey)
	if err != nil {
		return -1, err
	}
	if !ok {
		return -1, nil
	}
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return -1, fmt.Errorf("store: decoding %s: %w", trailMaxIndexKey, err)
	}
	return n, nil
}

// AppendTrailPair appends pair to the trail log, deduplicating on CID: if
// pair.Cid has already been recorded, this is a no-op and returns
// ErrDuplicateTrailCid so callers can distinguish "already had it" from a
// genuine write.
func AppendTrailPair(ctx context.Context, kv KV, pair TrailPair) error {
	seen, err := CidSeen(ctx, kv, pair.Cid)
	if err != nil {
		return err
	}
	if seen {
		return ErrDuplicateTrailCid
	}

	maxIndex, err := TrailMaxIndex(ctx, kv)
	if err != nil {
		return err
	}
	next := maxIndex + 1

	value := pair.Cid.String() + "|" + hex.EncodeToString(pair.Encoded)
	if err := kv.Put(ctx, trailIndexPrefix+strconv.FormatInt(next, 10), value); err != nil {
		return err
	}
	if err := kv.Put(ctx, cidSeenKey(pair.Cid), "1"); err != nil {
		return err
	}
	return kv.Put(ctx, trailMaxIndexKey, strconv.FormatInt(next, 10))
}

// ReadTrail returns every entry of the trail log in index order.
func ReadTrail(ctx context.Context, kv KV) ([]TrailPair, error) {
	maxIndex, err := TrailMaxIndex(ctx, kv)
	if err != nil {
		return nil, err
	}
	if maxIndex < 0 {
		return nil, nil
	}

	out := make([]TrailPair, 0, maxIndex+1)
	for i := int64(0); i <= maxIndex; i++ {
		raw, ok, err := kv.Get(ctx, trailIndexPrefix+strconv.FormatInt(i, 10))
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, fmt.Errorf("%w: index %d", ErrTrailIndexGap, i)
		}
		parts := strings.SplitN(raw, "|", 2)
		if len(parts) != 2 {
			return nil, fmt.Errorf("store: malformed trail entry at index %d", i)
		}
		c, err := dagcid.Parse(parts[0])
		if err != nil {
			return nil, err
		}
		encoded, err := hex.DecodeString(parts[1])
		if err != nil {
			return nil, err
		}
		out = append(out, TrailPair{Cid: c, Encoded: encoded})
	}
	return out, nil
}
