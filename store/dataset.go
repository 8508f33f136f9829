package store

import (
	"context"
	"fmt"

	"github.com/datatrails/go-merklelog-ipfs/domain"
)

// LeafRange returns every leaf record present in [a, b), in ascending
// index order. Indices with no newData shard are skipped rather than
// erroring, since a range spanning a yet-unfilled gap is a legitimate
// query during reconciliation (spec §6 data.range(a,b)).
func LeafRange(ctx context.Context, kv KV, a, b uint64) ([]domain.LeafRecord, error) {
	if b < a {
		return nil, fmt.Errorf("store: range [%d,%d) is inverted", a, b)
	}
	out := make([]domain.LeafRecord, 0, b-a)
	for i := a; i < b; i++ {
		rec, ok, err := GetLeafRecord(ctx, kv, i)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		out = append(out, rec)
	}
	return out, nil
}

// Dump returns every key/value pair currently held by kv, keyed by the raw
// storage key (spec §6 data.dump()). It is an unfiltered snapshot of the
// whole adapter, not just the leaf-record shards LeafRange reads.
func Dump(ctx context.Context, kv KV) (map[string]string, error) {
	pairs, err := collect(ctx, kv, "")
	if err != nil {
		return nil, err
	}
	out := make(map[string]string, len(pairs))
	for _, pair := range pairs {
		out[pair.Key] = pair.Value
	}
	return out, nil
}
