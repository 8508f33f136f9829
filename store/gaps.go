package store

import "context"

// Gaps returns every leaf index in [0, upTo] whose newData shard is absent,
// in ascending order. upTo is inclusive. This is the backward-sweep's way
// of finding holes left by a partial historical fetch (spec §4.7).
func Gaps(ctx context.Context, kv KV, upTo uint64) ([]uint64, error) {
	var missing []uint64
	for i := uint64(0); i <= upTo; i++ {
		ok, err := HasLeaf(ctx, kv, i)
		if err != nil {
			return nil, err
		}
		if !ok {
			missing = append(missing, i)
		}
	}
	return missing, nil
}
