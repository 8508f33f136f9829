package store

import (
	"context"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"

	"github.com/datatrails/go-merklelog-ipfs/bloom"
)

// bloomBitsPerElement is the Bloom filter's bits-per-element sizing
// parameter; 10 bits/element with k=4 gives a false-positive rate of about
// 1.2% for the payload-slice prefilter below.
const bloomBitsPerElement = 10

// bloomK is the number of hash probes per inserted element.
const bloomK uint8 = 4

// PayloadSliceBloom is a serialized Bloom region built over the leaves'
// 32-byte payload slice at a fixed offset, a cheap probabilistic prefilter
// a caller can check with MaybeContainsPayloadSlice before paying for the
// full CreateIndexByPayloadSlice scan (spec §4.3's index is exact; this is
// purely an I/O-avoidance accelerator layered on top of it, filter 0 of
// the teacher's 4-way format, which this module otherwise leaves unused).
type PayloadSliceBloom struct {
	region []byte
}

// BuildPayloadSliceBloom scans every leaf's payload at [offset, offset+32)
// and inserts each 32-byte value into a fresh Bloom region sized for the
// current leaf count. Only a 32-byte slice width is supported, matching
// bloom.ValueBytes.
func BuildPayloadSliceBloom(ctx context.Context, kv KV, offset int) (*PayloadSliceBloom, error) {
	pairs, err := collect(ctx, kv, leafPrefix)
	if err != nil {
		return nil, err
	}

	type entry struct {
		index int
		value []byte
	}
	var entries []entry
	for _, pair := range pairs {
		if !strings.HasSuffix(pair.Key, ":newData") {
			continue
		}
		idxStr := strings.TrimSuffix(strings.TrimPrefix(pair.Key, leafPrefix), ":newData")
		idx, err := strconv.ParseUint(idxStr, 10, 64)
		if err != nil {
			continue
		}
		payload, err := hex.DecodeString(pair.Value)
		if err != nil {
			return nil, err
		}
		if offset < 0 || offset+bloom.ValueBytes > len(payload) {
			continue
		}
		entries = append(entries, entry{index: int(idx), value: payload[offset : offset+bloom.ValueBytes]})
	}

	leafCount := uint64(len(entries))
	if leafCount == 0 {
		return &PayloadSliceBloom{}, nil
	}

	region := make([]byte, bloom.RegionBytesV1(bloom.MBitsSafeCast(bloom.MBitsV1(leafCount, bloomBitsPerElement))))
	if err := bloom.InitV1(region, leafCount, bloomBitsPerElement, bloomK); err != nil {
		return nil, fmt.Errorf("store: initializing payload-slice bloom: %w", err)
	}
	for _, e := range entries {
		if err := bloom.InsertV1(region, 0, e.value); err != nil {
			return nil, fmt.Errorf("store: inserting payload slice for leaf %d: %w", e.index, err)
		}
	}
	return &PayloadSliceBloom{region: region}, nil
}

// MaybeContainsPayloadSlice reports whether value might have been indexed
// by BuildPayloadSliceBloom: false means definitely not present, true
// means the caller should fall back to CreateIndexByPayloadSlice to
// confirm and locate the owning leaves.
func (b *PayloadSliceBloom) MaybeContainsPayloadSlice(value []byte) (bool, error) {
	if b == nil || len(b.region) == 0 {
		return false, nil
	}
	return bloom.MaybeContainsV1(b.region, 0, value)
}
