package store

import (
	"context"
	"encoding/hex"
	"strconv"
	"strings"
)

// CreateIndexByPayloadSlice scans every leaf's payload and groups leaf
// indices by the hex of the byte range [offset, offset+length). Leaves
// whose payload is shorter than offset+length are skipped. This is the
// payload-slice inverted index from spec §4.3, useful for looking up
// leaves by a known fixed-position field (e.g. a record type tag).
func CreateIndexByPayloadSlice(ctx context.Context, kv KV, offset, length int) (map[string][]string, error) {
	pairs, err := collect(ctx, kv, leafPrefix)
	if err != nil {
		return nil, err
	}

	out := make(map[string][]string)
	for _, pair := range pairs {
		if !strings.HasSuffix(pair.Key, ":newData") {
			continue
		}
		index := strings.TrimSuffix(strings.TrimPrefix(pair.Key, leafPrefix), ":newData")
		if _, err := strconv.ParseUint(index, 10, 64); err != nil {
			continue
		}

		payload, err := hex.DecodeString(pair.Value)
		if err != nil {
			return nil, err
		}
		if offset < 0 || length < 0 || offset+length > len(payload) {
			continue
		}
		sliceKey := hex.EncodeToString(payload[offset : offset+length])
		out[sliceKey] = append(out[sliceKey], index)
	}
	return out, nil
}
