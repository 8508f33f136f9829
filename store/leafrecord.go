package store

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strconv"

	dagcid "github.com/datatrails/go-merklelog-ipfs/cid"
	"github.com/datatrails/go-merklelog-ipfs/domain"
	"github.com/datatrails/go-merklelog-ipfs/mmr"
)

const leafPrefix = "leaf:"

func leafKey(index uint64, field string) string {
	return fmt.Sprintf("%s%d:%s", leafPrefix, index, field)
}

// wireEvent is the JSON shape persisted for domain.AppendedEvent; LeftInputs
// round-trips through Cid's own TextMarshaler.
type wireEvent struct {
	LeafIndex           uint32        `json:"leafIndex"`
	PreviousAppendBlock uint32        `json:"previousAppendBlock"`
	NewData             string        `json:"newData"`
	LeftInputs          []dagcid.Cid  `json:"leftInputs"`
	BlockNumber         uint64        `json:"blockNumber"`
	TxHash              string        `json:"txHash"`
	Removed             bool          `json:"removed"`
}

// PutLeafRecord writes every shard of a leaf record. Presence of the
// newData shard is what later defines "the leaf is in the DB" (spec §4.3);
// it is written last of the value shards to keep presence meaningful even
// if a caller races this call with a contiguity probe read on a different
// goroutine for a different adapter.
func PutLeafRecord(ctx context.Context, kv KV, index uint64, rec domain.LeafRecord) error {
	if rec.Event != nil {
		ev := wireEvent{
			LeafIndex:           rec.Event.LeafIndex,
			PreviousAppendBlock: rec.Event.PreviousAppendBlock,
			NewData:             hex.EncodeToString(rec.Event.NewData),
			LeftInputs:          rec.Event.LeftInputs,
			BlockNumber:         rec.Event.BlockNumber,
			TxHash:              rec.Event.TxHash,
			Removed:             rec.Event.Removed,
		}
		raw, err := json.Marshal(ev)
		if err != nil {
			return fmt.Errorf("store: marshaling event for leaf %d: %w", index, err)
		}
		if err := kv.Put(ctx, leafKey(index, "event"), string(raw)); err != nil {
			return err
		}
	}

	if err := kv.Put(ctx, leafKey(index, "blockNumber"), strconv.FormatUint(rec.BlockNumber, 10)); err != nil {
		return err
	}

	if rec.RootCidBeforeAppend.Defined() {
		if err := kv.Put(ctx, leafKey(index, "rootCid"), rec.RootCidBeforeAppend.String()); err != nil {
			return err
		}
	}

	if rec.PeaksWithHeightsBeforeAppend != nil {
		raw, err := json.Marshal(rec.PeaksWithHeightsBeforeAppend)
		if err != nil {
			return fmt.Errorf("store: marshaling peaks for leaf %d: %w", index, err)
		}
		if err := kv.Put(ctx, leafKey(index, "peaksWithHeights"), string(raw)); err != nil {
			return err
		}
	}

	return kv.Put(ctx, leafKey(index, "newData"), hex.EncodeToString(rec.NewData))
}

// GetLeafRecord reads back a leaf record written by PutLeafRecord. ok is
// false if the newData shard is absent.
func GetLeafRecord(ctx context.Context, kv KV, index uint64) (domain.LeafRecord, bool, error) {
	newDataHex, ok, err := kv.Get(ctx, leafKey(index, "newData"))
	if err != nil || !ok {
		return domain.LeafRecord{}, false, err
	}
	newData, err := hex.DecodeString(newDataHex)
	if err != nil {
		return domain.LeafRecord{}, false, fmt.Errorf("store: decoding newData for leaf %d: %w", index, err)
	}

	rec := domain.LeafRecord{NewData: newData}

	if raw, ok, err := kv.Get(ctx, leafKey(index, "event")); err != nil {
		return domain.LeafRecord{}, false, err
	} else if ok {
		var ev wireEvent
		if err := json.Unmarshal([]byte(raw), &ev); err != nil {
			return domain.LeafRecord{}, false, fmt.Errorf("store: decoding event for leaf %d: %w", index, err)
		}
		data, err := hex.DecodeString(ev.NewData)
		if err != nil {
			return domain.LeafRecord{}, false, err
		}
		rec.Event = &domain.AppendedEvent{
			LeafIndex:           ev.LeafIndex,
			PreviousAppendBlock: ev.PreviousAppendBlock,
			NewData:             data,
			LeftInputs:          ev.LeftInputs,
			BlockNumber:         ev.BlockNumber,
			TxHash:              ev.TxHash,
			Removed:             ev.Removed,
		}
	}

	if raw, ok, err := kv.Get(ctx, leafKey(index, "blockNumber")); err != nil {
		return domain.LeafRecord{}, false, err
	} else if ok {
		n, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			return domain.LeafRecord{}, false, err
		}
		rec.BlockNumber = n
	}

	if raw, ok, err := kv.Get(ctx, leafKey(index, "rootCid")); err != nil {
		return domain.LeafRecord{}, false, err
	} else if ok {
		c, err := dagcid.Parse(raw)
		if err != nil {
			return domain.LeafRecord{}, false, err
		}
		rec.RootCidBeforeAppend = c
	}

	if raw, ok, err := kv.Get(ctx, leafKey(index, "peaksWithHeights")); err != nil {
		return domain.LeafRecord{}, false, err
	} else if ok {
		var peaks []mmr.Peak
		if err := json.Unmarshal([]byte(raw), &peaks); err != nil {
			return domain.LeafRecord{}, false, err
		}
		rec.PeaksWithHeightsBeforeAppend = peaks
	}

	return rec, true, nil
}

// HasLeaf reports whether the newData shard for index is present, the
// system's definition of "the leaf is in the DB".
func HasLeaf(ctx context.Context, kv KV, index uint64) (bool, error) {
	_, ok, err := kv.Get(ctx, leafKey(index, "newData"))
	return ok, err
}

// HighestContiguousLeafIndexWithData returns the largest N such that
// leaf:0:newData .. leaf:N:newData are all present, or -1 if leaf:0 is
// absent.
func HighestContiguousLeafIndexWithData(ctx context.Context, kv KV) (int64, error) {
	ok, err := HasLeaf(ctx, kv, 0)
	if err != nil {
		return -1, err
	}
	if !ok {
		return -1, nil
	}

	var n uint64
	for {
		ok, err := HasLeaf(ctx, kv, n+1)
		if err != nil {
			return -1, err
		}
		if !ok {
			return int64(n), nil
		}
		n++
	}
}
