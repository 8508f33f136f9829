package store_test

import (
	"context"
	"testing"

	dagcid "github.com/datatrails/go-merklelog-ipfs/cid"
	"github.com/datatrails/go-merklelog-ipfs/dagcbor"
	"github.com/datatrails/go-merklelog-ipfs/domain"
	"github.com/datatrails/go-merklelog-ipfs/store"
	"github.com/stretchr/testify/require"
)

func leafCid(t *testing.T, payload []byte) dagcid.Cid {
	t.Helper()
	c, _, err := dagcbor.EncodeBlock(dagcbor.EncodeLeaf(payload))
	require.NoError(t, err)
	return c
}

func Test_PutGetLeafRecord_Roundtrip(t *testing.T) {
	ctx := context.Background()
	kv := store.NewMemory()
	require.NoError(t, kv.Open(ctx))

	root := leafCid(t, []byte("root-before"))
	rec := domain.LeafRecord{
		NewData: []byte("payload-0"),
		Event: &domain.AppendedEvent{
			LeafIndex:   0,
			NewData:     []byte("payload-0"),
			BlockNumber: 42,
			TxHash:      "0xabc",
		},
		BlockNumber:         42,
		RootCidBeforeAppend: root,
	}

	require.NoError(t, store.PutLeafRecord(ctx, kv, 0, rec))

	got, ok, err := store.GetLeafRecord(ctx, kv, 0)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, rec.NewData, got.NewData)
	require.Equal(t, rec.BlockNumber, got.BlockNumber)
	require.True(t, root.Equals(got.RootCidBeforeAppend))
	require.NotNil(t, got.Event)
	require.Equal(t, rec.Event.BlockNumber, got.Event.BlockNumber)
	require.Equal(t, rec.Event.TxHash, got.Event.TxHash)
}

func Test_GetLeafRecord_Missing(t *testing.T) {
	ctx := context.Background()
	kv := store.NewMemory()
	require.NoError(t, kv.Open(ctx))

	_, ok, err := store.GetLeafRecord(ctx, kv, 7)
	require.NoError(t, err)
	require.False(t, ok)
}

func Test_HighestContiguousLeafIndexWithData(t *testing.T) {
	ctx := context.Background()
	kv := store.NewMemory()
	require.NoError(t, kv.Open(ctx))

	n, err := store.HighestContiguousLeafIndexWithData(ctx, kv)
	require.NoError(t, err)
	require.Equal(t, int64(-1), n)

	for i := uint64(0); i < 3; i++ {
		require.NoError(t, store.PutLeafRecord(ctx, kv, i, domain.LeafRecord{NewData: []byte{byte(i)}}))
	}
	n, err = store.HighestContiguousLeafIndexWithData(ctx, kv)
	require.NoError(t, err)
	require.Equal(t, int64(2), n)

	// A hole at indices 3 and 4 should not affect the contiguous count anchored at 0.
	require.NoError(t, store.PutLeafRecord(ctx, kv, 5, domain.LeafRecord{NewData: []byte{5}}))
	n, err = store.HighestContiguousLeafIndexWithData(ctx, kv)
	require.NoError(t, err)
	require.Equal(t, int64(2), n)
}
