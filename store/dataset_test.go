package store_test

import (
	"context"
	"testing"

	"github.com/datatrails/go-merklelog-ipfs/domain"
	"github.com/datatrails/go-merklelog-ipfs/store"
	"github.com/stretchr/testify/require"
)

func Test_LeafRange_SkipsGapsInsideWindow(t *testing.T) {
	ctx := context.Background()
	kv := store.NewMemory()
	require.NoError(t, kv.Open(ctx))

	for _, i := range []uint64{0, 1, 3} {
		require.NoError(t, store.PutLeafRecord(ctx, kv, i, domain.LeafRecord{NewData: []byte{byte(i)}}))
	}

	recs, err := store.LeafRange(ctx, kv, 0, 4)
	require.NoError(t, err)
	require.Len(t, recs, 3)
	require.Equal(t, []byte{0}, recs[0].NewData)
	require.Equal(t, []byte{1}, recs[1].NewData)
	require.Equal(t, []byte{3}, recs[2].NewData)
}

func Test_LeafRange_RejectsInvertedRange(t *testing.T) {
	ctx := context.Background()
	kv := store.NewMemory()
	require.NoError(t, kv.Open(ctx))

	_, err := store.LeafRange(ctx, kv, 5, 2)
	require.Error(t, err)
}

func Test_Dump_ReturnsEveryKey(t *testing.T) {
	ctx := context.Background()
	kv := store.NewMemory()
	require.NoError(t, kv.Open(ctx))

	require.NoError(t, store.PutLeafRecord(ctx, kv, 0, domain.LeafRecord{NewData: []byte("a")}))
	require.NoError(t, store.PutLeafRecord(ctx, kv, 1, domain.LeafRecord{NewData: []byte("b")}))

	dump, err := store.Dump(ctx, kv)
	require.NoError(t, err)
	require.Contains(t, dump, "leaf:0:newData")
	require.Contains(t, dump, "leaf:1:newData")
	require.Len(t, dump, 4)
}
