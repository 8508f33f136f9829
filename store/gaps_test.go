package store_test

import (
	"context"
	"testing"

	"github.com/datatrails/go-merklelog-ipfs/domain"
	"github.com/datatrails/go-merklelog-ipfs/store"
	"github.com/stretchr/testify/require"
)

func Test_Gaps_FindsMissingIndices(t *testing.T) {
	ctx := context.Background()
	kv := store.NewMemory()
	require.NoError(t, kv.Open(ctx))

	present := []uint64{0, 1, 3, 5}
	for _, i := range present {
		require.NoError(t, store.PutLeafRecord(ctx, kv, i, domain.LeafRecord{NewData: []byte{byte(i)}}))
	}

	missing, err := store.Gaps(ctx, kv, 5)
	require.NoError(t, err)
	require.Equal(t, []uint64{2, 4}, missing)
}

func Test_Gaps_NoneMissing(t *testing.T) {
	ctx := context.Background()
	kv := store.NewMemory()
	require.NoError(t, kv.Open(ctx))

	for i := uint64(0); i <= 3; i++ {
		require.NoError(t, store.PutLeafRecord(ctx, kv, i, domain.LeafRecord{NewData: []byte{byte(i)}}))
	}

	missing, err := store.Gaps(ctx, kv, 3)
	require.NoError(t, err)
	require.Empty(t, missing)
}
