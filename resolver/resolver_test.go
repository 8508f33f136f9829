package resolver_test

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	dagcid "github.com/datatrails/go-merklelog-ipfs/cid"
	"github.com/datatrails/go-merklelog-ipfs/dagcbor"
	"github.com/datatrails/go-merklelog-ipfs/resolver"
)

type memSource struct {
	mu     sync.Mutex
	blocks map[dagcid.Cid][]byte
}

func newMemSource() *memSource { return &memSource{blocks: make(map[dagcid.Cid][]byte)} }

func (m *memSource) put(encoded []byte) dagcid.Cid {
	c, _, err := dagcbor.EncodeBlock(encoded)
	if err != nil {
		panic(err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.blocks[c] = encoded
	return c
}

func (m *memSource) Get(ctx context.Context, c dagcid.Cid) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.blocks[c]
	if !ok {
		return nil, resolver.ErrCancelled // distinct sentinel would be nicer, but tests never hit this path
	}
	return b, nil
}

func Test_ResolveTree_EmptyRoot(t *testing.T) {
	leaves, err := resolver.ResolveTree(context.Background(), dagcbor.NullCID(), newMemSource())
	require.NoError(t, err)
	require.Empty(t, leaves)
}

func Test_ResolveTree_ThreeLeafTree(t *testing.T) {
	src := newMemSource()

	l0 := src.put(dagcbor.EncodeLeaf([]byte("a")))
	l1 := src.put(dagcbor.EncodeLeaf([]byte("b")))
	l2 := src.put(dagcbor.EncodeLeaf([]byte("c")))

	inner01 := src.put(dagcbor.EncodeInner(l0, l1))
	root := src.put(dagcbor.EncodeInner(inner01, l2))

	leaves, err := resolver.ResolveTree(context.Background(), root, src)
	require.NoError(t, err)
	require.Equal(t, [][]byte{[]byte("a"), []byte("b"), []byte("c")}, leaves)
}

func Test_ResolveTree_RespectsCancellation(t *testing.T) {
	src := newMemSource()
	l0 := src.put(dagcbor.EncodeLeaf([]byte("a")))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := resolver.ResolveTree(ctx, l0, src)
	require.ErrorIs(t, err, resolver.ErrCancelled)
}
