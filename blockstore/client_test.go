package blockstore_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/datatrails/go-merklelog-ipfs/blockstore"
	dagcid "github.com/datatrails/go-merklelog-ipfs/cid"
	"github.com/datatrails/go-merklelog-ipfs/dagcbor"
)

type fakeSource struct {
	mu     sync.Mutex
	blocks map[dagcid.Cid][]byte
}

func newFakeSource() *fakeSource { return &fakeSource{blocks: make(map[dagcid.Cid][]byte)} }

func (f *fakeSource) BlockGet(ctx context.Context, c dagcid.Cid) ([]byte, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	b, ok := f.blocks[c]
	return b, ok, nil
}

func (f *fakeSource) BlockPut(ctx context.Context, encoded []byte) error {
	c, _, err := dagcbor.EncodeBlock(encoded)
	if err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.blocks[c] = encoded
	return nil
}

type fakePinner struct {
	mu   sync.Mutex
	fail bool
	hits int
}

func (p *fakePinner) Pin(ctx context.Context, c dagcid.Cid) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.hits++
	if p.fail {
		return errors.New("pin service unavailable")
	}
	return nil
}

func Test_Client_PutThenGet(t *testing.T) {
	ctx := context.Background()
	src := newFakeSource()
	cl, err := blockstore.New(src, blockstore.Capabilities{Put: true}, nil, nil)
	require.NoError(t, err)

	encoded := dagcbor.EncodeLeaf([]byte("hello"))
	c, _, err := dagcbor.EncodeBlock(encoded)
	require.NoError(t, err)

	require.NoError(t, cl.Put(ctx, c, encoded))

	got, err := cl.Get(ctx, c)
	require.NoError(t, err)
	require.Equal(t, encoded, got)
}

func Test_Client_Get_NotFound(t *testing.T) {
	ctx := context.Background()
	cl, err := blockstore.New(newFakeSource(), blockstore.Capabilities{}, nil, nil)
	require.NoError(t, err)

	leafCid, _, err := dagcbor.EncodeBlock(dagcbor.EncodeLeaf([]byte("missing")))
	require.NoError(t, err)

	_, err = cl.Get(ctx, leafCid)
	require.ErrorIs(t, err, blockstore.ErrNotFound)
}

func Test_Client_Put_RejectsCidMismatch(t *testing.T) {
	ctx := context.Background()
	cl, err := blockstore.New(newFakeSource(), blockstore.Capabilities{Put: true}, nil, nil)
	require.NoError(t, err)

	wrongCid, _, err := dagcbor.EncodeBlock(dagcbor.EncodeLeaf([]byte("other")))
	require.NoError(t, err)

	err = cl.Put(ctx, wrongCid, dagcbor.EncodeLeaf([]byte("actual")))
	require.ErrorIs(t, err, dagcbor.ErrCidMismatch)
}

func Test_Client_Put_DisabledCapability(t *testing.T) {
	ctx := context.Background()
	cl, err := blockstore.New(newFakeSource(), blockstore.Capabilities{}, nil, nil)
	require.NoError(t, err)
	c, _, _ := dagcbor.EncodeBlock(dagcbor.EncodeLeaf([]byte("x")))
	err = cl.Put(ctx, c, dagcbor.EncodeLeaf([]byte("x")))
	require.ErrorIs(t, err, blockstore.ErrCapabilityDisabled)
}

func Test_Client_Provide_TripsBreakerAfterThreshold(t *testing.T) {
	ctx := context.Background()
	pinner := &fakePinner{fail: true}
	breaker := blockstore.NewBreaker(2)
	cl, err := blockstore.New(newFakeSource(), blockstore.Capabilities{Put: true, Pin: true, Provide: true}, pinner, breaker)
	require.NoError(t, err)

	c, _, _ := dagcbor.EncodeBlock(dagcbor.EncodeLeaf([]byte("pin-me")))

	require.Error(t, cl.Provide(ctx, c))
	require.Error(t, cl.Provide(ctx, c))

	provideErr := cl.Provide(ctx, c)
	require.ErrorIs(t, provideErr, blockstore.ErrSideChannelOpen)
}

func Test_New_RejectsInvalidCapabilities(t *testing.T) {
	_, err := blockstore.New(newFakeSource(), blockstore.Capabilities{Pin: true}, nil, nil)
	require.ErrorIs(t, err, blockstore.ErrInvalidCapabilities)

	_, err = blockstore.New(newFakeSource(), blockstore.Capabilities{Put: true, Provide: true}, nil, nil)
	require.ErrorIs(t, err, blockstore.ErrInvalidCapabilities)
}
