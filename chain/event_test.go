package chain_test

import (
	"encoding/binary"
	"testing"

	ethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/stretchr/testify/require"

	"github.com/datatrails/go-merklelog-ipfs/chain"
)

// encodeLeafAppendedData builds the non-indexed ABI payload
// (uint32, bytes, bytes32[]) by hand, mirroring the layout the decoder
// expects.
func encodeLeafAppendedData(previousAppendBlock uint32, newData []byte, leftInputs [][32]byte) []byte {
	head := make([]byte, 3*32)
	binary.BigEndian.PutUint32(head[32-4:32], previousAppendBlock)

	newDataOffset := uint64(len(head))
	binary.BigEndian.PutUint64(head[2*32-8:2*32], newDataOffset)

	paddedLen := (len(newData) + 31) / 32 * 32
	newDataTail := make([]byte, 32+paddedLen)
	binary.BigEndian.PutUint64(newDataTail[32-8:32], uint64(len(newData)))
	copy(newDataTail[32:], newData)

	leftInputsOffset := newDataOffset + uint64(len(newDataTail))
	binary.BigEndian.PutUint64(head[3*32-8:3*32], leftInputsOffset)

	leftInputsTail := make([]byte, 32+len(leftInputs)*32)
	binary.BigEndian.PutUint64(leftInputsTail[32-8:32], uint64(len(leftInputs)))
	for i, d := range leftInputs {
		copy(leftInputsTail[32+i*32:32+(i+1)*32], d[:])
	}

	out := append([]byte{}, head...)
	out = append(out, newDataTail...)
	out = append(out, leftInputsTail...)
	return out
}

func Test_DecodeLeafAppended(t *testing.T) {
	leftInputs := [][32]byte{{1}, {2}}
	data := encodeLeafAppendedData(777, []byte("payload"), leftInputs)

	var leafIndexTopic ethcommon.Hash
	binary.BigEndian.PutUint32(leafIndexTopic[32-4:], 9)

	log := types.Log{
		Topics:      []ethcommon.Hash{chain.LeafAppendedTopic0, leafIndexTopic},
		Data:        data,
		BlockNumber: 1234,
		TxHash:      ethcommon.HexToHash("0xdeadbeef"),
	}

	ev, err := chain.DecodeLeafAppended(log)
	require.NoError(t, err)
	require.Equal(t, uint32(9), ev.LeafIndex)
	require.Equal(t, uint32(777), ev.PreviousAppendBlock)
	require.Equal(t, []byte("payload"), ev.NewData)
	require.Len(t, ev.LeftInputs, 2)
	require.Equal(t, uint64(1234), ev.BlockNumber)
}

func Test_DecodeLeafAppended_RejectsMissingTopics(t *testing.T) {
	log := types.Log{Topics: []ethcommon.Hash{chain.LeafAppendedTopic0}}
	_, err := chain.DecodeLeafAppended(log)
	require.ErrorIs(t, err, chain.ErrTopicMismatch)
}
