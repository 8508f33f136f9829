package chain

import (
	"encoding/binary"
	"fmt"

	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"

	dagcid "github.com/datatrails/go-merklelog-ipfs/cid"
	"github.com/datatrails/go-merklelog-ipfs/domain"
)

const word = 32

// LeafAppendedSignature is the default event signature this decoder
// expects; deployments may override the topic a caller filters on.
const LeafAppendedSignature = "LeafAppended(uint32,uint32,bytes,bytes32[])"

// LeafAppendedTopic0 is the keccak256 hash of LeafAppendedSignature, the
// topic 0 every LeafAppended log carries.
var LeafAppendedTopic0 = crypto.Keccak256Hash([]byte(LeafAppendedSignature))

// DecodeLeafAppended decodes a chain log into an AppendedEvent. The
// indexed leaf_index is read from topic 1; the non-indexed payload is the
// ABI encoding of (uint32 previous_append_block, bytes new_data,
// bytes32[] left_inputs), read by walking its two dynamic offsets (spec
// §4.4) rather than by a generic ABI unpacker.
func DecodeLeafAppended(log types.Log) (domain.AppendedEvent, error) {
	if len(log.Topics) < 2 {
		return domain.AppendedEvent{}, fmt.Errorf("%w: expected 2 topics, got %d", ErrTopicMismatch, len(log.Topics))
	}

	leafIndex := binary.BigEndian.Uint32(log.Topics[1][word-4:])

	previousAppendBlock, newData, leftInputDigests, err := decodeLeafAppendedData(log.Data)
	if err != nil {
		return domain.AppendedEvent{}, err
	}

	leftInputs := make([]dagcid.Cid, len(leftInputDigests))
	for i, digest := range leftInputDigests {
		c, err := dagcid.FromDigest(digest[:])
		if err != nil {
			return domain.AppendedEvent{}, err
		}
		leftInputs[i] = c
	}

	return domain.AppendedEvent{
		LeafIndex:           leafIndex,
		PreviousAppendBlock: previousAppendBlock,
		NewData:             newData,
		LeftInputs:          leftInputs,
		BlockNumber:         log.BlockNumber,
		TxHash:              log.TxHash.Hex(),
		Removed:             log.Removed,
	}, nil
}

// decodeLeafAppendedData walks the ABI head (three 32-byte slots: the
// static uint32, then the two dynamic offsets) and follows each offset to
// its length-prefixed tail.
func decodeLeafAppendedData(data []byte) (uint32, []byte, [][32]byte, error) {
	if len(data) < 3*word {
		return 0, nil, nil, fmt.Errorf("%w: head too short", ErrMalformedABI)
	}

	previousAppendBlock := binary.BigEndian.Uint32(data[word-4 : word])
	newDataOffset := binary.BigEndian.Uint64(data[2*word-8 : 2*word])
	leftInputsOffset := binary.BigEndian.Uint64(data[3*word-8 : 3*word])

	newData, err := readDynamicBytes(data, newDataOffset)
	if err != nil {
		return 0, nil, nil, fmt.Errorf("new_data: %w", err)
	}

	leftInputs, err := readBytes32Array(data, leftInputsOffset)
	if err != nil {
		return 0, nil, nil, fmt.Errorf("left_inputs: %w", err)
	}

	return previousAppendBlock, newData, leftInputs, nil
}

func readDynamicBytes(data []byte, offset uint64) ([]byte, error) {
	if offset+word > uint64(len(data)) {
		return nil, fmt.Errorf("%w: length slot out of range", ErrMalformedABI)
	}
	length := binary.BigEndian.Uint64(data[offset+word-8 : offset+word])
	start := offset + word
	if start+length > uint64(len(data)) {
		return nil, fmt.Errorf("%w: payload out of range", ErrMalformedABI)
	}
	out := make([]byte, length)
	copy(out, data[start:start+length])
	return out, nil
}

func readBytes32Array(data []byte, offset uint64) ([][32]byte, error) {
	if offset+word > uint64(len(data)) {
		return nil, fmt.Errorf("%w: length slot out of range", ErrMalformedABI)
	}
	count := binary.BigEndian.Uint64(data[offset+word-8 : offset+word])
	start := offset + word
	need := count * word
	if start+need > uint64(len(data)) {
		return nil, fmt.Errorf("%w: elements out of range", ErrMalformedABI)
	}
	out := make([][32]byte, count)
	for i := uint64(0); i < count; i++ {
		copy(out[i][:], data[start+i*word:start+(i+1)*word])
	}
	return out, nil
}
