package chain

import (
	"context"
	"encoding/binary"
	"encoding/hex"
	"fmt"

	ethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/rpc"

	dagcid "github.com/datatrails/go-merklelog-ipfs/cid"
	"github.com/datatrails/go-merklelog-ipfs/domain"
)

// selector returns the first 4 bytes of keccak256(signature), the ABI
// function selector.
func selector(signature string) []byte {
	return crypto.Keccak256([]byte(signature))[:4]
}

var (
	stateSelector   = selector("state()")
	rootCidSelector = selector("root_cid()")
)

// Client is a narrow read-only view over the accumulator contract: the two
// bulk/bare view calls and LeafAppended log fetches, all serialized through
// a Throttle.
type Client struct {
	rpc      *rpc.Client
	address  ethcommon.Address
	throttle *Throttle
}

// NewClient returns a Client bound to contract address over an already
// dialed JSON-RPC connection.
func NewClient(rpcClient *rpc.Client, address ethcommon.Address, throttle *Throttle) *Client {
	return &Client{rpc: rpcClient, address: address, throttle: throttle}
}

func (c *Client) ethCall(ctx context.Context, data []byte) ([]byte, error) {
	callArgs := map[string]any{
		"to":   c.address,
		"data": "0x" + ethcommon.Bytes2Hex(data),
	}

	return Do(ctx, c.throttle, func(ctx context.Context) ([]byte, error) {
		var result hexutilBytes
		if err := c.rpc.CallContext(ctx, &result, "eth_call", callArgs, "latest"); err != nil {
			return nil, err
		}
		return result, nil
	})
}

// State performs the contract's bulk view call, returning the decoded
// state word and the raw peak digest array (spec §4.4: "a fresh bulk view
// returns (state_word, [u8;32][32])").
func (c *Client) State(ctx context.Context) (State, [][32]byte, error) {
	raw, err := c.ethCall(ctx, stateSelector)
	if err != nil {
		return State{}, nil, err
	}
	if len(raw) < word*(1+32) {
		return State{}, nil, fmt.Errorf("%w: state() return too short", ErrMalformedABI)
	}

	s, err := DecodeState(raw[:word])
	if err != nil {
		return State{}, nil, err
	}

	peaks := make([][32]byte, 32)
	for i := 0; i < 32; i++ {
		copy(peaks[i][:], raw[word+i*word:word+(i+1)*word])
	}
	return s, peaks, nil
}

// RootCid performs the contract's root_cid() view call: a bare dynamic
// `bytes` return whose payload is a 32-byte digest, wrapped as a CID with
// no rehash (spec §4.4: "returns bytes at offset 64 of length read from
// bytes 60-63").
func (c *Client) RootCid(ctx context.Context) (dagcid.Cid, error) {
	raw, err := c.ethCall(ctx, rootCidSelector)
	if err != nil {
		return dagcid.Cid{}, err
	}
	if len(raw) < 2*word {
		return dagcid.Cid{}, fmt.Errorf("%w: root_cid() return too short", ErrMalformedABI)
	}
	length := binary.BigEndian.Uint32(raw[2*word-4 : 2*word])
	start := uint64(2 * word)
	if start+uint64(length) > uint64(len(raw)) {
		return dagcid.Cid{}, fmt.Errorf("%w: root_cid() payload out of range", ErrMalformedABI)
	}
	digest := raw[start : start+uint64(length)]
	return dagcid.FromDigest(digest)
}

// LeafAppendedLogs fetches and decodes every LeafAppended log in
// [fromBlock, toBlock], inclusive, ordered as the node returned them.
func (c *Client) LeafAppendedLogs(ctx context.Context, fromBlock, toBlock uint64) ([]domain.AppendedEvent, error) {
	filter := map[string]any{
		"fromBlock": toBlockTag(fromBlock),
		"toBlock":   toBlockTag(toBlock),
		"address":   c.address,
		"topics":    []ethcommon.Hash{LeafAppendedTopic0},
	}

	logs, err := Do(ctx, c.throttle, func(ctx context.Context) ([]types.Log, error) {
		var result []types.Log
		if err := c.rpc.CallContext(ctx, &result, "eth_getLogs", filter); err != nil {
			return nil, err
		}
		return result, nil
	})
	if err != nil {
		return nil, err
	}

	out := make([]domain.AppendedEvent, len(logs))
	for i, log := range logs {
		ev, err := DecodeLeafAppended(log)
		if err != nil {
			return nil, err
		}
		out[i] = ev
	}
	return out, nil
}

// LeafAppendedAt fetches the single LeafAppended log at exactly blockNumber,
// the one-RPC-per-leaf lookup used by the gap-fill walk-back (spec §4.7).
func (c *Client) LeafAppendedAt(ctx context.Context, blockNumber uint64) (domain.AppendedEvent, error) {
	logs, err := c.LeafAppendedLogs(ctx, blockNumber, blockNumber)
	if err != nil {
		return domain.AppendedEvent{}, err
	}
	if len(logs) == 0 {
		return domain.AppendedEvent{}, fmt.Errorf("chain: no LeafAppended log at block %d", blockNumber)
	}
	return logs[0], nil
}

func toBlockTag(n uint64) string {
	return "0x" + hex.EncodeToString(bigEndianTrimmed(n))
}

func bigEndianTrimmed(n uint64) []byte {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], n)
	i := 0
	for i < 7 && buf[i] == 0 {
		i++
	}
	return buf[i:]
}

// hexutilBytes unmarshals a 0x-prefixed hex JSON string into raw bytes,
// matching the shape every eth_call result takes over JSON-RPC.
type hexutilBytes []byte

func (h *hexutilBytes) UnmarshalJSON(data []byte) error {
	s := string(data)
	if len(s) < 2 || s[0] != '"' || s[len(s)-1] != '"' {
		return fmt.Errorf("chain: expected JSON string, got %q", s)
	}
	s = s[1 : len(s)-1]
	s = trimHexPrefix(s)
	if len(s)%2 == 1 {
		s = "0" + s
	}
	decoded, err := hex.DecodeString(s)
	if err != nil {
		return err
	}
	*h = decoded
	return nil
}

func trimHexPrefix(s string) string {
	if len(s) >= 2 && s[0] == '0' && (s[1] == 'x' || s[1] == 'X') {
		return s[2:]
	}
	return s
}
