package chain

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/gorilla/websocket"
)

// NewHeadsTimeout bounds how long SubscribeNewHeads waits for the
// subscription to be confirmed before the caller falls back to polling
// (spec §4.7: "Select subscription if a push endpoint is configured and
// probing confirms subscribe(newHeads) succeeds within a short timeout").
const NewHeadsTimeout = 3 * time.Second

// HeadSubscription delivers one notification per new head and can be torn
// down with Close.
type HeadSubscription struct {
	conn   *websocket.Conn
	heads  chan uint64
	errs   chan error
	cancel context.CancelFunc
}

// Heads returns the channel new block numbers are delivered on.
func (s *HeadSubscription) Heads() <-chan uint64 { return s.heads }

// Err returns the channel a terminal read or decode error is delivered on,
// after which Heads is closed.
func (s *HeadSubscription) Err() <-chan error { return s.errs }

// Close tears down the underlying WebSocket connection.
func (s *HeadSubscription) Close() error {
	s.cancel()
	return s.conn.Close()
}

type rpcRequest struct {
	JSONRPC string `json:"jsonrpc"`
	ID      int    `json:"id"`
	Method  string `json:"method"`
	Params  []any  `json:"params"`
}

type rpcResponse struct {
	ID     int             `json:"id"`
	Result json.RawMessage `json:"result"`
	Error  *rpcError       `json:"error"`
	Method string          `json:"method"`
	Params struct {
		Subscription string          `json:"subscription"`
		Result       json.RawMessage `json:"result"`
	} `json:"params"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *rpcError) Error() string { return fmt.Sprintf("chain: rpc error %d: %s", e.Code, e.Message) }

type newHeadResult struct {
	Number string `json:"number"`
}

// SubscribeNewHeads dials wsURL and issues eth_subscribe("newHeads"),
// waiting up to NewHeadsTimeout for the subscription id before returning.
// On success it returns a HeadSubscription whose Heads channel receives
// each new block number as it arrives.
func SubscribeNewHeads(ctx context.Context, wsURL string) (*HeadSubscription, error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, wsURL, nil)
	if err != nil {
		return nil, fmt.Errorf("chain: dialing %s: %w", wsURL, err)
	}

	req := rpcRequest{JSONRPC: "2.0", ID: 1, Method: "eth_subscribe", Params: []any{"newHeads"}}
	if err := conn.WriteJSON(req); err != nil {
		conn.Close()
		return nil, fmt.Errorf("chain: sending eth_subscribe: %w", err)
	}

	confirmCtx, confirmCancel := context.WithTimeout(ctx, NewHeadsTimeout)
	defer confirmCancel()

	var subID string
	confirmed := make(chan error, 1)
	go func() {
		var resp rpcResponse
		if err := conn.ReadJSON(&resp); err != nil {
			confirmed <- err
			return
		}
		if resp.Error != nil {
			confirmed <- resp.Error
			return
		}
		if err := json.Unmarshal(resp.Result, &subID); err != nil {
			confirmed <- fmt.Errorf("chain: decoding subscription id: %w", err)
			return
		}
		confirmed <- nil
	}()

	select {
	case err := <-confirmed:
		if err != nil {
			conn.Close()
			return nil, err
		}
	case <-confirmCtx.Done():
		conn.Close()
		return nil, fmt.Errorf("chain: eth_subscribe(newHeads) not confirmed within %s", NewHeadsTimeout)
	}

	runCtx, cancel := context.WithCancel(ctx)
	sub := &HeadSubscription{
		conn:   conn,
		heads:  make(chan uint64),
		errs:   make(chan error, 1),
		cancel: cancel,
	}

	go sub.readLoop(runCtx, subID)
	return sub, nil
}

func (s *HeadSubscription) readLoop(ctx context.Context, subID string) {
	defer close(s.heads)
	for {
		var resp rpcResponse
		if err := s.conn.ReadJSON(&resp); err != nil {
			select {
			case s.errs <- err:
			default:
			}
			return
		}
		if resp.Method != "eth_subscription" || resp.Params.Subscription != subID {
			continue
		}
		var head newHeadResult
		if err := json.Unmarshal(resp.Params.Result, &head); err != nil {
			select {
			case s.errs <- err:
			default:
			}
			return
		}
		n, err := parseHexUint64(head.Number)
		if err != nil {
			select {
			case s.errs <- err:
			default:
			}
			return
		}
		select {
		case s.heads <- n:
		case <-ctx.Done():
			return
		}
	}
}

func parseHexUint64(s string) (uint64, error) {
	s = trimHexPrefix(s)
	var n uint64
	if _, err := fmt.Sscanf(s, "%x", &n); err != nil {
		return 0, fmt.Errorf("chain: decoding block number %q: %w", s, err)
	}
	return n, nil
}
