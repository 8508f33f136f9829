package blockstore

import (
	"context"
	"fmt"

	dagcid "github.com/datatrails/go-merklelog-ipfs/cid"
	"github.com/datatrails/go-merklelog-ipfs/dagcbor"
)

// Source is the narrow transport this client drives; any content-addressed
// backend (an IPFS HTTP API client, a local blockstore) can implement it.
// BlockGet/BlockPut deal in already-encoded dag-cbor bytes; this package
// owns CID verification, not the transport.
type Source interface {
	BlockGet(ctx context.Context, c dagcid.Cid) ([]byte, bool, error)
	BlockPut(ctx context.Context, encoded []byte) error
}

// Pinner is the remote-pin side channel: a best-effort "also keep this
// around" signal to a pinning service, independent of BlockPut succeeding.
type Pinner interface {
	Pin(ctx context.Context, c dagcid.Cid) error
}

// Capabilities gates which of Put/Pin/Provide a Client is allowed to
// perform, so a read-only deployment can be constructed without a writable
// Source at all. The three flags have a fixed dependency order (spec
// §4.5): pin requires put; provide requires pin. New rejects any
// Capabilities value that violates it.
type Capabilities struct {
	Put     bool
	Pin     bool
	Provide bool
}

// validate enforces the pin-requires-put, provide-requires-pin dependency
// order a deployment's flags must satisfy.
func (c Capabilities) validate() error {
	if c.Pin && !c.Put {
		return fmt.Errorf("%w: pin requires put", ErrInvalidCapabilities)
	}
	if c.Provide && !c.Pin {
		return fmt.Errorf("%w: provide requires pin", ErrInvalidCapabilities)
	}
	return nil
}

// Client is the content-addressed block client described by spec §4.5: Get
// verifies the fetched bytes rehash to the requested CID; Put verifies the
// caller's bytes hash to the CID it claims before writing; Provide drives
// the optional remote-pin side channel through its own breaker.
type Client struct {
	source Source
	caps   Capabilities
	side   *sideChannel
}

// New returns a Client, or ErrInvalidCapabilities if caps violates the
// pin-requires-put, provide-requires-pin dependency order. pinner and
// breaker may be nil when caps.Pin is false; the side channel itself is
// gated on Pin, since Provide is only a caller-facing alias for it once
// Pin is enabled.
func New(source Source, caps Capabilities, pinner Pinner, breaker *Breaker) (*Client, error) {
	if err := caps.validate(); err != nil {
		return nil, err
	}
	var side *sideChannel
	if caps.Pin {
		side = newSideChannel(pinner, breaker)
	}
	return &Client{source: source, caps: caps, side: side}, nil
}

// Get fetches the block for c and verifies it rehashes to c before
// returning it.
func (cl *Client) Get(ctx context.Context, c dagcid.Cid) ([]byte, error) {
	encoded, ok, err := cl.source.BlockGet(ctx, c)
	if err != nil {
		return nil, fmt.Errorf("blockstore: fetching %s: %w", c, err)
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, c)
	}
	if err := dagcbor.VerifyCidChecked(encoded, c); err != nil {
		return nil, fmt.Errorf("blockstore: %s: %w", c, err)
	}
	return encoded, nil
}

// Put writes encoded, which must already hash to c, and gates on the Put
// capability.
func (cl *Client) Put(ctx context.Context, c dagcid.Cid, encoded []byte) error {
	if !cl.caps.Put {
		return ErrCapabilityDisabled
	}
	if err := dagcbor.VerifyCidChecked(encoded, c); err != nil {
		return fmt.Errorf("blockstore: refusing to put %s: %w", c, err)
	}
	return cl.source.BlockPut(ctx, encoded)
}

// Provide asks the remote-pin side channel to keep c around. Failure here
// never fails the Put that produced c (spec §7: "the source occasionally
// treats put failures and pin failures symmetrically; the spec separates
// them") — callers that want to observe it get the error back, but a
// caller that only cares about durable local storage can ignore it.
func (cl *Client) Provide(ctx context.Context, c dagcid.Cid) error {
	if !cl.caps.Provide {
		return ErrCapabilityDisabled
	}
	return cl.side.pin(ctx, c)
}
