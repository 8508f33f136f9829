// Package blockstore is the content-addressed block client: Get/Put/Provide
// against an IPFS-shaped block source, with CID verification on both the
// read and write path and an optional remote-pin side channel guarded by a
// circuit breaker (spec §4.5).
package blockstore

import "errors"

var (
	// ErrNotFound is returned by Get when the block source has no block
	// for the requested CID.
	ErrNotFound = errors.New("blockstore: block not found")

	// ErrCapabilityDisabled is returned by Put/Provide when the client was
	// constructed without that capability.
	ErrCapabilityDisabled = errors.New("blockstore: capability not enabled on this client")

	// ErrSideChannelOpen is returned by Provide when the remote-pin
	// circuit breaker has tripped; it does not fail the underlying Put.
	ErrSideChannelOpen = errors.New("blockstore: remote-pin side channel circuit is open")

	// ErrInvalidCapabilities is returned by New when caps violates spec
	// §4.5's dependency order: pin requires put; provide requires pin.
	ErrInvalidCapabilities = errors.New("blockstore: invalid capabilities")
)
