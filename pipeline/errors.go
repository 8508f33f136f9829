// Package pipeline reconciles the locally held dataset against the chain:
// a backward historical sweep on startup, then either a WebSocket
// subscription or polling loop for new leaves, with a gap-filling walk-back
// for any leaf observed out of order (spec §4.7).
package pipeline

import "errors"

var (
	// ErrOutOfOrder is returned by the backward sweep when a fetched log
	// window's leaf_index values do not strictly decrease.
	ErrOutOfOrder = errors.New("pipeline: leaf_index did not strictly decrease across the window")

	// ErrGapFillExhausted is returned by the backward sweep when the
	// number of leaves it resolved from a root's tree does not match the
	// leaf count that root covers.
	ErrGapFillExhausted = errors.New("pipeline: gap-fill walk-back ran past the start of the log")

	// ErrNoPublisher is returned by Republish when no content-addressed
	// publisher was configured.
	ErrNoPublisher = errors.New("pipeline: no publisher configured")
)
