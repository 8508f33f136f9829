// Package chain decodes the on-chain accumulator contract's wire formats
// (the packed state word, the LeafAppended event, and the bare-bytes view
// call returns) and wraps the JSON-RPC transport used to reach it (spec
// §4.4).
package chain

import "errors"

var (
	// ErrShortWord is returned when a state word is not exactly 32 bytes.
	ErrShortWord = errors.New("chain: state word is not 32 bytes")

	// ErrMalformedABI is returned when an ABI-encoded return value is
	// shorter than its own declared offsets or lengths claim.
	ErrMalformedABI = errors.New("chain: malformed abi-encoded value")

	// ErrTopicMismatch is returned when a log's topics don't match the
	// LeafAppended signature this decoder expects.
	ErrTopicMismatch = errors.New("chain: log does not match LeafAppended topic")

	// ErrOutOfOrder reports a log batch whose leaf_index values do not
	// strictly decrease. No function in this package returns it; the
	// backward sweep reports that case with pipeline.ErrOutOfOrder.
	ErrOutOfOrder = errors.New("chain: log batch is not in strictly decreasing leaf_index order")

	// ErrTransport is the sentinel Do wraps a call's last error in
	// once every retry attempt has been exhausted (spec §7: transport
	// errors retry inside the wrapper; on exhaustion they surface as
	// Transport).
	ErrTransport = errors.New("chain: transport retries exhausted")
)
