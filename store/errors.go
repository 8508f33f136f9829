package store

import "errors"

var (
	// ErrDuplicateTrailCid is returned by AppendTrailPair when the CID being
	// appended has already been recorded, so the caller can treat it as a
	// no-op rather than growing the trail log.
	ErrDuplicateTrailCid = errors.New("store: cid already present in trail")

	// ErrTrailIndexGap is returned when reading the trail log finds a hole
	// below the recorded max index, which should never happen since
	// AppendTrailPair is the only writer and always extends contiguously.
	ErrTrailIndexGap = errors.New("store: trail log has a missing index")
)
