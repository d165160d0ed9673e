package sentinel

import "errors"

// Sentinel errors for infrastructure facts. The file appender returns these
// (optionally wrapped) so the ingest service can translate them into domain
// errors.
//
//   - ErrUnavailable: a lock could not be acquired in time
//   - ErrInsufficientStorage: the filesystem refused the write for lack of space
//
// For validation errors (bad input, missing fields), use pkg/domain-errors directly.
var (
	ErrUnavailable         = errors.New("unavailable")
	ErrInsufficientStorage = errors.New("insufficient storage")
)
