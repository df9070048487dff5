package sync

import "errors"

var (
	ErrDeviceNotFound     = errors.New("device not found")
	ErrRecordNotFound     = errors.New("record not found")
	ErrConflictNotFound   = errors.New("conflict not found")
	ErrStaleVersion       = errors.New("stale record version")
	ErrBatchTooLarge      = errors.New("batch too large")
	ErrInvalidResolution  = errors.New("invalid conflict resolution")
	ErrInvalidSyncRequest = errors.New("invalid sync request")
)
