package sink

import "codeberg.org/veldt/trainwatch/internal/errors"

const (
	ErrInvalidConfig = errors.ErrorCode("sink_invalid_config")
	ErrWriteFailed   = errors.ErrorCode("sink_write_failed")
	ErrWatchFailed   = errors.ErrorCode("sink_watch_failed")
)
