package energy

import "codeberg.org/veldt/trainwatch/internal/errors"

const (
	// ErrNoMetric is the measurement-unavailable error: the log holds no
	// sample with a usable GPU or CPU power value.
	ErrNoMetric = errors.ErrorCode("energy_no_metric")

	ErrLogAccess     = errors.ErrorCode("energy_log_access_failed")
	ErrLogParse      = errors.ErrorCode("energy_log_parse_failed")
	ErrSamplerInit   = errors.ErrorCode("energy_sampler_init_failed")
	ErrSamplerWrite  = errors.ErrorCode("energy_sampler_write_failed")
	ErrInvalidConfig = errors.ErrorCode("energy_invalid_config")
)

// IsNoMetric reports whether err is the measurement-unavailable error.
func IsNoMetric(err error) bool {
	return errors.HasCode(err, ErrNoMetric)
}
