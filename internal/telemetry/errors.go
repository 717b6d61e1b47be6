package telemetry

import "codeberg.org/mutker/moisturectl/internal/errors"

const (
	ErrInvalidConfig    = errors.ErrorCode("telemetry_invalid_config")
	ErrInvalidSnapshot  = errors.ErrorCode("telemetry_invalid_snapshot")
	ErrWriteFailed      = errors.ErrorCode("telemetry_write_failed")
	ErrRegisterFailed   = errors.ErrorCode("telemetry_register_failed")
	ErrOperationTimeout = errors.ErrTimeout
)

func init() {
	errors.RegisterMessages(map[errors.ErrorCode]string{
		ErrInvalidConfig:   "Invalid telemetry configuration",
		ErrInvalidSnapshot: "Invalid snapshot",
		ErrWriteFailed:     "Failed to write telemetry",
		ErrRegisterFailed:  "Failed to register Prometheus collector",
	})
}
