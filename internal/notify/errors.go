package notify

import "codeberg.org/mutker/moisturectl/internal/errors"

const (
	ErrInvalidConfig   = errors.ErrorCode("notify_invalid_config")
	ErrBuildRequest    = errors.ErrorCode("notify_build_request_failed")
	ErrDeliveryFailed  = errors.ErrorCode("notify_delivery_failed")
	ErrRejected        = errors.ErrorCode("notify_rejected")
	ErrDeliveryTimeout = errors.ErrTimeout
)

func init() {
	errors.RegisterMessages(map[errors.ErrorCode]string{
		ErrInvalidConfig:  "Invalid notifier configuration",
		ErrBuildRequest:   "Failed to build alert request",
		ErrDeliveryFailed: "Alert delivery failed",
		ErrRejected:       "Alert rejected by the Bot API",
	})
}
