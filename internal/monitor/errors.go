package monitor

import "codeberg.org/mutker/moisturectl/internal/errors"

const (
	ErrInvalidInterval = errors.ErrInvalidInterval
	ErrInvalidConfig   = errors.ErrorCode("monitor_invalid_config")
	ErrClosed          = errors.ErrorCode("monitor_closed")
	ErrTransition      = errors.ErrorCode("monitor_transition_failed")
)

func init() {
	errors.RegisterMessages(map[errors.ErrorCode]string{
		ErrInvalidConfig: "Invalid monitor configuration",
		ErrClosed:        "Monitor is closed",
		ErrTransition:    "Monitor state transition failed",
	})
}
