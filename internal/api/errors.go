package api

import "codeberg.org/mutker/moisturectl/internal/errors"

const (
	ErrInvalidRequest = errors.ErrorCode("api_invalid_request")
	ErrInvalidConfig  = errors.ErrorCode("api_invalid_config")
	ErrServe          = errors.ErrServeAPI
	ErrShutdown       = errors.ErrShutdownFailed
)

func init() {
	errors.RegisterMessages(map[errors.ErrorCode]string{
		ErrInvalidRequest: "Invalid request",
		ErrInvalidConfig:  "Invalid control API configuration",
	})
}
