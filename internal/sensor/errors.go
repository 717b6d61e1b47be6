package sensor

import "codeberg.org/mutker/moisturectl/internal/errors"

const (
	// Initialization Errors
	ErrHostInitFailed   = errors.ErrorCode("sensor_host_init_failed")
	ErrBusOpenFailed    = errors.ErrorCode("sensor_bus_open_failed")
	ErrDeviceInitFailed = errors.ErrorCode("sensor_device_init_failed")
	ErrInvalidChannel   = errors.ErrorCode("sensor_invalid_channel")
	ErrUnknownDriver    = errors.ErrorCode("sensor_unknown_driver")

	// Read Errors
	ErrReadFailed  = errors.ErrorCode("sensor_read_failed")
	ErrParseFailed = errors.ErrorCode("sensor_parse_failed")

	// Lifecycle Errors
	ErrCloseFailed = errors.ErrorCode("sensor_close_failed")
)

func init() {
	errors.RegisterMessages(map[errors.ErrorCode]string{
		ErrHostInitFailed:   "Failed to initialize host drivers",
		ErrBusOpenFailed:    "Failed to open I2C bus",
		ErrDeviceInitFailed: "Failed to initialize ADC",
		ErrInvalidChannel:   "Invalid ADC channel",
		ErrUnknownDriver:    "Unknown sensor driver",
		ErrReadFailed:       "Sensor read failed",
		ErrParseFailed:      "Failed to parse sensor value",
		ErrCloseFailed:      "Failed to close sensor",
	})
}
