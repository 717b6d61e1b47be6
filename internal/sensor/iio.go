package sensor

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"codeberg.org/mutker/moisturectl/internal/errors"
)

// IIO reads a raw ADC channel exposed by the Linux industrial I/O subsystem,
// e.g. /sys/bus/iio/devices/iio:device0/in_voltage6_raw.
type IIO struct {
	path string
}

func NewIIO(device string, channel int) (*IIO, error) {
	errFactory := errors.New()

	if channel < 0 {
		return nil, errFactory.WithData(ErrInvalidChannel, channel)
	}

	path := filepath.Join(device, fmt.Sprintf("in_voltage%d_raw", channel))
	if _, err := os.Stat(path); err != nil {
		return nil, errFactory.Wrap(ErrDeviceInitFailed, err)
	}

	return &IIO{path: path}, nil
}

func (s *IIO) Name() string {
	return "iio"
}

func (s *IIO) Read() (int, error) {
	errFactory := errors.New()

	raw, err := os.ReadFile(s.path)
	if err != nil {
		return 0, errFactory.Wrap(ErrReadFailed, err)
	}

	value, err := strconv.Atoi(strings.TrimSpace(string(raw)))
	if err != nil {
		return 0, errFactory.Wrap(ErrParseFailed, err)
	}

	return value, nil
}

func (*IIO) Close() error {
	return nil
}
