package sensor

import (
	"sync"

	"codeberg.org/mutker/moisturectl/internal/errors"
	"codeberg.org/mutker/moisturectl/internal/logger"
	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/devices/v3/ads1x15"
	"periph.io/x/host/v3"
)

const (
	adsMaxVoltage = 4096 * physic.MilliVolt
	adsFrequency  = 8 * physic.Hertz
)

var adsChannels = []ads1x15.Channel{
	ads1x15.Channel0,
	ads1x15.Channel1,
	ads1x15.Channel2,
	ads1x15.Channel3,
}

var hostInit sync.Once

type ADS1115Config struct {
	Bus     string
	Address uint16
	Channel int
}

// ADS1115 reads one single-ended channel of a TI ADS1115 over I2C.
type ADS1115 struct {
	bus     i2c.BusCloser
	pin     ads1x15.PinADC
	channel int
}

func NewADS1115(cfg ADS1115Config) (*ADS1115, error) {
	errFactory := errors.New()

	if cfg.Channel < 0 || cfg.Channel >= len(adsChannels) {
		return nil, errFactory.WithData(ErrInvalidChannel, cfg.Channel)
	}

	var initErr error
	hostInit.Do(func() {
		_, initErr = host.Init()
	})
	if initErr != nil {
		return nil, errFactory.Wrap(ErrHostInitFailed, initErr)
	}

	bus, err := i2creg.Open(cfg.Bus)
	if err != nil {
		return nil, errFactory.WithData(ErrBusOpenFailed, struct {
			Bus   string
			Error string
		}{
			Bus:   cfg.Bus,
			Error: err.Error(),
		})
	}

	opts := ads1x15.DefaultOpts
	if cfg.Address != 0 {
		opts.I2cAddress = cfg.Address
	}

	dev, err := ads1x15.NewADS1115(bus, &opts)
	if err != nil {
		_ = bus.Close()
		return nil, errFactory.Wrap(ErrDeviceInitFailed, err)
	}

	pin, err := dev.PinForChannel(adsChannels[cfg.Channel], adsMaxVoltage, adsFrequency, ads1x15.BestQuality)
	if err != nil {
		_ = bus.Close()
		return nil, errFactory.Wrap(ErrDeviceInitFailed, err)
	}

	logger.Component("sensor").Info().
		Str("bus", bus.String()).
		Uint16("address", opts.I2cAddress).
		Int("channel", cfg.Channel).
		Msg("ADS1115 initialized")

	return &ADS1115{bus: bus, pin: pin, channel: cfg.Channel}, nil
}

func (a *ADS1115) Name() string {
	return "ads1115"
}

func (a *ADS1115) Read() (int, error) {
	sample, err := a.pin.Read()
	if err != nil {
		return 0, errors.New().Wrap(ErrReadFailed, err)
	}

	return int(sample.Raw), nil
}

func (a *ADS1115) Close() error {
	errFactory := errors.New()

	if err := a.pin.Halt(); err != nil {
		_ = a.bus.Close()
		return errFactory.Wrap(ErrCloseFailed, err)
	}
	if err := a.bus.Close(); err != nil {
		return errFactory.Wrap(ErrCloseFailed, err)
	}

	return nil
}
