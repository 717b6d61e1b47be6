// Package sensor provides the moisture sensor backends.
package sensor

import (
	"codeberg.org/mutker/moisturectl/internal/config"
	"codeberg.org/mutker/moisturectl/internal/errors"
)

// New builds the Source selected by cfg.Driver.
func New(cfg config.SensorConfig, dryThreshold int) (Source, error) {
	switch config.SensorDriver(cfg.Driver) {
	case config.SensorADS1115:
		return NewADS1115(ADS1115Config{
			Bus:     cfg.I2CBus,
			Address: cfg.I2CAddress,
			Channel: cfg.Channel,
		})
	case config.SensorIIO:
		return NewIIO(cfg.IIODevice, cfg.Channel)
	case config.SensorSimulated:
		return NewSimulated(dryThreshold), nil
	default:
		return nil, errors.New().WithData(ErrUnknownDriver, cfg.Driver)
	}
}
