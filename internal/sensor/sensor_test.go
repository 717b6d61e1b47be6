package sensor_test

import (
	"os"
	"path/filepath"
	"testing"

	"codeberg.org/mutker/moisturectl/internal/config"
	"codeberg.org/mutker/moisturectl/internal/errors"
	"codeberg.org/mutker/moisturectl/internal/sensor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIIORead(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "in_voltage6_raw")
	require.NoError(t, os.WriteFile(path, []byte("2517\n"), 0o600))

	src, err := sensor.NewIIO(dir, 6)
	require.NoError(t, err)
	defer src.Close()

	value, err := src.Read()
	require.NoError(t, err)
	assert.Equal(t, 2517, value)
	assert.Equal(t, "iio", src.Name())

	require.NoError(t, os.WriteFile(path, []byte("1800"), 0o600))
	value, err = src.Read()
	require.NoError(t, err)
	assert.Equal(t, 1800, value)
}

func TestIIOReadFailures(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "in_voltage0_raw")
	require.NoError(t, os.WriteFile(path, []byte("garbage"), 0o600))

	src, err := sensor.NewIIO(dir, 0)
	require.NoError(t, err)

	_, err = src.Read()
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, sensor.ErrParseFailed))

	require.NoError(t, os.Remove(path))
	_, err = src.Read()
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, sensor.ErrReadFailed))
}

func TestIIOMissingChannel(t *testing.T) {
	_, err := sensor.NewIIO(t.TempDir(), 3)
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, sensor.ErrDeviceInitFailed))

	_, err = sensor.NewIIO(t.TempDir(), -1)
	assert.True(t, errors.HasCode(err, sensor.ErrInvalidChannel))
}

func TestSimulatedStaysInRange(t *testing.T) {
	src := sensor.NewSimulated(5000)

	for i := 0; i < 1000; i++ {
		value, err := src.Read()
		require.NoError(t, err)
		assert.GreaterOrEqual(t, value, 0)
		assert.LessOrEqual(t, value, 4095)
	}
}

func TestNewSelectsDriver(t *testing.T) {
	src, err := sensor.New(config.SensorConfig{Driver: "simulated"}, 2000)
	require.NoError(t, err)
	assert.Equal(t, "simulated", src.Name())

	_, err = sensor.New(config.SensorConfig{Driver: "dht22"}, 2000)
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, sensor.ErrUnknownDriver))

	_, err = sensor.New(config.SensorConfig{Driver: "ads1115", Channel: 7}, 2000)
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, sensor.ErrInvalidChannel))
}
