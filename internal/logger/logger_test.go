package logger_test

import (
	"bytes"
	"encoding/json"
	"testing"

	"codeberg.org/mutker/moisturectl/internal/errors"
	"codeberg.org/mutker/moisturectl/internal/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	level, ok := logger.ParseLevel("debug")
	assert.True(t, ok)
	assert.Equal(t, logger.DebugLevel, level)

	level, ok = logger.ParseLevel("warning")
	assert.True(t, ok)
	assert.Equal(t, logger.WarnLevel, level)

	_, ok = logger.ParseLevel("verbose")
	assert.False(t, ok)
}

func TestComponentLogger(t *testing.T) {
	var buf bytes.Buffer
	logger.InitWithWriter(&buf, logger.DebugLevel)

	log := logger.Component("monitor").With("sensor", "simulated")
	log.Info().Int("value", 2500).Msg("Moisture reading")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "monitor", entry["component"])
	assert.Equal(t, "simulated", entry["sensor"])
	assert.Equal(t, "Moisture reading", entry["message"])
	assert.EqualValues(t, 2500, entry["value"])
}

func TestErrorWithCode(t *testing.T) {
	var buf bytes.Buffer
	logger.InitWithWriter(&buf, logger.InfoLevel)

	err := errors.New().New(errors.ErrInvalidInterval)
	logger.ErrorWithCode(err).Msg("rejected")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "invalid_interval", entry["error_code"])
	assert.Equal(t, "error", entry["level"])
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	logger.InitWithWriter(&buf, logger.WarnLevel)
	defer logger.SetLogLevel(logger.InfoLevel)

	logger.Debug().Msg("hidden")
	logger.Info().Msg("hidden")
	assert.Zero(t, buf.Len())

	logger.Warn().Msg("shown")
	assert.Contains(t, buf.String(), "shown")
}
