package telemetry

import (
	"time"

	"codeberg.org/mutker/moisturectl/internal/errors"
)

const (
	defaultMeasurement  = "soil_moisture"
	defaultWriteTimeout = 5 * time.Second
	// Points per background write and the longest a point waits in the queue
	defaultBatchSize     = 20
	defaultFlushInterval = 1000 // ms
)

// InfluxConfig configures the InfluxDB v2 sink. An empty URL disables it.
type InfluxConfig struct {
	URL     string
	Token   string
	Org     string
	Bucket  string
	Timeout time.Duration
}

func (c InfluxConfig) Enabled() bool {
	return c.URL != ""
}

func (c InfluxConfig) Validate() error {
	errFactory := errors.New()

	if !c.Enabled() {
		return nil
	}
	if c.Org == "" || c.Bucket == "" {
		return errFactory.WithData(ErrInvalidConfig, struct {
			Org    string
			Bucket string
		}{
			Org:    c.Org,
			Bucket: c.Bucket,
		})
	}
	return nil
}
