package telemetry

import (
	"context"
	"sync/atomic"

	"codeberg.org/mutker/moisturectl/internal/errors"
	"codeberg.org/mutker/moisturectl/internal/logger"
	"codeberg.org/mutker/moisturectl/internal/metrics"
	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
)

// Influx queues successful readings as points for an InfluxDB v2 bucket.
// Writes happen in the background; Record never waits on the network.
type Influx struct {
	client      influxdb2.Client
	writer      api.WriteAPI
	log         logger.Logger
	writeErrors atomic.Uint64
}

func NewInflux(cfg InfluxConfig, log logger.Logger) (*Influx, error) {
	errFactory := errors.New()

	if !cfg.Enabled() {
		return nil, errFactory.WithMessage(ErrInvalidConfig, "InfluxDB URL is not set")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultWriteTimeout
	}

	opts := influxdb2.DefaultOptions().
		SetHTTPRequestTimeout(uint(timeout.Seconds())).
		SetBatchSize(defaultBatchSize).
		SetFlushInterval(defaultFlushInterval)
	client := influxdb2.NewClientWithOptions(cfg.URL, cfg.Token, opts)

	i := &Influx{
		client: client,
		writer: client.WriteAPI(cfg.Org, cfg.Bucket),
		log:    log,
	}

	// The error channel is unbuffered and must be drained before any write
	go i.drainErrors(i.writer.Errors())

	log.Info().
		Str("url", cfg.URL).
		Str("org", cfg.Org).
		Str("bucket", cfg.Bucket).
		Msg("InfluxDB sink enabled")

	return i, nil
}

func (i *Influx) drainErrors(errs <-chan error) {
	for err := range errs {
		i.writeErrors.Add(1)
		i.log.Warn().Err(errors.New().Wrap(ErrWriteFailed, err)).Msg("InfluxDB write failed")
	}
}

func (i *Influx) Record(_ context.Context, snapshot *metrics.Snapshot) error {
	if snapshot == nil {
		return errors.New().New(ErrInvalidSnapshot)
	}
	// Failed samples carry no value worth plotting
	if !snapshot.ReadOK {
		return nil
	}

	p := influxdb2.NewPointWithMeasurement(defaultMeasurement).
		AddTag("sensor", snapshot.Sensor).
		AddField("value", snapshot.Value).
		AddField("alert_active", snapshot.AlertActive).
		SetTime(snapshot.Timestamp)

	i.writer.WritePoint(p)

	return nil
}

// Flush blocks until queued points have been sent
func (i *Influx) Flush() {
	i.writer.Flush()
}

// WriteErrors counts background writes the server did not accept
func (i *Influx) WriteErrors() uint64 {
	return i.writeErrors.Load()
}

// Close flushes pending points and releases the client
func (i *Influx) Close() error {
	i.writer.Flush()
	i.client.Close()
	return nil
}
