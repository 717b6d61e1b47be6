package monitor

import (
	"context"
	"time"

	"codeberg.org/mutker/moisturectl/internal/metrics"
)

func (c *Controller) run(ctx context.Context, done chan struct{}) {
	defer close(done)

	if err := c.gate.Wait(ctx); err != nil {
		c.log.Debug().Err(err).Msg("Readiness wait aborted")
		c.exit()
		return
	}

	for c.keepRunning() {
		c.sample(ctx)

		if !sleep(ctx, c.Interval()) {
			c.exit()
			return
		}
	}
}

// keepRunning decides between iterations whether the loop lives on. The
// decision and the handle release happen under one lock so a concurrent
// Start either re-arms this loop or sees it gone.
func (c *Controller) keepRunning() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.lifecycle.Is(StateRunning) {
		return true
	}

	c.release()
	c.log.Info().Msg("Monitor stopped")

	return false
}

func (c *Controller) exit() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.release()
}

func (c *Controller) sample(ctx context.Context) {
	snapshot := &metrics.Snapshot{
		Timestamp: time.Now(),
		Sensor:    c.source.Name(),
	}

	value, err := c.source.Read()
	if err != nil {
		c.log.Warn().Err(err).Str("sensor", snapshot.Sensor).Msg("Sensor read failed, skipping sample")
	} else {
		c.lastValue.Store(int64(value))
		c.hasReading.Store(true)
		snapshot.Value = value
		snapshot.ReadOK = true

		c.log.Debug().Int("value", value).Msg("Sampled moisture")

		if c.policy.Evaluate(value) {
			snapshot.AlertFired = true
			snapshot.AlertDelivered = c.alert(ctx, value)
		}
	}

	snapshot.AlertActive = c.policy.Active()

	if err := c.collector.Record(ctx, snapshot); err != nil {
		c.log.Warn().Err(err).Msg("Failed to record snapshot")
	}
}

// alert sends once and never retries; the latch is already set.
func (c *Controller) alert(ctx context.Context, value int) bool {
	ctx, cancel := context.WithTimeout(ctx, c.alertTimeout)
	defer cancel()

	c.log.Info().
		Int("value", value).
		Int("threshold", c.policy.Threshold()).
		Msg("Soil too dry, sending alert")

	if err := c.notifier.Send(ctx, AlertText(value)); err != nil {
		c.log.Error().Err(err).Int("value", value).Msg("Alert delivery failed")
		return false
	}
	return true
}

// sleep waits for d and reports false if ctx ended first.
func sleep(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return true
	case <-ctx.Done():
		return false
	}
}
