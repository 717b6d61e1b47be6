// Package monitor runs the sampling loop and owns its lifecycle.
package monitor

import (
	"context"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"codeberg.org/mutker/moisturectl/internal/errors"
	"codeberg.org/mutker/moisturectl/internal/logger"
	"codeberg.org/mutker/moisturectl/internal/metrics"
	"codeberg.org/mutker/moisturectl/internal/notify"
	"codeberg.org/mutker/moisturectl/internal/sensor"
	"github.com/looplab/fsm"
)

const (
	StateStopped  = "stopped"
	StateRunning  = "running"
	StateStopping = "stopping"

	eventStart  = "start"
	eventStop   = "stop"
	eventExited = "exited"

	defaultAlertTimeout = 15 * time.Second
	maxIntervalMinutes  = math.MaxInt64 / int64(time.Minute)
)

// Gate blocks the loop until its prerequisite holds
type Gate interface {
	Wait(ctx context.Context) error
}

type Config struct {
	Interval     time.Duration
	DryThreshold int
	AlertTimeout time.Duration
}

// Status is a point-in-time view of the controller. Fields are read
// individually and are not transactionally consistent with each other.
type Status struct {
	Running     bool
	LastValue   int
	HasReading  bool
	AlertActive bool
	State       string
	Interval    time.Duration
}

type Option func(*Controller)

func WithCollector(c metrics.Collector) Option {
	return func(ctl *Controller) {
		ctl.collector = c
	}
}

func WithLogger(l logger.Logger) Option {
	return func(ctl *Controller) {
		ctl.log = l
	}
}

type Controller struct {
	gate         Gate
	source       sensor.Source
	notifier     notify.Notifier
	collector    metrics.Collector
	policy       *AlertPolicy
	alertTimeout time.Duration
	log          logger.Logger

	// mu guards lifecycle, loopDone and closed. It is never held across a
	// sample, a sleep or the readiness wait.
	mu        sync.Mutex
	lifecycle *fsm.FSM
	loopDone  chan struct{}
	closed    bool

	baseCtx context.Context
	cancel  context.CancelFunc

	interval   atomic.Int64
	lastValue  atomic.Int64
	hasReading atomic.Bool
	alive      atomic.Int32
}

func New(cfg Config, gate Gate, source sensor.Source, notifier notify.Notifier, opts ...Option) (*Controller, error) {
	errFactory := errors.New()

	if gate == nil || source == nil || notifier == nil {
		return nil, errFactory.WithMessage(ErrInvalidConfig, "gate, sensor and notifier are required")
	}
	if cfg.Interval <= 0 {
		return nil, errFactory.WithData(ErrInvalidInterval, cfg.Interval)
	}
	if cfg.AlertTimeout <= 0 {
		cfg.AlertTimeout = defaultAlertTimeout
	}

	ctx, cancel := context.WithCancel(context.Background())

	c := &Controller{
		gate:         gate,
		source:       source,
		notifier:     notifier,
		collector:    nopCollector{},
		policy:       NewAlertPolicy(cfg.DryThreshold),
		alertTimeout: cfg.AlertTimeout,
		log:          logger.Component("monitor"),
		baseCtx:      ctx,
		cancel:       cancel,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.interval.Store(int64(cfg.Interval))

	c.lifecycle = fsm.NewFSM(
		StateStopped,
		fsm.Events{
			{Name: eventStart, Src: []string{StateStopped, StateStopping}, Dst: StateRunning},
			{Name: eventStop, Src: []string{StateRunning}, Dst: StateStopping},
			{Name: eventExited, Src: []string{StateRunning, StateStopping}, Dst: StateStopped},
		},
		fsm.Callbacks{
			"enter_state": func(_ context.Context, e *fsm.Event) {
				c.log.Debug().
					Str("from", e.Src).
					Str("to", e.Dst).
					Msg("Monitor state changed")
			},
		},
	)

	return c, nil
}

// Start launches the sampling loop. It is a no-op while running. A start
// that races a pending stop re-arms the loop that is still alive.
func (c *Controller) Start() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return errors.New().New(ErrClosed)
	}

	switch c.lifecycle.Current() {
	case StateRunning:
		return nil
	case StateStopping:
		if err := c.fire(eventStart); err != nil {
			return err
		}
		c.log.Info().Msg("Monitor re-armed before loop exit")
		return nil
	}

	if err := c.fire(eventStart); err != nil {
		return err
	}

	done := make(chan struct{})
	c.loopDone = done
	c.alive.Add(1)
	go c.run(c.baseCtx, done)

	c.log.Info().
		Dur("interval", c.Interval()).
		Msg("Monitor started")

	return nil
}

// Stop asks the loop to exit after its current iteration. It never waits.
func (c *Controller) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.lifecycle.Is(StateRunning) {
		return
	}
	if err := c.fire(eventStop); err != nil {
		c.log.Error().Err(err).Msg("Failed to stop monitor")
		return
	}

	c.log.Info().Msg("Monitor stop requested")
}

// SetIntervalMinutes changes the sampling interval. The new value applies
// from the next sleep onwards.
func (c *Controller) SetIntervalMinutes(n int) error {
	if n <= 0 || int64(n) > maxIntervalMinutes {
		return errors.New().WithData(ErrInvalidInterval, n)
	}
	return c.SetInterval(time.Duration(n) * time.Minute)
}

func (c *Controller) SetInterval(d time.Duration) error {
	if d <= 0 {
		return errors.New().WithData(ErrInvalidInterval, d)
	}

	c.interval.Store(int64(d))
	c.log.Info().Dur("interval", d).Msg("Sampling interval updated")

	return nil
}

func (c *Controller) Interval() time.Duration {
	return time.Duration(c.interval.Load())
}

func (c *Controller) Status() Status {
	state := c.lifecycle.Current()

	return Status{
		Running:     state == StateRunning,
		LastValue:   int(c.lastValue.Load()),
		HasReading:  c.hasReading.Load(),
		AlertActive: c.policy.Active(),
		State:       state,
		Interval:    c.Interval(),
	}
}

// AwaitStopped blocks until no sampling loop is alive or ctx ends.
func (c *Controller) AwaitStopped(ctx context.Context) error {
	for {
		c.mu.Lock()
		done := c.loopDone
		c.mu.Unlock()

		if done == nil {
			return nil
		}

		select {
		case <-done:
		case <-ctx.Done():
			return errors.New().Wrap(errors.ErrTimeout, ctx.Err())
		}
	}
}

// Close stops the loop, interrupts any sleep or readiness wait in progress
// and waits for the loop to exit. The controller cannot be restarted.
func (c *Controller) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	if c.lifecycle.Is(StateRunning) {
		if err := c.fire(eventStop); err != nil {
			c.log.Error().Err(err).Msg("Failed to stop monitor")
		}
	}
	done := c.loopDone
	c.mu.Unlock()

	c.cancel()
	if done != nil {
		<-done
	}

	c.log.Info().Msg("Monitor closed")

	return nil
}

// fire runs a lifecycle event. Callers hold c.mu.
func (c *Controller) fire(event string) error {
	if err := c.lifecycle.Event(context.Background(), event); err != nil {
		return errors.New().Wrap(ErrTransition, err)
	}
	return nil
}

// release drops the loop handle. Callers hold c.mu.
func (c *Controller) release() {
	if err := c.fire(eventExited); err != nil {
		c.log.Error().Err(err).Msg("Failed to record loop exit")
	}
	c.loopDone = nil
	c.alive.Add(-1)
}

func (c *Controller) aliveLoops() int {
	return int(c.alive.Load())
}

type nopCollector struct{}

func (nopCollector) Record(_ context.Context, _ *metrics.Snapshot) error { return nil }

func (nopCollector) Close() error { return nil }
