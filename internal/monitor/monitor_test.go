package monitor

import (
	"context"
	stderrors "errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"codeberg.org/mutker/moisturectl/internal/errors"
	"codeberg.org/mutker/moisturectl/internal/logger"
	"codeberg.org/mutker/moisturectl/internal/metrics"
	"codeberg.org/mutker/moisturectl/internal/readiness"
	"codeberg.org/mutker/moisturectl/internal/telemetry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testInterval = time.Millisecond
	waitFor      = 2 * time.Second
	tick         = time.Millisecond
)

// scriptedSource replays values in order and fails once they run out
type scriptedSource struct {
	mu     sync.Mutex
	values []int
	reads  int
	times  []time.Time
}

func (s *scriptedSource) Read() (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.reads++
	s.times = append(s.times, time.Now())
	if len(s.values) == 0 {
		return 0, stderrors.New("no sample")
	}
	v := s.values[0]
	s.values = s.values[1:]
	return v, nil
}

func (s *scriptedSource) Name() string { return "scripted" }

func (s *scriptedSource) Close() error { return nil }

func (s *scriptedSource) readCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reads
}

func (s *scriptedSource) readTimes() []time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]time.Time(nil), s.times...)
}

type recordingNotifier struct {
	mu    sync.Mutex
	texts []string
	err   error
}

func (n *recordingNotifier) Send(_ context.Context, text string) error {
	n.mu.Lock()
	defer n.mu.Unlock()

	n.texts = append(n.texts, text)
	return n.err
}

func (n *recordingNotifier) sent() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.texts...)
}

type recordingCollector struct {
	mu        sync.Mutex
	snapshots []metrics.Snapshot
}

func (c *recordingCollector) Record(_ context.Context, s *metrics.Snapshot) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.snapshots = append(c.snapshots, *s)
	return nil
}

func (*recordingCollector) Close() error { return nil }

func (c *recordingCollector) recorded() []metrics.Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]metrics.Snapshot(nil), c.snapshots...)
}

func openGate() *readiness.Gate {
	g := readiness.NewGate()
	g.Signal()
	return g
}

func newController(t *testing.T, gate Gate, source *scriptedSource, notifier *recordingNotifier, opts ...Option) *Controller {
	t.Helper()

	c, err := New(Config{
		Interval:     testInterval,
		DryThreshold: 2000,
		AlertTimeout: time.Second,
	}, gate, source, notifier, opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })

	return c
}

func TestAlertPolicy(t *testing.T) {
	policy := NewAlertPolicy(2000)

	var fired []int
	for _, v := range []int{1000, 2500, 2400, 1800, 2600} {
		if policy.Evaluate(v) {
			fired = append(fired, v)
		}
	}

	assert.Equal(t, []int{2500, 2600}, fired)
	assert.True(t, policy.Active())
}

func TestAlertPolicyBoundary(t *testing.T) {
	policy := NewAlertPolicy(2000)

	assert.False(t, policy.Evaluate(2000))
	assert.False(t, policy.Active())

	require.True(t, policy.Evaluate(2001))
	assert.False(t, policy.Evaluate(2000))
	assert.True(t, policy.Active(), "equal sample must not clear the latch")

	assert.False(t, policy.Evaluate(1999))
	assert.False(t, policy.Active())
}

func TestAlertText(t *testing.T) {
	assert.Equal(t, "Your plant is thirsty! Level: 2500", AlertText(2500))
}

func TestNewValidation(t *testing.T) {
	source := &scriptedSource{}
	notifier := &recordingNotifier{}

	_, err := New(Config{Interval: 0}, openGate(), source, notifier)
	assert.True(t, errors.HasCode(err, ErrInvalidInterval))

	_, err = New(Config{Interval: time.Second}, nil, source, notifier)
	assert.True(t, errors.HasCode(err, ErrInvalidConfig))
}

func TestInitialStatus(t *testing.T) {
	c := newController(t, openGate(), &scriptedSource{}, &recordingNotifier{})

	status := c.Status()
	assert.False(t, status.Running)
	assert.Equal(t, 0, status.LastValue)
	assert.False(t, status.HasReading)
	assert.Equal(t, StateStopped, status.State)
	assert.Equal(t, testInterval, status.Interval)
}

func TestHysteresisSequence(t *testing.T) {
	source := &scriptedSource{values: []int{1000, 2500, 2400, 1800, 2600}}
	notifier := &recordingNotifier{}
	collector := &recordingCollector{}
	c := newController(t, openGate(), source, notifier, WithCollector(collector))

	require.NoError(t, c.Start())
	require.Eventually(t, func() bool { return len(collector.recorded()) >= 6 }, waitFor, tick)

	assert.Equal(t, []string{
		"Your plant is thirsty! Level: 2500",
		"Your plant is thirsty! Level: 2600",
	}, notifier.sent())

	status := c.Status()
	assert.True(t, status.Running)
	assert.Equal(t, 2600, status.LastValue, "failed reads keep the last good value")
	assert.True(t, status.AlertActive)

	snapshots := collector.recorded()
	assert.True(t, snapshots[1].AlertFired)
	assert.True(t, snapshots[1].AlertDelivered)
	assert.False(t, snapshots[2].AlertFired)
	assert.False(t, snapshots[3].AlertActive)
	assert.True(t, snapshots[4].AlertFired)
	assert.False(t, snapshots[5].ReadOK)
}

func TestSetIntervalMinutes(t *testing.T) {
	c := newController(t, openGate(), &scriptedSource{}, &recordingNotifier{})

	for _, n := range []int{0, -5} {
		err := c.SetIntervalMinutes(n)
		require.Error(t, err)
		assert.True(t, errors.HasCode(err, ErrInvalidInterval))
		assert.Equal(t, testInterval, c.Interval())
	}

	require.NoError(t, c.SetIntervalMinutes(3))
	assert.Equal(t, 3*time.Minute, c.Interval())

	require.Error(t, c.SetInterval(-time.Second))
	assert.Equal(t, 3*time.Minute, c.Interval())
}

func TestStopIsImmediateInStatus(t *testing.T) {
	source := &scriptedSource{values: []int{1500}}
	c := newController(t, openGate(), source, &recordingNotifier{})

	require.NoError(t, c.Start())
	require.Eventually(t, func() bool { return source.readCount() > 0 }, waitFor, tick)

	c.Stop()
	assert.False(t, c.Status().Running)

	ctx, cancel := context.WithTimeout(context.Background(), waitFor)
	defer cancel()
	require.NoError(t, c.AwaitStopped(ctx))

	assert.Equal(t, StateStopped, c.Status().State)
	assert.Equal(t, 0, c.aliveLoops())
	assert.Equal(t, 1500, c.Status().LastValue)

	// Redundant stop is a no-op
	c.Stop()
	assert.Equal(t, StateStopped, c.Status().State)
}

func TestDoubleStartRunsOneLoop(t *testing.T) {
	c := newController(t, readiness.NewGate(), &scriptedSource{}, &recordingNotifier{})

	require.NoError(t, c.Start())
	require.NoError(t, c.Start())

	assert.True(t, c.Status().Running)
	assert.Equal(t, 1, c.aliveLoops())
}

func TestStartWhileStoppingRearmsLoop(t *testing.T) {
	// The gate never opens, so the loop stays parked at its entry
	c := newController(t, readiness.NewGate(), &scriptedSource{}, &recordingNotifier{})

	require.NoError(t, c.Start())
	c.Stop()
	assert.Equal(t, StateStopping, c.Status().State)

	require.NoError(t, c.Start())
	assert.Equal(t, StateRunning, c.Status().State)
	assert.Equal(t, 1, c.aliveLoops())

	require.NoError(t, c.Close())
	assert.Equal(t, StateStopped, c.Status().State)
	assert.Equal(t, 0, c.aliveLoops())
}

func TestConcurrentStartStop(t *testing.T) {
	source := &scriptedSource{}
	c := newController(t, openGate(), source, &recordingNotifier{})

	var (
		maxAlive atomic.Int32
		stop     = make(chan struct{})
		watcher  sync.WaitGroup
	)
	watcher.Add(1)
	go func() {
		defer watcher.Done()
		for {
			select {
			case <-stop:
				return
			default:
			}
			if n := int32(c.aliveLoops()); n > maxAlive.Load() {
				maxAlive.Store(n)
			}
		}
	}()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			for j := 0; j < 200; j++ {
				if (i+j)%2 == 0 {
					assert.NoError(t, c.Start())
				} else {
					c.Stop()
				}
			}
		}(i)
	}
	wg.Wait()
	close(stop)
	watcher.Wait()

	assert.LessOrEqual(t, maxAlive.Load(), int32(1))

	c.Stop()
	ctx, cancel := context.WithTimeout(context.Background(), waitFor)
	defer cancel()
	require.NoError(t, c.AwaitStopped(ctx))
	assert.Equal(t, 0, c.aliveLoops())
}

func TestFailedAlertIsNotRetried(t *testing.T) {
	source := &scriptedSource{values: []int{2500, 2600, 2700}}
	notifier := &recordingNotifier{err: stderrors.New("network down")}
	collector := &recordingCollector{}
	c := newController(t, openGate(), source, notifier, WithCollector(collector))

	require.NoError(t, c.Start())
	require.Eventually(t, func() bool { return len(collector.recorded()) >= 3 }, waitFor, tick)

	assert.Len(t, notifier.sent(), 1)
	assert.True(t, c.Status().AlertActive)

	snapshots := collector.recorded()
	require.NotEmpty(t, snapshots)
	assert.True(t, snapshots[0].AlertFired)
	assert.False(t, snapshots[0].AlertDelivered)
}

func TestLoopWaitsForReadiness(t *testing.T) {
	gate := readiness.NewGate()
	source := &scriptedSource{values: []int{1200}}
	c := newController(t, gate, source, &recordingNotifier{})

	require.NoError(t, c.Start())
	assert.True(t, c.Status().Running)

	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, 0, source.readCount())

	gate.Signal()
	require.Eventually(t, func() bool { return c.Status().LastValue == 1200 }, waitFor, tick)
}

func TestCloseInterruptsSleep(t *testing.T) {
	source := &scriptedSource{values: []int{1200}}
	c := newController(t, openGate(), source, &recordingNotifier{})
	require.NoError(t, c.SetInterval(time.Hour))

	require.NoError(t, c.Start())
	require.Eventually(t, func() bool { return source.readCount() == 1 }, waitFor, tick)

	closed := make(chan struct{})
	go func() {
		_ = c.Close()
		close(closed)
	}()

	select {
	case <-closed:
	case <-time.After(waitFor):
		t.Fatal("Close did not interrupt the sleep")
	}

	assert.Equal(t, StateStopped, c.Status().State)
	err := c.Start()
	assert.True(t, errors.HasCode(err, ErrClosed))
}

func TestAwaitStoppedHonoursContext(t *testing.T) {
	c := newController(t, readiness.NewGate(), &scriptedSource{}, &recordingNotifier{})
	require.NoError(t, c.Start())
	c.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	err := c.AwaitStopped(ctx)
	assert.True(t, errors.HasCode(err, errors.ErrTimeout))
}

func TestStopDoesNotInterruptSleep(t *testing.T) {
	const interval = 500 * time.Millisecond

	source := &scriptedSource{values: []int{1500, 1600}}
	c := newController(t, openGate(), source, &recordingNotifier{})
	require.NoError(t, c.SetInterval(interval))

	require.NoError(t, c.Start())
	require.Eventually(t, func() bool { return source.readCount() == 1 }, waitFor, tick)

	c.Stop()

	status := c.Status()
	assert.False(t, status.Running)
	assert.Equal(t, StateStopping, status.State)
	assert.Equal(t, 1, c.aliveLoops(), "the loop finishes its sleep before exiting")

	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, 1, c.aliveLoops())

	ctx, cancel := context.WithTimeout(context.Background(), waitFor)
	defer cancel()
	require.NoError(t, c.AwaitStopped(ctx))

	exited := time.Now()
	assert.GreaterOrEqual(t, exited.Sub(source.readTimes()[0]), interval)
	assert.Equal(t, StateStopped, c.Status().State)
	assert.Equal(t, 0, c.aliveLoops())
	assert.Equal(t, 1, source.readCount(), "no sample is taken after the stop is observed")
}

func TestShorterIntervalAppliesFromNextSleep(t *testing.T) {
	const interval = 300 * time.Millisecond

	source := &scriptedSource{}
	c := newController(t, openGate(), source, &recordingNotifier{})
	require.NoError(t, c.SetInterval(interval))

	require.NoError(t, c.Start())
	require.Eventually(t, func() bool { return source.readCount() == 1 }, waitFor, tick)

	require.NoError(t, c.SetInterval(5*time.Millisecond))
	require.Eventually(t, func() bool { return source.readCount() >= 3 }, waitFor, tick)

	times := source.readTimes()
	assert.GreaterOrEqual(t, times[1].Sub(times[0]), interval, "the sleep in progress is not shortened")
	assert.Less(t, times[2].Sub(times[1]), interval, "the following sleep uses the new interval")
}

func TestLongerIntervalDoesNotExtendCurrentSleep(t *testing.T) {
	source := &scriptedSource{}
	c := newController(t, openGate(), source, &recordingNotifier{})
	require.NoError(t, c.SetInterval(50*time.Millisecond))

	require.NoError(t, c.Start())
	require.Eventually(t, func() bool { return source.readCount() == 1 }, waitFor, tick)

	require.NoError(t, c.SetInterval(time.Hour))
	require.Eventually(t, func() bool { return source.readCount() == 2 }, waitFor, tick)

	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, 2, source.readCount())
}

func TestSlowInfluxDoesNotStallSampling(t *testing.T) {
	influxServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		time.Sleep(2 * time.Second)
		w.WriteHeader(http.StatusNoContent)
	}))
	t.Cleanup(influxServer.Close)

	sink, err := telemetry.NewInflux(telemetry.InfluxConfig{
		URL:    influxServer.URL,
		Org:    "garden",
		Bucket: "plants",
	}, logger.Component("telemetry"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = sink.Close() })

	source := &scriptedSource{values: []int{1000, 1100, 1200, 1300, 1400, 1500, 1600, 1700}}
	c := newController(t, openGate(), source, &recordingNotifier{}, WithCollector(sink))

	require.NoError(t, c.Start())
	require.Eventually(t, func() bool { return source.readCount() >= 8 }, 1500*time.Millisecond, tick)
}
