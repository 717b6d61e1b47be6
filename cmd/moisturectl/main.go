package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"codeberg.org/mutker/moisturectl/internal/api"
	"codeberg.org/mutker/moisturectl/internal/config"
	"codeberg.org/mutker/moisturectl/internal/errors"
	"codeberg.org/mutker/moisturectl/internal/logger"
	"codeberg.org/mutker/moisturectl/internal/metrics"
	"codeberg.org/mutker/moisturectl/internal/monitor"
	"codeberg.org/mutker/moisturectl/internal/notify"
	"codeberg.org/mutker/moisturectl/internal/pid"
	"codeberg.org/mutker/moisturectl/internal/readiness"
	"codeberg.org/mutker/moisturectl/internal/sensor"
	"codeberg.org/mutker/moisturectl/internal/telemetry"
)

const readyMessage = "Moisture monitor online"

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("failed to load config: %v\n", err)
		os.Exit(1)
	}

	level, _ := logger.ParseLevel(cfg.LogLevel)
	logger.Init(level, logger.IsService())
	logger.Debug().Msg("Config loaded")

	if err := pid.Write(cfg.PIDFile); err != nil {
		logger.Fatal().Err(err).Msg("failed to write PID file")
	}
	defer func() {
		if err := pid.Remove(cfg.PIDFile); err != nil {
			logger.Error().Err(err).Msg("failed to remove PID file")
		}
	}()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go handleSignals(cancel)

	if err := run(ctx, cfg); err != nil {
		logger.Error().Err(err).Msg("error in main loop")
	}
	logger.Info().Msg("Exiting...")
}

func run(ctx context.Context, cfg *config.Config) error {
	errFactory := errors.New()

	source, err := sensor.New(cfg.Sensor, cfg.DryThreshold)
	if err != nil {
		return errFactory.Wrap(errors.ErrInitSensor, err)
	}
	defer source.Close()

	notifier, err := newNotifier(cfg.Telegram)
	if err != nil {
		return err
	}

	history, err := metrics.NewService(metrics.Config{
		DBPath:       cfg.Metrics.DBPath,
		BatchSize:    cfg.Metrics.BatchSize,
		BatchTimeout: cfg.Metrics.BatchTimeout,
		Enabled:      cfg.Metrics.Enabled,
	}, logger.Component("metrics"))
	if err != nil {
		return errFactory.Wrap(errors.ErrInitMetrics, err)
	}

	prom, err := telemetry.NewPrometheus()
	if err != nil {
		_ = history.Close()
		return errFactory.Wrap(errors.ErrInitMetrics, err)
	}

	hub := api.NewHub(logger.Component("api"), cfg.AllowedOrigins...)
	collectors := metrics.Multi{history, prom, hub}

	if cfg.Influx.URL != "" {
		influx, err := telemetry.NewInflux(telemetry.InfluxConfig{
			URL:    cfg.Influx.URL,
			Token:  cfg.Influx.Token,
			Org:    cfg.Influx.Org,
			Bucket: cfg.Influx.Bucket,
		}, logger.Component("telemetry"))
		if err != nil {
			_ = collectors.Close()
			return errFactory.Wrap(errors.ErrInitMetrics, err)
		}
		collectors = append(collectors, influx)
	}
	defer func() {
		if err := collectors.Close(); err != nil {
			logger.Error().Err(err).Msg("failed to close collectors")
		}
	}()

	gate := readiness.NewGate()

	ctl, err := monitor.New(monitor.Config{
		Interval:     cfg.Interval(),
		DryThreshold: cfg.DryThreshold,
		AlertTimeout: cfg.Telegram.Timeout,
	}, gate, source, notifier,
		monitor.WithCollector(collectors),
		monitor.WithLogger(logger.Component("monitor")),
	)
	if err != nil {
		return errFactory.Wrap(errors.ErrInitMonitor, err)
	}
	// Close joins the loop before the collectors and the sensor go away
	defer ctl.Close()

	server, err := api.New(cfg.ListenAddr, api.Deps{
		Controller: ctl,
		Readiness:  gate.Check(),
		History:    history,
		Metrics:    prom.Handler(),
		Hub:        hub,
	}, logger.Component("api"))
	if err != nil {
		return err
	}

	probeCtx, stopProbe := context.WithCancel(ctx)
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		awaitReadiness(probeCtx, gate, notifier, cfg)
	}()
	defer func() {
		stopProbe()
		wg.Wait()
	}()

	if cfg.Autostart {
		if err := ctl.Start(); err != nil {
			return err
		}
	}

	logger.Info().
		Str("sensor", source.Name()).
		Int("dry_threshold", cfg.DryThreshold).
		Dur("interval", cfg.Interval()).
		Bool("autostart", cfg.Autostart).
		Msg("Moisture monitor initialized")

	return server.Run(ctx)
}

func newNotifier(cfg config.TelegramConfig) (notify.Notifier, error) {
	if cfg.Token == "" {
		logger.Warn().Msg("Telegram token not set, alerts will only be logged")
		return notify.Nop{}, nil
	}

	return notify.NewTelegram(notify.TelegramConfig{
		Token:   cfg.Token,
		ChatID:  cfg.ChatID,
		APIURL:  cfg.APIURL,
		Timeout: cfg.Timeout,
	})
}

// awaitReadiness opens the gate once the network answers and sends the
// online notice.
func awaitReadiness(ctx context.Context, gate *readiness.Gate, notifier notify.Notifier, cfg *config.Config) {
	if err := readiness.Probe(ctx, gate, readiness.ProbeConfig{
		Addr:     cfg.Readiness.ProbeAddr,
		Interval: cfg.Readiness.ProbeInterval,
	}); err != nil {
		return
	}

	if !cfg.Telegram.AnnounceReady {
		return
	}

	sendCtx, cancel := context.WithTimeout(ctx, cfg.Telegram.Timeout)
	defer cancel()

	if err := notifier.Send(sendCtx, readyMessage); err != nil {
		logger.Warn().Err(err).Msg("failed to announce readiness")
	}
}

func handleSignals(cancel context.CancelFunc) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	<-sigs
	logger.Info().Msg("Received termination signal.")
	cancel()
}
