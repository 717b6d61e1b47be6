package readiness

import (
	"context"
	"time"

	"codeberg.org/mutker/moisturectl/internal/errors"
	"codeberg.org/mutker/moisturectl/internal/logger"
	"github.com/heptiolabs/healthcheck"
)

const ErrNotReady = errors.ErrorCode("readiness_not_ready")

type ProbeConfig struct {
	// Addr is the host:port that must accept a TCP connection. Empty opens the gate immediately.
	Addr     string
	Interval time.Duration
	// Check replaces the TCP dial check, mostly for tests
	Check healthcheck.Check
}

// Probe runs the reachability check every cfg.Interval until it passes once,
// then signals gate and returns. It returns early with ctx.Err() if ctx ends first.
func Probe(ctx context.Context, gate *Gate, cfg ProbeConfig) error {
	log := logger.Component("readiness")

	if cfg.Addr == "" && cfg.Check == nil {
		log.Debug().Msg("No probe address configured, network assumed ready")
		gate.Signal()
		return nil
	}

	check := cfg.Check
	if check == nil {
		check = healthcheck.TCPDialCheck(cfg.Addr, cfg.Interval)
	}

	ticker := time.NewTicker(cfg.Interval)
	defer ticker.Stop()

	log.Info().Str("addr", cfg.Addr).Msg("Waiting for network...")

	for attempt := 1; ; attempt++ {
		err := check()
		if err == nil {
			log.Info().Str("addr", cfg.Addr).Int("attempts", attempt).Msg("Network ready")
			gate.Signal()
			return nil
		}

		log.Debug().Err(err).Str("addr", cfg.Addr).Int("attempt", attempt).Msg("Network not reachable yet")

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// Check reports the gate as a readiness check: nil once open.
func (g *Gate) Check() healthcheck.Check {
	return func() error {
		if g.Ready() {
			return nil
		}
		return errors.New().WithMessage(ErrNotReady, "network not reachable yet")
	}
}
