package metrics

import (
	"context"
	stderrors "errors"

	"codeberg.org/mutker/moisturectl/internal/errors"
	"codeberg.org/mutker/moisturectl/internal/logger"
)

const maxRecentLimit = 1000

// Service is a Collector that also serves History
type Service interface {
	Collector
	History
}

type service struct {
	repo Repository
	cfg  Config
}

// No-op implementation
type noopService struct{}

func NewService(cfg Config, log logger.Logger) (Service, error) {
	errFactory := errors.New()

	if err := cfg.Validate(); err != nil {
		return nil, errFactory.Wrap(ErrInvalidConfig, err)
	}

	// If metrics is disabled, return a no-op collector
	if !cfg.Enabled {
		log.Debug().Msg("Metrics collection disabled, using no-op collector")
		return &noopService{}, nil
	}

	repo, err := NewRepository(cfg, log)
	if err != nil {
		log.Debug().Err(err).Msg("Failed to create metrics repository")
		return nil, err
	}

	log.Debug().
		Str("db_path", cfg.DBPath).
		Bool("enabled", cfg.Enabled).
		Msg("Metrics service initialized successfully")

	return &service{
		repo: repo,
		cfg:  cfg,
	}, nil
}

func (s *service) Record(ctx context.Context, snapshot *Snapshot) error {
	errFactory := errors.New()

	if snapshot == nil {
		return errFactory.New(ErrInvalidMetrics)
	}

	select {
	case <-ctx.Done():
		return errFactory.Wrap(ErrOperationTimeout, ctx.Err())
	default:
		if err := s.repo.Record(snapshot); err != nil {
			return errFactory.Wrap(ErrMetricsCollection, err)
		}
	}

	return nil
}

func (s *service) Recent(ctx context.Context, limit int) ([]Snapshot, error) {
	errFactory := errors.New()

	if limit <= 0 || limit > maxRecentLimit {
		return nil, errFactory.WithData(errors.ErrInvalidArgument, limit)
	}

	if err := ctx.Err(); err != nil {
		return nil, errFactory.Wrap(ErrOperationTimeout, err)
	}

	return s.repo.Recent(limit)
}

func (s *service) Close() error {
	errFactory := errors.New()

	if err := s.repo.Close(); err != nil {
		return errFactory.Wrap(ErrServiceShutdown, err)
	}
	return nil
}

func (*noopService) Record(_ context.Context, _ *Snapshot) error {
	return nil
}

func (*noopService) Recent(_ context.Context, limit int) ([]Snapshot, error) {
	if limit <= 0 || limit > maxRecentLimit {
		return nil, errors.New().WithData(errors.ErrInvalidArgument, limit)
	}
	return []Snapshot{}, nil
}

func (*noopService) Close() error {
	return nil
}

// Multi fans a snapshot out to every collector. A failing collector does not
// stop the others; all errors are joined.
type Multi []Collector

func (m Multi) Record(ctx context.Context, snapshot *Snapshot) error {
	var errs []error
	for _, c := range m {
		if err := c.Record(ctx, snapshot); err != nil {
			errs = append(errs, err)
		}
	}
	return stderrors.Join(errs...)
}

// Close closes collectors in reverse order
func (m Multi) Close() error {
	var errs []error
	for i := len(m) - 1; i >= 0; i-- {
		if err := m[i].Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return stderrors.Join(errs...)
}
