package main

import (
	"context"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/apartresearch/reward-analyzer/internal/config"
	"github.com/apartresearch/reward-analyzer/internal/storage"
	"github.com/apartresearch/reward-analyzer/internal/tracking"
)

// newTracker builds the tracking service the configuration describes. The returned func releases
// the registry's resources.
func newTracker(ctx context.Context, cfg *config.Config) (*tracking.Service, func(), error) {
	store, err := storage.New(ctx, cfg.Storage)
	if err != nil {
		return nil, nil, errors.Wrap(err, "opening artifact storage")
	}

	var (
		registry tracking.Registry
		closer   = func() {}
	)
	switch cfg.Tracking.Registry {
	case config.PostgresRegistry:
		db, err := tracking.Connect(ctx, cfg.DB)
		if err != nil {
			return nil, nil, err
		}
		pg := tracking.NewPgRegistry(db)
		if err := pg.Migrate(ctx); err != nil {
			_ = pg.Close()
			return nil, nil, err
		}
		registry = pg
		closer = func() {
			if err := pg.Close(); err != nil {
				log.WithError(err).Warn("closing artifact registry")
			}
		}
	default:
		log.Warn("using the in-memory artifact registry; versions are lost on exit")
		registry = tracking.NewMemRegistry(nil)
	}

	svc, err := tracking.NewService(cfg.Tracking.Entity, registry, store, cfg.Tracking.DownloadRoot)
	if err != nil {
		closer()
		return nil, nil, errors.Wrap(err, "creating tracking service")
	}
	return svc, closer, nil
}
