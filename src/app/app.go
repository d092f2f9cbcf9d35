// Package app assembles the service from configuration. Every entry point builds
// the same graph so the HTTP API, the CLI and the change-feed watcher reconcile
// identically.
package app

import (
	"context"
	"fmt"

	"copyinvest/src/cache"
	"copyinvest/src/metrics"
	"copyinvest/src/reconcile"
	"copyinvest/src/server"
	"copyinvest/src/service"

	logger "github.com/sirupsen/logrus"
)

type App struct {
	Config     *server.Config
	Backend    *server.Backend
	Cache      cache.MetricsCache
	Reconciler *reconcile.Reconciler
	Positions  *service.PositionService
}

func Build(ctx context.Context) (*App, error) {
	config := server.GetConfig()

	backend, err := server.OpenBackend(config.StoreBackend)
	if err != nil {
		return nil, err
	}

	metricsCache, err := cache.NewFromConfig(ctx)
	if err != nil {
		logger.WithError(err).Warn("Metrics cache unavailable, serving from store only")
		metricsCache = cache.NopCache{}
	}

	opts := []reconcile.Option{reconcile.WithObserver(metrics.ReconcileObserver{})}
	if observer, ok := metricsCache.(reconcile.Observer); ok {
		opts = append(opts, reconcile.WithObserver(observer))
	}
	rec, err := reconcile.NewFromConfig(backend.Store, opts...)
	if err != nil {
		return nil, fmt.Errorf("build reconciler: %w", err)
	}

	return &App{
		Config:     config,
		Backend:    backend,
		Cache:      metricsCache,
		Reconciler: rec,
		Positions:  service.NewPositionService(backend.Store, rec),
	}, nil
}

func (a *App) Deps() server.Deps {
	return server.Deps{
		Store:      a.Backend.Store,
		Exceptions: a.Backend.Exceptions,
		Reconciler: a.Reconciler,
		Positions:  a.Positions,
		Cache:      a.Cache,
	}
}
