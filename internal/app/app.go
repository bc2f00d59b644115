// Package app wires the configured collaborators into a runnable monitor.
package app

import (
	"context"
	"fmt"
	"log"

	"github.com/dpup/prefab/logging"
	"github.com/hashicorp/go-multierror"
	"github.com/redis/go-redis/v9"

	"github.com/dpup/wolfcreekpass/server/internal/clients/google"
	"github.com/dpup/wolfcreekpass/server/internal/clients/imagefetch"
	"github.com/dpup/wolfcreekpass/server/internal/clients/udot"
	"github.com/dpup/wolfcreekpass/server/internal/clients/vision"
	"github.com/dpup/wolfcreekpass/server/internal/config"
	"github.com/dpup/wolfcreekpass/server/internal/export"
	"github.com/dpup/wolfcreekpass/server/internal/lock"
	"github.com/dpup/wolfcreekpass/server/internal/metrics"
	"github.com/dpup/wolfcreekpass/server/internal/services"
	"github.com/dpup/wolfcreekpass/server/internal/storage"
	"github.com/dpup/wolfcreekpass/server/internal/storage/backends"
)

// App holds the long-lived components of the monitor
type App struct {
	Config       *config.Config
	Store        storage.Gateway
	Metrics      *metrics.Metrics
	Orchestrator *services.Orchestrator
	Scheduler    *services.Scheduler
	Query        *services.QueryService

	closers []func() error
}

// OpenStore opens and initializes the configured backend only, for read-only
// tooling
func OpenStore(ctx context.Context, cfg *config.Config) (storage.Gateway, error) {
	ctx = logging.EnsureLogger(ctx)
	store, err := backends.Open(ctx, cfg.Storage)
	if err != nil {
		return nil, err
	}
	if err := store.Init(ctx); err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("failed to initialize %s storage: %w", cfg.Storage.Backend, err)
	}
	return store, nil
}

// New validates cfg and builds every component
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	ctx = logging.EnsureLogger(ctx)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	store, err := OpenStore(ctx, cfg)
	if err != nil {
		return nil, err
	}
	a := &App{
		Config:  cfg,
		Store:   store,
		Metrics: metrics.New(),
		Query:   services.NewQueryService(store),
		closers: []func() error{store.Close},
	}

	exporters, err := a.exporters()
	if err != nil {
		_ = a.Close()
		return nil, err
	}

	var analyzer services.ImageAnalyzer = vision.Disabled{}
	if cfg.Vision.Enabled {
		analyzer = vision.NewAnalyzer(cfg.Vision)
	}

	a.Orchestrator = services.NewOrchestrator(cfg, services.Dependencies{
		Store:     store,
		Routes:    google.NewClient(cfg.Google),
		Traffic:   udot.NewClient(cfg.UDOT),
		Images:    imagefetch.NewDownloader(cfg.Capture),
		Analyzer:  analyzer,
		Exporters: exporters,
		Metrics:   a.Metrics,
	})
	a.Scheduler = services.NewScheduler(a.Orchestrator, a.locker(), cfg.Schedule.Interval, cfg.Schedule.CycleTimeout)

	log.Printf("Monitoring %d routes with %s storage", len(cfg.Routes), cfg.Storage.Backend)
	return a, nil
}

func (a *App) locker() lock.Locker {
	lc := a.Config.Lock
	if lc.RedisAddr == "" {
		return lock.NewLocal()
	}
	client := redis.NewClient(&redis.Options{Addr: lc.RedisAddr})
	a.closers = append(a.closers, client.Close)
	log.Printf("Using Redis cycle lock %s at %s", lc.Key, lc.RedisAddr)
	return lock.NewRedis(client, lc.Key, lc.TTL)
}

func (a *App) exporters() ([]services.Exporter, error) {
	ec := a.Config.Export
	if !ec.Enabled {
		return nil, nil
	}

	exporters := []services.Exporter{export.NewFileExporter(a.Store, ec.Prefix, ec.IndexLimit)}
	if ec.KML {
		exporters = append(exporters, export.NewKMLExporter(a.Store.Objects(), ec.Prefix))
	}
	if len(ec.Kafka.Brokers) > 0 {
		k := export.NewKafkaNotifier(ec.Kafka)
		a.closers = append(a.closers, k.Close)
		exporters = append(exporters, k)
	}
	if len(ec.Alerts.URLs) > 0 {
		n, err := export.NewAlertNotifier(ec.Alerts.URLs, ec.Alerts.Timeout)
		if err != nil {
			return nil, err
		}
		exporters = append(exporters, n)
	}
	return exporters, nil
}

// Close releases every resource opened by New, newest first
func (a *App) Close() error {
	var errs *multierror.Error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = multierror.Append(errs, err)
		}
	}
	a.closers = nil
	return errs.ErrorOrNil()
}
