package main

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/custodia-labs/afrisam/internal/adapters/driven/cache/memory"
	"github.com/custodia-labs/afrisam/internal/adapters/driven/cache/redis"
	"github.com/custodia-labs/afrisam/internal/adapters/driven/config/file"
	"github.com/custodia-labs/afrisam/internal/adapters/driven/events/kafka"
	"github.com/custodia-labs/afrisam/internal/adapters/driven/lock"
	statefile "github.com/custodia-labs/afrisam/internal/adapters/driven/state/file"
	"github.com/custodia-labs/afrisam/internal/adapters/driven/storage"
	"github.com/custodia-labs/afrisam/internal/adapters/driving/cli"
	"github.com/custodia-labs/afrisam/internal/connectors/local"
	"github.com/custodia-labs/afrisam/internal/connectors/samgov"
	"github.com/custodia-labs/afrisam/internal/core/ports/driven"
	"github.com/custodia-labs/afrisam/internal/core/services"
	"github.com/custodia-labs/afrisam/internal/logger"
	"github.com/custodia-labs/afrisam/internal/normalisers/samcsv"
)

// cacheDirName holds downloaded extracts under the data directory.
const cacheDirName = "cache"

// initialize wires adapters into services for one command invocation.
func initialize(_ context.Context, dataDir string, scope cli.Scope) (*cli.Services, error) {
	if dataDir == "" {
		dir, err := file.DefaultDataDir()
		if err != nil {
			return nil, fmt.Errorf("resolve data directory: %w", err)
		}
		dataDir = dir
	}

	configStore, err := file.NewConfigStore(dataDir)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	settingsService := services.NewSettingsService(configStore, dataDir)
	if scope == cli.ScopeSettings {
		return &cli.Services{Settings: settingsService}, nil
	}

	settings, err := settingsService.Get()
	if err != nil {
		return nil, fmt.Errorf("read settings: %w", err)
	}
	if err := settings.Validate(); err != nil {
		return nil, fmt.Errorf("%w (see 'afrisam settings')", err)
	}

	var closers []func() error
	closeAll := func() error {
		var errs []error
		for i := len(closers) - 1; i >= 0; i-- {
			errs = append(errs, closers[i]())
		}
		return errors.Join(errs...)
	}
	fail := func(err error) (*cli.Services, error) {
		_ = closeAll()
		return nil, err
	}

	handle, err := storage.Open(settings.Store.DSN, dataDir)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	closers = append(closers, handle.Close)
	logger.Debug("store: %s at %s", handle.Backend.Description(), handle.Location)

	state, err := statefile.NewStateStore(dataDir)
	if err != nil {
		return fail(fmt.Errorf("open sync state: %w", err))
	}

	fetcher, err := samgov.New(samgov.Config{
		Source:     settings.Source,
		CacheDir:   filepath.Join(dataDir, cacheDirName),
		KeepLatest: settings.Cache.KeepLatest,
	})
	if err != nil {
		return fail(err)
	}
	files := local.New("")
	closers = append(closers, files.Close)

	table := samcsv.DefaultTable()
	engine := services.NewSyncEngine(
		fetcher,
		files,
		samcsv.NewReader(),
		samcsv.NewWithTable(table),
		handle.Records,
		state,
		*settings,
	)
	runLock := lock.New(dataDir)
	engine.SetRunLock(runLock)

	var stats driven.StatsCache = memory.NewStatsCache()
	if settings.Stats.RedisAddr != "" {
		rc := redis.NewStatsCache(settings.Stats.RedisAddr, settings.Stats.RedisPrefix)
		closers = append(closers, rc.Close)
		stats = rc
	}
	engine.SetStatsCache(stats)

	if len(settings.Events.Brokers) > 0 {
		pub := kafka.NewPublisher(settings.Events.Brokers, settings.Events.Topic)
		closers = append(closers, pub.Close)
		engine.SetPublisher(pub)
	}

	resolves := func(raw string) bool {
		_, ok := table.Resolve(raw)
		return ok
	}
	maintenance := services.NewMaintenanceService(handle.Records, resolves, stats)
	maintenance.SetRunLock(runLock)
	maintenance.SetDownloadCache(fetcher)

	return &cli.Services{
		Sync:        engine,
		Query:       services.NewQueryService(handle.Records, stats, settings.Stats.TTL),
		Maintenance: maintenance,
		Settings:    settingsService,
		Scheduler:   services.NewScheduler(settings.Scheduler, handle.Scheduler, engine, maintenance),
		Watch: func(ctx context.Context, dir string) (<-chan string, error) {
			return local.New(dir).Watch(ctx)
		},
		Close: closeAll,
	}, nil
}
