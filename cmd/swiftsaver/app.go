package main

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/vertextoedge/swiftsaver/internal/adapter/backend"
	"github.com/vertextoedge/swiftsaver/internal/adapter/filesystem"
	"github.com/vertextoedge/swiftsaver/internal/adapter/sqlite"
	"github.com/vertextoedge/swiftsaver/internal/adapter/transfer"
	"github.com/vertextoedge/swiftsaver/internal/config"
	"github.com/vertextoedge/swiftsaver/internal/domain"
	"github.com/vertextoedge/swiftsaver/internal/domain/event"
	"github.com/vertextoedge/swiftsaver/internal/logger"
	"github.com/vertextoedge/swiftsaver/internal/port"
	"github.com/vertextoedge/swiftsaver/internal/service/account"
	"github.com/vertextoedge/swiftsaver/internal/service/downloads"
	"github.com/vertextoedge/swiftsaver/internal/service/library"
	"github.com/vertextoedge/swiftsaver/internal/service/preferences"
	"github.com/vertextoedge/swiftsaver/internal/service/resolver"
)

const settingsSeededKey = "settings_seeded"

// app holds the services shared by every command
type app struct {
	cfg    *config.Config
	logger *zap.Logger

	store    *sqlite.Store
	fs       *filesystem.Manager
	backend  port.Backend
	events   *event.InMemoryDispatcher
	metrics  *event.MetricsHandler
	resolver *resolver.Service
	prefs    *preferences.Service
	accounts *account.Service
	registry *downloads.Registry
	library  *library.Index
}

func newApp(ctx context.Context) (*app, error) {
	// Load configuration
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	// Initialize logger
	if err := logger.Init(cfg.Logging.Level, cfg.Logging.Format); err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	zapLogger := logger.GetZapLogger()

	downloadDir := cfg.Downloads.DownloadDir()
	fsManager, err := filesystem.NewManager(downloadDir)
	if err != nil {
		return nil, err
	}

	store, err := sqlite.Open(cfg.DatabasePath())
	if err != nil {
		return nil, fmt.Errorf("failed to open database %s: %w", cfg.DatabasePath(), err)
	}

	be := backend.Select(&backend.Config{
		URL:     cfg.Backend.URL,
		APIKey:  cfg.Backend.APIKey,
		Timeout: cfg.Backend.GetTimeout(),
	}, logger.Named("backend"))

	events := event.NewInMemoryDispatcher(true)
	metrics := event.NewMetricsHandler()
	events.Subscribe(event.NewLoggingHandler(logger.Named("events")))
	events.Subscribe(metrics)
	if be.Enabled() {
		events.Subscribe(event.NewAnalyticsHandler(be, cfg.Backend.GetTimeout(), logger.Named("analytics")))
	}

	res := resolver.New(&resolver.Config{
		FetchDelayMin: cfg.Resolver.GetFetchDelayMin(),
		FetchDelayMax: cfg.Resolver.GetFetchDelayMax(),
		ResolveDelay:  cfg.Resolver.GetResolveDelay(),
		MediaBaseURL:  cfg.Resolver.MediaBaseURL,
	}, logger.Named("resolver"))

	accounts := account.New(be, store, logger.Named("account"))
	accounts.Restore(ctx)

	prefs := preferences.New(store, be, logger.Named("preferences"))
	prefs.SetSessionSource(accounts)
	prefs.Load(ctx)

	a := &app{
		cfg:      cfg,
		logger:   zapLogger,
		store:    store,
		fs:       fsManager,
		backend:  be,
		events:   events,
		metrics:  metrics,
		resolver: res,
		prefs:    prefs,
		accounts: accounts,
	}
	a.seedSettings(ctx)

	a.registry = downloads.New(&downloads.Config{
		Dir:              downloadDir,
		SnapshotInterval: cfg.Downloads.GetSnapshotInterval(),
		DrainQueue:       cfg.Downloads.DrainQueue,
		ResolveTimeout:   30 * time.Second,
	}, transfer.New(&transfer.Config{
		ProgressInterval: cfg.Downloads.GetProgressInterval(),
		UserAgent:        cfg.Downloads.UserAgent,
	}, logger.Named("transfer")), fsManager, prefs, res, events, logger.Named("downloads"))

	a.library = library.New(&library.Config{
		Dir:      downloadDir,
		ShareDir: cfg.Downloads.ShareDir,
	}, fsManager, a.registry, logger.Named("library"))

	return a, nil
}

// seedSettings applies configured defaults the first time a database is used
func (a *app) seedSettings(ctx context.Context) {
	seeded, err := a.store.GetMeta(settingsSeededKey)
	if err != nil {
		a.logger.Warn("failed to read settings seed marker", zap.Error(err))
		return
	}
	if seeded != "" {
		return
	}

	d := a.cfg.Downloads
	if _, err := a.prefs.Update(ctx, func(s *domain.Settings) {
		s.DefaultQuality = d.DefaultQuality
		s.DefaultFormat = d.DefaultFormat
		s.MaxConcurrentDownloads = d.MaxConcurrent
	}); err != nil {
		a.logger.Warn("failed to seed settings", zap.Error(err))
		return
	}
	if err := a.store.SetMeta(settingsSeededKey, time.Now().UTC().Format(time.RFC3339)); err != nil {
		a.logger.Warn("failed to write settings seed marker", zap.Error(err))
	}
}

// Close stops transfers and releases storage
func (a *app) Close() {
	a.registry.Shutdown()
	a.events.Close()
	if err := a.store.Close(); err != nil {
		a.logger.Error("failed to close database", zap.Error(err))
	}
	_ = logger.Sync()
}

// withApp builds the app for one command and closes it afterwards
func withApp(ctx context.Context, fn func(a *app) error) error {
	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()
	return fn(a)
}
