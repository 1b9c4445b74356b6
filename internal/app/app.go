// Package app provides application-level orchestration and dependency injection.
// This package wires together all components and manages the daemon lifecycle.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"gorm.io/gorm"

	beepengine "github.com/nekomusic/playd/internal/adapter/engine/beep"
	"github.com/nekomusic/playd/internal/adapter/engine/mock"
	"github.com/nekomusic/playd/internal/adapter/eventbus"
	"github.com/nekomusic/playd/internal/adapter/repository/sqlite"
	"github.com/nekomusic/playd/internal/adapter/session/mpris"
	"github.com/nekomusic/playd/internal/adapter/source"
	"github.com/nekomusic/playd/internal/adapter/wakelock"
	"github.com/nekomusic/playd/internal/config"
	"github.com/nekomusic/playd/internal/domain"
	"github.com/nekomusic/playd/internal/logger"
	"github.com/nekomusic/playd/internal/ports"
	"github.com/nekomusic/playd/internal/service"
)

// Options tune the dependency wiring. The zero value is the production setup.
type Options struct {
	// UseMockEngine swaps the audio pipeline for the in-memory mock (for testing)
	UseMockEngine bool

	// NoSession skips the D-Bus media-session export
	NoSession bool

	// NoWakeLock skips the logind idle inhibitor
	NoWakeLock bool

	// LogLevel controls logging verbosity
	LogLevel slog.Level
}

// Application is the root structure that holds all daemon dependencies,
// wired with constructor-based injection.
type Application struct {
	logger *slog.Logger
	cfg    *config.Config

	// Infrastructure
	db       *gorm.DB
	eventBus ports.EventBus
	engine   ports.Engine
	wakeLock ports.WakeLock
	session  ports.SessionPublisher

	// Repositories and services
	queueRepo    ports.QueueRepository
	settingsRepo ports.SettingsRepository
	cacheService *service.CacheService
	player       *service.PlayerService

	sessionSub domain.SubscriptionID
}

// NewApplication creates the daemon with all dependencies wired.
func NewApplication(cfg *config.Config, opts Options) (*Application, error) {
	a := &Application{cfg: cfg}

	a.logger = logger.NewLogger(logger.Config{Level: opts.LogLevel, Format: "text"})
	a.logger.Info("initializing daemon",
		slog.String("version", GetVersionInfo().FullString()),
		slog.String("data_dir", cfg.DataDir),
		slog.String("api_base", cfg.APIBaseURL))

	a.eventBus = eventbus.New(a.logger.With(slog.String("component", "eventbus")))

	if opts.UseMockEngine {
		a.engine = mock.NewEngine()
	} else {
		a.engine = beepengine.NewEngine(cfg.SampleRate, a.logger.With(slog.String("engine", "beep")))
	}

	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create data dir: %w", err)
	}

	db, err := sqlite.Open(cfg.DBPath, a.logger.With(slog.String("component", "sqlite")))
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	a.db = db
	a.queueRepo = sqlite.NewQueueRepository(db)
	a.settingsRepo = sqlite.NewSettingsRepository(db)

	fileSource := source.NewHTTPSource(cfg.APIBaseURL, a.logger.With(slog.String("component", "source")))

	a.cacheService, err = service.NewCacheService(
		cfg.CacheDir,
		a.settingsRepo,
		fileSource,
		a.eventBus,
		a.logger.With(slog.String("service", "cache")),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize cache: %w", err)
	}

	a.wakeLock = a.newWakeLock(opts)

	a.player = service.NewPlayerService(
		a.logger.With(slog.String("service", "player")),
		a.engine,
		a.queueRepo,
		a.settingsRepo,
		a.cacheService,
		fileSource,
		a.eventBus,
		a.wakeLock,
	)

	a.session = a.newSession(opts)
	a.sessionSub = bindSession(a.eventBus, a.session, a.player)

	if err := a.player.Restore(); err != nil {
		// Non-fatal - just log and continue
		a.logger.Warn("failed to restore last session", slog.Any("error", err))
	}

	return a, nil
}

// newWakeLock picks the logind inhibitor, falling back to the no-op lock when
// the system bus is unavailable (containers, CI).
func (a *Application) newWakeLock(opts Options) ports.WakeLock {
	if opts.NoWakeLock {
		return wakelock.NewNoopLock()
	}
	lock, err := wakelock.NewLogindLock(a.logger.With(slog.String("component", "wakelock")))
	if err != nil {
		a.logger.Warn("logind unavailable, idle inhibition disabled", slog.Any("error", err))
		return wakelock.NewNoopLock()
	}
	return lock
}

// newSession exports the MPRIS surface, falling back to the no-op publisher
// when no session bus is reachable. A headless daemon without a session
// surface is still fully controllable through its own process signals.
func (a *Application) newSession(opts Options) ports.SessionPublisher {
	if opts.NoSession {
		return mpris.NewNoopPublisher()
	}
	publisher, err := mpris.NewPublisher(a.cfg.SessionName, a.player, a.logger.With(slog.String("component", "mpris")))
	if err != nil {
		a.logger.Warn("media session unavailable", slog.Any("error", err))
		return mpris.NewNoopPublisher()
	}
	return publisher
}

// Player exposes the orchestrator for command-line ingress.
func (a *Application) Player() *service.PlayerService {
	return a.player
}

// Cache exposes the content cache for inspection commands.
func (a *Application) Cache() *service.CacheService {
	return a.cacheService
}

// Run blocks until the context is cancelled.
func (a *Application) Run(ctx context.Context) error {
	a.logger.Info("playd started", slog.String("session", a.cfg.SessionName))
	<-ctx.Done()
	return nil
}

// Shutdown gracefully tears down the daemon, in reverse order of creation.
func (a *Application) Shutdown() {
	a.logger.Info("shutting down")

	if a.sessionSub != "" {
		a.eventBus.Unsubscribe(a.sessionSub)
	}
	if a.player != nil {
		a.player.Close()
	}
	if a.session != nil {
		if err := a.session.Close(); err != nil {
			a.logger.Warn("failed to close media session", slog.Any("error", err))
		}
	}
	if a.engine != nil {
		if err := a.engine.Close(); err != nil {
			a.logger.Warn("failed to close engine", slog.Any("error", err))
		}
	}
	a.wakeLock.Release()
	if a.eventBus != nil {
		if err := a.eventBus.Close(); err != nil {
			a.logger.Warn("failed to close event bus", slog.Any("error", err))
		}
	}
	if a.db != nil {
		if err := sqlite.Close(a.db); err != nil {
			a.logger.Warn("failed to close database", slog.Any("error", err))
		}
	}

	a.logger.Info("shutdown complete")
}
