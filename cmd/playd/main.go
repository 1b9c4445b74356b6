// Package main is the entry point for playd, a headless music playback
// daemon for a personal streaming backend.
//
// The daemon exposes its transport controls over the desktop media session
// (MPRIS); any standard media controller can drive it.
//
// Build:
//
//	go build -o build/playd ./cmd/playd
//
// Run:
//
//	./build/playd
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/nekomusic/playd/internal/adapter/eventbus"
	"github.com/nekomusic/playd/internal/adapter/repository/sqlite"
	"github.com/nekomusic/playd/internal/adapter/source"
	"github.com/nekomusic/playd/internal/app"
	"github.com/nekomusic/playd/internal/config"
	"github.com/nekomusic/playd/internal/logger"
	"github.com/nekomusic/playd/internal/service"
)

var (
	flagMockEngine bool
	flagNoSession  bool
	flagNoWakeLock bool
	flagLogLevel   string
)

func main() {
	root := &cobra.Command{
		Use:          "playd",
		Short:        "Headless playback daemon for a personal music streaming backend",
		SilenceUsage: true,
		RunE:         runDaemon,
	}
	root.PersistentFlags().StringVar(&flagLogLevel, "log-level", "info", "log level (debug, info, warn, error)")
	root.Flags().BoolVar(&flagMockEngine, "mock-engine", false, "use the in-memory engine instead of real audio output")
	root.Flags().BoolVar(&flagNoSession, "no-session", false, "do not export the MPRIS media session")
	root.Flags().BoolVar(&flagNoWakeLock, "no-wake-lock", false, "do not inhibit system idle during playback")

	cacheCmd := &cobra.Command{
		Use:   "cache",
		Short: "Inspect and manage the content cache",
	}
	cacheCmd.AddCommand(
		&cobra.Command{
			Use:   "stats",
			Short: "Show cache size and entry counts",
			RunE:  runCacheStats,
		},
		&cobra.Command{
			Use:   "wipe",
			Short: "Delete every cached artifact and its metadata",
			RunE:  runCacheWipe,
		},
	)

	cacheCmd.AddCommand(&cobra.Command{
		Use:   "delete <track-id>",
		Short: "Delete all cached artifacts for one track",
		Args:  cobra.ExactArgs(1),
		RunE:  runCacheDelete,
	})

	queueCmd := &cobra.Command{
		Use:   "queue",
		Short: "Inspect and manage the durable play queue",
	}
	queueCmd.AddCommand(
		&cobra.Command{
			Use:   "list",
			Short: "List every queue entry by ascending track ID",
			RunE:  runQueueList,
		},
		&cobra.Command{
			Use:   "clear",
			Short: "Delete every queue entry",
			RunE:  runQueueClear,
		},
	)

	versionCmd := &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(*cobra.Command, []string) {
			fmt.Println(app.GetVersionInfo().FullString())
		},
	}

	root.AddCommand(cacheCmd, queueCmd, versionCmd)

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func runDaemon(*cobra.Command, []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	application, err := app.NewApplication(config.Load(), app.Options{
		UseMockEngine: flagMockEngine,
		NoSession:     flagNoSession,
		NoWakeLock:    flagNoWakeLock,
		LogLevel:      parseLogLevel(flagLogLevel),
	})
	if err != nil {
		return fmt.Errorf("failed to start daemon: %w", err)
	}
	defer application.Shutdown()

	return application.Run(ctx)
}

func runCacheStats(*cobra.Command, []string) error {
	cache, closeCache, err := openCache()
	if err != nil {
		return err
	}
	defer closeCache()

	entries := cache.ListEntries()
	fmt.Printf("cache enabled: %v\n", cache.Enabled())
	fmt.Printf("total size:    %s\n", cache.FormattedSize())
	fmt.Printf("entries:       %d\n", len(entries))
	for _, entry := range entries {
		fmt.Printf("  %-6s %-8d %10d B  %s\n", entry.Kind, entry.TrackID, entry.Size, entry.Title)
	}
	return nil
}

func runCacheWipe(*cobra.Command, []string) error {
	cache, closeCache, err := openCache()
	if err != nil {
		return err
	}
	defer closeCache()

	if err := cache.WipeAll(); err != nil {
		return fmt.Errorf("failed to wipe cache: %w", err)
	}
	fmt.Println("cache wiped")
	return nil
}

func runCacheDelete(_ *cobra.Command, args []string) error {
	id, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		return fmt.Errorf("invalid track id %q", args[0])
	}

	cache, closeCache, err := openCache()
	if err != nil {
		return err
	}
	defer closeCache()

	cache.Delete(id)
	fmt.Printf("deleted cached artifacts for track %d\n", id)
	return nil
}

func runQueueList(*cobra.Command, []string) error {
	queue, closeQueue, err := openQueue()
	if err != nil {
		return err
	}
	defer closeQueue()

	entries, err := queue.All()
	if err != nil {
		return fmt.Errorf("failed to read queue: %w", err)
	}
	for _, entry := range entries {
		fmt.Printf("%-8d %s - %s (%s)\n", entry.ID, entry.Artist, entry.Title, entry.Duration)
	}
	fmt.Printf("%d entries\n", len(entries))
	return nil
}

func runQueueClear(*cobra.Command, []string) error {
	queue, closeQueue, err := openQueue()
	if err != nil {
		return err
	}
	defer closeQueue()

	count, err := queue.Count()
	if err != nil {
		return fmt.Errorf("failed to count queue: %w", err)
	}
	if err := queue.Clear(); err != nil {
		return fmt.Errorf("failed to clear queue: %w", err)
	}
	fmt.Printf("cleared %d entries\n", count)
	return nil
}

// openQueue opens only the database-backed queue store.
func openQueue() (*sqlite.QueueRepository, func(), error) {
	cfg := config.Load()
	log := logger.NewLogger(logger.Config{Level: parseLogLevel(flagLogLevel), Format: "text"})

	db, err := sqlite.Open(cfg.DBPath, log)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open database: %w", err)
	}
	return sqlite.NewQueueRepository(db), func() { _ = sqlite.Close(db) }, nil
}

// openCache builds just enough of the dependency graph for cache inspection:
// database, settings store and the cache service. No engine, no session.
func openCache() (*service.CacheService, func(), error) {
	cfg := config.Load()
	log := logger.NewLogger(logger.Config{Level: parseLogLevel(flagLogLevel), Format: "text"})

	db, err := sqlite.Open(cfg.DBPath, log)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open database: %w", err)
	}

	bus := eventbus.New(log)
	fileSource := source.NewHTTPSource(cfg.APIBaseURL, log)

	cache, err := service.NewCacheService(cfg.CacheDir, sqlite.NewSettingsRepository(db), fileSource, bus, log)
	if err != nil {
		_ = bus.Close()
		_ = sqlite.Close(db)
		return nil, nil, fmt.Errorf("failed to open cache: %w", err)
	}

	cleanup := func() {
		_ = bus.Close()
		_ = sqlite.Close(db)
	}
	return cache, cleanup, nil
}

func parseLogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
