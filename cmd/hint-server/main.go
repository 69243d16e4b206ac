// Package main is the entry point for the hint overlay server.
// It only handles dependency injection and server initialization.
// NO business logic belongs here.
package main

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/MRamiBalles/hintserver/internal/domain/player"
	"github.com/MRamiBalles/hintserver/internal/engine"
	"github.com/MRamiBalles/hintserver/internal/events"
	"github.com/MRamiBalles/hintserver/internal/hint"
	"github.com/MRamiBalles/hintserver/internal/hint/elements"
	"github.com/MRamiBalles/hintserver/internal/infra/storage"
	"github.com/MRamiBalles/hintserver/internal/network"
	"github.com/MRamiBalles/hintserver/internal/platform/config"
	"github.com/MRamiBalles/hintserver/internal/platform/logger"
	"github.com/MRamiBalles/hintserver/internal/platform/metrics"
)

// Flags holds the command line options.
type Flags struct {
	ConfigPath string
	Preset     string
	Listen     string
	DBPath     string
	DebugDump  bool
	DumpSink   string
	LogLevel   string
	LogJSON    bool
}

func main() {
	var flags Flags

	rootCmd := &cobra.Command{
		Use:   "hint-server",
		Short: "Hint overlay server",
		Long: `hint-server composites on-screen hint overlays for connected game
clients and pushes one size-bounded payload per player over websocket.`,
		Example: `  # Run with defaults on :8080
  hint-server

  # Load a config file on top of the stress preset
  hint-server --preset stress --config hints.toml

  # Dump every compiled payload to ./dumps
  hint-server --debug-dump --dump-sink file`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, flags)
			if err != nil {
				return err
			}
			return run(cmd.Context(), cfg)
		},
	}

	rootCmd.Flags().StringVarP(&flags.ConfigPath, "config", "c", "hints.toml", "Path to a TOML config file (ignored if missing)")
	rootCmd.Flags().StringVar(&flags.Preset, "preset", "default", "Base config preset: default, stress or low")
	rootCmd.Flags().StringVar(&flags.Listen, "listen", "", "HTTP listen address")
	rootCmd.Flags().StringVar(&flags.DBPath, "db", "", "SQLite database path (empty string in config disables storage)")
	rootCmd.Flags().BoolVar(&flags.DebugDump, "debug-dump", false, "Dump every compiled payload")
	rootCmd.Flags().StringVar(&flags.DumpSink, "dump-sink", "", "Where dumps go: file or sqlite")
	rootCmd.Flags().StringVar(&flags.LogLevel, "log-level", "", "Log level: debug, info, warn, error")
	rootCmd.Flags().BoolVar(&flags.LogJSON, "log-json", false, "Log JSON instead of colored text")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

// loadConfig layers preset, config file and explicitly set flags.
func loadConfig(cmd *cobra.Command, f Flags) (*config.Config, error) {
	base, err := config.Preset(f.Preset)
	if err != nil {
		return nil, err
	}
	cfg, err := config.Load(f.ConfigPath, base)
	if err != nil {
		return nil, err
	}

	set := cmd.Flags().Changed
	if set("listen") {
		cfg.ListenAddr = f.Listen
	}
	if set("db") {
		cfg.DBPath = f.DBPath
	}
	if set("debug-dump") {
		cfg.DebugDump = f.DebugDump
	}
	if set("dump-sink") {
		cfg.DumpSink = f.DumpSink
	}
	if set("log-level") {
		cfg.LogLevel = f.LogLevel
	}
	if set("log-json") {
		cfg.LogJSON = f.LogJSON
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func run(ctx context.Context, cfg *config.Config) error {
	appLogger := logger.New(os.Stderr, logger.Options{Level: logger.ParseLevel(cfg.LogLevel), JSON: cfg.LogJSON})
	collector := metrics.NewCollector()
	sessionID := uuid.NewString()
	appLogger.Info("starting hint server", "session", sessionID, "listen", cfg.ListenAddr)

	// Storage is optional: without a database the diagnostics log stays in memory.
	var (
		db        *sql.DB
		eventRepo *storage.SQLiteEventRepository
		dumpRepo  storage.DumpRepository
		recapper  *storage.Recapper
		persister events.EventPersister
	)
	if cfg.DBPath != "" {
		var err error
		db, err = storage.InitSQLite(cfg.DBPath)
		if err != nil {
			return err
		}
		defer db.Close()
		if err := storage.StartSession(ctx, db, sessionID, encodeConfig(cfg)); err != nil {
			return err
		}
		eventRepo = storage.NewSQLiteEventRepository(db)
		dumpRepo = storage.NewSQLiteDumpRepository(db)
		recapper = storage.NewRecapper(eventRepo)
		persister = storage.NewEventPersister(eventRepo, sessionID)
		appLogger.Info("diagnostics persisted to sqlite", "path", cfg.DBPath)
	}
	eventLog := events.NewEventLog(persister)

	var dumper hint.Dumper
	if cfg.DebugDump {
		switch cfg.DumpSink {
		case "sqlite":
			dumper = storage.NewSQLiteDumper(dumpRepo, sessionID)
		default:
			fd, err := storage.NewFileDumper(cfg.DumpDir)
			if err != nil {
				return err
			}
			dumper = fd
		}
		appLogger.Warn("debug dump enabled", "sink", cfg.DumpSink)
	}

	hub := network.NewHub(appLogger.With("component", "hub"), collector, cfg.ClientSendBuffer)
	sched := hint.NewScheduler(hub, hub, hint.Options{
		DefaultInterval: cfg.DefaultInterval.Duration,
		Logger:          appLogger.With("component", "hint"),
		Metrics:         collector,
		Reporter:        eventLog,
		Dumper:          dumper,
	})
	eng := engine.NewEngine(sched, engine.Options{
		TickRate:      cfg.TickRate.Duration,
		CommandBuffer: cfg.CommandBuffer,
		Logger:        appLogger.With("component", "engine"),
		Metrics:       collector,
		EventLog:      eventLog,
	})

	hub.OnJoin = func(s *player.Session) { eng.PlayerJoined(s, cfg.Nameplates) }
	hub.OnLeave = eng.PlayerLeft

	if cfg.ServerClock {
		err := eng.Submit(func(s *hint.Scheduler) {
			if err := s.Register(elements.NewServerClock(eng.Clock())); err != nil {
				appLogger.Error("server clock not registered", "error", err)
			}
		})
		if err != nil {
			return err
		}
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", hub.ServeWS)
	network.NewAdminAPI(eng, hub, appLogger.With("component", "admin")).RegisterRoutes(mux)
	// dumpRepo stays a nil interface without storage.
	network.NewDiagnosticsHandler(eventLog, recapper, dumpRepo, sessionID, appLogger).RegisterRoutes(mux)
	mux.HandleFunc("/metrics", metrics.PrometheusHandler(collector))
	mux.HandleFunc("/metrics.json", metrics.Handler(collector))

	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return eng.Run(gctx) })
	g.Go(func() error {
		hub.Run(gctx)
		return nil
	})
	g.Go(func() error { return eventLog.Run(gctx) })
	g.Go(func() error {
		appLogger.Info("HTTP API & WS server listening", "addr", cfg.ListenAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	if eventRepo != nil && cfg.Retention.Duration > 0 {
		g.Go(func() error {
			pruneLoop(gctx, eventRepo, cfg.Retention.Duration, appLogger)
			return nil
		})
	}

	err := g.Wait()
	report := config.Analyze(cfg, collector.Snapshot())
	for _, note := range report.Notes {
		appLogger.Info("tuning recommendation", "note", note)
	}
	appLogger.Info("hint server stopped", "frames", sched.Frame(), "dropped_commands", eng.Dropped())
	return err
}

// pruneLoop deletes diagnostics older than retention once an hour.
func pruneLoop(ctx context.Context, repo *storage.SQLiteEventRepository, retention time.Duration, log *logger.Logger) {
	ticker := time.NewTicker(time.Hour)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := repo.Prune(ctx, time.Now().Add(-retention))
			if err != nil {
				log.Warn("diagnostics prune failed", "error", err)
				continue
			}
			if n > 0 {
				log.Info("pruned old diagnostics", "rows", n)
			}
		}
	}
}

func encodeConfig(cfg *config.Config) string {
	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(cfg); err != nil {
		return ""
	}
	return buf.String()
}
