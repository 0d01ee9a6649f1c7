package cli

import (
	"context"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/kilnworks/autodev/internal/api"
	"github.com/kilnworks/autodev/internal/broadcast"
	"github.com/kilnworks/autodev/internal/common/config"
	"github.com/kilnworks/autodev/internal/common/logger"
	"github.com/kilnworks/autodev/internal/gitgw"
	"github.com/kilnworks/autodev/internal/orchestrator"
	"github.com/kilnworks/autodev/internal/provider"
	"github.com/kilnworks/autodev/internal/store"
	"github.com/kilnworks/autodev/internal/watcher"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "run the orchestrator HTTP/WebSocket server",
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadWithPath(configPath)
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}

	log, err := logger.NewLogger(logger.LoggingConfig{
		Level:      cfg.Logging.Level,
		Format:     cfg.Logging.Format,
		OutputPath: cfg.Logging.OutputPath,
	})
	if err != nil {
		return fmt.Errorf("initializing logger: %w", err)
	}
	defer log.Sync()
	logger.SetDefault(log)

	log.Info("starting autodev", zap.Int("port", cfg.Server.Port), zap.String("dataDir", cfg.Data.Dir))

	st, err := store.New(cfg.Data.Dir, log)
	if err != nil {
		return fmt.Errorf("initializing store: %w", err)
	}

	registry := provider.NewRegistryFromConfig(cfg.Agent)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	hub := broadcast.NewHub(log)
	go hub.Run(ctx)

	git := gitgw.New(log)

	// Two-phase construction: the watcher needs orchestrator-bound
	// callbacks before the orchestrator exists, and the orchestrator
	// needs an already-built watcher.
	var orch *orchestrator.Orchestrator
	wt := watcher.New(st, orchestrator.WatcherCallbacks(&orch), log)
	orch = orchestrator.New(st, registry, hub, git, wt, orchestrator.OSLauncher{}, cfg.Orchestrator, log)

	log.Info("recovering orphaned sessions from a prior run")
	if err := orch.InitRecovery(ctx); err != nil {
		return fmt.Errorf("recovering orphaned sessions: %w", err)
	}

	if cfg.Logging.Level != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := api.NewRouter(api.Deps{
		Store:        st,
		Orchestrator: orch,
		Registry:     registry,
		Hub:          hub,
		Logger:       log,
		Auth:         cfg.Auth,
	})

	httpServer := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeoutDuration(),
		WriteTimeout: cfg.Server.WriteTimeoutDuration(),
	}

	go func() {
		log.Info("http server listening", zap.String("addr", httpServer.Addr))
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("http server failed", zap.Error(err))
		}
	}()

	sigCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	<-sigCtx.Done()

	log.Info("shutting down")
	orch.SnapshotClaims()
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error("http server shutdown error", zap.Error(err))
	}

	log.Info("autodev stopped")
	return nil
}
