package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/zhouzirui/receptionist-widget/internal/analysis/tone"
	"github.com/zhouzirui/receptionist-widget/internal/client"
	"github.com/zhouzirui/receptionist-widget/internal/config"
	"github.com/zhouzirui/receptionist-widget/internal/db"
	"github.com/zhouzirui/receptionist-widget/internal/format"
	"github.com/zhouzirui/receptionist-widget/internal/handler"
	"github.com/zhouzirui/receptionist-widget/internal/logging"
	"github.com/zhouzirui/receptionist-widget/internal/middleware"
	"github.com/zhouzirui/receptionist-widget/internal/model/profile"
	"github.com/zhouzirui/receptionist-widget/internal/service/chat"
	"github.com/zhouzirui/receptionist-widget/internal/service/conversation"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Load .env file
	envErr := godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	logger, err := logging.New(cfg.Log)
	if err != nil {
		log.Fatalf("failed to build logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck
	zap.ReplaceGlobals(logger)

	if envErr != nil {
		logger.Info("no .env file loaded, using system environment only", zap.Error(envErr))
	}

	profiles, closeProfiles := openProfileStore(cfg.Profile, logger)
	defer closeProfiles()

	backend := client.New(cfg.Backend.BaseURL(), client.WithLogger(logger.Named("client")))
	chatService := chat.NewService(backend, profiles, conversation.Options{
		Pacer:         tone.Pacer{Scale: cfg.Reveal.Scale},
		ThinkingDelay: cfg.Reveal.ThinkingDelay,
		Logger:        logger.Named("conversation"),
	})

	go chatService.Run(ctx, cfg.Session.IdleTTL)

	origins := middleware.NewOriginPolicy(cfg.Server.AllowedOrigins)
	router := handler.NewRouter(chatService, format.New(nil), origins, logger)

	logger.Info("session eviction configured", zap.Duration("idle_ttl", cfg.Session.IdleTTL))
	logger.Info("allowed embedding origins", zap.Strings("origins", cfg.Server.AllowedOrigins))

	logger.Info("receptionist backend configured", zap.String("api_url", cfg.Backend.BaseURL()))
	startServer(ctx, cfg.Server, router, logger)
}

func openProfileStore(cfg config.ProfileConfig, logger *zap.Logger) (profile.Store, func()) {
	if cfg.DBPath == "" {
		logger.Info("PROFILE_DB_PATH not set, profile kept in memory")
		return profile.NewMemoryStore(nil), func() {}
	}

	store, err := db.OpenSQLite(cfg.DBPath)
	if err != nil {
		logger.Warn("failed to open profile database, falling back to memory",
			zap.String("path", cfg.DBPath), zap.Error(err))
		return profile.NewMemoryStore(nil), func() {}
	}
	logger.Info("profile database opened", zap.String("path", cfg.DBPath))
	return store, func() {
		if err := store.Close(); err != nil {
			logger.Warn("failed to close profile database", zap.Error(err))
		}
	}
}

func startServer(ctx context.Context, serverCfg config.ServerConfig, router http.Handler, logger *zap.Logger) {
	addr := serverCfg.Addr
	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	logger.Info("receptionist widget listening", zap.String("addr", addr))
	if err := runServer(ctx, srv); err != nil {
		logger.Fatal("server error", zap.Error(err))
	}
}

func runServer(ctx context.Context, srv *http.Server) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		err := <-errCh
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
