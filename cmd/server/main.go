package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"smartsurvey/internal/app"
	"smartsurvey/internal/config"
	"smartsurvey/internal/platform/logger"
)

func main() {
	cfg := config.Load()

	log, err := logger.New(cfg.LogMode)
	if err != nil {
		fmt.Fprintf(os.Stderr, "init logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	aiConfig := config.DefaultAIConfig()
	log.Info("ai config",
		"provider", aiConfig.Provider,
		"model_generation", aiConfig.Models.Generation,
		"model_validation", aiConfig.Models.Validation,
		"model_adaptive", aiConfig.Models.Adaptive,
		"timeout_ms", aiConfig.TimeoutMS,
		"enabled", aiConfig.IsEnabled(),
	)

	ctx := context.Background()
	a, err := app.New(ctx, cfg, aiConfig, log)
	if err != nil {
		log.Fatal("startup failed", "error", err)
	}

	srv := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           a.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info("server starting", "port", cfg.HTTPPort, "cache_backend", cfg.CacheBackend, "host_user", cfg.HostUsername)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("listen failed", "error", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("server forced to shutdown", "error", err)
	}
	a.Close(shutdownCtx)

	log.Info("server exited")
}
