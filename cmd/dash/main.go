package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/PriyanKishoreMS/transmyaction-dash/internal/api"
	"github.com/PriyanKishoreMS/transmyaction-dash/internal/config"
	apphttp "github.com/PriyanKishoreMS/transmyaction-dash/internal/http"
	"github.com/PriyanKishoreMS/transmyaction-dash/internal/log"
	"github.com/PriyanKishoreMS/transmyaction-dash/internal/session"
)

func main() {
	_ = godotenv.Load()

	logger := log.New(log.DefaultConfig())
	log.SetDefault(logger)

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.Error("Invalid configuration", log.FieldError, err.Error())
		os.Exit(1)
	}

	storage, err := session.NewSQLiteStorage(cfg.SessionDBPath)
	if err != nil {
		logger.Error("Failed to open session storage",
			log.FieldError, err.Error(),
			"db_path", cfg.SessionDBPath)
		os.Exit(1)
	}
	defer storage.Close()

	sess := session.NewStore(storage, logger)
	if err := sess.Reload(context.Background()); err != nil {
		logger.Error("Failed to restore session", log.FieldError, err.Error())
		os.Exit(1)
	}

	client := api.NewClient(cfg.APIBaseURL, cfg.RequestTimeout, sess, logger)

	srv := apphttp.NewServer(apphttp.Options{
		Addr:               ":" + cfg.Port,
		CacheTTL:           cfg.CacheTTL,
		CacheMaxEntries:    cfg.CacheMaxEntries,
		RateLimitPerMinute: cfg.RateLimitPerMinute,
	}, client, sess, logger)

	// Configure server timeouts and limits
	srv.ReadTimeout = 10 * time.Second
	srv.WriteTimeout = 30 * time.Second
	srv.IdleTimeout = 60 * time.Second
	srv.MaxHeaderBytes = 1 << 16 // 64KB

	// Graceful shutdown handling
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		sig := <-sigChan
		logger.Info("Shutdown signal received", "signal", sig.String())

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("Server shutdown error", log.FieldError, err.Error())
		}
		cancel()
	}()

	logger.Info("Starting dashboard server",
		"port", cfg.Port,
		"api_base_url", cfg.APIBaseURL)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("Server error", log.FieldError, err.Error(), "port", cfg.Port)
		os.Exit(1)
	}

	<-ctx.Done()
	logger.Info("Server stopped gracefully")
}
