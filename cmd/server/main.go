package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ujpm/Microsmart-PF/internal/config"
	"github.com/ujpm/Microsmart-PF/internal/server"
	"github.com/ujpm/Microsmart-PF/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		os.Stderr.WriteString("CRITICAL: Failed to load config: " + err.Error() + "\n")
		os.Exit(1)
	}

	log, err := logger.New(cfg.App.LogLevel)
	if err != nil {
		os.Stderr.WriteString("CRITICAL: Failed to initialize logger: " + err.Error() + "\n")
		os.Exit(1)
	}
	defer log.Sync()

	sugar := log.Sugar()

	srv, err := server.New(cfg, log)
	if err != nil {
		sugar.Fatal("Failed to create server: ", err)
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	go func() {
		sugar.Infof("Starting server on %s:%s", cfg.Server.Host, cfg.Server.Port)
		if err := srv.Run(); err != nil && err != http.ErrServerClosed {
			sugar.Fatal("Server failed: ", err)
		}
	}()

	sig := <-quit
	sugar.Infof("Received signal: %v. Shutting down gracefully...", sig)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		sugar.Errorf("Server forced to shutdown: %v", err)
	}

	sugar.Info("Server exited")
}
