package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/v0idness/archipanion-ve/internal/metrics"
	chiTransport "github.com/v0idness/archipanion-ve/internal/transport/chi"
	"github.com/v0idness/archipanion-ve/internal/version"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the query and extraction HTTP API",
	Args:  cobra.NoArgs,
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	return withApp(cmd, func(a *app) error {
		build := version.Get()
		a.logger.Info("Starting archipanion API server",
			zap.String("version", build.Version),
			zap.String("commit", build.Commit),
			zap.String("go_version", build.GoVersion),
			zap.String("env", flagEnv),
			zap.Int("http_port", a.cfg.HTTP.Port),
			zap.String("db_driver", a.cfg.Database.Driver),
			zap.Strings("schemas", a.catalog.Names()),
		)

		addr := fmt.Sprintf(":%d", a.cfg.HTTP.Port)
		srv := &http.Server{
			Addr:         addr,
			Handler:      newRouter(a),
			ReadTimeout:  time.Duration(a.cfg.HTTP.ReadTimeoutSec) * time.Second,
			WriteTimeout: time.Duration(a.cfg.HTTP.WriteTimeoutSec) * time.Second,
		}

		// Graceful shutdown
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
		defer signal.Stop(quit)

		serveErr := make(chan error, 1)
		go func() {
			a.logger.Info("Starting HTTP server", zap.String("addr", addr))
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				serveErr <- err
			}
		}()

		select {
		case <-quit:
			a.logger.Info("Received shutdown signal")
		case err := <-serveErr:
			return fmt.Errorf("http server: %w", err)
		}

		shutdownCtx, cancel := context.WithTimeout(context.Background(),
			time.Duration(a.cfg.HTTP.ShutdownSec)*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			a.logger.Error("Error during shutdown", zap.Error(err))
		}
		a.logger.Info("Server stopped gracefully")
		return nil
	})
}

func newRouter(a *app) http.Handler {
	r := chi.NewRouter()
	r.Use(chiTransport.Recover(a.logger))
	r.Use(chiMiddleware.RequestID)
	r.Use(chiTransport.RequestLog(a.logger))
	r.Use(chiTransport.APIKeyAuth(a.cfg.Auth.APIKeys, a.logger))
	r.Use(metrics.Middleware())
	chiTransport.NewServer(a.schemas, a.query, a.extract, a.health, a.logger).Routes(r)
	return r
}
