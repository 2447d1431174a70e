package main

import (
	"context"
	"log"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/feastly/feastly-web/internal/pkg/config"
	"github.com/feastly/feastly-web/internal/server"
	"github.com/feastly/feastly-web/pkg/logger"
)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	// Load environment variables
	if err := godotenv.Load(); err != nil {
		log.Println("Warning: Error loading .env file, using environment variables")
	}

	// Initialize logger
	if err := logger.Init(zapcore.InfoLevel, zap.String("service", "feastly-web")); err != nil {
		return err
	}
	zlog := logger.Log
	defer zlog.Sync()

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	// Initialize observability
	otelShutdown, err := server.InitObservability("feastly-web", ":"+cfg.MetricsPort, zlog)
	if err != nil {
		return err
	}
	defer func() {
		if err := otelShutdown(context.Background()); err != nil {
			zlog.Error("Failed to shutdown OpenTelemetry", zap.Error(err))
		}
	}()

	// Create server
	srv, err := server.New(cfg, zlog)
	if err != nil {
		return err
	}

	// Setup router
	srv.SetRouter(srv.SetupRouter())

	// Start pprof server (on separate port, not exposed publicly)
	server.StartPprofServer(":" + cfg.PprofPort)

	// Create HTTP server
	httpServer := srv.HTTPServer()

	// Setup graceful shutdown
	done := make(chan bool, 1)
	go server.GracefulShutdown(httpServer, zlog, done)

	// Start server
	zlog.Info("Server starting", zap.String("port", cfg.ServerPort))
	if err := httpServer.ListenAndServe(); err != nil {
		zlog.Error("Server error", zap.Error(err))
	}

	// Wait for graceful shutdown to complete
	<-done
	zlog.Info("Graceful shutdown complete")

	return nil
}
