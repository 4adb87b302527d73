package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	app "github.com/hansbyte/pairgate"
	"github.com/hansbyte/pairgate/internal/client"
	"github.com/hansbyte/pairgate/internal/config"
	"github.com/hansbyte/pairgate/internal/export"
	"github.com/hansbyte/pairgate/internal/server"
	"github.com/hansbyte/pairgate/internal/session"
	"github.com/hansbyte/pairgate/pkg/log"

	_ "github.com/hansbyte/pairgate/internal/client/sim"
)

type pairgate struct {
	cfg        *config.Config
	uploader   *export.BucketUploader
	exporter   *export.Exporter
	hub        *session.Hub
	orc        *session.Orchestrator
	apiServer  *server.Server
	httpServer *http.Server
	quit       chan os.Signal
}

var (
	ErrOpenBucket     = errors.New("failed to open export bucket")
	ErrCreateExporter = errors.New("failed to create exporter")
)

var logLevels = map[string]slog.Level{
	"debug": slog.LevelDebug,
	"info":  slog.LevelInfo,
	"warn":  slog.LevelWarn,
	"error": slog.LevelError,
}

func main() {
	cfg := config.NewDefaultConfig()
	if err := cfg.LoadFromEnv(); err != nil {
		slog.Error("Invalid configuration", log.Error(err))
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		slog.Error("Invalid configuration", log.Error(err))
		os.Exit(1)
	}

	s := &pairgate{
		cfg:  cfg,
		quit: make(chan os.Signal, 1),
	}
	s.setupLogging()

	if err := s.run(); err != nil {
		slog.Error("Failed to start application", log.Error(err))
		os.Exit(1)
	}
}

func (s *pairgate) run() error {
	if err := s.initializeExport(); err != nil {
		return err
	}

	s.initializeSessions()
	s.startServer()

	signal.Notify(s.quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(s.quit)
	<-s.quit

	s.shutdown()
	return nil
}

func (s *pairgate) setupLogging() {
	level, ok := logLevels[s.cfg.LogLevel]
	if !ok {
		level = slog.LevelInfo
	}

	env := os.Getenv("ENV")
	logger := log.NewWithLevel(app.Name, env, app.Version, level)
	slog.SetDefault(logger)
	slog.SetLogLoggerLevel(level)

	slog.Info("Pairing service starting",
		slog.String("log_level", s.cfg.LogLevel))

	slog.Info("Configuration loaded",
		slog.String("client_driver", s.cfg.ClientDriver),
		slog.String("session_root", s.cfg.SessionRoot),
		slog.String("bucket_url", s.cfg.BucketURL),
		slog.Int("max_retries", s.cfg.Retry.MaxRetries),
		slog.String("api_host", s.cfg.APIHost),
		slog.Int("api_port", s.cfg.APIPort))
}

func (s *pairgate) initializeExport() error {
	uploader, err := export.OpenBucket(
		context.Background(), s.cfg.BucketURL, s.cfg.PublicBaseURL,
	)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrOpenBucket, err)
	}
	s.uploader = uploader

	exporter, err := export.New(
		uploader, s.cfg.PublicBaseURL, s.cfg.TokenPrefix, slog.Default(),
	)
	if err != nil {
		_ = s.uploader.Close()
		return fmt.Errorf("%w: %w", ErrCreateExporter, err)
	}
	s.exporter = exporter
	return nil
}

func (s *pairgate) initializeSessions() {
	s.hub = session.NewHub()

	factory := func(c client.Config) (client.Client, error) {
		return client.New(s.cfg.ClientDriver, c)
	}

	pair := time.Duration(s.cfg.PairDelay) * time.Millisecond
	stabilize := time.Duration(s.cfg.StabilizeDelay) * time.Millisecond

	s.orc = session.New(session.Config{
		SessionRoot:    s.cfg.SessionRoot,
		ClientName:     s.cfg.ClientName,
		ProtocolDomain: s.cfg.ProtocolDomain,
		PairDelay:      pair,
		StabilizeDelay: stabilize,
		Retry:          s.cfg.Retry,
	}, factory, s.exporter, s.hub, slog.Default())
}

func (s *pairgate) startServer() {
	s.apiServer = server.NewServer(s.orc, s.hub, s.cfg)
	router := s.apiServer.SetupRoutes()

	s.httpServer = &http.Server{
		Addr:    fmt.Sprintf("%s:%d", s.cfg.APIHost, s.cfg.APIPort),
		Handler: router,
	}

	go func() {
		slog.Info("HTTP server starting",
			slog.String("addr", s.httpServer.Addr))
		err := s.httpServer.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("HTTP server error", log.Error(err))
		}
	}()
}

func (s *pairgate) shutdown() {
	slog.Info("Shutting down")

	ctx, cancel := context.WithTimeout(
		context.Background(), s.cfg.ShutdownTimeout,
	)
	defer cancel()

	if err := s.httpServer.Shutdown(ctx); err != nil {
		slog.Error("Shutdown failed", log.Error(err))
	}

	s.apiServer.CloseWebSockets()

	if err := s.orc.Shutdown(ctx); err != nil {
		slog.Error("Session shutdown failed", log.Error(err))
	}
	s.hub.Close()

	_ = s.uploader.Close()

	slog.Info("Server exited")
}
