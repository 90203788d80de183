// main package for the log-hub
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/book-expert/logger"
	"github.com/book-expert/tts-console/internal/config"
	"github.com/book-expert/tts-console/internal/hub"
	"github.com/book-expert/tts-console/internal/relay"
	"github.com/book-expert/tts-console/internal/server"
	charmlog "github.com/charmbracelet/log"
	"github.com/gin-gonic/gin"
	"github.com/muesli/termenv"
	"github.com/nats-io/nats.go"
)

const (
	shutdownTimeout   = 10 * time.Second
	readHeaderTimeout = 10 * time.Second
)

func setupLogger(logPath, fileName string) (*logger.Logger, error) {
	log, err := logger.New(logPath, fileName)
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}

	return log, nil
}

// newRuntimeLogger writes to stderr and into the hub, so every hub log line is also streamed.
func newRuntimeLogger(cfg config.HubConfig, logHub *hub.Hub) *charmlog.Logger {
	runtimeLog := charmlog.NewWithOptions(io.MultiWriter(os.Stderr, logHub), charmlog.Options{
		ReportTimestamp: true,
		TimeFormat:      time.DateTime,
		Prefix:          "log-hub",
		Level:           charmlog.InfoLevel,
	})

	if cfg.GinMode == gin.DebugMode {
		runtimeLog.SetLevel(charmlog.DebugLevel)
	}

	if cfg.ColoredLogs {
		runtimeLog.SetColorProfile(termenv.TrueColor)
	}

	return runtimeLog
}

// startRelay forwards the NATS log subject into the hub. The hub keeps serving without it.
func startRelay(ctx context.Context, cfg *config.Config, logHub *hub.Hub, log *logger.Logger, runtimeLog *charmlog.Logger) func() {
	natsConnection, err := nats.Connect(cfg.NATS.URL, nats.Name("log-hub"))
	if err != nil {
		log.Warn("NATS relay disabled, failed to connect to %s: %v", cfg.NATS.URL, err)
		runtimeLog.Warn("NATS relay disabled", "url", cfg.NATS.URL, "err", err)

		return func() {}
	}

	logRelay, err := relay.New(natsConnection, cfg.NATS.LogSubject, logHub, log)
	if err != nil {
		log.Error("Failed to create NATS relay: %v", err)
		natsConnection.Close()

		return func() {}
	}

	done := make(chan struct{})

	go func() {
		defer close(done)

		runErr := logRelay.Run(ctx)
		if runErr != nil {
			log.Error("NATS relay stopped: %v", runErr)
		}
	}()

	runtimeLog.Info("Relaying NATS log lines", "subject", cfg.NATS.LogSubject)

	return func() {
		<-done
		natsConnection.Close()
	}
}

func run() error {
	bootstrapLog, err := setupLogger(os.TempDir(), "log-hub-bootstrap.log")
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: Failed to create bootstrap logger: %v\n", err)

		return err
	}

	bootstrapLog.Info("Bootstrap logger created.")

	cfg, err := config.Load(bootstrapLog)
	if err != nil {
		bootstrapLog.Error("Failed to load configuration: %v", err)

		return fmt.Errorf("failed to load configuration: %w", err)
	}

	finalLog, err := setupLogger(cfg.Paths.BaseLogsDir, "log-hub.log")
	if err != nil {
		bootstrapLog.Error("Failed to create final logger: %v", err)

		return fmt.Errorf("failed to create final logger: %w", err)
	}

	defer func() {
		closeErr := finalLog.Close()
		if closeErr != nil {
			fmt.Fprintf(os.Stderr, "error closing final logger: %v\n", closeErr)
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logHub := hub.New(cfg.Hub.HistorySize, cfg.Hub.SubscriberBuffer)
	runtimeLog := newRuntimeLogger(cfg.Hub, logHub)

	gin.SetMode(cfg.Hub.GinMode)
	gin.DefaultWriter = logHub

	stopRelay := startRelay(ctx, cfg, logHub, finalLog, runtimeLog)
	defer stopRelay()

	srv := &http.Server{
		Addr:              cfg.Hub.ListenAddr,
		Handler:           server.New(logHub, runtimeLog).WithAllowedOrigins(cfg.Hub.AllowedOrigins).Router(logHub),
		ReadHeaderTimeout: readHeaderTimeout,
		// Open log streams end with the signal context.
		BaseContext: func(net.Listener) context.Context { return ctx },
	}

	serveErr := make(chan error, 1)

	go func() {
		listenErr := srv.ListenAndServe()
		if listenErr != nil && !errors.Is(listenErr, http.ErrServerClosed) {
			serveErr <- listenErr
		}

		close(serveErr)
	}()

	finalLog.System("Log hub listening on %s.", cfg.Hub.ListenAddr)
	runtimeLog.Info("Log hub listening", "addr", cfg.Hub.ListenAddr)

	select {
	case <-ctx.Done():
		runtimeLog.Info("Shutting down log hub")
	case listenErr := <-serveErr:
		finalLog.Error("Log hub server failed: %v", listenErr)

		return fmt.Errorf("log hub server failed: %w", listenErr)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	err = srv.Shutdown(shutdownCtx)
	if err != nil {
		finalLog.Warn("Log hub forced to shut down: %v", err)

		return fmt.Errorf("failed to shut down log hub: %w", err)
	}

	finalLog.System("Log hub exited gracefully.")

	return nil
}

func main() {
	err := run()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Service exited with error: %v\n", err)
		os.Exit(1)
	}
}
