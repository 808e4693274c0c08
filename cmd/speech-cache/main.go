// main package for the speech-cache service
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

	"github.com/book-expert/logger"
	"github.com/book-expert/speech-cache/internal/config"
	"github.com/book-expert/speech-cache/internal/core"
	"github.com/book-expert/speech-cache/internal/memcache"
	"github.com/book-expert/speech-cache/internal/notify"
	"github.com/book-expert/speech-cache/internal/objectstore"
	"github.com/book-expert/speech-cache/internal/server"
	"github.com/book-expert/speech-cache/internal/speech"
	"github.com/book-expert/speech-cache/internal/synthesis"
	"github.com/book-expert/speech-cache/internal/worker"
	"github.com/nats-io/nats.go"
)

const (
	readHeaderTimeout = 5 * time.Second
	readTimeout       = 10 * time.Second
	writeTimeout      = 60 * time.Second
	idleTimeout       = 60 * time.Second
	shutdownTimeout   = 5 * time.Second
)

func setupLogger(logPath string) (*logger.Logger, error) {
	log, err := logger.New(logPath, "speech-cache.log")
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}

	return log, nil
}

func run() error {
	// 1. Create a temporary logger for the bootstrap process
	bootstrapLog, err := setupLogger(os.TempDir())
	if err != nil {
		// If bootstrap logger fails, we can only print to stderr
		fmt.Fprintf(os.Stderr, "FATAL: Failed to create bootstrap logger: %v\n", err)

		return err
	}

	bootstrapLog.Info("Bootstrap logger created.")

	// 2. Load configuration using the central configurator
	cfg, err := config.Load(bootstrapLog)
	if err != nil {
		bootstrapLog.Error("Failed to load configuration: %v", err)

		return fmt.Errorf("failed to load configuration: %w", err)
	}

	err = cfg.Validate()
	if err != nil {
		bootstrapLog.Error("Invalid configuration: %v", err)

		return fmt.Errorf("invalid configuration: %w", err)
	}

	bootstrapLog.Info("Configuration loaded successfully.")

	// 3. Initialize the final logger based on the loaded configuration
	finalLog, err := setupLogger(cfg.Paths.BaseLogsDir)
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

	return serve(cfg, finalLog)
}

func serve(cfg *config.Config, log *logger.Logger) error {
	natsConnection, err := nats.Connect(cfg.NATS.URL)
	if err != nil {
		return fmt.Errorf("failed to connect to NATS at %s: %w", cfg.NATS.URL, err)
	}
	defer natsConnection.Close()

	jetstreamContext, err := natsConnection.JetStream()
	if err != nil {
		return fmt.Errorf("failed to create JetStream context: %w", err)
	}

	store := objectstore.New(
		jetstreamContext,
		cfg.NATS.AudioBucket,
		cfg.Server.PublicBaseURL+server.AudioPath,
		log,
	)
	service := buildService(cfg, store, natsConnection, log)

	httpServer := &http.Server{
		Addr:              cfg.Server.ListenAddr,
		Handler:           server.New(service, store, natsConnection.IsConnected, log).Handler(),
		ReadHeaderTimeout: readHeaderTimeout,
		ReadTimeout:       readTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       idleTimeout,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	serveErrChan := make(chan error, 1)

	go func() {
		log.System("Listening on %s", cfg.Server.ListenAddr)

		serveErr := httpServer.ListenAndServe()
		if serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) {
			serveErrChan <- serveErr
		}

		close(serveErrChan)
	}()

	workerErrChan := startWorker(ctx, cfg, natsConnection, service, log)

	select {
	case <-ctx.Done():
	case serveErr := <-serveErrChan:
		if serveErr != nil {
			return fmt.Errorf("http server failed: %w", serveErr)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	err = httpServer.Shutdown(shutdownCtx)
	if err != nil {
		log.Warn("Graceful shutdown failed, closing: %v", err)
		_ = httpServer.Close()
	}

	if workerErrChan != nil {
		workerErr := <-workerErrChan
		if workerErr != nil {
			log.Warn("Worker exited with error: %v", workerErr)
		}
	}

	log.System("Server stopped.")

	return nil
}

func buildService(
	cfg *config.Config,
	store *objectstore.NatsObjectStore,
	natsConnection *nats.Conn,
	log *logger.Logger,
) *speech.Service {
	synthesizer := synthesis.NewClient(
		cfg.Synthesis.BaseURL,
		cfg.Synthesis.APIKey,
		time.Duration(cfg.Synthesis.TimeoutSeconds)*time.Second,
		log,
	)

	var notifier core.Notifier
	if cfg.NATS.AudioCreatedSubject != "" {
		notifier = notify.New(natsConnection, cfg.NATS.AudioCreatedSubject)
	}

	options := speech.Options{
		DefaultVoiceID:      cfg.Synthesis.DefaultVoiceID,
		SynthesisConfigured: cfg.SynthesisConfigured(),
		Policy:              speech.AvailabilityPolicy(cfg.Server.AvailabilityPolicy),
	}

	return speech.New(store, synthesizer, memcache.New(), notifier, log, options)
}

func startWorker(
	ctx context.Context,
	cfg *config.Config,
	natsConnection *nats.Conn,
	service *speech.Service,
	log *logger.Logger,
) chan error {
	if cfg.NATS.SpeechRequestedSubject == "" {
		return nil
	}

	workerInstance := worker.NewNatsWorker(natsConnection, cfg.NATS.SpeechRequestedSubject, service, log)
	errChan := make(chan error, 1)

	go func() {
		errChan <- workerInstance.Run(ctx)
	}()

	log.System("Worker listening for jobs on subject: %s", cfg.NATS.SpeechRequestedSubject)

	return errChan
}

func main() {
	err := run()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Service exited with error: %v\n", err)
		os.Exit(1)
	}
}
