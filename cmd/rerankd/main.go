// Rerankd is a relevance-ranking daemon with an HTTP transport.
//
// This binary starts the rerankd HTTP server: it loads configuration,
// constructs the configured scoring model, and serves the rerank API
// until interrupted.
//
// Usage:
//
//	# Start server with defaults (lexical model, port 9090)
//	rerankd
//
//	# Configure via file and environment
//	rerankd --config /etc/rerankd/config.yaml
//	SERVER_HTTP_PORT=8080 MODEL_VARIANT=tei MODEL_TEI_BASE_URL=http://tei:8080 rerankd
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/rerankd/internal/config"
	rerankhttp "github.com/fyrsmithlabs/rerankd/internal/http"
	"github.com/fyrsmithlabs/rerankd/internal/logging"
	"github.com/fyrsmithlabs/rerankd/internal/rerank"
	"github.com/fyrsmithlabs/rerankd/internal/scorer"
	"github.com/fyrsmithlabs/rerankd/internal/telemetry"
)

// Version information (set via ldflags during build)
var (
	version   = "dev"
	gitCommit = "unknown"
	buildDate = "unknown"
)

func main() {
	configPath := flag.String("config", "", "path to config file (default ~/.config/rerankd/config.yaml)")
	flag.Parse()
	args := flag.Args()

	if len(args) > 0 {
		switch args[0] {
		case "version":
			printVersion()
			os.Exit(0)
		default:
			fmt.Fprintf(os.Stderr, "Unknown command: %s\n", args[0])
			fmt.Fprintf(os.Stderr, "\nUsage:\n")
			fmt.Fprintf(os.Stderr, "  rerankd           Start the rerankd daemon\n")
			fmt.Fprintf(os.Stderr, "  rerankd version   Show version information\n")
			os.Exit(1)
		}
	}

	// Graceful shutdown on SIGINT/SIGTERM
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		log.Printf("Received signal %v, shutting down gracefully...", sig)
		cancel()
	}()

	if err := run(ctx, *configPath); err != nil {
		log.Fatalf("Server error: %v", err)
	}

	log.Println("Server shutdown complete")
}

func printVersion() {
	fmt.Printf("rerankd by Fyrsmith Labs\n")
	fmt.Printf("Version:    %s\n", version)
	fmt.Printf("Commit:     %s\n", gitCommit)
	fmt.Printf("Build Date: %s\n", buildDate)
}

// run starts the rerankd server and blocks until the context is cancelled.
func run(ctx context.Context, configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	// Telemetry first: its LoggerProvider feeds the zap OTEL bridge.
	tel, err := telemetry.Setup(ctx, &telemetry.Config{
		Enabled:        cfg.Observability.Enabled,
		Endpoint:       cfg.Observability.Endpoint,
		ServiceName:    cfg.Observability.ServiceName,
		ServiceVersion: version,
		Insecure:       cfg.Observability.Insecure,
		ExportInterval: cfg.Observability.ExportInterval.Duration(),
	})
	if err != nil {
		return fmt.Errorf("failed to initialize telemetry: %w", err)
	}

	logger, err := logging.New(&logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Fields: map[string]string{"service": "rerankd"},
	}, tel.LoggerProvider())
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer func() {
		_ = logger.Sync()
	}()
	defer func() {
		if err := tel.Shutdown(context.Background()); err != nil {
			logger.Warn(ctx, "telemetry shutdown failed", zap.Error(err))
		}
	}()

	logger.Info(ctx, "starting rerankd",
		zap.String("version", version),
		zap.Int("port", cfg.Server.Port),
		zap.String("model_variant", cfg.Model.Variant),
		zap.Duration("shutdown_timeout", cfg.Server.ShutdownTimeout.Duration()))

	model, err := scorer.New(scorerConfig(cfg))
	if err != nil {
		return fmt.Errorf("failed to load scoring model: %w", err)
	}
	defer func() {
		if err := model.Close(); err != nil {
			logger.Warn(ctx, "model close failed", zap.Error(err))
		}
	}()
	model = scorer.WithMetrics(model, scorer.NewMetrics(logger.Underlying()))

	logger.Info(ctx, "scoring model loaded", zap.String("model", model.Name()))

	service, err := rerank.NewService(model, logger)
	if err != nil {
		return fmt.Errorf("failed to create rerank service: %w", err)
	}

	srv, err := rerankhttp.NewServer(service, logger, &rerankhttp.Config{
		Host:           cfg.Server.Host,
		Port:           cfg.Server.Port,
		RequestTimeout: cfg.Server.RequestTimeout.Duration(),
	})
	if err != nil {
		return fmt.Errorf("failed to create http server: %w", err)
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout.Duration())
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

// scorerConfig maps startup configuration onto the scorer package.
func scorerConfig(cfg *config.Config) scorer.Config {
	return scorer.Config{
		Variant: cfg.Model.Variant,
		Embedding: scorer.EmbeddingConfig{
			Model:     cfg.Model.Embedding.Model,
			CacheDir:  cfg.Model.Embedding.CacheDir,
			MaxLength: cfg.Model.Embedding.MaxLength,
		},
		TEI: scorer.TEIConfig{
			BaseURL: cfg.Model.TEI.BaseURL,
			APIKey:  cfg.Model.TEI.APIKey,
			Timeout: cfg.Model.TEI.Timeout,
		},
	}
}
