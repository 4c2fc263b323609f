// Package config provides configuration loading for rerankd.
//
// Configuration is loaded from an optional YAML file and overridden by
// environment variables. The scoring model variant is part of startup
// configuration: it is selected exactly once and never changes at runtime.
package config

import (
	"errors"
	"fmt"
	"time"
)

// Config holds the complete rerankd configuration.
type Config struct {
	Server        ServerConfig        `koanf:"server"`
	Model         ModelConfig         `koanf:"model"`
	Logging       LoggingConfig       `koanf:"logging"`
	Observability ObservabilityConfig `koanf:"observability"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Host            string   `koanf:"host"`
	Port            int      `koanf:"http_port"`
	RequestTimeout  Duration `koanf:"request_timeout"`
	ShutdownTimeout Duration `koanf:"shutdown_timeout"`
}

// ModelConfig selects the scoring model variant loaded at startup.
type ModelConfig struct {
	// Variant is one of "lexical", "embedding", or "tei".
	Variant   string               `koanf:"variant"`
	Embedding EmbeddingModelConfig `koanf:"embedding"`
	TEI       TEIModelConfig       `koanf:"tei"`
}

// EmbeddingModelConfig configures the local ONNX embedding variant.
type EmbeddingModelConfig struct {
	Model     string `koanf:"model"`
	CacheDir  string `koanf:"cache_dir"`
	MaxLength int    `koanf:"max_length"`
}

// TEIModelConfig configures the remote Text Embeddings Inference variant.
type TEIModelConfig struct {
	BaseURL string   `koanf:"base_url"`
	APIKey  Secret   `koanf:"api_key"`
	Timeout Duration `koanf:"timeout"`
}

// LoggingConfig holds logger configuration.
type LoggingConfig struct {
	// Level is one of debug, info, warn, error.
	Level string `koanf:"level"`
	// Format is "json" or "console".
	Format string `koanf:"format"`
}

// ObservabilityConfig holds OpenTelemetry export configuration.
type ObservabilityConfig struct {
	Enabled        bool     `koanf:"enabled"`
	Endpoint       string   `koanf:"endpoint"`
	ServiceName    string   `koanf:"service_name"`
	Insecure       bool     `koanf:"insecure"`
	ExportInterval Duration `koanf:"export_interval"`
}

// Default returns the configuration defaults applied before file and
// environment overrides.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            "localhost",
			Port:            9090,
			RequestTimeout:  Duration(30 * time.Second),
			ShutdownTimeout: Duration(10 * time.Second),
		},
		Model: ModelConfig{
			Variant: "lexical",
			Embedding: EmbeddingModelConfig{
				Model: "BAAI/bge-small-en-v1.5",
			},
			TEI: TEIModelConfig{
				BaseURL: "http://localhost:8080",
				Timeout: Duration(30 * time.Second),
			},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Observability: ObservabilityConfig{
			Enabled:        false,
			Endpoint:       "localhost:4318",
			ServiceName:    "rerankd",
			Insecure:       true,
			ExportInterval: Duration(15 * time.Second),
		},
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d (must be 1-65535)", c.Server.Port)
	}
	if c.Server.RequestTimeout.Duration() <= 0 {
		return errors.New("request timeout must be positive")
	}
	if c.Server.ShutdownTimeout.Duration() <= 0 {
		return errors.New("shutdown timeout must be positive")
	}

	switch c.Model.Variant {
	case "lexical", "embedding":
	case "tei":
		if c.Model.TEI.BaseURL == "" {
			return errors.New("model.tei.base_url required for tei variant")
		}
	default:
		return fmt.Errorf("unknown model variant: %q (supported: lexical, embedding, tei)", c.Model.Variant)
	}

	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("unknown logging level: %q", c.Logging.Level)
	}
	if c.Logging.Format != "json" && c.Logging.Format != "console" {
		return fmt.Errorf("unknown logging format: %q (supported: json, console)", c.Logging.Format)
	}

	if c.Observability.Enabled {
		if c.Observability.Endpoint == "" {
			return errors.New("observability endpoint required when enabled")
		}
		if c.Observability.ServiceName == "" {
			return errors.New("service name required when observability is enabled")
		}
	}

	return nil
}
