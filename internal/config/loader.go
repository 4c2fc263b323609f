package config

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"
)

const maxConfigFileSize = 1024 * 1024 // 1MB

// Load loads configuration with the following precedence (highest wins):
//
//  1. Environment variables (SERVER_HTTP_PORT, MODEL_VARIANT, ...)
//  2. YAML config file (default: ~/.config/rerankd/config.yaml)
//  3. Hardcoded defaults
//
// The configPath parameter names the YAML file to load; empty means the
// default path. A missing file is not an error — defaults plus environment
// apply. An existing file must be a regular file, at most 1MB, and not
// world-readable (0600 or 0400).
//
// Environment variables map to config keys by lowercasing and splitting on
// the first underscore (SERVER_HTTP_PORT -> server.http_port); the model
// section additionally nests its embedding and tei subsections
// (MODEL_TEI_BASE_URL -> model.tei.base_url).
func Load(configPath string) (*Config, error) {
	k := koanf.New(".")

	if configPath == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get home directory: %w", err)
		}
		configPath = filepath.Join(home, ".config", "rerankd", "config.yaml")
	}

	if _, err := os.Stat(configPath); err == nil {
		// Open once and validate via the file descriptor to avoid a
		// stat/read race.
		f, err := os.Open(configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to open config file: %w", err)
		}
		defer f.Close()

		info, err := f.Stat()
		if err != nil {
			return nil, fmt.Errorf("failed to stat config file: %w", err)
		}
		if err := validateConfigFile(info); err != nil {
			return nil, fmt.Errorf("config file validation failed: %w", err)
		}

		content, err := io.ReadAll(f)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}

		if err := k.Load(rawbytes.Provider(content), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	}

	if err := k.Load(env.Provider("", ".", transformEnvKey), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	cfg := Default()
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// transformEnvKey maps an environment variable name to a config key.
//
//	SERVER_HTTP_PORT          -> server.http_port
//	LOGGING_LEVEL             -> logging.level
//	MODEL_VARIANT             -> model.variant
//	MODEL_EMBEDDING_CACHE_DIR -> model.embedding.cache_dir
//	MODEL_TEI_BASE_URL        -> model.tei.base_url
func transformEnvKey(s string) string {
	lower := strings.ToLower(s)
	parts := strings.SplitN(lower, "_", 2)
	if len(parts) == 1 {
		return lower
	}

	section, field := parts[0], parts[1]

	// The model section carries nested subsections; everything else is
	// section.field_name.
	if section == "model" {
		for _, sub := range []string{"embedding", "tei"} {
			prefix := sub + "_"
			if strings.HasPrefix(field, prefix) {
				return section + "." + sub + "." + strings.TrimPrefix(field, prefix)
			}
		}
	}

	return section + "." + field
}

// validateConfigFile checks file type, permissions, and size.
func validateConfigFile(info os.FileInfo) error {
	if !info.Mode().IsRegular() {
		return fmt.Errorf("config path is not a regular file")
	}

	// Skip the permission check on Windows (different permission model).
	if runtime.GOOS != "windows" {
		perm := info.Mode().Perm()
		if perm != 0600 && perm != 0400 {
			return fmt.Errorf("insecure config file permissions: %v (expected 0600 or 0400)", perm)
		}
	}

	if info.Size() > maxConfigFileSize {
		return fmt.Errorf("config file too large: %d bytes (max %d)", info.Size(), maxConfigFileSize)
	}

	return nil
}
