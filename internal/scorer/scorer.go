// Package scorer provides the scoring models that rank passages against a
// query. The model variant is fixed at process start; every variant is safe
// for concurrent Rank calls (serializing internally where the underlying
// implementation requires it).
package scorer

import (
	"context"
	"errors"
	"fmt"

	"github.com/fyrsmithlabs/rerankd/internal/config"
)

// ErrInvalidConfig indicates an unusable scorer configuration.
var ErrInvalidConfig = errors.New("invalid scorer configuration")

// Ranking is a model's output: parallel slices ordered best first.
// Indices are 0-based positions into the passage slice handed to Rank.
type Ranking struct {
	Indices []int
	Scores  []float64
}

// Model scores passages against a query. Implementations return every
// passage exactly once, ordered by descending relevance; callers do not
// re-sort.
type Model interface {
	// Name identifies the loaded model, echoed in logs and metrics.
	Name() string

	// Rank scores all passages against the query. The passage slice is
	// never empty; the pipeline short-circuits empty candidate lists before
	// reaching the model.
	Rank(ctx context.Context, query string, passages []string) (Ranking, error)

	// Close releases any resources held by the model.
	Close() error
}

// Config selects and configures the model variant loaded at startup.
type Config struct {
	// Variant is one of "lexical" (default), "embedding", or "tei".
	Variant string `koanf:"variant"`

	Embedding EmbeddingConfig `koanf:"embedding"`
	TEI       TEIConfig       `koanf:"tei"`
}

// EmbeddingConfig configures the local ONNX embedding variant.
type EmbeddingConfig struct {
	// Model is the embedding model name, e.g. BAAI/bge-small-en-v1.5.
	Model string `koanf:"model"`
	// CacheDir is where model files are cached.
	CacheDir string `koanf:"cache_dir"`
	// MaxLength is the maximum input sequence length. Defaults to 512.
	MaxLength int `koanf:"max_length"`
}

// TEIConfig configures the remote Text Embeddings Inference variant.
type TEIConfig struct {
	// BaseURL is the TEI server base URL, e.g. http://localhost:8080.
	BaseURL string `koanf:"base_url"`
	// APIKey is an optional bearer token.
	APIKey config.Secret `koanf:"api_key"`
	// Timeout bounds each rerank call. Defaults to 30s.
	Timeout config.Duration `koanf:"timeout"`
}

// NewDefaultConfig returns the default scorer configuration.
func NewDefaultConfig() Config {
	return Config{
		Variant: "lexical",
		Embedding: EmbeddingConfig{
			Model: "BAAI/bge-small-en-v1.5",
		},
		TEI: TEIConfig{
			BaseURL: "http://localhost:8080",
		},
	}
}

// New loads the configured model variant. The returned Model lives for the
// process lifetime and is never reloaded or swapped.
func New(cfg Config) (Model, error) {
	switch cfg.Variant {
	case "lexical", "":
		return NewLexicalModel(), nil
	case "embedding":
		return NewEmbeddingModel(cfg.Embedding)
	case "tei":
		return NewTEIModel(cfg.TEI)
	default:
		return nil, fmt.Errorf("%w: unknown variant %q (supported: lexical, embedding, tei)", ErrInvalidConfig, cfg.Variant)
	}
}
