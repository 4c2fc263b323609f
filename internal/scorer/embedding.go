//go:build cgo

package scorer

import (
	"context"
	"fmt"
	"math"
	"path/filepath"
	"sort"
	"sync"

	fastembed "github.com/anush008/fastembed-go"
)

// EmbeddingModel scores passages by cosine similarity between query and
// passage embeddings from a local ONNX model. The underlying fastembed
// session is not safe for concurrent calls, so Rank serializes on a mutex
// rather than exposing that constraint to callers.
type EmbeddingModel struct {
	model     *fastembed.FlagEmbedding
	modelName string
	mu        sync.Mutex
}

// embeddingModels maps friendly model names to fastembed constants.
var embeddingModels = map[string]fastembed.EmbeddingModel{
	"BAAI/bge-small-en-v1.5":                 fastembed.BGESmallENV15,
	"BAAI/bge-small-en":                      fastembed.BGESmallEN,
	"BAAI/bge-base-en-v1.5":                  fastembed.BGEBaseENV15,
	"BAAI/bge-base-en":                       fastembed.BGEBaseEN,
	"sentence-transformers/all-MiniLM-L6-v2": fastembed.AllMiniLML6V2,
}

// NewEmbeddingModel loads a local embedding model via fastembed.
func NewEmbeddingModel(cfg EmbeddingConfig) (*EmbeddingModel, error) {
	modelName := cfg.Model
	if modelName == "" {
		modelName = "BAAI/bge-small-en-v1.5"
	}

	model, ok := embeddingModels[modelName]
	if !ok {
		return nil, fmt.Errorf("%w: unsupported embedding model %q (supported: BAAI/bge-small-en-v1.5, BAAI/bge-base-en-v1.5, sentence-transformers/all-MiniLM-L6-v2)", ErrInvalidConfig, modelName)
	}

	cacheDir := cfg.CacheDir
	if cacheDir == "" {
		cacheDir = filepath.Join(".", "local_cache")
	}

	maxLength := cfg.MaxLength
	if maxLength == 0 {
		maxLength = 512
	}

	showProgress := false
	flagEmbed, err := fastembed.NewFlagEmbedding(&fastembed.InitOptions{
		Model:                model,
		CacheDir:             cacheDir,
		MaxLength:            maxLength,
		ShowDownloadProgress: &showProgress,
	})
	if err != nil {
		return nil, fmt.Errorf("initializing embedding model: %w", err)
	}

	return &EmbeddingModel{
		model:     flagEmbed,
		modelName: modelName,
	}, nil
}

// Name returns the configured model name.
func (m *EmbeddingModel) Name() string {
	return m.modelName
}

// Rank embeds the query and every passage, scores each passage by cosine
// similarity, and returns passages in descending score order.
func (m *EmbeddingModel) Rank(ctx context.Context, query string, passages []string) (Ranking, error) {
	select {
	case <-ctx.Done():
		return Ranking{}, ctx.Err()
	default:
	}

	m.mu.Lock()
	queryVec, err := m.model.QueryEmbed(query)
	if err != nil {
		m.mu.Unlock()
		return Ranking{}, fmt.Errorf("embedding query: %w", err)
	}

	passageVecs, err := m.model.PassageEmbed(passages, 256)
	m.mu.Unlock()
	if err != nil {
		return Ranking{}, fmt.Errorf("embedding passages: %w", err)
	}
	if len(passageVecs) != len(passages) {
		return Ranking{}, fmt.Errorf("embedding passages: got %d vectors for %d passages", len(passageVecs), len(passages))
	}

	scores := make([]float64, len(passages))
	indices := make([]int, len(passages))
	for i, vec := range passageVecs {
		indices[i] = i
		scores[i] = cosineSimilarity(queryVec, vec)
	}

	sort.SliceStable(indices, func(a, b int) bool {
		return scores[indices[a]] > scores[indices[b]]
	})

	ranked := Ranking{
		Indices: indices,
		Scores:  make([]float64, len(passages)),
	}
	for pos, idx := range indices {
		ranked.Scores[pos] = scores[idx]
	}

	return ranked, nil
}

// Close releases the ONNX session.
func (m *EmbeddingModel) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.model != nil {
		return m.model.Destroy()
	}
	return nil
}

// cosineSimilarity computes the cosine of the angle between two vectors.
// Returns 0 for mismatched lengths or zero vectors.
func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}

	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
