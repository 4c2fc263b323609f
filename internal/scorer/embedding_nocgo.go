//go:build !cgo

package scorer

import (
	"context"
	"errors"
)

// ErrEmbeddingNotAvailable is returned when the embedding variant is
// requested from a binary built without CGO (the ONNX runtime needs it).
var ErrEmbeddingNotAvailable = errors.New("embedding model: not available (binary built without CGO support, use the tei variant instead)")

// EmbeddingModel is a stub for non-CGO builds.
type EmbeddingModel struct{}

// NewEmbeddingModel returns an error when CGO is not available.
func NewEmbeddingModel(_ EmbeddingConfig) (*EmbeddingModel, error) {
	return nil, ErrEmbeddingNotAvailable
}

// Name identifies the stub.
func (m *EmbeddingModel) Name() string {
	return "embedding"
}

// Rank returns an error when CGO is not available.
func (m *EmbeddingModel) Rank(_ context.Context, _ string, _ []string) (Ranking, error) {
	return Ranking{}, ErrEmbeddingNotAvailable
}

// Close is a no-op.
func (m *EmbeddingModel) Close() error {
	return nil
}
