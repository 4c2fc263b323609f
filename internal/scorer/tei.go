package scorer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// TEIModel ranks passages through a remote Text Embeddings Inference
// server's /rerank endpoint. The remote collaborator owns the ranking
// order; this client only normalizes its index convention to 0-based.
type TEIModel struct {
	cfg    TEIConfig
	client *http.Client
}

// NewTEIModel creates a TEI-backed model.
func NewTEIModel(cfg TEIConfig) (*TEIModel, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("%w: tei base_url required", ErrInvalidConfig)
	}

	timeout := cfg.Timeout.Duration()
	if timeout == 0 {
		timeout = 30 * time.Second
	}

	return &TEIModel{
		cfg:    cfg,
		client: &http.Client{Timeout: timeout},
	}, nil
}

// teiRerankRequest is the request body for the TEI /rerank endpoint.
type teiRerankRequest struct {
	Query     string   `json:"query"`
	Texts     []string `json:"texts"`
	RawScores bool     `json:"raw_scores"`
}

// teiRerankResult is one entry of the TEI /rerank response.
type teiRerankResult struct {
	Index int     `json:"index"`
	Score float64 `json:"score"`
}

// Name returns the model identifier.
func (m *TEIModel) Name() string {
	return "tei"
}

// Rank sends the query and passages to the TEI server and returns its
// ranking with indices normalized to 0-based.
func (m *TEIModel) Rank(ctx context.Context, query string, passages []string) (Ranking, error) {
	body, err := json.Marshal(teiRerankRequest{
		Query: query,
		Texts: passages,
	})
	if err != nil {
		return Ranking{}, fmt.Errorf("marshaling rerank request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, m.cfg.BaseURL+"/rerank", bytes.NewReader(body))
	if err != nil {
		return Ranking{}, fmt.Errorf("creating rerank request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if m.cfg.APIKey.IsSet() {
		httpReq.Header.Set("Authorization", "Bearer "+m.cfg.APIKey.Value())
	}

	resp, err := m.client.Do(httpReq)
	if err != nil {
		return Ranking{}, fmt.Errorf("rerank request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return Ranking{}, fmt.Errorf("rerank request failed: status %d: %s", resp.StatusCode, string(respBody))
	}

	var results []teiRerankResult
	if err := json.NewDecoder(resp.Body).Decode(&results); err != nil {
		return Ranking{}, fmt.Errorf("decoding rerank response: %w", err)
	}

	ranked := Ranking{
		Indices: make([]int, len(results)),
		Scores:  make([]float64, len(results)),
	}
	for i, r := range results {
		ranked.Indices[i] = r.Index
		ranked.Scores[i] = r.Score
	}
	normalizeIndices(ranked.Indices, len(passages))

	return ranked, nil
}

// Close is a no-op; the TEI client holds no persistent connection state.
func (m *TEIModel) Close() error {
	return nil
}

// normalizeIndices rewrites a 1-based index convention to 0-based in place.
// A collaborator is taken as 1-based when its indices include n but never 0
// for n passages; anything else is left untouched and range-validated by
// the pipeline.
func normalizeIndices(indices []int, passageCount int) {
	sawZero := false
	sawCount := false
	for _, idx := range indices {
		if idx == 0 {
			sawZero = true
		}
		if idx == passageCount {
			sawCount = true
		}
	}

	if sawCount && !sawZero {
		for i := range indices {
			indices[i]--
		}
	}
}
