package rerank

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/rerankd/internal/logging"
	"github.com/fyrsmithlabs/rerankd/internal/scorer"
)

// Service drives the ranking pipeline against a fixed scoring model. It is
// stateless apart from the model handle, so one Service instance serves
// concurrent requests without coordination.
type Service struct {
	model  scorer.Model
	logger *logging.Logger
}

// NewService creates a Service for the given model.
func NewService(model scorer.Model, logger *logging.Logger) (*Service, error) {
	if model == nil {
		return nil, fmt.Errorf("model cannot be nil")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger cannot be nil")
	}
	return &Service{model: model, logger: logger}, nil
}

// ModelName returns the loaded model's identifier.
func (s *Service) ModelName() string {
	return s.model.Name()
}

// Rank runs one request through the pipeline. All failures abort the whole
// request; partial rankings are never returned.
func (s *Service) Rank(ctx context.Context, req *RankRequest) (*RankResponse, error) {
	if req.TopN != nil && *req.TopN < 0 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidTopN, *req.TopN)
	}

	// Extract every passage up front; the passage list stays index-aligned
	// with the document list.
	passages := make([]string, len(req.Documents))
	for i, doc := range req.Documents {
		text, err := doc.ExtractText(req.RankFields)
		if err != nil {
			return nil, fmt.Errorf("document %d: %w", i, err)
		}
		passages[i] = text
	}

	ranked, err := s.invoke(ctx, req.Query, passages)
	if err != nil {
		return nil, err
	}

	returnDocuments := req.returnDocuments()
	results := make([]RankResult, 0, len(ranked.Indices))
	for pos, idx := range ranked.Indices {
		payload, err := req.Documents[idx].Project(returnDocuments)
		if err != nil {
			return nil, fmt.Errorf("document %d: %w", idx, err)
		}
		results = append(results, RankResult{
			Index:          idx,
			RelevanceScore: ranked.Scores[pos],
			Document:       payload,
		})
	}

	// Prefix truncation after ranking: top_n never changes what is scored,
	// only what is returned.
	if req.TopN != nil && *req.TopN < len(results) {
		results = results[:*req.TopN]
	}

	resp := &RankResponse{
		ID:      uuid.NewString(),
		Results: results,
		Meta: Meta{
			APIVersion: APIVersion{Version: apiVersion},
			Warnings:   []string{},
		},
	}

	s.logger.Debug(ctx, "ranked documents",
		zap.String("model", s.model.Name()),
		zap.Int("documents", len(req.Documents)),
		zap.Int("results", len(resp.Results)),
	)

	return resp, nil
}

// invoke calls the scoring model once and validates its output. An empty
// passage list never reaches the model: some collaborators reject empty
// batches, so it is defined as a no-op instead.
func (s *Service) invoke(ctx context.Context, query string, passages []string) (scorer.Ranking, error) {
	if len(passages) == 0 {
		return scorer.Ranking{}, nil
	}

	ranked, err := s.model.Rank(ctx, query, passages)
	if err != nil {
		return scorer.Ranking{}, &ScoringError{Err: err}
	}

	if err := validateRanking(ranked, len(passages)); err != nil {
		return scorer.Ranking{}, &ScoringError{Err: err}
	}

	return ranked, nil
}

// validateRanking checks that the model ranked every passage exactly once
// with a parallel score.
func validateRanking(ranked scorer.Ranking, passageCount int) error {
	if len(ranked.Indices) != len(ranked.Scores) {
		return fmt.Errorf("model returned %d indices but %d scores", len(ranked.Indices), len(ranked.Scores))
	}
	if len(ranked.Indices) != passageCount {
		return fmt.Errorf("model returned %d results for %d passages", len(ranked.Indices), passageCount)
	}

	seen := make([]bool, passageCount)
	for _, idx := range ranked.Indices {
		if idx < 0 || idx >= passageCount {
			return fmt.Errorf("model returned index %d out of range [0, %d)", idx, passageCount)
		}
		if seen[idx] {
			return fmt.Errorf("model returned index %d more than once", idx)
		}
		seen[idx] = true
	}

	return nil
}
