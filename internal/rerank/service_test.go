package rerank

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/rerankd/internal/document"
	"github.com/fyrsmithlabs/rerankd/internal/logging"
	"github.com/fyrsmithlabs/rerankd/internal/scorer"
)

// fakeModel is a deterministic scoring collaborator for pipeline tests.
type fakeModel struct {
	ranking scorer.Ranking
	err     error
	calls   int
}

func (m *fakeModel) Name() string { return "fake" }

func (m *fakeModel) Rank(_ context.Context, _ string, passages []string) (scorer.Ranking, error) {
	m.calls++
	if m.err != nil {
		return scorer.Ranking{}, m.err
	}
	if m.ranking.Indices != nil {
		return m.ranking, nil
	}
	// Default: identity ranking with decreasing scores.
	ranked := scorer.Ranking{
		Indices: make([]int, len(passages)),
		Scores:  make([]float64, len(passages)),
	}
	for i := range passages {
		ranked.Indices[i] = i
		ranked.Scores[i] = 1.0 - float64(i)*0.1
	}
	return ranked, nil
}

func (m *fakeModel) Close() error { return nil }

func newTestService(t *testing.T, model scorer.Model) *Service {
	t.Helper()
	svc, err := NewService(model, logging.NewTestLogger().Logger)
	require.NoError(t, err)
	return svc
}

func docs(texts ...string) []document.Document {
	out := make([]document.Document, len(texts))
	for i, s := range texts {
		out[i] = document.Text(s)
	}
	return out
}

func intPtr(n int) *int    { return &n }
func boolPtr(b bool) *bool { return &b }

func TestRankIndexSetComplete(t *testing.T) {
	model := &fakeModel{ranking: scorer.Ranking{
		Indices: []int{2, 0, 1},
		Scores:  []float64{0.9, 0.5, 0.1},
	}}
	svc := newTestService(t, model)

	resp, err := svc.Rank(context.Background(), &RankRequest{
		Query:     "q",
		Documents: docs("a", "b", "c"),
	})
	require.NoError(t, err)
	require.Len(t, resp.Results, 3)

	seen := map[int]bool{}
	for _, r := range resp.Results {
		seen[r.Index] = true
	}
	assert.Equal(t, map[int]bool{0: true, 1: true, 2: true}, seen)

	// Model order and scores carried through unchanged.
	assert.Equal(t, 2, resp.Results[0].Index)
	assert.Equal(t, 0.9, resp.Results[0].RelevanceScore)
	assert.Equal(t, 0, resp.Results[1].Index)
	assert.Equal(t, 1, resp.Results[2].Index)
}

func TestRankTopN(t *testing.T) {
	tests := []struct {
		name      string
		topN      *int
		wantCount int
	}{
		{name: "absent returns all", topN: nil, wantCount: 4},
		{name: "zero returns none", topN: intPtr(0), wantCount: 0},
		{name: "prefix of ranking", topN: intPtr(2), wantCount: 2},
		{name: "equal to length", topN: intPtr(4), wantCount: 4},
		{name: "larger than length", topN: intPtr(10), wantCount: 4},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			model := &fakeModel{}
			svc := newTestService(t, model)

			full, err := svc.Rank(context.Background(), &RankRequest{
				Query:     "q",
				Documents: docs("a", "b", "c", "d"),
			})
			require.NoError(t, err)

			resp, err := svc.Rank(context.Background(), &RankRequest{
				Query:     "q",
				Documents: docs("a", "b", "c", "d"),
				TopN:      tt.topN,
			})
			require.NoError(t, err)
			require.Len(t, resp.Results, tt.wantCount)

			// Truncation is a prefix of the untruncated ranking.
			for i, r := range resp.Results {
				assert.Equal(t, full.Results[i].Index, r.Index)
				assert.Equal(t, full.Results[i].RelevanceScore, r.RelevanceScore)
			}
		})
	}
}

func TestRankNegativeTopN(t *testing.T) {
	model := &fakeModel{}
	svc := newTestService(t, model)

	_, err := svc.Rank(context.Background(), &RankRequest{
		Query:     "q",
		Documents: docs("a"),
		TopN:      intPtr(-1),
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidTopN)
	assert.Zero(t, model.calls, "validation failures must not reach the model")
}

func TestRankReturnDocuments(t *testing.T) {
	record := document.Record(map[string]any{"text": "body", "title": "t"})

	t.Run("default echoes documents", func(t *testing.T) {
		svc := newTestService(t, &fakeModel{})

		resp, err := svc.Rank(context.Background(), &RankRequest{
			Query:     "q",
			Documents: []document.Document{document.Text("plain"), record},
		})
		require.NoError(t, err)
		require.Len(t, resp.Results, 2)

		assert.Equal(t, map[string]any{"text": "plain"}, resp.Results[0].Document)
		// Records echo their full field set regardless of rank_fields.
		assert.Equal(t, map[string]any{"text": "body", "title": "t"}, resp.Results[1].Document)
	})

	t.Run("disabled omits documents", func(t *testing.T) {
		svc := newTestService(t, &fakeModel{})

		resp, err := svc.Rank(context.Background(), &RankRequest{
			Query:           "q",
			Documents:       []document.Document{document.Text("plain"), record},
			ReturnDocuments: boolPtr(false),
		})
		require.NoError(t, err)
		for _, r := range resp.Results {
			assert.Nil(t, r.Document)
		}
	})
}

func TestRankEmptyRecordDocumentEchoed(t *testing.T) {
	svc := newTestService(t, &fakeModel{})

	resp, err := svc.Rank(context.Background(), &RankRequest{
		Query:     "q",
		Documents: []document.Document{document.Record(map[string]any{})},
	})
	require.NoError(t, err)
	require.Len(t, resp.Results, 1)
	require.NotNil(t, resp.Results[0].Document)
	assert.Empty(t, resp.Results[0].Document)

	// A record with no fields still echoes on the wire as {}; only the nil
	// map from return_documents=false drops the key.
	encoded, err := json.Marshal(resp.Results[0])
	require.NoError(t, err)
	assert.Contains(t, string(encoded), `"document":{}`)

	disabled, err := svc.Rank(context.Background(), &RankRequest{
		Query:           "q",
		Documents:       []document.Document{document.Record(map[string]any{})},
		ReturnDocuments: boolPtr(false),
	})
	require.NoError(t, err)
	encoded, err = json.Marshal(disabled.Results[0])
	require.NoError(t, err)
	assert.NotContains(t, string(encoded), `"document"`)
}

func TestRankRankFieldsAffectScoringOnly(t *testing.T) {
	var gotPassages []string
	model := &passageCapturingModel{captured: &gotPassages}
	svc := newTestService(t, model)

	resp, err := svc.Rank(context.Background(), &RankRequest{
		Query: "q",
		Documents: []document.Document{
			document.Record(map[string]any{"a": "x", "b": "y", "c": "z"}),
		},
		RankFields: []string{"a", "b"},
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"x y"}, gotPassages)
	// The echoed payload keeps all fields.
	assert.Equal(t, map[string]any{"a": "x", "b": "y", "c": "z"}, resp.Results[0].Document)
}

type passageCapturingModel struct {
	captured *[]string
}

func (m *passageCapturingModel) Name() string { return "capture" }

func (m *passageCapturingModel) Rank(_ context.Context, _ string, passages []string) (scorer.Ranking, error) {
	*m.captured = passages
	ranked := scorer.Ranking{Indices: make([]int, len(passages)), Scores: make([]float64, len(passages))}
	for i := range passages {
		ranked.Indices[i] = i
	}
	return ranked, nil
}

func (m *passageCapturingModel) Close() error { return nil }

func TestRankEmptyDocuments(t *testing.T) {
	model := &fakeModel{}
	svc := newTestService(t, model)

	resp, err := svc.Rank(context.Background(), &RankRequest{Query: "q"})
	require.NoError(t, err)
	assert.NotNil(t, resp.Results)
	assert.Empty(t, resp.Results)
	assert.Zero(t, model.calls, "the model must never see an empty batch")

	// The envelope still serializes with an empty results array.
	out, err := json.Marshal(resp)
	require.NoError(t, err)
	assert.Contains(t, string(out), `"results":[]`)
}

func TestRankUnsupportedDocumentAborts(t *testing.T) {
	var bad document.Document
	require.NoError(t, json.Unmarshal([]byte(`42`), &bad))

	model := &fakeModel{}
	svc := newTestService(t, model)

	_, err := svc.Rank(context.Background(), &RankRequest{
		Query:     "q",
		Documents: []document.Document{document.Text("fine"), bad},
	})
	require.Error(t, err)

	var unsupported *document.UnsupportedTypeError
	assert.ErrorAs(t, err, &unsupported)
	assert.Zero(t, model.calls, "extraction failures must not reach the model")
}

func TestRankScoringFailure(t *testing.T) {
	model := &fakeModel{err: errors.New("onnx session crashed")}
	svc := newTestService(t, model)

	_, err := svc.Rank(context.Background(), &RankRequest{
		Query:     "q",
		Documents: docs("a"),
	})
	require.Error(t, err)

	var scoringErr *ScoringError
	require.ErrorAs(t, err, &scoringErr)
	assert.Contains(t, scoringErr.Error(), "onnx session crashed")
}

func TestRankMalformedModelOutput(t *testing.T) {
	tests := []struct {
		name    string
		ranking scorer.Ranking
	}{
		{
			name:    "mismatched lengths",
			ranking: scorer.Ranking{Indices: []int{0, 1}, Scores: []float64{0.5}},
		},
		{
			name:    "missing results",
			ranking: scorer.Ranking{Indices: []int{0}, Scores: []float64{0.5}},
		},
		{
			name:    "index out of range",
			ranking: scorer.Ranking{Indices: []int{0, 7}, Scores: []float64{0.5, 0.4}},
		},
		{
			name:    "duplicate index",
			ranking: scorer.Ranking{Indices: []int{0, 0}, Scores: []float64{0.5, 0.4}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := newTestService(t, &fakeModel{ranking: tt.ranking})

			_, err := svc.Rank(context.Background(), &RankRequest{
				Query:     "q",
				Documents: docs("a", "b"),
			})
			require.Error(t, err)

			var scoringErr *ScoringError
			assert.ErrorAs(t, err, &scoringErr)
		})
	}
}

func TestRankFreshIDsDeterministicResults(t *testing.T) {
	svc := newTestService(t, &fakeModel{})
	req := func() *RankRequest {
		return &RankRequest{Query: "q", Documents: docs("a", "b")}
	}

	first, err := svc.Rank(context.Background(), req())
	require.NoError(t, err)
	second, err := svc.Rank(context.Background(), req())
	require.NoError(t, err)

	assert.NotEqual(t, first.ID, second.ID)
	assert.Equal(t, first.Results, second.Results)
	assert.Equal(t, first.Meta, second.Meta)
}

func TestRankMeta(t *testing.T) {
	svc := newTestService(t, &fakeModel{})

	resp, err := svc.Rank(context.Background(), &RankRequest{
		Query:     "q",
		Documents: docs("a"),
	})
	require.NoError(t, err)

	assert.Equal(t, "2", resp.Meta.APIVersion.Version)
	assert.Zero(t, resp.Meta.BilledUnits)
	assert.Zero(t, resp.Meta.Tokens)
	assert.Empty(t, resp.Meta.Warnings)
	assert.NotEmpty(t, resp.ID)
}

func TestRankMaxChunksPerDocIgnored(t *testing.T) {
	svc := newTestService(t, &fakeModel{})

	with, err := svc.Rank(context.Background(), &RankRequest{
		Query:           "q",
		Documents:       docs("a", "b"),
		MaxChunksPerDoc: intPtr(3),
	})
	require.NoError(t, err)

	without, err := svc.Rank(context.Background(), &RankRequest{
		Query:     "q",
		Documents: docs("a", "b"),
	})
	require.NoError(t, err)

	assert.Equal(t, without.Results, with.Results)
}

func TestRankWithLexicalModel(t *testing.T) {
	// End-to-end over a real model: the France scenario.
	svc := newTestService(t, scorer.NewLexicalModel())

	resp, err := svc.Rank(context.Background(), &RankRequest{
		Query: "capital of France",
		Documents: docs(
			"Paris is the capital of France.",
			"Berlin is in Germany.",
		),
		TopN: intPtr(1),
	})
	require.NoError(t, err)

	require.Len(t, resp.Results, 1)
	assert.Equal(t, 0, resp.Results[0].Index)
	assert.Greater(t, resp.Results[0].RelevanceScore, 0.5)
}
