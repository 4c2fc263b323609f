package scorer

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/rerankd/internal/config"
)

func TestNewTEIModel(t *testing.T) {
	t.Run("requires base url", func(t *testing.T) {
		_, err := NewTEIModel(TEIConfig{})
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrInvalidConfig)
	})

	t.Run("valid configuration", func(t *testing.T) {
		model, err := NewTEIModel(TEIConfig{BaseURL: "http://localhost:8080"})
		require.NoError(t, err)
		assert.Equal(t, "tei", model.Name())
	})
}

func TestTEIModelRank(t *testing.T) {
	t.Run("forwards query and passages", func(t *testing.T) {
		var got teiRerankRequest
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			require.Equal(t, "/rerank", r.URL.Path)
			require.NoError(t, json.NewDecoder(r.Body).Decode(&got))

			results := []teiRerankResult{
				{Index: 1, Score: 0.92},
				{Index: 0, Score: 0.11},
			}
			w.Header().Set("Content-Type", "application/json")
			require.NoError(t, json.NewEncoder(w).Encode(results))
		}))
		defer srv.Close()

		model, err := NewTEIModel(TEIConfig{BaseURL: srv.URL})
		require.NoError(t, err)

		ranked, err := model.Rank(context.Background(), "capital of France", []string{"Berlin", "Paris"})
		require.NoError(t, err)

		assert.Equal(t, "capital of France", got.Query)
		assert.Equal(t, []string{"Berlin", "Paris"}, got.Texts)
		assert.Equal(t, []int{1, 0}, ranked.Indices)
		assert.Equal(t, []float64{0.92, 0.11}, ranked.Scores)
	})

	t.Run("sends bearer token when configured", func(t *testing.T) {
		var auth string
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			auth = r.Header.Get("Authorization")
			_ = json.NewEncoder(w).Encode([]teiRerankResult{{Index: 0, Score: 1.0}})
		}))
		defer srv.Close()

		model, err := NewTEIModel(TEIConfig{BaseURL: srv.URL, APIKey: config.Secret("tok-123")})
		require.NoError(t, err)

		_, err = model.Rank(context.Background(), "q", []string{"p"})
		require.NoError(t, err)
		assert.Equal(t, "Bearer tok-123", auth)
	})

	t.Run("normalizes one-based indices", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			results := []teiRerankResult{
				{Index: 2, Score: 0.9},
				{Index: 1, Score: 0.4},
			}
			_ = json.NewEncoder(w).Encode(results)
		}))
		defer srv.Close()

		model, err := NewTEIModel(TEIConfig{BaseURL: srv.URL})
		require.NoError(t, err)

		ranked, err := model.Rank(context.Background(), "q", []string{"a", "b"})
		require.NoError(t, err)
		assert.Equal(t, []int{1, 0}, ranked.Indices)
	})

	t.Run("propagates server errors", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "model overloaded", http.StatusServiceUnavailable)
		}))
		defer srv.Close()

		model, err := NewTEIModel(TEIConfig{BaseURL: srv.URL})
		require.NoError(t, err)

		_, err = model.Rank(context.Background(), "q", []string{"p"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "status 503")
		assert.Contains(t, err.Error(), "model overloaded")
	})
}

func TestNormalizeIndices(t *testing.T) {
	tests := []struct {
		name    string
		indices []int
		count   int
		want    []int
	}{
		{name: "zero based untouched", indices: []int{1, 0, 2}, count: 3, want: []int{1, 0, 2}},
		{name: "one based shifted", indices: []int{3, 1, 2}, count: 3, want: []int{2, 0, 1}},
		{name: "ambiguous untouched", indices: []int{0, 1, 3}, count: 3, want: []int{0, 1, 3}},
		{name: "empty", indices: []int{}, count: 0, want: []int{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			normalizeIndices(tt.indices, tt.count)
			assert.Equal(t, tt.want, tt.indices)
		})
	}
}
