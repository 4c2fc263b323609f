package scorer

import (
	"context"
	"sort"
	"strings"
)

// LexicalModel is a deterministic term-overlap scorer. It needs no external
// resources, which makes it the default variant and the reference model for
// tests: identical inputs always produce identical rankings.
type LexicalModel struct{}

// NewLexicalModel creates a new LexicalModel.
func NewLexicalModel() *LexicalModel {
	return &LexicalModel{}
}

// Name returns the model identifier.
func (m *LexicalModel) Name() string {
	return "lexical"
}

// Rank scores each passage by the fraction of query terms it contains.
// Passages are returned in descending score order; ties keep their original
// relative order so the ranking is stable.
func (m *LexicalModel) Rank(ctx context.Context, query string, passages []string) (Ranking, error) {
	queryTokens := tokenize(query)

	scores := make([]float64, len(passages))
	indices := make([]int, len(passages))
	for i, passage := range passages {
		indices[i] = i
		scores[i] = termOverlap(queryTokens, tokenize(passage))
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

// Close is a no-op; the lexical model holds no resources.
func (m *LexicalModel) Close() error {
	return nil
}

// tokenize splits text into lowercase terms, dropping stopwords and tokens
// shorter than three characters.
func tokenize(text string) []string {
	tokens := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !isAlphanumeric(r)
	})

	filtered := make([]string, 0, len(tokens))
	for _, token := range tokens {
		if !isStopword(token) && len(token) > 2 {
			filtered = append(filtered, token)
		}
	}
	return filtered
}

func isAlphanumeric(r rune) bool {
	return (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') ||
		(r >= '0' && r <= '9') || r == '_'
}

var stopwords = map[string]bool{
	"the": true, "a": true, "an": true, "and": true, "or": true, "but": true,
	"in": true, "on": true, "at": true, "to": true, "for": true, "of": true,
	"with": true, "by": true, "from": true, "as": true, "is": true, "was": true,
	"are": true, "be": true, "been": true, "being": true, "have": true, "has": true,
	"had": true, "do": true, "does": true, "did": true, "will": true, "would": true,
	"could": true, "should": true, "may": true, "might": true, "can": true, "this": true,
	"that": true, "these": true, "those": true, "i": true, "you": true, "he": true,
	"she": true, "it": true, "we": true, "they": true, "what": true, "which": true,
	"who": true, "when": true, "where": true, "why": true, "how": true,
}

func isStopword(token string) bool {
	return stopwords[token]
}

// termOverlap returns the fraction of unique query terms present in the
// passage, between 0.0 and 1.0. An empty query scores every passage 0.
func termOverlap(queryTokens, passageTokens []string) float64 {
	if len(queryTokens) == 0 {
		return 0.0
	}

	passageSet := make(map[string]bool, len(passageTokens))
	for _, token := range passageTokens {
		passageSet[token] = true
	}

	matched := make(map[string]bool, len(queryTokens))
	for _, token := range queryTokens {
		if passageSet[token] {
			matched[token] = true
		}
	}

	unique := make(map[string]bool, len(queryTokens))
	for _, token := range queryTokens {
		unique[token] = true
	}

	return float64(len(matched)) / float64(len(unique))
}
