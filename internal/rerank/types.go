// Package rerank implements the request-to-response ranking pipeline:
// extract passages from candidate documents, invoke the scoring model once,
// map scores back to document identity, truncate, and assemble the
// versioned response envelope.
package rerank

import (
	"github.com/fyrsmithlabs/rerankd/internal/document"
)

// apiVersion is the fixed version reported in every response envelope.
const apiVersion = "2"

// RankRequest is the wire shape of a rerank request.
type RankRequest struct {
	// Model is informational only: the loaded scoring model is fixed at
	// process start and is not selected per request.
	Model string `json:"model"`

	// Query to rank documents against. Required key; may be empty.
	Query string `json:"query"`

	// Documents are the candidates, as bare strings or structured records.
	// Their position in this list is their identity.
	Documents []document.Document `json:"documents"`

	// TopN optionally caps the number of returned results. Truncation is a
	// prefix of the ranking; it never reduces how many documents are scored.
	TopN *int `json:"top_n,omitempty"`

	// RankFields selects and orders the record fields used to build each
	// passage. Applies uniformly to every record document; plain strings
	// ignore it.
	RankFields []string `json:"rank_fields,omitempty"`

	// ReturnDocuments controls whether results echo their document payload.
	// Defaults to true.
	ReturnDocuments *bool `json:"return_documents,omitempty"`

	// MaxChunksPerDoc is accepted for wire compatibility but has no effect;
	// reserved for future chunking support.
	MaxChunksPerDoc *int `json:"max_chunks_per_doc,omitempty"`
}

// returnDocuments resolves the ReturnDocuments default.
func (r *RankRequest) returnDocuments() bool {
	if r.ReturnDocuments == nil {
		return true
	}
	return *r.ReturnDocuments
}

// RankResult is one ranked document in the response.
type RankResult struct {
	// Index is the 0-based position of the document in the request.
	Index int `json:"index"`

	// RelevanceScore is the model's score, higher meaning more relevant.
	RelevanceScore float64 `json:"relevance_score"`

	// Document is the echoed payload, omitted when return_documents=false.
	// A record with no fields still echoes as {}, so the key is dropped
	// only for the nil map, not the empty one.
	Document map[string]any `json:"document,omitzero"`
}

// RankResponse is the versioned response envelope.
type RankResponse struct {
	// ID is a fresh opaque identifier generated per request.
	ID string `json:"id"`

	// Results are ordered by descending relevance, as ranked by the model.
	Results []RankResult `json:"results"`

	Meta Meta `json:"meta"`
}

// Meta carries API version info and usage counters. No token accounting is
// performed; the counters are deliberate zero placeholders surfaced to
// callers for wire compatibility.
type Meta struct {
	APIVersion  APIVersion  `json:"api_version"`
	BilledUnits BilledUnits `json:"billed_units"`
	Tokens      Tokens      `json:"tokens"`
	Warnings    []string    `json:"warnings"`
}

// APIVersion identifies the response format version.
type APIVersion struct {
	Version string `json:"version"`
}

// BilledUnits reports billed usage. Always zero.
type BilledUnits struct {
	InputTokens  float64 `json:"input_tokens"`
	OutputTokens float64 `json:"output_tokens"`
	SearchUnits  float64 `json:"search_units"`
}

// Tokens reports token usage. Always zero.
type Tokens struct {
	InputTokens  float64 `json:"input_tokens"`
	OutputTokens float64 `json:"output_tokens"`
}
