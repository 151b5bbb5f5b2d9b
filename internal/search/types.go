// Package search provides hybrid retrieval over a built index: lexical and
// dense scores are min-max normalized, fused linearly, pooled, and the pool
// is reordered by a pairwise reranker.
package search

import (
	"fmt"

	amerrors "github.com/Aman-CERP/amanrag/internal/errors"
)

// Retrieval defaults.
const (
	DefaultFusionWeight = 0.35
	DefaultDenseK       = 25
	DefaultLexicalK     = 40
	DefaultK            = 8
)

// Config holds the retrieval parameters used by the Engine.
type Config struct {
	// FusionWeight is the lexical share of the hybrid score, in [0, 1].
	// The dense channel receives 1 - FusionWeight.
	FusionWeight float64

	// DenseK is the number of nearest neighbours requested from the vector index.
	DenseK int

	// LexicalK contributes to the candidate pool size.
	LexicalK int

	// DefaultK is used by callers that do not pass an explicit k.
	DefaultK int
}

// DefaultConfig returns the default retrieval configuration.
func DefaultConfig() Config {
	return Config{
		FusionWeight: DefaultFusionWeight,
		DenseK:       DefaultDenseK,
		LexicalK:     DefaultLexicalK,
		DefaultK:     DefaultK,
	}
}

// Validate reports the first invalid field.
func (c Config) Validate() error {
	if c.FusionWeight < 0 || c.FusionWeight > 1 {
		return amerrors.ConfigError(fmt.Sprintf("fusion weight must be in [0,1], got %v", c.FusionWeight), nil)
	}
	if c.DenseK <= 0 {
		return amerrors.ConfigError(fmt.Sprintf("dense_k must be positive, got %d", c.DenseK), nil)
	}
	if c.LexicalK <= 0 {
		return amerrors.ConfigError(fmt.Sprintf("lexical_k must be positive, got %d", c.LexicalK), nil)
	}
	if c.DefaultK <= 0 {
		return amerrors.ConfigError(fmt.Sprintf("default k must be positive, got %d", c.DefaultK), nil)
	}
	return nil
}

// Signals carries the retrieval diagnostics attached to every hit.
type Signals struct {
	FusionWeight  float64 `json:"fusion_weight"`
	CandidatePool int     `json:"candidate_pool"`
	LexicalScore  float64 `json:"lexical_score"`
	DenseScore    float64 `json:"dense_score"`
	HybridScore   float64 `json:"hybrid_score"`
}

// Hit is a ranked search result.
type Hit struct {
	ChunkID   string `json:"chunk_id"`
	DocID     string `json:"doc_id"`
	Title     string `json:"title"`
	Domain    string `json:"domain"`
	Text      string `json:"text"`
	StartWord int    `json:"start_word"`
	EndWord   int    `json:"end_word"`
	Source    string `json:"source,omitempty"`
	UpdatedAt string `json:"updated_at,omitempty"`

	// Score is the reranker score; higher is more relevant.
	Score   float64 `json:"score"`
	Signals Signals `json:"signals"`
}
