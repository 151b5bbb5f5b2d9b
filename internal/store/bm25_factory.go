package store

import (
	"fmt"

	amerrors "github.com/Aman-CERP/amanrag/internal/errors"
)

// NewLexicalScorer creates an unfitted LexicalScorer for the named backend.
//
// backend options:
//   - "bm25" (default): native BM25Okapi over the full corpus
//   - "bleve": in-memory Bleve index with the same tokenizer
func NewLexicalScorer(backend string, cfg LexicalConfig) (LexicalScorer, error) {
	switch LexicalBackend(backend) {
	case LexicalBackendBM25, "":
		return NewBM25Okapi(cfg), nil

	case LexicalBackendBleve:
		return NewBleveScorer(), nil

	default:
		return nil, amerrors.ConfigError(
			fmt.Sprintf("unknown lexical backend: %s (valid options: bm25, bleve)", backend), nil)
	}
}

// NewVectorIndex creates an empty VectorIndex for the named backend.
//
// backend options:
//   - "flat" (default): exact inner-product search
//   - "hnsw": approximate cosine search via coder/hnsw
func NewVectorIndex(backend string, cfg VectorConfig) (VectorIndex, error) {
	if cfg.Dimensions <= 0 {
		return nil, amerrors.InvalidInput(fmt.Sprintf("vector dimensions must be positive, got %d", cfg.Dimensions))
	}

	switch VectorBackend(backend) {
	case VectorBackendFlat, "":
		return NewFlatIndex(cfg.Dimensions), nil

	case VectorBackendHNSW:
		return NewHNSWIndex(cfg), nil

	default:
		return nil, amerrors.ConfigError(
			fmt.Sprintf("unknown vector backend: %s (valid options: flat, hnsw)", backend), nil)
	}
}
