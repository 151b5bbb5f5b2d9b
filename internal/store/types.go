// Package store provides the retrieval primitives behind a built index:
// text normalization, lexical scorers (BM25Okapi, Bleve), vector indexes
// (exact flat, HNSW) and the on-disk codecs for a persisted index directory.
package store

import (
	"context"

	amerrors "github.com/Aman-CERP/amanrag/internal/errors"
)

// LexicalBackend names a lexical scorer implementation.
type LexicalBackend string

const (
	// LexicalBackendBM25 scores with the native BM25Okapi model (default).
	LexicalBackendBM25 LexicalBackend = "bm25"

	// LexicalBackendBleve scores with an in-memory Bleve index.
	LexicalBackendBleve LexicalBackend = "bleve"
)

// VectorBackend names a vector index implementation.
type VectorBackend string

const (
	// VectorBackendFlat is exact inner-product search over every vector (default).
	VectorBackendFlat VectorBackend = "flat"

	// VectorBackendHNSW is approximate search over a coder/hnsw graph.
	VectorBackendHNSW VectorBackend = "hnsw"
)

// LexicalScorer scores a query against every chunk text of a corpus.
// Scores returns exactly Len() values, aligned with the texts passed to Fit.
type LexicalScorer interface {
	// Fit builds the model over the corpus. Texts are tokenized with Tokenize.
	Fit(ctx context.Context, texts []string) error

	// Scores returns one relevance score per corpus text, in corpus order.
	Scores(ctx context.Context, query string) ([]float64, error)

	// Len returns the corpus size the model was fit on.
	Len() int

	// Close releases resources.
	Close() error
}

// VectorIndex stores one vector per position and answers nearest-neighbour
// queries by similarity (higher is closer).
type VectorIndex interface {
	// Add appends vectors; the first added vector gets position Len().
	Add(vectors [][]float32) error

	// Search returns topN positions and similarity scores, best first.
	// When fewer than topN vectors exist the remaining slots hold
	// position -1 and score 0.
	Search(query []float32, topN int) ([]int, []float32, error)

	// Len returns the number of stored vectors.
	Len() int

	// Dimensions returns the vector dimensionality.
	Dimensions() int

	// Persistence
	Save(path string) error
	Load(path string) error
	Close() error
}

// LexicalConfig configures lexical scoring.
type LexicalConfig struct {
	// K1 is the term frequency saturation parameter (default: 1.5)
	K1 float64

	// B is the document length normalization parameter (default: 0.75)
	B float64

	// Epsilon floors negative IDF values to Epsilon * mean(IDF) (default: 0.25)
	Epsilon float64
}

// DefaultLexicalConfig returns the BM25Okapi defaults.
func DefaultLexicalConfig() LexicalConfig {
	return LexicalConfig{
		K1:      1.5,
		B:       0.75,
		Epsilon: 0.25,
	}
}

// VectorConfig configures a vector index.
type VectorConfig struct {
	// Dimensions is the vector dimensionality (required)
	Dimensions int

	// M is the HNSW max connections per node (default: 16)
	M int

	// EfSearch is the HNSW search candidate list size (default: 64)
	EfSearch int
}

// DefaultVectorConfig returns sensible defaults for a vector index.
func DefaultVectorConfig(dimensions int) VectorConfig {
	return VectorConfig{
		Dimensions: dimensions,
		M:          16,
		EfSearch:   64,
	}
}

// dimensionMismatch builds the error returned for a wrongly sized vector.
func dimensionMismatch(expected, got int) error {
	return amerrors.New(amerrors.ErrCodeDimensionMismatch,
		"vector dimension mismatch", nil).
		WithDetail("expected", itoa(expected)).
		WithDetail("got", itoa(got))
}
