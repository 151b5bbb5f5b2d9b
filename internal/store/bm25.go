package store

import (
	"context"
	"fmt"
	"math"
	"sync"
)

// BM25Okapi is an in-memory Okapi BM25 model over a fixed corpus.
// It scores every corpus text for a query, so callers get a dense score
// vector rather than a top-k list.
type BM25Okapi struct {
	mu     sync.RWMutex
	config LexicalConfig

	docFreqs []map[string]int // term frequencies per document
	docLens  []int
	avgDL    float64
	idf      map[string]float64

	closed bool
}

// NewBM25Okapi creates an unfitted BM25Okapi model.
// Zero-valued parameters fall back to DefaultLexicalConfig.
func NewBM25Okapi(cfg LexicalConfig) *BM25Okapi {
	def := DefaultLexicalConfig()
	if cfg.K1 == 0 {
		cfg.K1 = def.K1
	}
	if cfg.B == 0 {
		cfg.B = def.B
	}
	if cfg.Epsilon == 0 {
		cfg.Epsilon = def.Epsilon
	}
	return &BM25Okapi{config: cfg}
}

// Fit builds term statistics over texts. Any previous fit is discarded.
func (m *BM25Okapi) Fit(ctx context.Context, texts []string) error {
	docFreqs := make([]map[string]int, len(texts))
	docLens := make([]int, len(texts))
	nd := make(map[string]int) // number of documents containing each term
	total := 0

	for i, text := range texts {
		if i%1024 == 0 {
			if err := ctx.Err(); err != nil {
				return err
			}
		}
		tokens := Tokenize(text)
		freqs := make(map[string]int, len(tokens))
		for _, tok := range tokens {
			freqs[tok]++
		}
		for term := range freqs {
			nd[term]++
		}
		docFreqs[i] = freqs
		docLens[i] = len(tokens)
		total += len(tokens)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return fmt.Errorf("lexical model is closed")
	}

	m.docFreqs = docFreqs
	m.docLens = docLens
	m.avgDL = 0
	if len(texts) > 0 {
		m.avgDL = float64(total) / float64(len(texts))
	}
	m.idf = computeIDF(nd, len(texts), m.config.Epsilon)
	return nil
}

// computeIDF returns ln(N-n+0.5) - ln(n+0.5) per term, with negative values
// replaced by epsilon times the mean IDF.
func computeIDF(nd map[string]int, corpusSize int, epsilon float64) map[string]float64 {
	idf := make(map[string]float64, len(nd))
	var sum float64
	var negatives []string

	n := float64(corpusSize)
	for term, freq := range nd {
		f := float64(freq)
		v := math.Log(n-f+0.5) - math.Log(f+0.5)
		idf[term] = v
		sum += v
		if v < 0 {
			negatives = append(negatives, term)
		}
	}

	if len(idf) == 0 {
		return idf
	}
	floor := epsilon * (sum / float64(len(idf)))
	for _, term := range negatives {
		idf[term] = floor
	}
	return idf
}

// Scores returns the BM25 score of query against every fitted text.
// Repeated query terms contribute once per occurrence.
func (m *BM25Okapi) Scores(ctx context.Context, query string) ([]float64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return nil, fmt.Errorf("lexical model is closed")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	scores := make([]float64, len(m.docFreqs))
	if m.avgDL == 0 {
		return scores, nil
	}

	k1, b := m.config.K1, m.config.B
	for _, term := range Tokenize(query) {
		idf, ok := m.idf[term]
		if !ok {
			continue
		}
		for i, freqs := range m.docFreqs {
			tf := float64(freqs[term])
			if tf == 0 {
				continue
			}
			norm := k1 * (1 - b + b*float64(m.docLens[i])/m.avgDL)
			scores[i] += idf * (tf * (k1 + 1) / (tf + norm))
		}
	}
	return scores, nil
}

// Len returns the number of fitted texts.
func (m *BM25Okapi) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.docFreqs)
}

// IDF returns the (floored) inverse document frequency of a term and whether
// the term occurs in the corpus.
func (m *BM25Okapi) IDF(term string) (float64, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.idf[term]
	return v, ok
}

// Close releases the fitted statistics.
func (m *BM25Okapi) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.closed = true
	m.docFreqs = nil
	m.docLens = nil
	m.idf = nil
	return nil
}

// Verify interface implementation
var _ LexicalScorer = (*BM25Okapi)(nil)
