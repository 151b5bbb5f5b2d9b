package store

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/custom"
	"github.com/blevesearch/bleve/v2/mapping"
	"github.com/blevesearch/bleve/v2/registry"
)

const (
	// TextTokenizerName is the name of the Bleve tokenizer wrapping Tokenize.
	TextTokenizerName = "amanrag_text"

	// TextAnalyzerName is the name of the Bleve analyzer built on TextTokenizerName.
	TextAnalyzerName = "amanrag_text_analyzer"

	bleveContentField = "content"
)

func init() {
	// Register custom tokenizer
	_ = registry.RegisterTokenizer(TextTokenizerName, textTokenizerConstructor)
}

// BleveScorer scores chunks with an in-memory Bleve index.
// Documents are keyed by their corpus position; chunks that do not match
// the query score zero.
type BleveScorer struct {
	mu     sync.RWMutex
	index  bleve.Index
	size   int
	closed bool
}

// bleveDocument is the document structure for Bleve indexing.
type bleveDocument struct {
	Content string `json:"content"`
}

// NewBleveScorer creates an unfitted Bleve-backed lexical scorer.
func NewBleveScorer() *BleveScorer {
	return &BleveScorer{}
}

// createIndexMapping creates the Bleve index mapping using Tokenize for analysis.
func createIndexMapping() (*mapping.IndexMappingImpl, error) {
	indexMapping := bleve.NewIndexMapping()

	// Tokenize already lowercases, so no token filters are needed.
	err := indexMapping.AddCustomAnalyzer(TextAnalyzerName, map[string]interface{}{
		"type":      custom.Name,
		"tokenizer": TextTokenizerName,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to add custom analyzer: %w", err)
	}

	indexMapping.DefaultAnalyzer = TextAnalyzerName
	return indexMapping, nil
}

// Fit indexes texts in memory, replacing any previous index.
func (s *BleveScorer) Fit(ctx context.Context, texts []string) error {
	indexMapping, err := createIndexMapping()
	if err != nil {
		return err
	}

	idx, err := bleve.NewMemOnly(indexMapping)
	if err != nil {
		return fmt.Errorf("failed to create index: %w", err)
	}

	batch := idx.NewBatch()
	for i, text := range texts {
		if err := batch.Index(strconv.Itoa(i), bleveDocument{Content: text}); err != nil {
			_ = idx.Close()
			return fmt.Errorf("failed to index chunk %d: %w", i, err)
		}
		if batch.Size() >= 1000 {
			if err := idx.Batch(batch); err != nil {
				_ = idx.Close()
				return fmt.Errorf("failed to execute batch: %w", err)
			}
			batch.Reset()
			if err := ctx.Err(); err != nil {
				_ = idx.Close()
				return err
			}
		}
	}
	if err := idx.Batch(batch); err != nil {
		_ = idx.Close()
		return fmt.Errorf("failed to execute batch: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		_ = idx.Close()
		return fmt.Errorf("lexical model is closed")
	}
	if s.index != nil {
		_ = s.index.Close()
	}
	s.index = idx
	s.size = len(texts)
	return nil
}

// Scores returns one score per fitted text; non-matching texts score zero.
func (s *BleveScorer) Scores(ctx context.Context, query string) ([]float64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, fmt.Errorf("lexical model is closed")
	}

	scores := make([]float64, s.size)
	if s.index == nil || s.size == 0 || len(Tokenize(query)) == 0 {
		return scores, nil
	}

	// Match query uses the default analyzer, same as indexing.
	matchQuery := bleve.NewMatchQuery(query)
	matchQuery.SetField(bleveContentField)

	req := bleve.NewSearchRequest(matchQuery)
	req.Size = s.size

	result, err := s.index.SearchInContext(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("search failed: %w", err)
	}

	for _, hit := range result.Hits {
		pos, err := strconv.Atoi(hit.ID)
		if err != nil || pos < 0 || pos >= s.size {
			return nil, fmt.Errorf("unexpected document id %q", hit.ID)
		}
		scores[pos] = hit.Score
	}
	return scores, nil
}

// Len returns the number of fitted texts.
func (s *BleveScorer) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.size
}

// Close closes the underlying index.
func (s *BleveScorer) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	if s.index != nil {
		return s.index.Close()
	}
	return nil
}

// Verify interface implementation
var _ LexicalScorer = (*BleveScorer)(nil)

// textTokenizerConstructor creates a new text tokenizer for Bleve.
func textTokenizerConstructor(config map[string]interface{}, cache *registry.Cache) (analysis.Tokenizer, error) {
	return &bleveTextTokenizer{}, nil
}

// bleveTextTokenizer implements analysis.Tokenizer on top of tokenSpans.
type bleveTextTokenizer struct{}

// Tokenize implements analysis.Tokenizer.
func (t *bleveTextTokenizer) Tokenize(input []byte) analysis.TokenStream {
	text := string(input)
	spans := tokenSpans(text)

	result := make(analysis.TokenStream, 0, len(spans))
	for i, sp := range spans {
		result = append(result, &analysis.Token{
			Term:     []byte(strings.ToLower(text[sp.start:sp.end])),
			Start:    sp.start,
			End:      sp.end,
			Position: i + 1,
			Type:     analysis.AlphaNumeric,
		})
	}
	return result
}
