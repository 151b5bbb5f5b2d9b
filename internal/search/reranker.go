package search

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	amerrors "github.com/Aman-CERP/amanrag/internal/errors"
	"github.com/Aman-CERP/amanrag/internal/store"
)

// Reranker scores (query, passage) pairs. Scores are returned in input
// order, one per passage; higher means more relevant and the range is
// unbounded.
type Reranker interface {
	// Score evaluates every passage against the query.
	Score(ctx context.Context, query string, passages []string) ([]float64, error)

	// ModelName identifies the scoring model (recorded in the manifest).
	ModelName() string

	// Close releases resources.
	Close() error
}

// RerankerProvider selects a reranker implementation.
type RerankerProvider string

const (
	// RerankerLexical is the offline term-overlap scorer.
	RerankerLexical RerankerProvider = "lexical"

	// RerankerHTTP calls a cross-encoder server.
	RerankerHTTP RerankerProvider = "http"
)

// ValidRerankers lists the recognized reranker providers.
var ValidRerankers = []string{string(RerankerLexical), string(RerankerHTTP)}

// RerankerConfig selects and configures a reranker.
type RerankerConfig struct {
	Provider string
	Model    string
	Endpoint string
	Timeout  time.Duration
}

// NewReranker constructs the configured reranker eagerly. A server that is
// unreachable at startup is reported as capability-unavailable.
func NewReranker(ctx context.Context, cfg RerankerConfig) (Reranker, error) {
	var r Reranker

	switch RerankerProvider(strings.ToLower(cfg.Provider)) {
	case RerankerLexical, "":
		r = NewLexicalReranker()

	case RerankerHTTP:
		hcfg := DefaultHTTPRerankerConfig()
		if cfg.Endpoint != "" {
			hcfg.Endpoint = cfg.Endpoint
		}
		if cfg.Model != "" {
			hcfg.Model = cfg.Model
		}
		if cfg.Timeout > 0 {
			hcfg.Timeout = cfg.Timeout
		}
		h, err := NewHTTPReranker(ctx, hcfg)
		if err != nil {
			return nil, amerrors.CapabilityUnavailable("reranker", err).
				WithDetail("endpoint", hcfg.Endpoint).
				WithSuggestion("start the rerank server or set rerank.provider: lexical")
		}
		r = h

	default:
		return nil, amerrors.CapabilityUnavailable("reranker",
			fmt.Errorf("unknown reranker provider %q (valid: %s)", cfg.Provider, strings.Join(ValidRerankers, ", ")))
	}

	slog.Info("reranker_ready",
		slog.String("provider", cfg.Provider),
		slog.String("model", r.ModelName()))

	return r, nil
}

// LexicalRerankerModel is the model name reported by LexicalReranker.
const LexicalRerankerModel = "lexical-overlap"

// LexicalReranker scores a passage by the fraction of distinct query terms
// it contains plus a bonus for each adjacent query-term pair that also
// appears adjacently in the passage. It is deterministic and offline.
type LexicalReranker struct {
	bigramWeight float64
}

var _ Reranker = (*LexicalReranker)(nil)

// NewLexicalReranker creates a LexicalReranker.
func NewLexicalReranker() *LexicalReranker {
	return &LexicalReranker{bigramWeight: 0.5}
}

// Score implements Reranker.
func (r *LexicalReranker) Score(ctx context.Context, query string, passages []string) ([]float64, error) {
	qTerms := store.Tokenize(query)
	qSet := make(map[string]struct{}, len(qTerms))
	for _, t := range qTerms {
		qSet[t] = struct{}{}
	}
	qBigrams := bigrams(qTerms)

	scores := make([]float64, len(passages))
	for i, p := range passages {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if len(qSet) == 0 {
			continue
		}

		pTerms := store.Tokenize(p)
		pSet := make(map[string]struct{}, len(pTerms))
		for _, t := range pTerms {
			pSet[t] = struct{}{}
		}

		var covered int
		for t := range qSet {
			if _, ok := pSet[t]; ok {
				covered++
			}
		}
		score := float64(covered) / float64(len(qSet))

		if len(qBigrams) > 0 {
			pBigrams := bigrams(pTerms)
			var matched int
			for b := range qBigrams {
				if _, ok := pBigrams[b]; ok {
					matched++
				}
			}
			score += r.bigramWeight * float64(matched) / float64(len(qBigrams))
		}
		scores[i] = score
	}
	return scores, nil
}

// ModelName implements Reranker.
func (r *LexicalReranker) ModelName() string { return LexicalRerankerModel }

// Close implements Reranker.
func (r *LexicalReranker) Close() error { return nil }

func bigrams(tokens []string) map[string]struct{} {
	out := make(map[string]struct{})
	for i := 1; i < len(tokens); i++ {
		out[tokens[i-1]+" "+tokens[i]] = struct{}{}
	}
	return out
}
