// Package eval measures retrieval quality against a labelled case set:
// whether a gold source appears in the top k (precision@k, MRR) and whether
// a gold phrase appears in any top-k chunk (phrase recall@k).
package eval

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	amerrors "github.com/Aman-CERP/amanrag/internal/errors"
	"github.com/Aman-CERP/amanrag/internal/search"
	"github.com/Aman-CERP/amanrag/internal/store"
)

// DefaultK is the cutoff used when none is given.
const DefaultK = 5

// Case is one labelled evaluation query.
type Case struct {
	ID          string   `json:"id"`
	Question    string   `json:"question"`
	GoldPhrase  string   `json:"gold_phrase"`
	GoldSources []string `json:"gold_sources"`
}

// Searcher is the retrieval surface under evaluation.
type Searcher interface {
	Search(ctx context.Context, query string, k int) ([]search.Hit, error)
}

// CaseResult holds the metrics of a single case.
type CaseResult struct {
	ID        string  `json:"id"`
	Precision float64 `json:"precision_at_k"`
	MRR       float64 `json:"mrr"`
	PhraseHit bool    `json:"phrase_hit"`
}

// Report holds mean metrics over all cases.
type Report struct {
	K               int           `json:"k"`
	PrecisionAtK    float64       `json:"precision_at_k"`
	MRR             float64       `json:"mrr"`
	PhraseRecallAtK float64       `json:"phrase_recall_at_k"`
	NumCases        int           `json:"num_cases"`
	Cases           []CaseResult  `json:"cases,omitempty"`
	Duration        time.Duration `json:"duration_ns"`
}

// LoadCases reads a JSONL case file. Blank lines are skipped.
func LoadCases(path string) ([]Case, error) {
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, amerrors.New(amerrors.ErrCodeFileNotFound, "eval set not found", err).
				WithDetail("path", path)
		}
		return nil, amerrors.Wrap(amerrors.ErrCodeFileNotFound, err)
	}

	cases, err := store.ReadJSONL[Case](path)
	if err != nil {
		return nil, err
	}
	for i, c := range cases {
		if c.ID == "" || strings.TrimSpace(c.Question) == "" {
			return nil, amerrors.InvalidInput(fmt.Sprintf("eval case %d: id and question are required", i+1)).
				WithDetail("path", path)
		}
	}
	return cases, nil
}

// PrecisionAtK is the fraction of the top min(k, len(hits)) hits whose
// source is in gold. It is 0 when k <= 0 or there are no hits.
func PrecisionAtK(hits []search.Hit, gold []string, k int) float64 {
	if k <= 0 {
		return 0
	}
	top := hits[:min(k, len(hits))]
	if len(top) == 0 {
		return 0
	}
	set := goldSet(gold)
	var good int
	for _, h := range top {
		if _, ok := set[h.Source]; ok {
			good++
		}
	}
	return float64(good) / float64(len(top))
}

// MRR is 1/rank of the first hit whose source is in gold, or 0.
func MRR(hits []search.Hit, gold []string) float64 {
	set := goldSet(gold)
	for i, h := range hits {
		if _, ok := set[h.Source]; ok {
			return 1 / float64(i+1)
		}
	}
	return 0
}

// PhraseHit reports whether phrase occurs, case-insensitively, in the text
// of any of the top k hits.
func PhraseHit(hits []search.Hit, phrase string, k int) bool {
	if k <= 0 {
		return false
	}
	p := strings.ToLower(phrase)
	for _, h := range hits[:min(k, len(hits))] {
		if strings.Contains(strings.ToLower(h.Text), p) {
			return true
		}
	}
	return false
}

// goldSet ignores empty sources so that hits without a source never match.
func goldSet(gold []string) map[string]struct{} {
	set := make(map[string]struct{}, len(gold))
	for _, g := range gold {
		if g != "" {
			set[g] = struct{}{}
		}
	}
	return set
}

// Run searches every case with cutoff k and averages the metrics.
// Any search error aborts the run.
func Run(ctx context.Context, s Searcher, cases []Case, k int) (*Report, error) {
	if len(cases) == 0 {
		return nil, amerrors.EmptyInput("no eval cases found")
	}
	if k <= 0 {
		return nil, amerrors.InvalidInput(fmt.Sprintf("k must be positive, got %d", k))
	}

	start := time.Now()
	report := &Report{K: k, NumCases: len(cases), Cases: make([]CaseResult, 0, len(cases))}

	var precision, mrr, recall float64
	for _, c := range cases {
		hits, err := s.Search(ctx, c.Question, k)
		if err != nil {
			return nil, fmt.Errorf("eval case %s: %w", c.ID, err)
		}

		res := CaseResult{
			ID:        c.ID,
			Precision: PrecisionAtK(hits, c.GoldSources, k),
			MRR:       MRR(hits, c.GoldSources),
			PhraseHit: PhraseHit(hits, c.GoldPhrase, k),
		}
		precision += res.Precision
		mrr += res.MRR
		if res.PhraseHit {
			recall++
		}
		report.Cases = append(report.Cases, res)
	}

	n := float64(len(cases))
	report.PrecisionAtK = precision / n
	report.MRR = mrr / n
	report.PhraseRecallAtK = recall / n
	report.Duration = time.Since(start)

	slog.Info("eval_complete",
		slog.Int("cases", len(cases)),
		slog.Int("k", k),
		slog.Float64("precision_at_k", report.PrecisionAtK),
		slog.Float64("mrr", report.MRR),
		slog.Float64("phrase_recall_at_k", report.PhraseRecallAtK),
		slog.Duration("duration", report.Duration))

	return report, nil
}
