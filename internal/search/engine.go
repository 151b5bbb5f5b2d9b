package search

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/Aman-CERP/amanrag/internal/chunk"
	"github.com/Aman-CERP/amanrag/internal/embed"
	amerrors "github.com/Aman-CERP/amanrag/internal/errors"
	"github.com/Aman-CERP/amanrag/internal/index"
)

// Engine answers hybrid queries against the currently installed index.
// Searches run concurrently; Build and Load construct a complete new index
// before swapping it in, so a search sees either the old or the new index.
type Engine struct {
	embedder embed.Embedder
	reranker Reranker
	config   Config
	opts     index.Options

	current atomic.Pointer[index.Index]

	// writeMu serializes builds and loads.
	writeMu sync.Mutex
}

// ErrNilDependency is returned when a required dependency is nil.
var ErrNilDependency = errors.New("nil dependency")

// NewEngine creates an engine with no index installed.
// Returns an error if a capability is nil or the config is invalid.
func NewEngine(embedder embed.Embedder, reranker Reranker, config Config, opts index.Options) (*Engine, error) {
	if embedder == nil {
		return nil, fmt.Errorf("%w: embedder is required", ErrNilDependency)
	}
	if reranker == nil {
		return nil, fmt.Errorf("%w: reranker is required", ErrNilDependency)
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}

	opts.RerankModel = reranker.ModelName()
	opts.FusionWeight = config.FusionWeight

	return &Engine{
		embedder: embedder,
		reranker: reranker,
		config:   config,
		opts:     opts,
	}, nil
}

// Config returns the retrieval configuration.
func (e *Engine) Config() Config { return e.config }

// Current returns the installed index, or nil.
func (e *Engine) Current() *index.Index { return e.current.Load() }

// Install atomically replaces the installed index and returns the previous
// one. The previous index is not closed: in-flight searches may still hold it.
func (e *Engine) Install(idx *index.Index) *index.Index {
	return e.current.Swap(idx)
}

// Build builds a new index from docs and installs it.
func (e *Engine) Build(ctx context.Context, docs []*chunk.Document) (*index.Index, error) {
	e.writeMu.Lock()
	defer e.writeMu.Unlock()

	idx, err := index.Build(ctx, docs, e.embedder, e.opts)
	if err != nil {
		return nil, err
	}
	e.Install(idx)
	return idx, nil
}

// BuildAndSave builds a new index, persists it to dir and only then
// installs it. A failed save leaves the installed index untouched.
func (e *Engine) BuildAndSave(ctx context.Context, docs []*chunk.Document, dir string) (*index.Index, error) {
	e.writeMu.Lock()
	defer e.writeMu.Unlock()

	idx, err := index.Build(ctx, docs, e.embedder, e.opts)
	if err != nil {
		return nil, err
	}
	if err := idx.Save(dir); err != nil {
		_ = idx.Close()
		return nil, err
	}
	e.Install(idx)
	return idx, nil
}

// Load loads the index persisted in dir and installs it.
func (e *Engine) Load(ctx context.Context, dir string) (*index.Index, error) {
	e.writeMu.Lock()
	defer e.writeMu.Unlock()

	idx, err := index.Load(ctx, dir, e.embedder, e.opts)
	if err != nil {
		return nil, err
	}
	e.Install(idx)
	return idx, nil
}

// EnsureLoaded loads dir when a persisted index exists there and nothing is
// installed yet. It reports whether an index is installed afterwards.
func (e *Engine) EnsureLoaded(ctx context.Context, dir string) (bool, error) {
	if e.Current() != nil {
		return true, nil
	}
	if !index.Exists(dir) {
		return false, nil
	}
	if _, err := e.Load(ctx, dir); err != nil {
		return false, err
	}
	return true, nil
}

// Search returns up to k hits for query, ordered by reranker score.
func (e *Engine) Search(ctx context.Context, query string, k int) ([]Hit, error) {
	start := time.Now()

	idx := e.current.Load()
	if idx == nil {
		return nil, amerrors.IndexNotReady()
	}
	if k <= 0 {
		return nil, amerrors.InvalidInput(fmt.Sprintf("k must be positive, got %d", k))
	}
	if strings.TrimSpace(query) == "" {
		return nil, amerrors.InvalidInput("query must not be blank")
	}

	n := idx.Len()
	lexRaw, denseRaw, err := e.channels(ctx, idx, query)
	if err != nil {
		return nil, err
	}

	lex := MinMaxNormalize(lexRaw)
	dense := MinMaxNormalize(denseRaw)
	hybrid := Fuse(lex, dense, e.config.FusionWeight)

	pool := SelectPool(hybrid, PoolSize(n, e.config.LexicalK, e.config.DenseK, k))
	passages := make([]string, len(pool))
	for i, pos := range pool {
		passages[i] = idx.Chunk(pos).Text
	}

	rerankStart := time.Now()
	scores, err := e.reranker.Score(ctx, query, passages)
	if err != nil {
		return nil, err
	}
	if len(scores) != len(pool) {
		return nil, amerrors.New(amerrors.ErrCodeRerankFailed,
			fmt.Sprintf("reranker returned %d scores for %d passages", len(scores), len(pool)), nil)
	}
	rerankDuration := time.Since(rerankStart)

	order := make([]int, len(pool))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return scores[order[a]] > scores[order[b]]
	})
	if len(order) > k {
		order = order[:k]
	}

	hits := make([]Hit, len(order))
	for i, o := range order {
		pos := pool[o]
		hits[i] = newHit(idx.Chunk(pos), scores[o], Signals{
			FusionWeight:  e.config.FusionWeight,
			CandidatePool: len(pool),
			LexicalScore:  lex[pos],
			DenseScore:    dense[pos],
			HybridScore:   hybrid[pos],
		})
	}

	slog.Debug("search_complete",
		slog.Int("k", k),
		slog.Int("chunks", n),
		slog.Int("pool", len(pool)),
		slog.Int("results", len(hits)),
		slog.Duration("rerank", rerankDuration),
		slog.Duration("total", time.Since(start)))

	return hits, nil
}

// channels computes the raw lexical scores and the corpus-wide dense scores
// in parallel. The first error cancels the other channel.
func (e *Engine) channels(ctx context.Context, idx *index.Index, query string) (lex, dense []float64, err error) {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		scores, err := idx.Lexical().Scores(gctx, query)
		if err != nil {
			return amerrors.New(amerrors.ErrCodeSearchFailed, "lexical scoring failed", err)
		}
		lex = scores
		return nil
	})

	g.Go(func() error {
		vec, err := e.embedder.Embed(gctx, query)
		if err != nil {
			return amerrors.New(amerrors.ErrCodeEmbeddingFailed, "query embedding failed", err)
		}
		ids, sims, err := idx.Vectors().Search(vec, e.config.DenseK)
		if err != nil {
			return amerrors.New(amerrors.ErrCodeSearchFailed, "vector search failed", err)
		}
		dense = DenseScores(idx.Len(), ids, sims)
		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, nil, err
	}
	return lex, dense, nil
}

func newHit(c *chunk.Chunk, score float64, signals Signals) Hit {
	return Hit{
		ChunkID:   c.ID,
		DocID:     c.DocID,
		Title:     c.Title,
		Domain:    c.Domain,
		Text:      c.Text,
		StartWord: c.StartWord,
		EndWord:   c.EndWord,
		Source:    c.Source,
		UpdatedAt: c.UpdatedAt,
		Score:     score,
		Signals:   signals,
	}
}

// Close closes the installed index. Capabilities are owned by the caller.
func (e *Engine) Close() error {
	if idx := e.current.Swap(nil); idx != nil {
		return idx.Close()
	}
	return nil
}
