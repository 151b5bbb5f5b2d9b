// Package index builds, persists and loads the multi-part retrieval index:
// chunks, a lexical model, a vector index and the raw embedding matrix,
// all aligned by chunk position.
package index

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/Aman-CERP/amanrag/internal/chunk"
	"github.com/Aman-CERP/amanrag/internal/embed"
	amerrors "github.com/Aman-CERP/amanrag/internal/errors"
	"github.com/Aman-CERP/amanrag/internal/store"
)

// Options configures how an index is built and loaded.
type Options struct {
	// ChunkSize and ChunkOverlap are window sizes in words.
	ChunkSize    int
	ChunkOverlap int

	// LexicalBackend is "bm25" or "bleve".
	LexicalBackend string
	Lexical        store.LexicalConfig

	// VectorBackend is "flat" or "hnsw".
	VectorBackend string
	HNSWM         int
	HNSWEfSearch  int

	// BatchSize is the number of chunks per embedding request.
	BatchSize int

	// Concurrency bounds in-flight embedding batches (default: NumCPU, max 8).
	Concurrency int

	// Recorded in the manifest for provenance.
	RerankModel  string
	FusionWeight float64

	// Progress, when set, receives build progress. Load does not report.
	Progress ProgressFunc
}

// DefaultOptions returns the default build options.
func DefaultOptions() Options {
	return Options{
		ChunkSize:      chunk.DefaultChunkSize,
		ChunkOverlap:   chunk.DefaultChunkOverlap,
		LexicalBackend: string(store.LexicalBackendBM25),
		Lexical:        store.DefaultLexicalConfig(),
		VectorBackend:  string(store.VectorBackendFlat),
		BatchSize:      embed.DefaultBatchSize,
		Concurrency:    min(runtime.NumCPU(), 8),
	}
}

// Index is a built or loaded retrieval index. It is immutable: searches may
// read it concurrently and a rebuild produces a new Index.
type Index struct {
	chunks     []*chunk.Chunk
	lexical    store.LexicalScorer
	vectors    store.VectorIndex
	embeddings [][]float32
	manifest   store.Manifest
}

// Len returns the number of chunks.
func (idx *Index) Len() int {
	return len(idx.chunks)
}

// Chunks returns the chunks in position order. Callers must not modify them.
func (idx *Index) Chunks() []*chunk.Chunk {
	return idx.chunks
}

// Chunk returns the chunk at position i.
func (idx *Index) Chunk(i int) *chunk.Chunk {
	return idx.chunks[i]
}

// Lexical returns the lexical scorer fit over all chunk texts.
func (idx *Index) Lexical() store.LexicalScorer {
	return idx.lexical
}

// Vectors returns the dense vector index.
func (idx *Index) Vectors() store.VectorIndex {
	return idx.vectors
}

// Manifest returns a copy of the build manifest.
func (idx *Index) Manifest() store.Manifest {
	return idx.manifest
}

// Close releases the lexical model and vector index.
func (idx *Index) Close() error {
	lexErr := idx.lexical.Close()
	vecErr := idx.vectors.Close()
	if lexErr != nil {
		return lexErr
	}
	return vecErr
}

// Build chunks docs, fits the lexical model, embeds every chunk and builds
// the vector index. It fails on zero documents, zero chunks, duplicate or
// missing document IDs and any embedder failure.
func Build(ctx context.Context, docs []*chunk.Document, emb embed.Embedder, opts Options) (*Index, error) {
	start := time.Now()
	if emb == nil {
		return nil, amerrors.CapabilityUnavailable("embedder", fmt.Errorf("embedder is required"))
	}
	if len(docs) == 0 {
		return nil, amerrors.EmptyInput("no documents to index")
	}
	opts = withDefaults(opts)
	progress := newReporter(opts.Progress)

	chunker, err := chunk.NewWindowChunker(opts.ChunkSize, opts.ChunkOverlap)
	if err != nil {
		return nil, err
	}

	progress.begin(StageChunking, len(docs))
	chunks, err := chunkDocuments(ctx, chunker, docs, progress)
	if err != nil {
		return nil, err
	}
	if len(chunks) == 0 {
		return nil, amerrors.EmptyInput("documents produced no chunks (all texts are empty)")
	}
	slog.Info("index_chunking_complete", slog.Int("documents", len(docs)), slog.Int("chunks", len(chunks)))

	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Text
	}

	progress.begin(StageLexical, len(texts))
	lexical, err := fitLexical(ctx, opts, texts)
	if err != nil {
		return nil, err
	}
	progress.finish(StageLexical, len(texts))

	progress.begin(StageEmbedding, len(texts))
	embeddings, err := embedAll(ctx, emb, texts, opts, progress)
	if err != nil {
		_ = lexical.Close()
		return nil, err
	}

	progress.begin(StageVectors, len(embeddings))
	vectors, err := store.NewVectorIndex(opts.VectorBackend, vectorConfig(opts, emb.Dimensions()))
	if err != nil {
		_ = lexical.Close()
		return nil, err
	}
	if err := vectors.Add(embeddings); err != nil {
		_ = lexical.Close()
		_ = vectors.Close()
		return nil, amerrors.New(amerrors.ErrCodeIndexFailed, "failed to build vector index", err)
	}
	progress.finish(StageVectors, len(embeddings))

	manifest := store.NewManifest()
	manifest.EmbedModel = emb.ModelName()
	manifest.RerankModel = opts.RerankModel
	manifest.ChunkSize = opts.ChunkSize
	manifest.ChunkOverlap = opts.ChunkOverlap
	manifest.FusionWeight = opts.FusionWeight
	manifest.Dimensions = emb.Dimensions()
	manifest.ChunkCount = len(chunks)
	manifest.LexicalBackend = opts.LexicalBackend
	manifest.VectorBackend = opts.VectorBackend

	idx := &Index{
		chunks:     chunks,
		lexical:    lexical,
		vectors:    vectors,
		embeddings: embeddings,
		manifest:   *manifest,
	}
	if err := idx.Check().Err(""); err != nil {
		_ = idx.Close()
		return nil, err
	}

	slog.Info("index_built",
		slog.String("index_id", manifest.IndexID),
		slog.Int("chunks", len(chunks)),
		slog.Int("dimensions", manifest.Dimensions),
		slog.String("embed_model", manifest.EmbedModel),
		slog.Duration("duration", time.Since(start)))

	return idx, nil
}

func withDefaults(opts Options) Options {
	def := DefaultOptions()
	if opts.LexicalBackend == "" {
		opts.LexicalBackend = def.LexicalBackend
	}
	if opts.VectorBackend == "" {
		opts.VectorBackend = def.VectorBackend
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = def.BatchSize
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = def.Concurrency
	}
	return opts
}

func vectorConfig(opts Options, dims int) store.VectorConfig {
	cfg := store.DefaultVectorConfig(dims)
	if opts.HNSWM > 0 {
		cfg.M = opts.HNSWM
	}
	if opts.HNSWEfSearch > 0 {
		cfg.EfSearch = opts.HNSWEfSearch
	}
	return cfg
}

// chunkDocuments validates document IDs and splits every document in order.
func chunkDocuments(ctx context.Context, chunker chunk.Chunker, docs []*chunk.Document, progress *reporter) ([]*chunk.Chunk, error) {
	seen := make(map[string]bool, len(docs))
	var chunks []*chunk.Chunk
	for i, doc := range docs {
		if doc == nil || doc.ID == "" {
			return nil, amerrors.InvalidInput(fmt.Sprintf("document %d has no ID", i))
		}
		if seen[doc.ID] {
			return nil, amerrors.InvalidInput(fmt.Sprintf("duplicate document ID %q", doc.ID))
		}
		seen[doc.ID] = true

		normalized := *doc
		normalized.Text = store.NormalizeWhitespace(doc.Text)
		docChunks, err := chunker.Chunk(ctx, &normalized)
		if err != nil {
			return nil, fmt.Errorf("failed to chunk document %s: %w", doc.ID, err)
		}
		chunks = append(chunks, docChunks...)
		progress.add(1)
	}
	return chunks, nil
}

func fitLexical(ctx context.Context, opts Options, texts []string) (store.LexicalScorer, error) {
	lexical, err := store.NewLexicalScorer(opts.LexicalBackend, opts.Lexical)
	if err != nil {
		return nil, err
	}
	if err := lexical.Fit(ctx, texts); err != nil {
		_ = lexical.Close()
		return nil, amerrors.New(amerrors.ErrCodeIndexFailed, "failed to fit lexical model", err)
	}
	return lexical, nil
}

// embedAll embeds texts in batches with bounded concurrency. Each batch
// writes its own slice of the result, so output order matches input order.
func embedAll(ctx context.Context, emb embed.Embedder, texts []string, opts Options, progress *reporter) ([][]float32, error) {
	dims := emb.Dimensions()
	out := make([][]float32, len(texts))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(opts.Concurrency)

	for start := 0; start < len(texts); start += opts.BatchSize {
		end := min(start+opts.BatchSize, len(texts))
		g.Go(func() error {
			vecs, err := emb.EmbedBatch(gctx, texts[start:end])
			if err != nil {
				return amerrors.New(amerrors.ErrCodeEmbeddingFailed,
					fmt.Sprintf("failed to embed chunks %d-%d", start, end-1), err)
			}
			if len(vecs) != end-start {
				return amerrors.New(amerrors.ErrCodeEmbeddingFailed,
					fmt.Sprintf("embedder returned %d vectors for %d chunks", len(vecs), end-start), nil)
			}
			for i, v := range vecs {
				if len(v) != dims {
					return amerrors.New(amerrors.ErrCodeDimensionMismatch,
						fmt.Sprintf("chunk %d embedding has %d dimensions, embedder reports %d", start+i, len(v), dims), nil)
				}
				out[start+i] = v
			}
			progress.add(len(vecs))
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}
