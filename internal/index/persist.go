package index

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/Aman-CERP/amanrag/internal/chunk"
	"github.com/Aman-CERP/amanrag/internal/embed"
	amerrors "github.com/Aman-CERP/amanrag/internal/errors"
	"github.com/Aman-CERP/amanrag/internal/store"
)

// Exists reports whether dir holds a persisted index manifest.
func Exists(dir string) bool {
	info, err := os.Stat(filepath.Join(dir, store.ManifestFile))
	return err == nil && !info.IsDir()
}

// Save persists idx to dir. All files are written into a fresh sibling
// directory which then replaces dir, so readers never observe a mix of old
// and new files. An exclusive lock on dir is held throughout.
func (idx *Index) Save(dir string) error {
	start := time.Now()
	dir = filepath.Clean(dir)
	parent := filepath.Dir(dir)
	if err := os.MkdirAll(parent, 0755); err != nil {
		return fmt.Errorf("failed to create index parent directory: %w", err)
	}

	lock := store.NewDirLock(dir)
	if err := lock.Lock(); err != nil {
		return amerrors.New(amerrors.ErrCodeIndexLocked, "failed to lock index directory", err)
	}
	defer func() { _ = lock.Unlock() }()

	tmp, err := os.MkdirTemp(parent, "."+filepath.Base(dir)+".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp directory: %w", err)
	}
	defer func() { _ = os.RemoveAll(tmp) }()

	if err := idx.writeFiles(tmp); err != nil {
		return err
	}
	if err := replaceDir(tmp, dir); err != nil {
		return err
	}

	slog.Info("index_saved",
		slog.String("dir", dir),
		slog.String("index_id", idx.manifest.IndexID),
		slog.Int("chunks", len(idx.chunks)),
		slog.Duration("duration", time.Since(start)))
	return nil
}

func (idx *Index) writeFiles(dir string) error {
	if err := store.WriteJSONL(filepath.Join(dir, store.ChunksFile), idx.chunks); err != nil {
		return fmt.Errorf("failed to write chunks: %w", err)
	}
	if err := idx.vectors.Save(filepath.Join(dir, store.VectorsFile)); err != nil {
		return fmt.Errorf("failed to write vector index: %w", err)
	}
	if err := store.WriteMatrix(filepath.Join(dir, store.EmbeddingsFile), idx.embeddings); err != nil {
		return fmt.Errorf("failed to write embeddings: %w", err)
	}
	// Manifest last: its presence marks a complete directory.
	if err := store.WriteManifest(filepath.Join(dir, store.ManifestFile), &idx.manifest); err != nil {
		return err
	}
	return nil
}

// replaceDir moves src to dst, replacing any existing dst. The previous
// dst is restored if the final rename fails.
func replaceDir(src, dst string) error {
	var backup string
	if _, err := os.Stat(dst); err == nil {
		backup = fmt.Sprintf("%s.old-%d", dst, time.Now().UnixNano())
		if err := os.Rename(dst, backup); err != nil {
			return fmt.Errorf("failed to move previous index aside: %w", err)
		}
	}

	if err := os.Rename(src, dst); err != nil {
		if backup != "" {
			_ = os.Rename(backup, dst)
		}
		return fmt.Errorf("failed to install index directory: %w", err)
	}

	if backup != "" {
		if err := os.RemoveAll(backup); err != nil {
			slog.Warn("failed to remove previous index", slog.String("path", backup), slog.String("error", err.Error()))
		}
	}
	return nil
}

// Load reads a persisted index from dir. Lexical models are refit from
// chunk text. The directory must contain every index file with matching
// counts, and emb must produce vectors of the recorded dimensions.
func Load(ctx context.Context, dir string, emb embed.Embedder, opts Options) (*Index, error) {
	start := time.Now()
	if emb == nil {
		return nil, amerrors.CapabilityUnavailable("embedder", fmt.Errorf("embedder is required"))
	}
	opts = withDefaults(opts)

	if info, err := os.Stat(dir); err != nil || !info.IsDir() {
		return nil, amerrors.CorruptIndex(dir, "missing index directory", err)
	}

	lock := store.NewDirLock(dir)
	if err := lock.RLock(); err != nil {
		return nil, amerrors.New(amerrors.ErrCodeIndexLocked, "failed to lock index directory", err)
	}
	defer func() { _ = lock.Unlock() }()

	for _, name := range store.IndexFiles {
		if _, err := os.Stat(filepath.Join(dir, name)); err != nil {
			return nil, amerrors.CorruptIndex(dir, "missing index file "+name, err)
		}
	}

	manifest, err := store.ReadManifest(filepath.Join(dir, store.ManifestFile))
	if err != nil {
		return nil, amerrors.CorruptIndex(dir, "unreadable manifest", err)
	}

	if manifest.Dimensions != emb.Dimensions() {
		return nil, amerrors.New(amerrors.ErrCodeDimensionMismatch,
			fmt.Sprintf("index was built with %d-dimensional embeddings, embedder produces %d",
				manifest.Dimensions, emb.Dimensions()), nil).
			WithDetail("index_model", manifest.EmbedModel).
			WithDetail("embedder_model", emb.ModelName()).
			WithSuggestion("use the embedder the index was built with, or rebuild the index")
	}
	if manifest.EmbedModel != emb.ModelName() {
		slog.Warn("index_embed_model_mismatch",
			slog.String("index_model", manifest.EmbedModel),
			slog.String("embedder_model", emb.ModelName()))
	}

	chunks, err := store.ReadJSONL[*chunk.Chunk](filepath.Join(dir, store.ChunksFile))
	if err != nil {
		return nil, amerrors.CorruptIndex(dir, "unreadable chunks", err)
	}
	if len(chunks) == 0 {
		return nil, amerrors.CorruptIndex(dir, "index has no chunks", nil)
	}

	embeddings, err := store.ReadMatrix(filepath.Join(dir, store.EmbeddingsFile))
	if err != nil {
		return nil, amerrors.CorruptIndex(dir, "unreadable embeddings", err)
	}
	if len(embeddings) > 0 && len(embeddings[0]) != manifest.Dimensions {
		return nil, amerrors.CorruptIndex(dir,
			fmt.Sprintf("embeddings have %d dimensions, manifest records %d", len(embeddings[0]), manifest.Dimensions), nil)
	}

	lexicalBackend := manifest.LexicalBackend
	if lexicalBackend == "" {
		lexicalBackend = opts.LexicalBackend
	}
	vectorBackend := manifest.VectorBackend
	if vectorBackend == "" {
		vectorBackend = opts.VectorBackend
	}

	vectors, err := store.NewVectorIndex(vectorBackend, vectorConfig(opts, manifest.Dimensions))
	if err != nil {
		return nil, amerrors.CorruptIndex(dir, "unusable vector backend", err)
	}
	if err := vectors.Load(filepath.Join(dir, store.VectorsFile)); err != nil {
		_ = vectors.Close()
		return nil, amerrors.CorruptIndex(dir, "unreadable vector index", err)
	}

	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Text
	}
	lexOpts := opts
	lexOpts.LexicalBackend = lexicalBackend
	lexical, err := fitLexical(ctx, lexOpts, texts)
	if err != nil {
		_ = vectors.Close()
		return nil, err
	}

	idx := &Index{
		chunks:     chunks,
		lexical:    lexical,
		vectors:    vectors,
		embeddings: embeddings,
		manifest:   *manifest,
	}
	if err := idx.Check().Err(dir); err != nil {
		_ = idx.Close()
		return nil, err
	}

	slog.Info("index_loaded",
		slog.String("dir", dir),
		slog.String("index_id", manifest.IndexID),
		slog.Int("chunks", len(chunks)),
		slog.Duration("duration", time.Since(start)))

	return idx, nil
}
