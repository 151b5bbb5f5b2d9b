package index

import (
	"bufio"
	"context"
	"encoding/binary"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/amanrag/internal/chunk"
	"github.com/Aman-CERP/amanrag/internal/embed"
	amerrors "github.com/Aman-CERP/amanrag/internal/errors"
	"github.com/Aman-CERP/amanrag/internal/store"
)

func testDocs() []*chunk.Document {
	return []*chunk.Document{
		{ID: "refunds", Title: "Refund Policy", Domain: "Billing", Source: "kb/refunds.md",
			Text: "Customers may request a refund within 30 days of purchase. The refund policy covers unused items."},
		{ID: "shipping", Title: "Shipping", Domain: "Logistics", Source: "kb/shipping.md",
			Text: "Orders ship within two business days.\n\nExpress shipping is available at checkout."},
		{ID: "security", Title: "Security", Source: "kb/security.md",
			Text: "All data is encrypted at rest and in transit. Access requires multi-factor authentication."},
	}
}

func testOptions() Options {
	opts := DefaultOptions()
	opts.ChunkSize = 8
	opts.ChunkOverlap = 2
	opts.BatchSize = 3
	opts.FusionWeight = 0.35
	opts.RerankModel = "lexical"
	return opts
}

func buildTestIndex(t *testing.T, opts Options) (*Index, embed.Embedder) {
	t.Helper()
	emb := embed.NewStaticEmbedder(64)
	idx, err := Build(context.Background(), testDocs(), emb, opts)
	require.NoError(t, err)
	t.Cleanup(func() { _ = idx.Close() })
	return idx, emb
}

// failingEmbedder fails every call.
type failingEmbedder struct{ embed.Embedder }

func (f failingEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	return nil, errors.New("backend down")
}

// TS01: Build aligns every component by position
func TestBuild_AlignsComponents(t *testing.T) {
	// Given/When: an index built from three documents
	idx, emb := buildTestIndex(t, testOptions())

	// Then: every component has one entry per chunk
	assert.Greater(t, idx.Len(), 3)
	assert.True(t, idx.Check().Consistent())
	assert.Equal(t, idx.Len(), idx.Lexical().Len())
	assert.Equal(t, idx.Len(), idx.Vectors().Len())

	// And: the manifest records the build
	m := idx.Manifest()
	assert.NotEmpty(t, m.IndexID)
	assert.Equal(t, emb.ModelName(), m.EmbedModel)
	assert.Equal(t, 64, m.Dimensions)
	assert.Equal(t, idx.Len(), m.ChunkCount)
	assert.Equal(t, 0.35, m.FusionWeight)
	assert.Equal(t, "bm25", m.LexicalBackend)
	assert.Equal(t, "flat", m.VectorBackend)

	// And: chunk IDs follow document order
	assert.Equal(t, "refunds::c0", idx.Chunk(0).ID)
	assert.Equal(t, "security", idx.Chunk(idx.Len()-1).DocID)
	assert.Equal(t, "Unknown", idx.Chunk(idx.Len()-1).Domain)
}

func TestBuild_NormalizesWhitespace(t *testing.T) {
	idx, _ := buildTestIndex(t, testOptions())

	for _, c := range idx.Chunks() {
		assert.NotContains(t, c.Text, "\n")
		assert.NotContains(t, c.Text, "  ")
	}
}

func TestBuild_ZeroDocuments(t *testing.T) {
	_, err := Build(context.Background(), nil, embed.NewStaticEmbedder(8), testOptions())
	assert.ErrorIs(t, err, amerrors.ErrEmptyInput)
}

func TestBuild_ZeroChunks(t *testing.T) {
	docs := []*chunk.Document{{ID: "a", Text: "  "}, {ID: "b", Text: "\n"}}

	_, err := Build(context.Background(), docs, embed.NewStaticEmbedder(8), testOptions())
	assert.ErrorIs(t, err, amerrors.ErrEmptyInput)
}

func TestBuild_DuplicateDocumentIDs(t *testing.T) {
	docs := []*chunk.Document{{ID: "a", Text: "x"}, {ID: "a", Text: "y"}}

	_, err := Build(context.Background(), docs, embed.NewStaticEmbedder(8), testOptions())
	assert.ErrorIs(t, err, amerrors.ErrInvalidInput)
}

func TestBuild_EmbedderFailure(t *testing.T) {
	emb := failingEmbedder{embed.NewStaticEmbedder(8)}

	_, err := Build(context.Background(), testDocs(), emb, testOptions())
	require.Error(t, err)
	assert.Equal(t, amerrors.ErrCodeEmbeddingFailed, amerrors.GetCode(err))
}

func TestBuild_InvalidWindow(t *testing.T) {
	opts := testOptions()
	opts.ChunkOverlap = opts.ChunkSize

	_, err := Build(context.Background(), testDocs(), embed.NewStaticEmbedder(8), opts)
	assert.ErrorIs(t, err, amerrors.ErrInvalidInput)
}

// TS02: Load(Save(Build(D))) preserves chunks and search results
func TestSaveLoad_RoundTrip(t *testing.T) {
	for _, backends := range [][2]string{{"bm25", "flat"}, {"bleve", "flat"}, {"bm25", "hnsw"}} {
		t.Run(backends[0]+"/"+backends[1], func(t *testing.T) {
			// Given: a built and saved index
			opts := testOptions()
			opts.LexicalBackend = backends[0]
			opts.VectorBackend = backends[1]
			built, emb := buildTestIndex(t, opts)
			dir := filepath.Join(t.TempDir(), "index")
			require.NoError(t, built.Save(dir))
			assert.True(t, Exists(dir))

			// When: loading it back
			loaded, err := Load(context.Background(), dir, emb, DefaultOptions())
			require.NoError(t, err)
			defer func() { _ = loaded.Close() }()

			// Then: same chunks in the same order
			require.Equal(t, built.Len(), loaded.Len())
			for i := range built.Chunks() {
				assert.Equal(t, built.Chunk(i), loaded.Chunk(i))
			}
			assert.Equal(t, built.Manifest().IndexID, loaded.Manifest().IndexID)

			// And: identical lexical and dense results
			ctx := context.Background()
			wantLex, err := built.Lexical().Scores(ctx, "refund policy")
			require.NoError(t, err)
			gotLex, err := loaded.Lexical().Scores(ctx, "refund policy")
			require.NoError(t, err)
			assert.Equal(t, wantLex, gotLex)

			q, err := emb.Embed(ctx, "refund policy")
			require.NoError(t, err)
			wantIDs, _, err := built.Vectors().Search(q, 3)
			require.NoError(t, err)
			gotIDs, _, err := loaded.Vectors().Search(q, 3)
			require.NoError(t, err)
			assert.Equal(t, wantIDs, gotIDs)
		})
	}
}

func TestSave_ReplacesExistingDirectory(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "index")
	first, emb := buildTestIndex(t, testOptions())
	require.NoError(t, first.Save(dir))

	// A stray file from the old directory must not survive
	require.NoError(t, os.WriteFile(filepath.Join(dir, "stray.txt"), []byte("x"), 0o644))

	second, err := Build(context.Background(), testDocs()[:1], emb, testOptions())
	require.NoError(t, err)
	require.NoError(t, second.Save(dir))

	_, err = os.Stat(filepath.Join(dir, "stray.txt"))
	assert.True(t, os.IsNotExist(err))

	loaded, err := Load(context.Background(), dir, emb, DefaultOptions())
	require.NoError(t, err)
	assert.Equal(t, second.Len(), loaded.Len())
	assert.Equal(t, second.Manifest().IndexID, loaded.Manifest().IndexID)

	entries, err := os.ReadDir(filepath.Dir(dir))
	require.NoError(t, err)
	for _, e := range entries {
		assert.False(t, strings.Contains(e.Name(), ".tmp-") || strings.Contains(e.Name(), ".old-"), e.Name())
	}
}

func TestLoad_MissingFile(t *testing.T) {
	for _, name := range store.IndexFiles {
		t.Run(name, func(t *testing.T) {
			idx, emb := buildTestIndex(t, testOptions())
			dir := filepath.Join(t.TempDir(), "index")
			require.NoError(t, idx.Save(dir))
			require.NoError(t, os.Remove(filepath.Join(dir, name)))

			_, err := Load(context.Background(), dir, emb, DefaultOptions())
			assert.ErrorIs(t, err, amerrors.ErrCorruptIndex)
		})
	}
}

func TestLoad_ChunkCountMismatch(t *testing.T) {
	// Given: a saved index whose chunk file lost its last line
	idx, emb := buildTestIndex(t, testOptions())
	dir := filepath.Join(t.TempDir(), "index")
	require.NoError(t, idx.Save(dir))
	dropLastLine(t, filepath.Join(dir, store.ChunksFile))

	// When: loading
	_, err := Load(context.Background(), dir, emb, DefaultOptions())

	// Then: persisted state is reported corrupt
	require.ErrorIs(t, err, amerrors.ErrCorruptIndex)
	assert.Contains(t, err.Error(), "mismatch")
}

func TestLoad_DimensionMismatch(t *testing.T) {
	idx, _ := buildTestIndex(t, testOptions())
	dir := filepath.Join(t.TempDir(), "index")
	require.NoError(t, idx.Save(dir))

	_, err := Load(context.Background(), dir, embed.NewStaticEmbedder(32), DefaultOptions())
	assert.ErrorIs(t, err, amerrors.ErrDimensionMismatch)
}

func TestLoad_NoIndex(t *testing.T) {
	// Given: an index path whose parent does not exist either
	root := t.TempDir()
	dir := filepath.Join(root, "data", "missing")
	assert.False(t, Exists(dir))

	// When: loading
	_, err := Load(context.Background(), dir, embed.NewStaticEmbedder(8), DefaultOptions())

	// Then: it fails without creating directories or a lock file
	assert.ErrorIs(t, err, amerrors.ErrCorruptIndex)
	assert.NoDirExists(t, filepath.Join(root, "data"))
	assert.NoFileExists(t, store.NewDirLock(dir).Path())
}

func TestLoad_CorruptMatrixHeader(t *testing.T) {
	for _, name := range []string{store.EmbeddingsFile, store.VectorsFile} {
		t.Run(name, func(t *testing.T) {
			// Given: a saved index whose matrix header claims billions of rows
			idx, emb := buildTestIndex(t, testOptions())
			dir := filepath.Join(t.TempDir(), "index")
			require.NoError(t, idx.Save(dir))
			path := filepath.Join(dir, name)
			data, err := os.ReadFile(path)
			require.NoError(t, err)
			binary.LittleEndian.PutUint32(data[8:12], 0xFFFFFFFF)
			require.NoError(t, os.WriteFile(path, data, 0o644))

			// When: loading
			_, err = Load(context.Background(), dir, emb, DefaultOptions())

			// Then: persisted state is reported corrupt
			assert.ErrorIs(t, err, amerrors.ErrCorruptIndex)
		})
	}
}

func TestCheckCounts(t *testing.T) {
	result := checkCounts(5, map[Component]int{
		ComponentManifest:   5,
		ComponentLexical:    5,
		ComponentVectors:    4,
		ComponentEmbeddings: 6,
	})

	require.Len(t, result.Inconsistencies, 2)
	assert.Equal(t, ComponentVectors, result.Inconsistencies[0].Component)
	assert.Equal(t, ComponentEmbeddings, result.Inconsistencies[1].Component)
	assert.ErrorIs(t, result.Err("/idx"), amerrors.ErrCorruptIndex)

	ok := checkCounts(2, map[Component]int{ComponentLexical: 2})
	assert.True(t, ok.Consistent())
	assert.NoError(t, ok.Err("/idx"))
}

func dropLastLine(t *testing.T, path string) {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	var lines []string
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	require.NoError(t, scanner.Err())
	require.NoError(t, f.Close())
	require.NotEmpty(t, lines)

	content := strings.Join(lines[:len(lines)-1], "\n") + "\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}
