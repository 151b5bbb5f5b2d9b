package store

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"

	amerrors "github.com/Aman-CERP/amanrag/internal/errors"
)

// Persisted index file names.
const (
	ChunksFile     = "chunks.jsonl"
	VectorsFile    = "vectors.index"
	EmbeddingsFile = "embeddings.bin"
	ManifestFile   = "manifest.json"
)

// IndexFiles lists every file a persisted index directory must contain.
var IndexFiles = []string{ChunksFile, VectorsFile, EmbeddingsFile, ManifestFile}

// ManifestVersion is the current persisted index format version.
const ManifestVersion = 1

// Manifest records how a persisted index was built.
type Manifest struct {
	IndexID        string    `json:"index_id"`
	EmbedModel     string    `json:"embed_model"`
	RerankModel    string    `json:"rerank_model"`
	ChunkSize      int       `json:"chunk_size"`
	ChunkOverlap   int       `json:"chunk_overlap"`
	FusionWeight   float64   `json:"fusion_weight"`
	Dimensions     int       `json:"dimensions"`
	ChunkCount     int       `json:"chunk_count"`
	LexicalBackend string    `json:"lexical_backend"`
	VectorBackend  string    `json:"vector_backend"`
	CreatedAt      time.Time `json:"created_at"`
	Version        int       `json:"version"`
}

// NewManifest returns a manifest with a fresh index ID, the current time
// and the current format version.
func NewManifest() *Manifest {
	return &Manifest{
		IndexID:   uuid.NewString(),
		CreatedAt: time.Now().UTC(),
		Version:   ManifestVersion,
	}
}

// WriteManifest writes m as indented JSON to path.
func WriteManifest(path string, m *Manifest) error {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal manifest: %w", err)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("failed to write manifest: %w", err)
	}
	return nil
}

// ReadManifest reads and validates a manifest from path.
func ReadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read manifest: %w", err)
	}

	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, amerrors.New(amerrors.ErrCodeFileCorrupt, "invalid manifest "+path, err)
	}
	if m.Version != ManifestVersion {
		return nil, amerrors.New(amerrors.ErrCodeFileCorrupt,
			fmt.Sprintf("unsupported manifest version %d", m.Version), nil)
	}
	if _, err := uuid.Parse(m.IndexID); err != nil {
		return nil, amerrors.New(amerrors.ErrCodeFileCorrupt, "invalid manifest index_id", err)
	}
	return &m, nil
}
