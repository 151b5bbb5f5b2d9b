package store

import (
	"bufio"
	"cmp"
	"fmt"
	"os"
	"slices"
	"sync"

	"github.com/coder/hnsw"
)

// HNSWIndex is an approximate vector index backed by a coder/hnsw graph.
// Nodes are keyed by corpus position and compared by cosine distance;
// the reported score is 1 - distance, i.e. cosine similarity.
type HNSWIndex struct {
	mu     sync.RWMutex
	graph  *hnsw.Graph[int]
	config VectorConfig
	closed bool
}

// NewHNSWIndex creates an empty HNSW index.
func NewHNSWIndex(cfg VectorConfig) *HNSWIndex {
	def := DefaultVectorConfig(cfg.Dimensions)
	if cfg.M == 0 {
		cfg.M = def.M
	}
	if cfg.EfSearch == 0 {
		cfg.EfSearch = def.EfSearch
	}
	return &HNSWIndex{
		graph:  newGraph(cfg),
		config: cfg,
	}
}

func newGraph(cfg VectorConfig) *hnsw.Graph[int] {
	graph := hnsw.NewGraph[int]()
	graph.Distance = hnsw.CosineDistance
	graph.M = cfg.M
	graph.EfSearch = cfg.EfSearch
	graph.Ml = 0.25 // default level generation factor (1/ln(M))
	return graph
}

// Add inserts vectors keyed by their position.
func (h *HNSWIndex) Add(vectors [][]float32) error {
	for _, v := range vectors {
		if len(v) != h.config.Dimensions {
			return dimensionMismatch(h.config.Dimensions, len(v))
		}
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return fmt.Errorf("vector index is closed")
	}

	next := h.graph.Len()
	for i, v := range vectors {
		h.graph.Add(hnsw.MakeNode(next+i, slices.Clone(v)))
	}
	return nil
}

// Search returns up to topN approximate neighbours, best first, padded
// with position -1 when the graph holds fewer than topN nodes.
func (h *HNSWIndex) Search(query []float32, topN int) ([]int, []float32, error) {
	if len(query) != h.config.Dimensions {
		return nil, nil, dimensionMismatch(h.config.Dimensions, len(query))
	}
	if topN < 0 {
		topN = 0
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	if h.closed {
		return nil, nil, fmt.Errorf("vector index is closed")
	}

	type scored struct {
		pos   int
		score float32
	}
	var found []scored
	if h.graph.Len() > 0 && topN > 0 {
		for _, node := range h.graph.Search(query, topN) {
			found = append(found, scored{
				pos:   node.Key,
				score: 1 - h.graph.Distance(query, node.Value),
			})
		}
	}
	slices.SortFunc(found, func(a, b scored) int {
		if c := cmp.Compare(b.score, a.score); c != 0 {
			return c
		}
		return cmp.Compare(a.pos, b.pos)
	})

	ids := make([]int, topN)
	scores := make([]float32, topN)
	for i := range ids {
		if i < len(found) {
			ids[i] = found[i].pos
			scores[i] = found[i].score
		} else {
			ids[i] = -1
		}
	}
	return ids, scores, nil
}

// Len returns the number of graph nodes.
func (h *HNSWIndex) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if h.closed {
		return 0
	}
	return h.graph.Len()
}

// Dimensions returns the vector dimensionality.
func (h *HNSWIndex) Dimensions() int {
	return h.config.Dimensions
}

// Save exports the graph to path.
func (h *HNSWIndex) Save(path string) error {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if h.closed {
		return fmt.Errorf("vector index is closed")
	}

	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create index file: %w", err)
	}

	w := bufio.NewWriter(file)
	if err := h.graph.Export(w); err != nil {
		file.Close()
		return fmt.Errorf("failed to export graph: %w", err)
	}
	if err := w.Flush(); err != nil {
		file.Close()
		return fmt.Errorf("failed to flush index file: %w", err)
	}
	return file.Close()
}

// Load replaces the graph with one imported from path.
func (h *HNSWIndex) Load(path string) error {
	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open index file: %w", err)
	}
	defer file.Close()

	graph := newGraph(h.config)
	// Use bufio.Reader because coder/hnsw Import requires io.ByteReader
	if err := graph.Import(bufio.NewReader(file)); err != nil {
		return fmt.Errorf("failed to import graph: %w", err)
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return fmt.Errorf("vector index is closed")
	}
	h.graph = graph
	return nil
}

// Close releases resources.
func (h *HNSWIndex) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.closed = true
	return nil
}

// Verify interface implementation
var _ VectorIndex = (*HNSWIndex)(nil)
