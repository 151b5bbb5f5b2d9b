package store

import (
	"fmt"
	"slices"
	"sync"
)

// FlatIndex is an exact inner-product vector index. Search compares the
// query against every stored vector, so results are deterministic and
// reproducible across save and load.
type FlatIndex struct {
	mu      sync.RWMutex
	dims    int
	vectors [][]float32
	closed  bool
}

// NewFlatIndex creates an empty flat index for vectors of the given size.
func NewFlatIndex(dimensions int) *FlatIndex {
	return &FlatIndex{dims: dimensions}
}

// Add appends vectors in order.
func (f *FlatIndex) Add(vectors [][]float32) error {
	for _, v := range vectors {
		if len(v) != f.dims {
			return dimensionMismatch(f.dims, len(v))
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if f.closed {
		return fmt.Errorf("vector index is closed")
	}
	for _, v := range vectors {
		f.vectors = append(f.vectors, slices.Clone(v))
	}
	return nil
}

// Search returns the topN positions by inner product, best first. Equal
// scores keep the lower position first. Missing slots are padded with -1.
func (f *FlatIndex) Search(query []float32, topN int) ([]int, []float32, error) {
	if len(query) != f.dims {
		return nil, nil, dimensionMismatch(f.dims, len(query))
	}
	if topN < 0 {
		topN = 0
	}

	f.mu.RLock()
	defer f.mu.RUnlock()

	if f.closed {
		return nil, nil, fmt.Errorf("vector index is closed")
	}

	scores := make([]float32, len(f.vectors))
	order := make([]int, len(f.vectors))
	for i, v := range f.vectors {
		scores[i] = dot(query, v)
		order[i] = i
	}
	slices.SortStableFunc(order, func(a, b int) int {
		switch {
		case scores[a] > scores[b]:
			return -1
		case scores[a] < scores[b]:
			return 1
		}
		return 0
	})

	ids := make([]int, topN)
	out := make([]float32, topN)
	for i := range ids {
		if i < len(order) {
			ids[i] = order[i]
			out[i] = scores[order[i]]
		} else {
			ids[i] = -1
		}
	}
	return ids, out, nil
}

// Len returns the number of stored vectors.
func (f *FlatIndex) Len() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.vectors)
}

// Dimensions returns the vector dimensionality.
func (f *FlatIndex) Dimensions() int {
	return f.dims
}

// Save writes the vectors to path in the flat index format.
func (f *FlatIndex) Save(path string) error {
	f.mu.RLock()
	defer f.mu.RUnlock()

	if f.closed {
		return fmt.Errorf("vector index is closed")
	}
	return writeMatrixFile(path, flatIndexMagic, f.vectors, f.dims)
}

// Load replaces the stored vectors with those read from path.
func (f *FlatIndex) Load(path string) error {
	rows, dims, err := readMatrixFile(path, flatIndexMagic)
	if err != nil {
		return err
	}
	if dims != f.dims {
		return dimensionMismatch(f.dims, dims)
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if f.closed {
		return fmt.Errorf("vector index is closed")
	}
	f.vectors = rows
	return nil
}

// Close releases the stored vectors.
func (f *FlatIndex) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.closed = true
	f.vectors = nil
	return nil
}

// Verify interface implementation
var _ VectorIndex = (*FlatIndex)(nil)

func dot(a, b []float32) float32 {
	var sum float32
	for i := range a {
		sum += a[i] * b[i]
	}
	return sum
}
