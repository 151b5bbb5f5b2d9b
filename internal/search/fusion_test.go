package search

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// =============================================================================
// Min-max normalization and linear fusion
// =============================================================================

func TestMinMaxNormalize(t *testing.T) {
	tests := []struct {
		name   string
		scores []float64
		want   []float64
	}{
		{name: "empty", scores: []float64{}, want: []float64{}},
		{name: "single value", scores: []float64{3.2}, want: []float64{0}},
		{name: "all equal", scores: []float64{2, 2, 2}, want: []float64{0, 0, 0}},
		{name: "all zero", scores: []float64{0, 0}, want: []float64{0, 0}},
		{name: "min to 0 max to 1", scores: []float64{1, 3, 2}, want: []float64{0, 1, 0.5}},
		{name: "negative values", scores: []float64{-2, 0, 2}, want: []float64{0, 0.5, 1}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := MinMaxNormalize(tt.scores)
			require.Len(t, got, len(tt.want))
			for i := range tt.want {
				assert.InDelta(t, tt.want[i], got[i], 1e-12)
			}
		})
	}
}

func TestMinMaxNormalize_NeverNaN(t *testing.T) {
	// Given: scores containing non-finite values
	scores := []float64{math.NaN(), 1, math.Inf(1), 3, math.Inf(-1)}

	// When: normalizing
	got := MinMaxNormalize(scores)

	// Then: every value is finite and within [0, 1]
	for i, v := range got {
		assert.False(t, math.IsNaN(v), "index %d is NaN", i)
		assert.GreaterOrEqual(t, v, 0.0)
		assert.LessOrEqual(t, v, 1.0)
	}
	assert.InDelta(t, 1.0, got[3], 1e-12)
}

func TestMinMaxNormalize_DoesNotModifyInput(t *testing.T) {
	scores := []float64{5, 10}
	_ = MinMaxNormalize(scores)
	assert.Equal(t, []float64{5, 10}, scores)
}

func TestFuse_Linear(t *testing.T) {
	// Given: normalized channels
	lex := []float64{1, 0, 0.5}
	dense := []float64{0, 1, 0.5}

	// When: fusing at the endpoints and in between
	allLex := Fuse(lex, dense, 1.0)
	allDense := Fuse(lex, dense, 0.0)
	mixed := Fuse(lex, dense, 0.25)

	// Then: w=1 reproduces lexical, w=0 reproduces dense, 0.25 is linear
	assert.Equal(t, lex, allLex)
	assert.Equal(t, dense, allDense)
	assert.InDelta(t, 0.25, mixed[0], 1e-12)
	assert.InDelta(t, 0.75, mixed[1], 1e-12)
	assert.InDelta(t, 0.5, mixed[2], 1e-12)
}

func TestFuse_WeightMonotone(t *testing.T) {
	// Given: a chunk whose lexical score exceeds its dense score
	lex := []float64{0.9}
	dense := []float64{0.2}

	// When: increasing the lexical weight
	prev := math.Inf(-1)
	for _, w := range []float64{0, 0.1, 0.35, 0.5, 0.9, 1} {
		got := Fuse(lex, dense, w)[0]

		// Then: the hybrid score never decreases
		assert.GreaterOrEqual(t, got, prev, "w=%v", w)
		prev = got
	}
}

func TestDenseScores_ZeroFillsAndIgnoresSentinels(t *testing.T) {
	// Given: a top-3 result with one sentinel over a 5-chunk corpus
	ids := []int{3, 0, -1}
	sims := []float32{0.8, 0.4, 0}

	// When: spreading over the corpus
	got := DenseScores(5, ids, sims)

	// Then: hits get their similarity, the rest are zero
	require.Len(t, got, 5)
	assert.InDelta(t, 0.4, got[0], 1e-6)
	assert.InDelta(t, 0.8, got[3], 1e-6)
	assert.Zero(t, got[1])
	assert.Zero(t, got[2])
	assert.Zero(t, got[4])
}

func TestDenseScores_IgnoresOutOfRange(t *testing.T) {
	got := DenseScores(2, []int{5, 1}, []float32{0.9, 0.3})
	assert.Equal(t, []float64{0, float64(float32(0.3))}, got)
}

func TestPoolSize(t *testing.T) {
	tests := []struct {
		name                   string
		n, lexicalK, denseK, k int
		want                   int
	}{
		{name: "lexical_k dominates", n: 100, lexicalK: 40, denseK: 25, k: 8, want: 40},
		{name: "dense_k dominates", n: 100, lexicalK: 10, denseK: 25, k: 8, want: 25},
		{name: "k dominates", n: 100, lexicalK: 10, denseK: 5, k: 30, want: 30},
		{name: "capped by corpus", n: 12, lexicalK: 40, denseK: 25, k: 8, want: 12},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, PoolSize(tt.n, tt.lexicalK, tt.denseK, tt.k))
		})
	}
}

func TestSelectPool_OrderAndTies(t *testing.T) {
	// Given: hybrid scores with ties
	hybrid := []float64{0.5, 0.9, 0.5, 0.1, 0.9}

	// When: selecting a pool of 4
	got := SelectPool(hybrid, 4)

	// Then: descending by score, ties keep lower position first
	assert.Equal(t, []int{1, 4, 0, 2}, got)
}

func TestSelectPool_SizeLargerThanCorpus(t *testing.T) {
	got := SelectPool([]float64{0.2, 0.3}, 10)
	assert.Equal(t, []int{1, 0}, got)
}
