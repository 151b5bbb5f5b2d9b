package search

import (
	"math"
	"sort"
)

// MinMaxNormalize rescales scores to [0, 1]: the minimum maps to 0 and the
// maximum to 1. When every score is equal (including a single score) all
// outputs are 0. Non-finite inputs are treated as 0 so the result never
// contains NaN.
func MinMaxNormalize(scores []float64) []float64 {
	out := make([]float64, len(scores))
	if len(scores) == 0 {
		return out
	}

	lo, hi := math.Inf(1), math.Inf(-1)
	for _, s := range scores {
		s = finite(s)
		lo = math.Min(lo, s)
		hi = math.Max(hi, s)
	}

	span := hi - lo
	if span <= 0 {
		return out
	}
	for i, s := range scores {
		out[i] = (finite(s) - lo) / span
	}
	return out
}

func finite(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}

// Fuse combines two normalized score vectors of equal length:
// hybrid[i] = w*lexical[i] + (1-w)*dense[i].
func Fuse(lexical, dense []float64, w float64) []float64 {
	out := make([]float64, len(lexical))
	for i := range lexical {
		var d float64
		if i < len(dense) {
			d = dense[i]
		}
		out[i] = w*lexical[i] + (1-w)*d
	}
	return out
}

// DenseScores spreads a top-N vector search result over the whole corpus.
// Positions returned by the search get their similarity, every other
// position gets 0. Sentinel and out-of-range ids are ignored.
func DenseScores(n int, ids []int, scores []float32) []float64 {
	out := make([]float64, n)
	for i, id := range ids {
		if id < 0 || id >= n || i >= len(scores) {
			continue
		}
		out[id] = float64(scores[i])
	}
	return out
}

// PoolSize returns min(n, max(lexicalK, denseK, k)).
func PoolSize(n, lexicalK, denseK, k int) int {
	return min(n, max(lexicalK, denseK, k))
}

// SelectPool returns the positions of the size highest hybrid scores, in
// descending score order. Ties keep the lower position first.
func SelectPool(hybrid []float64, size int) []int {
	order := make([]int, len(hybrid))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return hybrid[order[a]] > hybrid[order[b]]
	})
	if size < 0 {
		size = 0
	}
	if size < len(order) {
		order = order[:size]
	}
	return order
}
