package embed

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TS01: Deterministic unit vectors
func TestStaticEmbedder_Deterministic(t *testing.T) {
	// Given: a static embedder
	e := NewStaticEmbedder(0)
	ctx := context.Background()

	// When: embedding the same text twice
	a, err := e.Embed(ctx, "Refunds are processed within 14 days")
	require.NoError(t, err)
	b, err := e.Embed(ctx, "Refunds are processed within 14 days")
	require.NoError(t, err)

	// Then: identical unit-length vectors of default size
	assert.Equal(t, a, b)
	assert.Len(t, a, StaticDimensions)
	assert.InDelta(t, 1.0, vectorMagnitude(a), 1e-5)
}

// TS02: Related texts are closer than unrelated ones
func TestStaticEmbedder_SimilarityOrdering(t *testing.T) {
	e := NewStaticEmbedder(256)
	ctx := context.Background()

	query, _ := e.Embed(ctx, "refund policy")
	related, _ := e.Embed(ctx, "Our refund policy allows refunds for 30 days")
	unrelated, _ := e.Embed(ctx, "Shipping carriers deliver parcels on weekdays")

	assert.Greater(t, cosineSimilarity(query, related), cosineSimilarity(query, unrelated))
}

func TestStaticEmbedder_BlankInputIsZeroVector(t *testing.T) {
	e := NewStaticEmbedder(32)

	v, err := e.Embed(context.Background(), "  \n ")
	require.NoError(t, err)
	assert.Equal(t, make([]float32, 32), v)
}

func TestStaticEmbedder_EmbedBatchPreservesOrder(t *testing.T) {
	e := NewStaticEmbedder(64)
	ctx := context.Background()
	texts := []string{"alpha beta", "gamma delta", "alpha beta"}

	batch, err := e.EmbedBatch(ctx, texts)
	require.NoError(t, err)
	require.Len(t, batch, 3)

	for i, text := range texts {
		single, err := e.Embed(ctx, text)
		require.NoError(t, err)
		assert.Equal(t, single, batch[i])
	}
}

func TestStaticEmbedder_ModelNameAndClose(t *testing.T) {
	e := NewStaticEmbedder(128)
	assert.Equal(t, "static-128", e.ModelName())
	assert.Equal(t, 128, e.Dimensions())

	require.NoError(t, e.Close())
	_, err := e.Embed(context.Background(), "x")
	assert.Error(t, err)
}

func TestExtractNgrams(t *testing.T) {
	assert.Equal(t, []string{"ref", "efu", "fun", "und"}, extractNgrams("refund", 3))
	assert.Equal(t, []string{"übe", "ber"}, extractNgrams("über", 3))
	assert.Equal(t, []string{}, extractNgrams("ab", 3))
}
