package chunk

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	amerrors "github.com/Aman-CERP/amanrag/internal/errors"
)

func wordsDoc(n int) *Document {
	words := make([]string, n)
	for i := range words {
		words[i] = fmt.Sprintf("w%d", i)
	}
	return &Document{ID: "doc", Title: "Doc", Text: strings.Join(words, " ")}
}

// TS01: Windows advance by size-overlap
func TestSplit_Windows(t *testing.T) {
	// Given: a 10-word document
	doc := wordsDoc(10)

	// When: splitting with size 4, overlap 1
	chunks, err := Split(doc, 4, 1)
	require.NoError(t, err)

	// Then: windows are [0,4) [3,7) [6,10)
	require.Len(t, chunks, 3)
	assert.Equal(t, [2]int{0, 4}, [2]int{chunks[0].StartWord, chunks[0].EndWord})
	assert.Equal(t, [2]int{3, 7}, [2]int{chunks[1].StartWord, chunks[1].EndWord})
	assert.Equal(t, [2]int{6, 10}, [2]int{chunks[2].StartWord, chunks[2].EndWord})
	assert.Equal(t, "w3 w4 w5 w6", chunks[1].Text)
	assert.Equal(t, "doc::c0", chunks[0].ID)
	assert.Equal(t, "doc::c2", chunks[2].ID)
}

func TestSplit_LastWindowShorter(t *testing.T) {
	chunks, err := Split(wordsDoc(5), 3, 0)
	require.NoError(t, err)

	require.Len(t, chunks, 2)
	assert.Equal(t, "w3 w4", chunks[1].Text)
	assert.Equal(t, 5, chunks[1].EndWord)
}

func TestSplit_EveryWordCovered(t *testing.T) {
	for _, tc := range []struct{ n, size, overlap int }{
		{1, 650, 120}, {650, 650, 120}, {651, 650, 120}, {2000, 650, 120}, {17, 5, 4},
	} {
		t.Run(fmt.Sprintf("%d/%d/%d", tc.n, tc.size, tc.overlap), func(t *testing.T) {
			chunks, err := Split(wordsDoc(tc.n), tc.size, tc.overlap)
			require.NoError(t, err)

			covered := make([]bool, tc.n)
			for _, c := range chunks {
				assert.LessOrEqual(t, c.EndWord-c.StartWord, tc.size)
				for i := c.StartWord; i < c.EndWord; i++ {
					covered[i] = true
				}
			}
			for i, ok := range covered {
				assert.True(t, ok, "word %d not covered", i)
			}
		})
	}
}

func TestSplit_NormalizesWhitespace(t *testing.T) {
	doc := &Document{ID: "d", Text: "  Refund\tpolicy \n\n applies  "}

	chunks, err := Split(doc, 10, 2)
	require.NoError(t, err)

	require.Len(t, chunks, 1)
	assert.Equal(t, "Refund policy applies", chunks[0].Text)
}

func TestSplit_EmptyText(t *testing.T) {
	chunks, err := Split(&Document{ID: "d", Text: " \n "}, 10, 2)
	require.NoError(t, err)
	assert.Empty(t, chunks)
}

func TestSplit_CopiesMetadataAndDefaultsDomain(t *testing.T) {
	doc := &Document{ID: "d", Title: "T", Text: "a b", Source: "kb/d.md", UpdatedAt: "2024-01-02"}

	chunks, err := Split(doc, 10, 0)
	require.NoError(t, err)

	require.Len(t, chunks, 1)
	assert.Equal(t, DefaultDomain, chunks[0].Domain)
	assert.Equal(t, "T", chunks[0].Title)
	assert.Equal(t, "kb/d.md", chunks[0].Source)
	assert.Equal(t, "2024-01-02", chunks[0].UpdatedAt)
}

func TestSplit_InvalidWindow(t *testing.T) {
	tests := []struct {
		name          string
		size, overlap int
	}{
		{"zero size", 0, 0},
		{"negative overlap", 5, -1},
		{"overlap equals size", 5, 5},
		{"overlap exceeds size", 5, 9},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Split(wordsDoc(3), tt.size, tt.overlap)
			assert.ErrorIs(t, err, amerrors.ErrInvalidInput)

			_, err = NewWindowChunker(tt.size, tt.overlap)
			assert.ErrorIs(t, err, amerrors.ErrInvalidInput)
		})
	}
}

func TestWindowChunker_Chunk(t *testing.T) {
	c, err := NewWindowChunker(DefaultChunkSize, DefaultChunkOverlap)
	require.NoError(t, err)

	chunks, err := c.Chunk(context.Background(), wordsDoc(700))
	require.NoError(t, err)
	assert.Len(t, chunks, 2)
}
