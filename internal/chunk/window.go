package chunk

import (
	"context"
	"fmt"
	"strings"

	amerrors "github.com/Aman-CERP/amanrag/internal/errors"
)

// WindowChunker splits documents into fixed-size word windows.
type WindowChunker struct {
	size    int
	overlap int
}

// NewWindowChunker creates a chunker with the given window size and overlap,
// both in words. Requires size > 0 and 0 <= overlap < size.
func NewWindowChunker(size, overlap int) (*WindowChunker, error) {
	if err := validateWindow(size, overlap); err != nil {
		return nil, err
	}
	return &WindowChunker{size: size, overlap: overlap}, nil
}

// Chunk implements Chunker.
func (c *WindowChunker) Chunk(ctx context.Context, doc *Document) ([]*Chunk, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return Split(doc, c.size, c.overlap)
}

func validateWindow(size, overlap int) error {
	if size <= 0 {
		return amerrors.InvalidInput(fmt.Sprintf("chunk size must be positive, got %d", size))
	}
	if overlap < 0 || overlap >= size {
		return amerrors.InvalidInput(fmt.Sprintf("chunk overlap must be in [0, %d), got %d", size, overlap))
	}
	return nil
}

// Split cuts doc.Text into windows of size words, each starting
// size-overlap words after the previous one. The last window may be
// shorter; every word lands in at least one chunk. Empty text yields no
// chunks.
func Split(doc *Document, size, overlap int) ([]*Chunk, error) {
	if err := validateWindow(size, overlap); err != nil {
		return nil, err
	}

	words := strings.Fields(doc.Text)
	domain := doc.Domain
	if domain == "" {
		domain = DefaultDomain
	}

	var chunks []*Chunk
	for start, seq := 0, 0; start < len(words); seq++ {
		end := min(len(words), start+size)
		chunks = append(chunks, &Chunk{
			ID:        fmt.Sprintf("%s::c%d", doc.ID, seq),
			DocID:     doc.ID,
			Title:     doc.Title,
			Domain:    domain,
			Text:      strings.Join(words[start:end], " "),
			StartWord: start,
			EndWord:   end,
			Source:    doc.Source,
			UpdatedAt: doc.UpdatedAt,
		})
		if end == len(words) {
			break
		}
		start = end - overlap
	}
	return chunks, nil
}
