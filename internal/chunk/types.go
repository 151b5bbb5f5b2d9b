// Package chunk defines source documents and the retrievable chunks cut
// from them, and splits documents into overlapping word windows.
package chunk

import "context"

// Chunking defaults
const (
	DefaultChunkSize    = 650 // words per window
	DefaultChunkOverlap = 120 // words shared by consecutive windows
	DefaultDomain       = "Unknown"
)

// Document is a source document as supplied for ingestion.
type Document struct {
	ID        string `json:"doc_id"`
	Title     string `json:"title"`
	Domain    string `json:"domain,omitempty"`
	Text      string `json:"text"`
	Source    string `json:"source,omitempty"`
	UpdatedAt string `json:"updated_at,omitempty"`
	Version   string `json:"version,omitempty"`
}

// Chunk is a retrievable unit of text cut from a Document.
// Chunks are immutable once created.
type Chunk struct {
	ID        string `json:"chunk_id"` // "<doc_id>::c<seq>"
	DocID     string `json:"doc_id"`
	Title     string `json:"title"`
	Domain    string `json:"domain"`
	Text      string `json:"text"`       // whitespace-normalized
	StartWord int    `json:"start_word"` // inclusive
	EndWord   int    `json:"end_word"`   // exclusive
	Source    string `json:"source,omitempty"`
	UpdatedAt string `json:"updated_at,omitempty"`
}

// Chunker is the interface for splitting documents into chunks
type Chunker interface {
	// Chunk splits a document into chunks in reading order
	Chunk(ctx context.Context, doc *Document) ([]*Chunk, error)
}
