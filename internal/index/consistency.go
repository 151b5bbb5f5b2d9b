package index

import (
	"fmt"
	"log/slog"
	"strings"

	amerrors "github.com/Aman-CERP/amanrag/internal/errors"
)

// Component names a part of a built index that holds one entry per chunk.
type Component string

const (
	ComponentManifest   Component = "manifest"
	ComponentLexical    Component = "lexical"
	ComponentVectors    Component = "vectors"
	ComponentEmbeddings Component = "embeddings"
)

// Inconsistency is a component whose entry count differs from the chunk count.
type Inconsistency struct {
	Component Component
	Expected  int
	Got       int
}

func (i Inconsistency) String() string {
	return fmt.Sprintf("%s has %d entries, expected %d", i.Component, i.Got, i.Expected)
}

// CheckResult contains the outcome of a consistency check.
type CheckResult struct {
	// Chunks is the number of chunks, the reference count.
	Chunks int
	// Inconsistencies contains all detected count mismatches.
	Inconsistencies []Inconsistency
}

// Consistent reports whether every component matches the chunk count.
func (r *CheckResult) Consistent() bool {
	return len(r.Inconsistencies) == 0
}

// Err returns a corrupt-index error describing the mismatches, or nil.
func (r *CheckResult) Err(dir string) error {
	if r.Consistent() {
		return nil
	}
	parts := make([]string, len(r.Inconsistencies))
	for i, inc := range r.Inconsistencies {
		parts[i] = inc.String()
	}
	return amerrors.CorruptIndex(dir,
		fmt.Sprintf("chunk count mismatch (%d chunks): %s", r.Chunks, strings.Join(parts, "; ")), nil)
}

// checkCounts compares each component count against the chunk count.
// Position is the join key between components, so any difference means
// results would be attributed to the wrong chunk.
func checkCounts(chunks int, counts map[Component]int) *CheckResult {
	result := &CheckResult{Chunks: chunks}
	for _, c := range []Component{ComponentManifest, ComponentLexical, ComponentVectors, ComponentEmbeddings} {
		got, ok := counts[c]
		if !ok || got == chunks {
			continue
		}
		result.Inconsistencies = append(result.Inconsistencies, Inconsistency{
			Component: c,
			Expected:  chunks,
			Got:       got,
		})
	}

	if !result.Consistent() {
		slog.Debug("index counts mismatch",
			slog.Int("chunks", chunks),
			slog.Int("issues", len(result.Inconsistencies)))
	}
	return result
}

// Check verifies that every component of idx holds one entry per chunk.
func (idx *Index) Check() *CheckResult {
	return checkCounts(len(idx.chunks), map[Component]int{
		ComponentManifest:   idx.manifest.ChunkCount,
		ComponentLexical:    idx.lexical.Len(),
		ComponentVectors:    idx.vectors.Len(),
		ComponentEmbeddings: len(idx.embeddings),
	})
}
