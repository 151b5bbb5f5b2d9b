package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/amanrag/internal/output"
	"github.com/Aman-CERP/amanrag/internal/store"
)

// indexInfo is the JSON shape of info output.
type indexInfo struct {
	Dir        string         `json:"dir"`
	Manifest   store.Manifest `json:"manifest"`
	Chunks     int            `json:"chunks"`
	Consistent bool           `json:"consistent"`
	Problems   []string       `json:"problems,omitempty"`
}

func newInfoCmd(a *app) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "info",
		Short: "Show index manifest and consistency",
		Long: `Load the persisted index and display how it was built: embedding and
rerank models, dimensions, chunking, backends and chunk count, followed by
a consistency check that every component holds one entry per chunk.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runInfo(cmd.Context(), cmd, a, jsonOutput)
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output in JSON format")

	return cmd
}

func runInfo(ctx context.Context, cmd *cobra.Command, a *app, jsonOutput bool) error {
	engine, closeAll, err := a.openLoadedEngine(ctx)
	if err != nil {
		return err
	}
	defer closeAll()

	idx := engine.Current()
	check := idx.Check()
	info := indexInfo{
		Dir:        a.indexDir(),
		Manifest:   idx.Manifest(),
		Chunks:     idx.Len(),
		Consistent: check.Consistent(),
	}
	for _, inc := range check.Inconsistencies {
		info.Problems = append(info.Problems, inc.String())
	}

	out := output.New(cmd.OutOrStdout())
	if jsonOutput {
		return out.JSON(info)
	}

	m := info.Manifest
	out.Status("📦", "Index "+info.Dir)
	out.Fields(
		output.Field{Key: "Index ID", Value: m.IndexID},
		output.Field{Key: "Created", Value: m.CreatedAt.Format("2006-01-02 15:04:05 MST")},
		output.Field{Key: "Format", Value: fmt.Sprintf("v%d", m.Version)},
		output.Field{Key: "Chunks", Value: info.Chunks},
		output.Field{Key: "Chunking", Value: fmt.Sprintf("%d words, %d overlap", m.ChunkSize, m.ChunkOverlap)},
		output.Field{Key: "Embedder", Value: fmt.Sprintf("%s (%d dims)", m.EmbedModel, m.Dimensions)},
		output.Field{Key: "Reranker", Value: m.RerankModel},
		output.Field{Key: "Fusion weight", Value: m.FusionWeight},
		output.Field{Key: "Backends", Value: m.LexicalBackend + " + " + m.VectorBackend},
	)
	out.Newline()
	if info.Consistent {
		out.Success("All components consistent")
		return nil
	}
	for _, p := range info.Problems {
		out.Warning(p)
	}
	return check.Err(info.Dir)
}
