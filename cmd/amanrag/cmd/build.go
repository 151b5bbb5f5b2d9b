package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/amanrag/internal/chunk"
	"github.com/Aman-CERP/amanrag/internal/index"
	"github.com/Aman-CERP/amanrag/internal/output"
	"github.com/Aman-CERP/amanrag/internal/ui"
)

// buildOptions holds the build command flags.
type buildOptions struct {
	docsPath string
	noTUI    bool
	quiet    bool
}

func newBuildCmd(a *app) *cobra.Command {
	var opts buildOptions

	cmd := &cobra.Command{
		Use:   "build",
		Short: "Build and persist the search index",
		Long: `Build the search index from a JSON array of documents and persist it
to the configured index directory (index.dir, default data/index).

Each document needs a doc_id and text; title, domain, source and
updated_at are optional. An existing index is replaced only after the
new one has been written completely.

Progress is drawn as a dashboard on interactive terminals and as plain
lines otherwise, both on stderr.`,
		Example: `  amanrag build --docs data/docs.json
  amanrag build --docs data/docs.json --no-tui
  AMANRAG_INDEX_VECTOR_BACKEND=hnsw amanrag build --docs data/docs.json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runBuild(cmd.Context(), cmd, a, opts)
		},
	}

	cmd.Flags().StringVar(&opts.docsPath, "docs", "", "Path to the documents JSON file (required)")
	cmd.Flags().BoolVar(&opts.noTUI, "no-tui", false, "Print plain progress lines instead of the dashboard")
	cmd.Flags().BoolVarP(&opts.quiet, "quiet", "q", false, "Do not show progress")
	_ = cmd.MarkFlagRequired("docs")

	return cmd
}

func runBuild(ctx context.Context, cmd *cobra.Command, a *app, opts buildOptions) error {
	start := time.Now()
	out := output.New(cmd.OutOrStdout())

	docs, err := chunk.LoadDocuments(opts.docsPath)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	dir := a.indexDir()
	indexOpts := a.cfg.IndexOptions()

	var renderer ui.Renderer
	if !opts.quiet {
		renderer = ui.NewRenderer(ui.NewConfig(cmd.ErrOrStderr(),
			ui.WithForcePlain(opts.noTUI),
			ui.WithNoColor(ui.DetectNoColor()),
			ui.WithTitle(dir),
			ui.WithCancel(cancel),
		))
		if err := renderer.Start(ctx); err != nil {
			return err
		}
		defer func() { _ = renderer.Stop() }()
		indexOpts.Progress = progressTo(renderer)
	}

	engine, closeAll, err := a.openEngineWith(ctx, indexOpts)
	if err != nil {
		return err
	}
	defer closeAll()

	idx, err := engine.BuildAndSave(ctx, docs, dir)
	if err != nil {
		if renderer != nil {
			renderer.AddError(ui.ErrorEvent{Err: err})
		}
		return err
	}

	m := idx.Manifest()
	elapsed := time.Since(start)
	if renderer != nil {
		renderer.Complete(ui.CompletionStats{
			Documents:  len(docs),
			Chunks:     idx.Len(),
			Duration:   elapsed,
			Model:      m.EmbedModel,
			Dimensions: m.Dimensions,
			IndexDir:   dir,
		})
		_ = renderer.Stop()
	}

	slog.Info("build_command_complete",
		slog.String("docs", opts.docsPath),
		slog.String("index_dir", dir),
		slog.Duration("duration", elapsed))

	out.Successf("Indexed %d documents into %d chunks", len(docs), idx.Len())
	out.Fields(
		output.Field{Key: "Index", Value: dir},
		output.Field{Key: "Index ID", Value: m.IndexID},
		output.Field{Key: "Embedder", Value: fmt.Sprintf("%s (%d dims)", m.EmbedModel, m.Dimensions)},
		output.Field{Key: "Reranker", Value: m.RerankModel},
		output.Field{Key: "Backends", Value: m.LexicalBackend + " + " + m.VectorBackend},
		output.Field{Key: "Duration", Value: elapsed.Round(time.Millisecond).String()},
	)
	return nil
}

// progressTo forwards index build progress to a renderer.
func progressTo(r ui.Renderer) index.ProgressFunc {
	stages := map[index.Stage]ui.Stage{
		index.StageChunking:  ui.StageChunking,
		index.StageLexical:   ui.StageLexical,
		index.StageEmbedding: ui.StageEmbedding,
		index.StageVectors:   ui.StageVectors,
	}
	return func(p index.Progress) {
		r.UpdateProgress(ui.ProgressEvent{Stage: stages[p.Stage], Current: p.Done, Total: p.Total})
	}
}
