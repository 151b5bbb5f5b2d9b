package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	amerrors "github.com/Aman-CERP/amanrag/internal/errors"
	"github.com/Aman-CERP/amanrag/internal/output"
	"github.com/Aman-CERP/amanrag/internal/search"
)

// searchOptions holds CLI flags for search.
type searchOptions struct {
	k       int
	format  string // "text", "json"
	signals bool   // show per-hit fusion signals
}

// searchResponse is the JSON shape of search output.
type searchResponse struct {
	Query   string       `json:"query"`
	K       int          `json:"k"`
	Results []search.Hit `json:"results"`
}

const snippetLength = 240

func newSearchCmd(a *app) *cobra.Command {
	var opts searchOptions

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search the index",
		Long: `Search the persisted index with hybrid retrieval.

Lexical (BM25) and dense (embedding) scores are min-max normalized and
fused with search.fusion_weight; the best candidates are reranked and the
top k returned.`,
		Example: `  amanrag search "refund policy"
  amanrag search "how do I reset my password" -k 3
  amanrag search "shipping times" --format json`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			query := strings.Join(args, " ")
			return runSearch(cmd.Context(), cmd, a, query, opts)
		},
	}

	cmd.Flags().IntVarP(&opts.k, "k", "k", 0, "Number of results (default: search.default_k)")
	cmd.Flags().StringVarP(&opts.format, "format", "f", "text", "Output format: text, json")
	cmd.Flags().BoolVar(&opts.signals, "signals", false, "Show lexical, dense and hybrid scores per hit")

	return cmd
}

func runSearch(ctx context.Context, cmd *cobra.Command, a *app, query string, opts searchOptions) error {
	if opts.format != "text" && opts.format != "json" {
		return amerrors.InvalidInput(fmt.Sprintf("unknown format %q (valid: text, json)", opts.format))
	}
	k := opts.k
	if !cmd.Flags().Changed("k") {
		k = a.cfg.Search.DefaultK
	}

	engine, closeAll, err := a.openLoadedEngine(ctx)
	if err != nil {
		return err
	}
	defer closeAll()

	hits, err := engine.Search(ctx, query, k)
	if err != nil {
		return err
	}
	slog.Info("search_command_complete", slog.String("query", query), slog.Int("results", len(hits)))

	out := output.New(cmd.OutOrStdout())
	if opts.format == "json" {
		return out.JSON(searchResponse{Query: query, K: k, Results: hits})
	}
	printHits(out, query, hits, opts.signals)
	return nil
}

func printHits(out *output.Writer, query string, hits []search.Hit, signals bool) {
	if len(hits) == 0 {
		out.Warningf("No results for %q", query)
		return
	}

	for i, h := range hits {
		out.Raw(fmt.Sprintf("%d. %s  [%.4f]\n", i+1, h.Title, h.Score))
		out.Indent(fmt.Sprintf("%s | %s | words %d-%d", h.ChunkID, h.Domain, h.StartWord, h.EndWord), 3)
		if h.Source != "" {
			out.Indent("source: "+h.Source, 3)
		}
		out.Indent(output.Truncate(h.Text, snippetLength), 3)
		if signals {
			s := h.Signals
			out.Indent(fmt.Sprintf("lexical=%.3f dense=%.3f hybrid=%.3f weight=%.2f pool=%d",
				s.LexicalScore, s.DenseScore, s.HybridScore, s.FusionWeight, s.CandidatePool), 3)
		}
		out.Newline()
	}
}
