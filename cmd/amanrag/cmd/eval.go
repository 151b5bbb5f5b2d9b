package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	amerrors "github.com/Aman-CERP/amanrag/internal/errors"
	"github.com/Aman-CERP/amanrag/internal/eval"
	"github.com/Aman-CERP/amanrag/internal/output"
)

func newEvalCmd(a *app) *cobra.Command {
	var (
		casesPath string
		k         int
		format    string
		verbose   bool
	)

	cmd := &cobra.Command{
		Use:   "eval",
		Short: "Evaluate retrieval quality on labelled queries",
		Long: `Run every case of a JSONL eval set through search and report mean
precision@k, MRR and phrase recall@k.

Each line is {"id", "question", "gold_phrase", "gold_sources"}. A hit is
relevant when its source is one of gold_sources; phrase recall counts
cases whose gold_phrase appears in any of the top k texts.`,
		Example: `  amanrag eval --cases data/eval.jsonl
  amanrag eval --cases data/eval.jsonl -k 10 --format json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runEval(cmd.Context(), cmd, a, casesPath, k, format, verbose)
		},
	}

	cmd.Flags().StringVar(&casesPath, "cases", "", "Path to the eval cases JSONL file (required)")
	cmd.Flags().IntVarP(&k, "k", "k", eval.DefaultK, "Cutoff for precision and phrase recall")
	cmd.Flags().StringVarP(&format, "format", "f", "text", "Output format: text, json")
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Show per-case metrics")
	_ = cmd.MarkFlagRequired("cases")

	return cmd
}

func runEval(ctx context.Context, cmd *cobra.Command, a *app, casesPath string, k int, format string, verbose bool) error {
	if format != "text" && format != "json" {
		return amerrors.InvalidInput(fmt.Sprintf("unknown format %q (valid: text, json)", format))
	}

	cases, err := eval.LoadCases(casesPath)
	if err != nil {
		return err
	}

	engine, closeAll, err := a.openLoadedEngine(ctx)
	if err != nil {
		return err
	}
	defer closeAll()

	report, err := eval.Run(ctx, engine, cases, k)
	if err != nil {
		return err
	}

	out := output.New(cmd.OutOrStdout())
	if format == "json" {
		if !verbose {
			report.Cases = nil
		}
		return out.JSON(report)
	}

	out.Successf("Evaluated %d cases", report.NumCases)
	out.Fields(
		output.Field{Key: fmt.Sprintf("Precision@%d", report.K), Value: fmt.Sprintf("%.4f", report.PrecisionAtK)},
		output.Field{Key: "MRR", Value: fmt.Sprintf("%.4f", report.MRR)},
		output.Field{Key: fmt.Sprintf("Phrase recall@%d", report.K), Value: fmt.Sprintf("%.4f", report.PhraseRecallAtK)},
		output.Field{Key: "Duration", Value: report.Duration.Round(time.Millisecond).String()},
	)

	if verbose {
		out.Newline()
		for _, c := range report.Cases {
			mark := "-"
			if c.PhraseHit {
				mark = "+"
			}
			out.Raw(fmt.Sprintf("  %s %-20s p@k=%.3f mrr=%.3f\n", mark, c.ID, c.Precision, c.MRR))
		}
	}
	return nil
}
