package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/amanrag/internal/config"
	"github.com/Aman-CERP/amanrag/internal/embed"
	"github.com/Aman-CERP/amanrag/internal/index"
	"github.com/Aman-CERP/amanrag/internal/output"
	"github.com/Aman-CERP/amanrag/internal/preflight"
	"github.com/Aman-CERP/amanrag/internal/search"
)

// doctorReport is the JSON shape of doctor output.
type doctorReport struct {
	Status   string                  `json:"status"`
	Checks   []preflight.CheckResult `json:"checks"`
	Errors   []string                `json:"errors,omitempty"`
	Warnings []string                `json:"warnings,omitempty"`
}

func newDoctorCmd(a *app) *cobra.Command {
	var (
		verbose    bool
		jsonOutput bool
		configErr  error
	)

	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Check the environment, capabilities and persisted index",
		Long: `Run diagnostics before building or searching.

Checks:
  - Configuration loads and validates
  - Disk space (100 MB minimum) and write access for the index directory
  - Open file limit (1024 recommended)
  - The configured embedder and reranker can be reached
  - The persisted index loads and every component matches the chunk count

A missing index is a warning. Any other failed check makes the command
exit non-zero.`,
		Example: `  amanrag doctor
  amanrag doctor --verbose
  amanrag doctor --json`,
		Args: cobra.NoArgs,
		// An invalid configuration is reported as a failed check.
		PersistentPreRunE: func(*cobra.Command, []string) error {
			if err := a.resolveRoot(); err != nil {
				return err
			}
			if configErr = a.loadConfig(); configErr != nil {
				a.cfg = config.NewConfig()
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runDoctor(cmd.Context(), cmd, a, configErr, verbose, jsonOutput)
		},
	}

	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Show details for each check")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output in JSON format")

	return cmd
}

func runDoctor(ctx context.Context, cmd *cobra.Command, a *app, configErr error, verbose, jsonOutput bool) error {
	dir := a.indexDir()
	caps := &capabilityChecks{cfg: a.cfg, indexDir: dir}
	defer caps.close()

	checker := preflight.New(
		preflight.WithVerbose(verbose),
		preflight.WithOutput(cmd.OutOrStdout()),
	)
	checker.Add(
		configCheck(a.root, configErr),
		preflight.DiskSpace(dir),
		preflight.WritePermissions(dir),
		preflight.FileDescriptors(),
		caps.embedder,
		caps.reranker,
		caps.index,
	)
	results := checker.Run(ctx)

	if jsonOutput {
		errs, warnings := preflight.Problems(results)
		if err := output.New(cmd.OutOrStdout()).JSON(doctorReport{
			Status:   preflight.SummaryStatus(results),
			Checks:   results,
			Errors:   errs,
			Warnings: warnings,
		}); err != nil {
			return err
		}
	} else {
		checker.PrintResults(results)
	}

	if preflight.HasCriticalFailures(results) {
		errs, _ := preflight.Problems(results)
		return fmt.Errorf("system check failed: %d critical problem(s)", len(errs))
	}
	return nil
}

func configCheck(root string, loadErr error) preflight.Check {
	return func(context.Context) preflight.CheckResult {
		result := preflight.CheckResult{Name: "config", Required: true, Details: config.ProjectConfigPath(root)}
		if loadErr != nil {
			result.Status = preflight.StatusFail
			result.Message = loadErr.Error()
			return result
		}
		result.Status = preflight.StatusPass
		result.Message = "OK"
		return result
	}
}

// capabilityChecks shares the embedder between the embedder and index
// checks.
type capabilityChecks struct {
	cfg      *config.Config
	indexDir string
	emb      embed.Embedder
}

func (c *capabilityChecks) embedder(ctx context.Context) preflight.CheckResult {
	result := preflight.CheckResult{Name: "embedder", Required: true, Details: c.cfg.Embeddings.Provider}

	emb, err := embed.NewEmbedder(ctx, c.cfg.EmbedConfig())
	if err != nil {
		result.Status = preflight.StatusFail
		result.Message = err.Error()
		return result
	}
	c.emb = emb

	result.Status = preflight.StatusPass
	result.Message = fmt.Sprintf("%s (%d dims)", emb.ModelName(), emb.Dimensions())
	return result
}

func (c *capabilityChecks) reranker(ctx context.Context) preflight.CheckResult {
	result := preflight.CheckResult{Name: "reranker", Required: true, Details: c.cfg.Rerank.Provider}

	r, err := search.NewReranker(ctx, c.cfg.RerankerConfig())
	if err != nil {
		result.Status = preflight.StatusFail
		result.Message = err.Error()
		return result
	}
	defer func() { _ = r.Close() }()

	result.Status = preflight.StatusPass
	result.Message = r.ModelName()
	return result
}

func (c *capabilityChecks) index(ctx context.Context) preflight.CheckResult {
	result := preflight.CheckResult{Name: "index", Details: c.indexDir}

	if !index.Exists(c.indexDir) {
		result.Status = preflight.StatusWarn
		result.Message = "not built (run amanrag build)"
		return result
	}
	result.Required = true
	if c.emb == nil {
		result.Status = preflight.StatusWarn
		result.Message = "not loaded: embedder unavailable"
		return result
	}

	idx, err := index.Load(ctx, c.indexDir, c.emb, c.cfg.IndexOptions())
	if err != nil {
		result.Status = preflight.StatusFail
		result.Message = err.Error()
		return result
	}
	defer func() { _ = idx.Close() }()

	if err := idx.Check().Err(c.indexDir); err != nil {
		result.Status = preflight.StatusFail
		result.Message = err.Error()
		return result
	}
	m := idx.Manifest()
	result.Status = preflight.StatusPass
	result.Message = fmt.Sprintf("%d chunks, built %s", idx.Len(), m.CreatedAt.Format("2006-01-02 15:04"))
	return result
}

func (c *capabilityChecks) close() {
	if c.emb != nil {
		_ = c.emb.Close()
	}
}
