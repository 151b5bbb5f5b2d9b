// Package cmd provides the CLI commands for amanrag.
package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/amanrag/internal/config"
	"github.com/Aman-CERP/amanrag/internal/embed"
	amerrors "github.com/Aman-CERP/amanrag/internal/errors"
	"github.com/Aman-CERP/amanrag/internal/index"
	"github.com/Aman-CERP/amanrag/internal/logging"
	"github.com/Aman-CERP/amanrag/internal/profiling"
	"github.com/Aman-CERP/amanrag/internal/search"
	"github.com/Aman-CERP/amanrag/pkg/version"
)

// app carries the state shared by subcommands of one invocation.
type app struct {
	debug   bool
	dir     string
	profile profiling.Options

	root           string
	cfg            *config.Config
	loggingCleanup func()
	profiler       *profiling.Session
}

// NewRootCmd creates the root command for the amanrag CLI.
func NewRootCmd() *cobra.Command {
	return newRootCmd(&app{})
}

func newRootCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "amanrag",
		Short: "Hybrid lexical + dense retrieval with reranking",
		Long: `amanrag indexes a document collection and answers natural-language
queries with the most relevant passages.

Each query is scored by BM25 and by embedding similarity; the normalized
scores are fused, the best candidates are reranked, and the top k are
returned.

Typical flow:
  amanrag build --docs docs.json
  amanrag search "what is the refund policy"
  amanrag eval --cases eval.jsonl`,
		Version:           version.Version,
		SilenceErrors:     true,
		SilenceUsage:      true,
		PersistentPreRunE: a.setup,
	}

	cmd.SetVersionTemplate("amanrag version {{.Version}}\n")

	cmd.PersistentFlags().BoolVar(&a.debug, "debug", false, "Enable debug logging (also to stderr)")
	cmd.PersistentFlags().StringVar(&a.dir, "dir", "", "Project directory (default: nearest dir with .amanrag.yaml or .git)")

	cmd.PersistentFlags().StringVar(&a.profile.CPUPath, "profile-cpu", "", "Write CPU profile to file")
	cmd.PersistentFlags().StringVar(&a.profile.HeapPath, "profile-mem", "", "Write memory profile to file")
	cmd.PersistentFlags().StringVar(&a.profile.TracePath, "profile-trace", "", "Write execution trace to file")

	cmd.AddCommand(newBuildCmd(a))
	cmd.AddCommand(newSearchCmd(a))
	cmd.AddCommand(newEvalCmd(a))
	cmd.AddCommand(newInfoCmd(a))
	cmd.AddCommand(newDoctorCmd(a))
	cmd.AddCommand(newConfigCmd(a))
	cmd.AddCommand(newLogsCmd(a))
	cmd.AddCommand(newVersionCmd())

	return cmd
}

// Execute runs the root command and prints any error to stderr.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a := &app{}
	defer a.close()

	err := newRootCmd(a).ExecuteContext(ctx)
	if err != nil {
		a.logFailure(err)
		fmt.Fprint(os.Stderr, amerrors.FormatForCLI(err))
	}
	return err
}

// logFailure records a failed command in the log file. It does nothing when
// the command failed before logging was set up.
func (a *app) logFailure(err error) {
	if a.loggingCleanup == nil || err == nil {
		return
	}
	fields := amerrors.FormatForLog(err)
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	attrs := make([]any, 0, len(keys))
	for _, k := range keys {
		attrs = append(attrs, slog.Any(k, fields[k]))
	}
	slog.Error("command_failed", attrs...)
}

// setup resolves the project directory, loads configuration, starts
// logging and any requested profiling.
func (a *app) setup(_ *cobra.Command, _ []string) error {
	if err := a.resolveRoot(); err != nil {
		return err
	}
	if err := a.loadConfig(); err != nil {
		return err
	}
	if a.profile.Enabled() {
		session, err := profiling.Start(a.profile)
		if err != nil {
			return err
		}
		a.profiler = session
	}
	return nil
}

// resolveRoot uses --dir as given, or searches upward from the working dir.
func (a *app) resolveRoot() error {
	if a.dir == "" {
		root, err := config.FindProjectRoot(".")
		if err != nil {
			return err
		}
		a.root = root
		return nil
	}

	root, err := filepath.Abs(a.dir)
	if err != nil {
		return fmt.Errorf("failed to resolve --dir: %w", err)
	}
	if info, err := os.Stat(root); err != nil || !info.IsDir() {
		return amerrors.InvalidInput("project directory does not exist: " + a.dir)
	}
	a.root = root
	return nil
}

func (a *app) loadConfig() error {
	cfg, err := config.Load(a.root)
	if err != nil {
		return err
	}
	a.cfg = cfg

	prev := slog.Default()
	cleanup, err := logging.SetupDefault(cfg.LoggingConfig(a.debug))
	if err != nil {
		return fmt.Errorf("failed to setup logging: %w", err)
	}
	a.loggingCleanup = func() {
		slog.SetDefault(prev)
		cleanup()
	}

	slog.Debug("config_loaded",
		slog.String("project_dir", a.root),
		slog.String("index_dir", cfg.IndexDir(a.root)),
		slog.String("version", version.Version))
	return nil
}

// close stops profiling and logging started by setup.
func (a *app) close() {
	if a.profiler != nil {
		if err := a.profiler.Stop(); err != nil {
			slog.Warn("profile_write_failed", slog.String("error", err.Error()))
		}
		a.profiler = nil
	}
	if a.loggingCleanup != nil {
		a.loggingCleanup()
		a.loggingCleanup = nil
	}
}

// indexDir returns the resolved persisted index directory.
func (a *app) indexDir() string {
	return a.cfg.IndexDir(a.root)
}

// openEngine constructs the configured capabilities and an engine with no
// index installed. The returned func releases everything it opened.
func (a *app) openEngine(ctx context.Context) (*search.Engine, func(), error) {
	return a.openEngineWith(ctx, a.cfg.IndexOptions())
}

// openEngineWith is openEngine with explicit index options.
func (a *app) openEngineWith(ctx context.Context, opts index.Options) (*search.Engine, func(), error) {
	embedder, err := embed.NewEmbedder(ctx, a.cfg.EmbedConfig())
	if err != nil {
		return nil, nil, err
	}

	reranker, err := search.NewReranker(ctx, a.cfg.RerankerConfig())
	if err != nil {
		_ = embedder.Close()
		return nil, nil, err
	}

	engine, err := search.NewEngine(embedder, reranker, a.cfg.SearchConfig(), opts)
	if err != nil {
		_ = reranker.Close()
		_ = embedder.Close()
		return nil, nil, err
	}

	closeAll := func() {
		_ = engine.Close()
		_ = reranker.Close()
		_ = embedder.Close()
	}
	return engine, closeAll, nil
}

// openLoadedEngine opens an engine and loads the persisted index.
func (a *app) openLoadedEngine(ctx context.Context) (*search.Engine, func(), error) {
	engine, closeAll, err := a.openEngine(ctx)
	if err != nil {
		return nil, nil, err
	}

	loaded, err := engine.EnsureLoaded(ctx, a.indexDir())
	if err != nil {
		closeAll()
		return nil, nil, err
	}
	if !loaded {
		closeAll()
		return nil, nil, amerrors.IndexNotReady().WithDetail("index_dir", a.indexDir())
	}
	return engine, closeAll, nil
}
