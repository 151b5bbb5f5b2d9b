package cmd

import (
	"context"
	"fmt"
	"regexp"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/amanrag/internal/config"
	"github.com/Aman-CERP/amanrag/internal/logging"
)

type logsOptions struct {
	follow  bool
	lines   int
	level   string
	filter  string
	noColor bool
	logFile string
}

func newLogsCmd(a *app) *cobra.Command {
	var opts logsOptions

	cmd := &cobra.Command{
		Use:   "logs",
		Short: "View amanrag logs",
		Long: `Show the last lines of the amanrag log file, or follow it like 'tail -f'.

The log file is logging.file from the configuration, or
~/.amanrag/logs/amanrag.log when unset.`,
		Example: `  amanrag logs                    # last 50 entries
  amanrag logs -n 200 --level warn
  amanrag logs -f --filter search # follow search events`,
		Args: cobra.NoArgs,
		// Viewing logs must not start logging or require a valid config.
		PersistentPreRunE: func(*cobra.Command, []string) error {
			if opts.logFile != "" || a.resolveRoot() != nil {
				return nil
			}
			if cfg, err := config.Load(a.root); err == nil {
				opts.logFile = cfg.Logging.File
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runLogs(cmd.Context(), cmd, opts)
		},
	}

	cmd.Flags().BoolVarP(&opts.follow, "follow", "f", false, "Follow log output (like tail -f)")
	cmd.Flags().IntVarP(&opts.lines, "lines", "n", 50, "Number of lines to show")
	cmd.Flags().StringVar(&opts.level, "level", "", "Filter by minimum log level (debug|info|warn|error)")
	cmd.Flags().StringVar(&opts.filter, "filter", "", "Filter by keyword/pattern (regex)")
	cmd.Flags().BoolVar(&opts.noColor, "no-color", false, "Disable colored output")
	cmd.Flags().StringVar(&opts.logFile, "file", "", "Path to log file")

	return cmd
}

func runLogs(ctx context.Context, cmd *cobra.Command, opts logsOptions) error {
	if opts.level != "" && !logging.IsValidLevel(opts.level) {
		return fmt.Errorf("invalid level %q (valid: debug, info, warn, error)", opts.level)
	}

	path, err := logging.FindLogFile(opts.logFile)
	if err != nil {
		return err
	}

	var pattern *regexp.Regexp
	if opts.filter != "" {
		pattern, err = regexp.Compile(opts.filter)
		if err != nil {
			return fmt.Errorf("invalid filter pattern: %w", err)
		}
	}

	out := cmd.OutOrStdout()
	viewer := logging.NewViewer(logging.ViewerConfig{
		Level:   opts.level,
		Pattern: pattern,
		NoColor: opts.noColor,
	}, out)

	errOut := cmd.ErrOrStderr()
	_, _ = fmt.Fprintf(errOut, "Log file: %s\n", path)

	if !opts.follow {
		entries, err := viewer.Tail(path, opts.lines)
		if err != nil {
			return err
		}
		viewer.Print(entries)
		return nil
	}

	_, _ = fmt.Fprintln(errOut, "Following... (Ctrl+C to stop)")
	return followLogs(ctx, viewer, path, func(line string) {
		_, _ = fmt.Fprintln(out, line)
	})
}

// followLogs streams new entries through emit until ctx is done.
func followLogs(ctx context.Context, viewer *logging.Viewer, path string, emit func(string)) error {
	entries := make(chan logging.LogEntry, 100)
	errCh := make(chan error, 1)

	go func() {
		errCh <- viewer.Follow(ctx, path, entries)
	}()

	for {
		select {
		case entry := <-entries:
			emit(viewer.FormatEntry(entry))
		case err := <-errCh:
			return err
		}
	}
}
