// Package ui renders index build progress: a bubbletea dashboard for
// interactive terminals and line-oriented text for pipes and CI.
package ui

import (
	"context"
	"io"
	"os"
	"time"

	"github.com/mattn/go-isatty"
)

// Stage is a build phase as shown to the user.
type Stage int

const (
	// StageChunking splits documents into windows.
	StageChunking Stage = iota
	// StageLexical fits the lexical model.
	StageLexical
	// StageEmbedding embeds every chunk.
	StageEmbedding
	// StageVectors builds the vector index.
	StageVectors
	// StageComplete indicates the build finished.
	StageComplete
)

// pipeline lists the stages shown in the stage bar, in order.
var pipeline = []Stage{StageChunking, StageLexical, StageEmbedding, StageVectors}

// String returns the human-readable stage name.
func (s Stage) String() string {
	switch s {
	case StageChunking:
		return "Chunk"
	case StageLexical:
		return "Lexical"
	case StageEmbedding:
		return "Embed"
	case StageVectors:
		return "Vectors"
	case StageComplete:
		return "Complete"
	default:
		return "Unknown"
	}
}

// Icon returns the short tag used by plain output.
func (s Stage) Icon() string {
	switch s {
	case StageChunking:
		return "CHUNK"
	case StageLexical:
		return "LEX"
	case StageEmbedding:
		return "EMBED"
	case StageVectors:
		return "VEC"
	case StageComplete:
		return "DONE"
	default:
		return "???"
	}
}

// unit names what a stage counts.
func (s Stage) unit() string {
	if s == StageChunking {
		return "documents"
	}
	return "chunks"
}

// ProgressEvent is a progress update within a stage.
type ProgressEvent struct {
	Stage   Stage
	Current int
	Total   int
	Message string
}

// ErrorEvent is a failure or warning raised during the build.
type ErrorEvent struct {
	Err    error
	IsWarn bool
}

// StageTimings holds the wall time spent in each stage.
type StageTimings map[Stage]time.Duration

// CompletionStats summarizes a finished build.
type CompletionStats struct {
	Documents  int
	Chunks     int
	Duration   time.Duration
	Model      string
	Dimensions int
	IndexDir   string
}

// Renderer displays build progress.
type Renderer interface {
	// Start begins rendering.
	Start(ctx context.Context) error

	// UpdateProgress records a progress update.
	UpdateProgress(event ProgressEvent)

	// AddError records an error or warning.
	AddError(event ErrorEvent)

	// Complete shows the final summary.
	Complete(stats CompletionStats)

	// Stop stops rendering and restores the terminal.
	Stop() error
}

// Config configures a renderer.
type Config struct {
	Output     io.Writer
	ForcePlain bool
	NoColor    bool
	Title      string

	// OnCancel is called when the user quits the dashboard.
	OnCancel func()
}

// ConfigOption modifies a Config.
type ConfigOption func(*Config)

// WithForcePlain forces plain text output.
func WithForcePlain(force bool) ConfigOption {
	return func(c *Config) { c.ForcePlain = force }
}

// WithNoColor disables color output.
func WithNoColor(noColor bool) ConfigOption {
	return func(c *Config) { c.NoColor = noColor }
}

// WithTitle sets the text shown after the dashboard name, usually the
// index directory.
func WithTitle(title string) ConfigOption {
	return func(c *Config) { c.Title = title }
}

// WithCancel sets the function called when the user quits the dashboard.
func WithCancel(cancel func()) ConfigOption {
	return func(c *Config) { c.OnCancel = cancel }
}

// NewConfig creates a Config writing to output.
func NewConfig(output io.Writer, opts ...ConfigOption) Config {
	cfg := Config{Output: output}
	for _, opt := range opts {
		opt(&cfg)
	}
	return cfg
}

// NewRenderer returns the dashboard for interactive terminals and plain
// text for pipes, CI, or when plain output is forced.
func NewRenderer(cfg Config) Renderer {
	if cfg.ForcePlain || !IsTTY(cfg.Output) || DetectCI() {
		return NewPlainRenderer(cfg)
	}

	tui, err := NewTUIRenderer(cfg)
	if err != nil {
		return NewPlainRenderer(cfg)
	}
	return tui
}

// IsTTY reports whether w is a terminal.
func IsTTY(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok || f == nil {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// DetectNoColor reports whether NO_COLOR is set.
func DetectNoColor() bool {
	_, exists := os.LookupEnv("NO_COLOR")
	return exists
}

// DetectCI reports whether the process runs under a CI system.
func DetectCI() bool {
	for _, v := range []string{"CI", "GITHUB_ACTIONS", "GITLAB_CI", "JENKINS_URL", "TRAVIS"} {
		if _, exists := os.LookupEnv(v); exists {
			return true
		}
	}
	return false
}
