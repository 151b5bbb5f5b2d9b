package ui

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"
)

// PlainRenderer writes one line per progress update. It prints a stage
// line on entry, on completion, and at most every plainInterval between.
type PlainRenderer struct {
	mu       sync.Mutex
	out      io.Writer
	tracker  *ProgressTracker
	interval time.Duration
	last     time.Time
}

// plainInterval throttles intermediate progress lines.
const plainInterval = time.Second

// NewPlainRenderer creates a plain text renderer.
func NewPlainRenderer(cfg Config) *PlainRenderer {
	return &PlainRenderer{
		out:      cfg.Output,
		tracker:  NewProgressTracker(),
		interval: plainInterval,
	}
}

// Start implements Renderer.
func (r *PlainRenderer) Start(ctx context.Context) error {
	return nil
}

// UpdateProgress implements Renderer.
func (r *PlainRenderer) UpdateProgress(event ProgressEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()

	entered := r.tracker.Stats().Stage != event.Stage || r.last.IsZero()
	r.tracker.Observe(event)

	done := event.Total > 0 && event.Current >= event.Total
	now := time.Now()
	if !entered && !done && now.Sub(r.last) < r.interval {
		return
	}
	r.last = now

	switch {
	case event.Total > 0:
		line := fmt.Sprintf("[%s] %d/%d %s", event.Stage.Icon(), event.Current, event.Total, event.Stage.unit())
		if event.Message != "" {
			line += " - " + event.Message
		}
		_, _ = fmt.Fprintln(r.out, line)
	case event.Message != "":
		_, _ = fmt.Fprintf(r.out, "[%s] %s\n", event.Stage.Icon(), event.Message)
	}
}

// AddError implements Renderer.
func (r *PlainRenderer) AddError(event ErrorEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.tracker.AddError(event)

	prefix := "ERROR"
	if event.IsWarn {
		prefix = "WARN"
	}
	_, _ = fmt.Fprintf(r.out, "%s: %v\n", prefix, event.Err)
}

// Complete implements Renderer.
func (r *PlainRenderer) Complete(stats CompletionStats) {
	r.mu.Lock()
	defer r.mu.Unlock()

	timings := r.tracker.Timings()
	r.tracker.SetStage(StageComplete, 0)

	_, _ = fmt.Fprintf(r.out, "[%s] %d documents, %d chunks in %s\n",
		StageComplete.Icon(), stats.Documents, stats.Chunks, stats.Duration.Round(time.Millisecond))

	for _, s := range pipeline {
		d, ok := timings[s]
		if !ok {
			continue
		}
		line := fmt.Sprintf("  %-8s %s", s.String()+":", d.Round(time.Millisecond))
		if s == StageEmbedding && stats.Chunks > 0 && d > 0 {
			line += fmt.Sprintf(" (%.1f chunks/sec)", float64(stats.Chunks)/d.Seconds())
		}
		_, _ = fmt.Fprintln(r.out, line)
	}
}

// Stop implements Renderer.
func (r *PlainRenderer) Stop() error {
	return nil
}

var _ Renderer = (*PlainRenderer)(nil)
