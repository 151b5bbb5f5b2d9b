package ui

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPlainRenderer_UpdateProgress_Format(t *testing.T) {
	// Given: a plain renderer
	buf := &bytes.Buffer{}
	r := NewPlainRenderer(NewConfig(buf))

	// When: entering the embedding stage
	r.UpdateProgress(ProgressEvent{Stage: StageEmbedding, Current: 0, Total: 40, Message: "ollama"})

	// Then: the line has tag, counts, unit and message
	assert.Equal(t, "[EMBED] 0/40 chunks - ollama\n", buf.String())
}

func TestPlainRenderer_UpdateProgress_Units(t *testing.T) {
	buf := &bytes.Buffer{}
	r := NewPlainRenderer(NewConfig(buf))

	r.UpdateProgress(ProgressEvent{Stage: StageChunking, Current: 0, Total: 3})

	assert.Equal(t, "[CHUNK] 0/3 documents\n", buf.String())
}

func TestPlainRenderer_ThrottlesIntermediateUpdates(t *testing.T) {
	// Given: a renderer that has entered the embedding stage
	buf := &bytes.Buffer{}
	r := NewPlainRenderer(NewConfig(buf))
	r.interval = time.Hour
	r.UpdateProgress(ProgressEvent{Stage: StageEmbedding, Current: 0, Total: 30})

	// When: intermediate updates arrive, then the stage completes
	r.UpdateProgress(ProgressEvent{Stage: StageEmbedding, Current: 10, Total: 30})
	r.UpdateProgress(ProgressEvent{Stage: StageEmbedding, Current: 20, Total: 30})
	r.UpdateProgress(ProgressEvent{Stage: StageEmbedding, Current: 30, Total: 30})

	// Then: only the entry and completion lines are printed
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	assert.Equal(t, []string{"[EMBED] 0/30 chunks", "[EMBED] 30/30 chunks"}, lines)
}

func TestPlainRenderer_NoANSICodes(t *testing.T) {
	// Given: a plain renderer
	buf := &bytes.Buffer{}
	r := NewPlainRenderer(NewConfig(buf))

	// When: rendering every stage and the summary
	for _, stage := range pipeline {
		r.UpdateProgress(ProgressEvent{Stage: stage, Current: 5, Total: 5})
	}
	r.AddError(ErrorEvent{Err: errors.New("slow backend"), IsWarn: true})
	r.Complete(CompletionStats{Documents: 3, Chunks: 5, Duration: time.Second})

	// Then: no escape sequences are written
	assert.NotContains(t, buf.String(), "\x1b[")
}

func TestPlainRenderer_AddError(t *testing.T) {
	tests := []struct {
		name   string
		event  ErrorEvent
		expect string
	}{
		{"error", ErrorEvent{Err: errors.New("embed failed")}, "ERROR: embed failed\n"},
		{"warning", ErrorEvent{Err: errors.New("retrying"), IsWarn: true}, "WARN: retrying\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := &bytes.Buffer{}
			r := NewPlainRenderer(NewConfig(buf))

			r.AddError(tt.event)

			assert.Equal(t, tt.expect, buf.String())
		})
	}
}

func TestPlainRenderer_Complete(t *testing.T) {
	// Given: a renderer that saw every stage
	buf := &bytes.Buffer{}
	r := NewPlainRenderer(NewConfig(buf))
	require.NoError(t, r.Start(context.Background()))
	for _, stage := range pipeline {
		r.UpdateProgress(ProgressEvent{Stage: stage, Current: 0, Total: 4})
	}

	// When: completing
	r.Complete(CompletionStats{Documents: 2, Chunks: 4, Duration: 1500 * time.Millisecond})
	require.NoError(t, r.Stop())

	// Then: the summary and per-stage timings are printed
	out := buf.String()
	assert.Contains(t, out, "[DONE] 2 documents, 4 chunks in 1.5s")
	for _, stage := range pipeline {
		assert.Contains(t, out, "  "+stage.String()+":")
	}
}
