package cmd

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/amanrag/internal/logging"
)

const sampleLog = `{"time":"2026-01-02T10:00:00Z","level":"INFO","msg":"index_built","chunks":4}
{"time":"2026-01-02T10:00:01Z","level":"DEBUG","msg":"search_complete","results":2}
{"time":"2026-01-02T10:00:02Z","level":"ERROR","msg":"index_load_failed","dir":"data/index"}
`

func writeLog(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "amanrag.log")
	require.NoError(t, os.WriteFile(path, []byte(sampleLog), 0o644))
	return path
}

func TestLogsCmd_Tail(t *testing.T) {
	isolate(t)
	path := writeLog(t)

	stdout, stderr, err := execute(t, "logs", "--file", path, "--no-color", "-n", "2")

	require.NoError(t, err)
	assert.Contains(t, stderr, path)
	assert.NotContains(t, stdout, "index_built")
	assert.Contains(t, stdout, "search_complete")
	assert.Contains(t, stdout, "index_load_failed")
}

func TestLogsCmd_LevelAndFilter(t *testing.T) {
	isolate(t)
	path := writeLog(t)

	tests := []struct {
		name string
		args []string
		want string
		skip []string
	}{
		{"level", []string{"--level", "error"}, "index_load_failed", []string{"index_built", "search_complete"}},
		{"filter", []string{"--filter", "search_"}, "search_complete", []string{"index_built", "index_load_failed"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			args := append([]string{"logs", "--file", path, "--no-color"}, tt.args...)
			stdout, _, err := execute(t, args...)

			require.NoError(t, err)
			assert.Contains(t, stdout, tt.want)
			for _, s := range tt.skip {
				assert.NotContains(t, stdout, s)
			}
		})
	}
}

func TestLogsCmd_Errors(t *testing.T) {
	isolate(t)

	_, _, err := execute(t, "logs", "--file", filepath.Join(t.TempDir(), "missing.log"))
	assert.Error(t, err)

	_, _, err = execute(t, "logs", "--file", writeLog(t), "--filter", "[")
	assert.Error(t, err)

	_, _, err = execute(t, "logs", "--file", writeLog(t), "--level", "loud")
	assert.Error(t, err)
}

func TestFollowLogs_EmitsAppendedEntries(t *testing.T) {
	// Given: a log file being followed
	path := writeLog(t)
	viewer := logging.NewViewer(logging.ViewerConfig{NoColor: true}, &strings.Builder{})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	lines := make(chan string, 10)
	done := make(chan error, 1)
	go func() {
		done <- followLogs(ctx, viewer, path, func(s string) { lines <- s })
	}()

	// When: a line is appended
	time.Sleep(200 * time.Millisecond)
	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0o644)
	require.NoError(t, err)
	_, err = f.WriteString(`{"time":"2026-01-02T10:00:03Z","level":"INFO","msg":"eval_complete"}` + "\n")
	require.NoError(t, err)
	require.NoError(t, f.Close())

	// Then: it is emitted, and cancellation stops following
	select {
	case line := <-lines:
		assert.Contains(t, line, "eval_complete")
	case <-ctx.Done():
		t.Fatal("appended entry was not emitted")
	}
	cancel()
	assert.NoError(t, <-done)
}
