package logging

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"testing"
	"time"
)

func TestDefaultLogPath(t *testing.T) {
	path := DefaultLogPath()

	if filepath.Base(path) != "amanrag.log" {
		t.Errorf("DefaultLogPath should end with amanrag.log, got: %s", path)
	}
	if !strings.Contains(path, ".amanrag") || !strings.Contains(path, "logs") {
		t.Errorf("DefaultLogPath should be under .amanrag/logs, got: %s", path)
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Level != "info" {
		t.Errorf("expected level 'info', got: %s", cfg.Level)
	}
	if cfg.MaxSizeMB != 10 || cfg.MaxFiles != 5 {
		t.Errorf("expected 10 MB x 5 files, got: %d MB x %d", cfg.MaxSizeMB, cfg.MaxFiles)
	}
	if cfg.WriteToStderr {
		t.Error("stderr should be off by default")
	}
}

func TestDebugConfig(t *testing.T) {
	cfg := DebugConfig()

	if cfg.Level != "debug" {
		t.Errorf("expected level 'debug', got: %s", cfg.Level)
	}
	if !cfg.WriteToStderr {
		t.Error("debug mode should tee to stderr")
	}
}

func TestSetup_WritesJSONToFile(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "nested", "test.log")

	logger, cleanup, err := Setup(Config{Level: "debug", FilePath: logPath, MaxSizeMB: 1, MaxFiles: 3})
	if err != nil {
		t.Fatalf("Setup failed: %v", err)
	}

	logger.Debug("index_built", "chunks", 42)
	cleanup()

	content, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("failed to read log: %v", err)
	}
	if !strings.Contains(string(content), `"msg":"index_built"`) || !strings.Contains(string(content), `"chunks":42`) {
		t.Errorf("expected structured record, got: %s", content)
	}
}

func TestSetup_LevelFiltersRecords(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "level.log")

	logger, cleanup, err := Setup(Config{Level: "warn", FilePath: logPath})
	if err != nil {
		t.Fatalf("Setup failed: %v", err)
	}
	logger.Info("dropped")
	logger.Warn("kept")
	cleanup()

	content, _ := os.ReadFile(logPath)
	if strings.Contains(string(content), "dropped") {
		t.Error("info record should be filtered at warn level")
	}
	if !strings.Contains(string(content), "kept") {
		t.Error("warn record should be written")
	}
}

func TestSetup_NoFile(t *testing.T) {
	logger, cleanup, err := Setup(Config{Level: "info"})
	if err != nil {
		t.Fatalf("Setup failed: %v", err)
	}
	defer cleanup()

	if logger == nil {
		t.Fatal("Setup returned nil logger")
	}
}

func TestLevelFromString(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"debug", "DEBUG"},
		{"DEBUG", "DEBUG"},
		{"info", "INFO"},
		{"warn", "WARN"},
		{"warning", "WARN"},
		{"error", "ERROR"},
		{"unknown", "INFO"},
	}

	for _, tc := range tests {
		if level := LevelFromString(tc.input); level.String() != tc.expected {
			t.Errorf("LevelFromString(%q) = %s, want %s", tc.input, level.String(), tc.expected)
		}
	}
}

func TestIsValidLevel(t *testing.T) {
	for _, l := range []string{"debug", "INFO", "warn", "warning", "error"} {
		if !IsValidLevel(l) {
			t.Errorf("expected %q to be valid", l)
		}
	}
	for _, l := range []string{"", "trace", "verbose"} {
		if IsValidLevel(l) {
			t.Errorf("expected %q to be invalid", l)
		}
	}
}

func TestFindLogFile(t *testing.T) {
	if _, err := FindLogFile("/nonexistent/path/to/log.log"); err == nil {
		t.Error("expected error for nonexistent file")
	}

	logPath := filepath.Join(t.TempDir(), "test.log")
	if err := os.WriteFile(logPath, []byte("test"), 0o644); err != nil {
		t.Fatalf("failed to create test file: %v", err)
	}
	found, err := FindLogFile(logPath)
	if err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if found != logPath {
		t.Errorf("expected %s, got %s", logPath, found)
	}
}

// ============================================================================
// Writer Rotation Tests
// ============================================================================

func TestRotatingWriter_Rotation(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "rotate.log")

	// 0 MB triggers rotation on any write
	w, err := NewRotatingWriter(logPath, 0, 3)
	if err != nil {
		t.Fatalf("failed to create writer: %v", err)
	}
	defer w.Close()

	data := bytes.Repeat([]byte("x"), 2048)
	for i := 0; i < 2; i++ {
		if _, err := w.Write(data); err != nil {
			t.Fatalf("write %d failed: %v", i, err)
		}
	}

	if _, err := os.Stat(logPath); err != nil {
		t.Error("main log file should exist")
	}
	if _, err := os.Stat(logPath + ".1"); err != nil {
		t.Error("rotated file .1 should exist")
	}
}

func TestRotatingWriter_MaxFilesLimit(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "maxfiles.log")

	w, err := NewRotatingWriter(logPath, 0, 2)
	if err != nil {
		t.Fatalf("failed to create writer: %v", err)
	}
	defer w.Close()

	for i := 0; i < 6; i++ {
		_, _ = w.Write([]byte(fmt.Sprintf("record %d\n", i)))
	}

	if _, err := os.Stat(logPath + ".2"); err != nil {
		t.Error("rotated file .2 should exist")
	}
	if _, err := os.Stat(logPath + ".3"); !os.IsNotExist(err) {
		t.Error("rotated file .3 should not exist (beyond maxFiles)")
	}
}

func TestRotatingWriter_AppendsToExistingFile(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "append.log")
	if err := os.WriteFile(logPath, []byte("first\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	w, err := NewRotatingWriter(logPath, 1, 3)
	if err != nil {
		t.Fatalf("failed to create writer: %v", err)
	}
	_, _ = w.Write([]byte("second\n"))
	if err := w.Close(); err != nil {
		t.Errorf("close failed: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Errorf("second close failed: %v", err)
	}

	content, _ := os.ReadFile(logPath)
	if string(content) != "first\nsecond\n" {
		t.Errorf("unexpected content: %q", content)
	}
	if _, err := w.Write([]byte("late\n")); err == nil {
		t.Error("write after close should fail")
	}
}

func TestRotatingWriter_ConcurrentWrites(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "concurrent.log")

	w, err := NewRotatingWriter(logPath, 10, 3)
	if err != nil {
		t.Fatalf("failed to create writer: %v", err)
	}
	defer w.Close()
	w.SetSyncEachWrite(false)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				_, _ = w.Write([]byte(fmt.Sprintf(`{"id":%d,"iter":%d,"msg":"test"}`+"\n", id, j)))
			}
		}(i)
	}
	wg.Wait()
	_ = w.Sync()

	content, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("log file should exist: %v", err)
	}
	if got := strings.Count(string(content), "\n"); got != 1000 {
		t.Errorf("expected 1000 lines, got %d", got)
	}
}

// ============================================================================
// Viewer Tests
// ============================================================================

const sampleLog = `{"time":"2026-01-02T10:00:00.000Z","level":"DEBUG","msg":"embedder_ready","model":"static-256"}
{"time":"2026-01-02T10:00:01.000Z","level":"INFO","msg":"index_built","chunks":12}
not json at all
{"time":"2026-01-02T10:00:02.000Z","level":"WARN","msg":"index_embed_model_mismatch","stored":"a","current":"b"}
{"time":"2026-01-02T10:00:03.000Z","level":"ERROR","msg":"search_failed"}
`

func writeSampleLog(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "amanrag.log")
	if err := os.WriteFile(path, []byte(sampleLog), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestViewer_Tail(t *testing.T) {
	path := writeSampleLog(t)
	v := NewViewer(ViewerConfig{NoColor: true}, nil)

	entries, err := v.Tail(path, 3)
	if err != nil {
		t.Fatalf("Tail failed: %v", err)
	}
	if len(entries) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(entries))
	}
	if entries[0].IsValid {
		t.Error("first of the last three lines is not JSON")
	}
	if entries[2].Msg != "search_failed" {
		t.Errorf("expected last entry search_failed, got %s", entries[2].Msg)
	}
}

func TestViewer_Tail_LevelFilter(t *testing.T) {
	path := writeSampleLog(t)
	v := NewViewer(ViewerConfig{Level: "warn", NoColor: true}, nil)

	entries, err := v.Tail(path, 100)
	if err != nil {
		t.Fatalf("Tail failed: %v", err)
	}
	for _, e := range entries {
		if e.IsValid && LevelFromString(e.Level) < LevelFromString("warn") {
			t.Errorf("entry %s below warn passed the filter", e.Msg)
		}
	}
	if len(entries) != 2 {
		t.Errorf("expected 2 entries at warn+, got %d", len(entries))
	}
}

func TestViewer_Tail_PatternFilter(t *testing.T) {
	path := writeSampleLog(t)
	v := NewViewer(ViewerConfig{Pattern: regexp.MustCompile(`index_`), NoColor: true}, nil)

	entries, err := v.Tail(path, 100)
	if err != nil {
		t.Fatalf("Tail failed: %v", err)
	}
	if len(entries) != 2 {
		t.Errorf("expected 2 index_* entries, got %d", len(entries))
	}
}

func TestViewer_Tail_NonexistentFile(t *testing.T) {
	v := NewViewer(ViewerConfig{}, nil)
	if _, err := v.Tail("/nonexistent/file.log", 10); err == nil {
		t.Error("expected error for nonexistent file")
	}
}

func TestViewer_FormatEntry(t *testing.T) {
	v := NewViewer(ViewerConfig{NoColor: true}, nil)
	entry := v.parseLine(`{"time":"2026-01-02T10:00:01.5Z","level":"INFO","msg":"index_built","chunks":12,"backend":"bm25"}`)

	got := v.FormatEntry(entry)

	want := "10:00:01.500 INFO  index_built backend=bm25 chunks=12"
	if got != want {
		t.Errorf("FormatEntry = %q, want %q", got, want)
	}
	if raw := v.FormatEntry(v.parseLine("plain text")); raw != "plain text" {
		t.Errorf("non-JSON line should be returned verbatim, got %q", raw)
	}
}

func TestViewer_FormatLevel_Colors(t *testing.T) {
	v := NewViewer(ViewerConfig{}, nil)
	for _, level := range []string{"debug", "info", "warn", "error"} {
		if got := v.formatLevel(level); !strings.HasPrefix(got, "\033[") {
			t.Errorf("expected ANSI color for %s, got %q", level, got)
		}
	}
}

func TestViewer_Print(t *testing.T) {
	var buf bytes.Buffer
	v := NewViewer(ViewerConfig{NoColor: true}, &buf)

	v.Print([]LogEntry{{Raw: "a"}, {Raw: "b"}})

	if buf.String() != "a\nb\n" {
		t.Errorf("unexpected output: %q", buf.String())
	}
}

func TestViewer_Follow(t *testing.T) {
	path := writeSampleLog(t)
	v := NewViewer(ViewerConfig{NoColor: true}, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	entries := make(chan LogEntry, 4)
	done := make(chan error, 1)
	go func() { done <- v.Follow(ctx, path, entries) }()

	// Give Follow time to seek to the end before appending.
	time.Sleep(200 * time.Millisecond)
	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		t.Fatal(err)
	}
	_, _ = f.WriteString(`{"time":"2026-01-02T10:00:04Z","level":"INFO","msg":"search_complete"}` + "\n")
	_ = f.Close()

	select {
	case e := <-entries:
		if e.Msg != "search_complete" {
			t.Errorf("expected appended entry, got %q", e.Msg)
		}
	case <-ctx.Done():
		t.Fatal("timed out waiting for appended entry")
	}

	cancel()
	if err := <-done; err != nil {
		t.Errorf("Follow returned error: %v", err)
	}
}
