package tools

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"drover/internal/config"
)

func newBash(t *testing.T) *BashTool {
	t.Helper()
	return &BashTool{Timeout: 10 * time.Second, CharLimit: 4000}
}

func TestTruncate_Boundary(t *testing.T) {
	exact := strings.Repeat("a", 100)
	require.Equal(t, exact, Truncate(exact, 100))

	over := exact + "b"
	got := Truncate(over, 100)
	require.True(t, strings.HasPrefix(got, exact))
	require.Contains(t, got, "Output truncated. Total length: 101 chars.")
}

func TestBash_Echo(t *testing.T) {
	out, err := newBash(t).Execute(context.Background(), map[string]any{"command": "echo hello"})
	require.NoError(t, err)
	require.Equal(t, "hello\n", out)
}

func TestBash_StderrSection(t *testing.T) {
	out, err := newBash(t).Execute(context.Background(), map[string]any{"command": "echo out; echo err >&2"})
	require.NoError(t, err)
	require.Contains(t, out, "out\n")
	require.Contains(t, out, "STDERR:\nerr\n")
}

func TestBash_NoOutput(t *testing.T) {
	out, err := newBash(t).Execute(context.Background(), map[string]any{"command": "true"})
	require.NoError(t, err)
	require.Equal(t, "(Command executed successfully with no output)", out)
}

func TestBash_Timeout(t *testing.T) {
	bash := &BashTool{Timeout: 100 * time.Millisecond, CharLimit: 4000}
	out, err := bash.Execute(context.Background(), map[string]any{"command": "sleep 5"})
	require.NoError(t, err)
	require.Contains(t, out, "timed out")
}

func TestBash_TruncatesLongOutput(t *testing.T) {
	bash := &BashTool{Timeout: 10 * time.Second, CharLimit: 50}
	out, err := bash.Execute(context.Background(), map[string]any{"command": "seq 1 1000"})
	require.NoError(t, err)
	require.Contains(t, out, "Output truncated.")
}

func TestBash_MissingCommand(t *testing.T) {
	_, err := newBash(t).Execute(context.Background(), map[string]any{})
	require.ErrorContains(t, err, "'command' is required")
}

func TestReadFile_LineRange(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data.txt")
	var sb strings.Builder
	for i := 1; i <= 10; i++ {
		fmt.Fprintf(&sb, "line %d\n", i)
	}
	require.NoError(t, os.WriteFile(path, []byte(sb.String()), 0o644))

	tool := &ReadFileTool{CharLimit: 4000}
	out, err := tool.Execute(context.Background(), map[string]any{
		"path": path, "start_line": float64(3), "end_line": float64(5),
	})
	require.NoError(t, err)
	require.Contains(t, out, "(Total lines: 10)")
	require.Contains(t, out, "line 3")
	require.Contains(t, out, "line 5")
	require.NotContains(t, out, "line 6")
}

func TestReadFile_Missing(t *testing.T) {
	tool := &ReadFileTool{CharLimit: 4000}
	out, err := tool.Execute(context.Background(), map[string]any{"path": "/does/not/exist"})
	require.NoError(t, err)
	require.Contains(t, out, "Error reading file")
}

type fakeRecorder struct {
	paths []string
}

func (f *fakeRecorder) RecordFileChange(path string) { f.paths = append(f.paths, path) }

func TestUpdateFile_FullWrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sub", "new.txt")
	rec := &fakeRecorder{}
	tool := &UpdateFileTool{Recorder: rec}

	out, err := tool.Execute(context.Background(), map[string]any{"path": path, "content": "hello\n"})
	require.NoError(t, err)
	require.Contains(t, out, "Successfully updated")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, "hello\n", string(data))
	require.Equal(t, []string{path}, rec.paths)
}

func TestUpdateFile_PartialReplace(t *testing.T) {
	path := filepath.Join(t.TempDir(), "f.txt")
	require.NoError(t, os.WriteFile(path, []byte("alpha\nbeta\ngamma\n"), 0o644))
	tool := &UpdateFileTool{}

	_, err := tool.Execute(context.Background(), map[string]any{
		"path": path, "content": "BETA", "old_content": "beta",
	})
	require.NoError(t, err)

	data, _ := os.ReadFile(path)
	require.Equal(t, "alpha\nBETA\ngamma\n", string(data))
}

func TestUpdateFile_OldContentNotFound(t *testing.T) {
	path := filepath.Join(t.TempDir(), "f.txt")
	require.NoError(t, os.WriteFile(path, []byte("alpha\n"), 0o644))
	tool := &UpdateFileTool{}

	out, err := tool.Execute(context.Background(), map[string]any{
		"path": path, "content": "x", "old_content": "missing",
	})
	require.NoError(t, err)
	require.Contains(t, out, "not found in file")

	data, _ := os.ReadFile(path)
	require.Equal(t, "alpha\n", string(data), "file must be untouched")
}

func TestUpdateFile_RecordsBeforeWrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "f.txt")
	require.NoError(t, os.WriteFile(path, []byte("before"), 0o644))

	observed := ""
	tool := &UpdateFileTool{Recorder: recorderFunc(func(p string) {
		data, err := os.ReadFile(p)
		require.NoError(t, err)
		observed = string(data)
	})}

	_, err := tool.Execute(context.Background(), map[string]any{"path": path, "content": "after"})
	require.NoError(t, err)
	require.Equal(t, "before", observed, "recorder must see the pre-write content")
}

type recorderFunc func(string)

func (f recorderFunc) RecordFileChange(path string) { f(path) }

func TestRegisterBuiltins_SchemasInOrder(t *testing.T) {
	cfg := &config.Config{ToolOutputLimit: 1000, CommandTimeout: 30}
	reg := NewRegistry()
	RegisterBuiltins(reg, cfg, nil, nil)

	schemas := reg.Schemas()
	var names []string
	for _, s := range schemas {
		names = append(names, s.Function.Name)
	}
	require.Equal(t, []string{
		"bash", "search_files", "search_string", "read_file",
		"update_file", "google_search", "describe_image",
	}, names)
}
