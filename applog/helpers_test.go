package applog

import (
	"bytes"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/auditmos/devdash/logging"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2024, 3, 9, 14, 5, 7, 123_000_000, time.UTC)

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

type testEnv struct {
	m    *Manager
	dir  string
	diag *syncBuffer
}

func newTestManager(t *testing.T, mutate ...func(*Config)) *testEnv {
	t.Helper()
	diag := &syncBuffer{}
	cfg := Config{
		Dir:     filepath.Join(t.TempDir(), "logs"),
		Enabled: true,
		Now:     func() time.Time { return fixedNow },
		Diag: logging.NewLogger(logging.LoggerConfig{
			Output:    diag,
			Formatter: &logging.JSONFormatter{},
			Level:     logging.DEBUG,
		}),
	}
	for _, fn := range mutate {
		fn(&cfg)
	}
	m, err := New(cfg)
	require.NoError(t, err)
	return &testEnv{m: m, dir: m.Dir(), diag: diag}
}

func (e *testEnv) path(name string) string {
	return filepath.Join(e.dir, name)
}

func writeFile(t *testing.T, path string, content string, mtime time.Time) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	if !mtime.IsZero() {
		require.NoError(t, os.Chtimes(path, mtime, mtime))
	}
}

func readLines(t *testing.T, path string) []string {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	trimmed := strings.TrimSuffix(string(data), "\n")
	if trimmed == "" {
		return nil
	}
	return strings.Split(trimmed, "\n")
}

func logFiles(t *testing.T, dir string) []string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	var names []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".log") {
			names = append(names, e.Name())
		}
	}
	return names
}

// faultyFS wraps the host filesystem and fails selected calls.
type faultyFS struct {
	FS
	openErr     error
	renameErr   error
	truncateErr error
	readDirErr  error
	statErr     error
}

func newFaultyFS() *faultyFS { return &faultyFS{FS: OSFS()} }

func (f *faultyFS) OpenFile(name string, flag int, perm fs.FileMode) (File, error) {
	if f.openErr != nil {
		return nil, &fs.PathError{Op: "open", Path: name, Err: f.openErr}
	}
	return f.FS.OpenFile(name, flag, perm)
}

func (f *faultyFS) Rename(oldpath, newpath string) error {
	if f.renameErr != nil {
		return &os.LinkError{Op: "rename", Old: oldpath, New: newpath, Err: f.renameErr}
	}
	return f.FS.Rename(oldpath, newpath)
}

func (f *faultyFS) Truncate(name string, size int64) error {
	if f.truncateErr != nil {
		return &fs.PathError{Op: "truncate", Path: name, Err: f.truncateErr}
	}
	return f.FS.Truncate(name, size)
}

func (f *faultyFS) ReadDir(name string) ([]fs.DirEntry, error) {
	if f.readDirErr != nil {
		return nil, &fs.PathError{Op: "readdir", Path: name, Err: f.readDirErr}
	}
	return f.FS.ReadDir(name)
}

func (f *faultyFS) Stat(name string) (fs.FileInfo, error) {
	if f.statErr != nil && strings.HasSuffix(name, ".log") {
		return nil, &fs.PathError{Op: "stat", Path: name, Err: f.statErr}
	}
	return f.FS.Stat(name)
}
