package dashboard

import (
	"bytes"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/auditmos/devdash/applog"
	"github.com/auditmos/devdash/logging"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2024, 3, 9, 14, 5, 7, 0, time.UTC)

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

type fixture struct {
	srv  *Server
	logs *applog.Manager
	root string
	diag *syncBuffer
}

func newFixture(t *testing.T, mutate ...func(*ServerConfig)) *fixture {
	t.Helper()
	root := t.TempDir()
	diag := &syncBuffer{}
	logger := logging.NewLogger(logging.LoggerConfig{
		Output:    diag,
		Formatter: &logging.JSONFormatter{},
		Level:     logging.DEBUG,
	})

	logs, err := applog.New(applog.Config{
		Dir:     filepath.Join(root, "logs"),
		Enabled: true,
		Diag:    logger,
	})
	require.NoError(t, err)

	cfg := ServerConfig{
		Addr:   "127.0.0.1:0",
		Root:   root,
		Logs:   logs,
		Logger: logger,
		Now:    func() time.Time { return fixedNow },
	}
	for _, fn := range mutate {
		fn(&cfg)
	}
	srv, err := NewServer(cfg)
	require.NoError(t, err)

	return &fixture{srv: srv, logs: logs, root: root, diag: diag}
}

func (f *fixture) write(t *testing.T, rel, content string) {
	t.Helper()
	path := filepath.Join(f.root, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func (f *fixture) appLog(t *testing.T) string {
	t.Helper()
	data, err := os.ReadFile(f.logs.CurrentFile())
	if os.IsNotExist(err) {
		return ""
	}
	require.NoError(t, err)
	return string(data)
}
