package applog

import (
	"os"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCleanup_RetentionBoundary(t *testing.T) {
	env := newTestManager(t)
	cutoff := fixedNow.Add(-DefaultRetention)

	writeFile(t, env.path("app-2024-02-01.log"), "old\n", cutoff.Add(-time.Second))
	writeFile(t, env.path("app-2024-03-02.log"), "edge\n", cutoff)
	writeFile(t, env.path("app-2024-03-08.log"), "young\n", fixedNow.Add(-24*time.Hour))

	res := env.m.Cleanup()

	assert.Equal(t, []string{"app-2024-02-01.log"}, res.Deleted)
	assert.NoFileExists(t, env.path("app-2024-02-01.log"))
	assert.FileExists(t, env.path("app-2024-03-02.log"), "mtime exactly at cutoff is retained")
	assert.FileExists(t, env.path("app-2024-03-08.log"))
}

func TestCleanup_RecordsEachDeletion(t *testing.T) {
	env := newTestManager(t)
	old := fixedNow.Add(-30 * 24 * time.Hour)
	writeFile(t, env.path("app-2024-01-01.log"), "a\n", old)
	writeFile(t, env.path("app-2024-01-01-2024-01-01T10-00-00-000Z.log"), "b\n", old)

	env.m.Cleanup()

	lines := readLines(t, env.m.CurrentFile())
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], "Cleaned up old log: app-2024-01-01-2024-01-01T10-00-00-000Z.log")
	assert.Contains(t, lines[1], "Cleaned up old log: app-2024-01-01.log")
}

func TestCleanup_NeverDeletesActiveFile(t *testing.T) {
	env := newTestManager(t)
	current := env.m.CurrentFile()
	writeFile(t, current, "active\n", fixedNow.Add(-60*24*time.Hour))

	res := env.m.Cleanup()

	assert.Empty(t, res.Deleted)
	assert.FileExists(t, current)
}

func TestCleanup_IgnoresNonLogFiles(t *testing.T) {
	env := newTestManager(t)
	old := fixedNow.Add(-30 * 24 * time.Hour)
	writeFile(t, env.path("notes.txt"), "keep\n", old)
	writeFile(t, env.path("app.log.gz"), "keep\n", old)
	require.NoError(t, os.Mkdir(env.path("archive.log"), 0o755))
	require.NoError(t, os.Chtimes(env.path("archive.log"), old, old))

	res := env.m.Cleanup()

	assert.Empty(t, res.Deleted)
	assert.FileExists(t, env.path("notes.txt"))
	assert.FileExists(t, env.path("app.log.gz"))
	assert.DirExists(t, env.path("archive.log"))
}

func TestCleanup_Idempotent(t *testing.T) {
	env := newTestManager(t)
	writeFile(t, env.path("app-2024-01-01.log"), "old\n", fixedNow.Add(-10*24*time.Hour))

	first := env.m.Cleanup()
	statsAfterFirst := env.m.Stats()
	second := env.m.Cleanup()

	assert.Len(t, first.Deleted, 1)
	assert.Empty(t, second.Deleted)
	assert.Equal(t, statsAfterFirst, env.m.Stats())
}

func TestCleanup_DisabledIsNoop(t *testing.T) {
	env := newTestManager(t, func(c *Config) { c.Enabled = false })
	old := env.path("app-2024-01-01.log")
	writeFile(t, old, "old\n", fixedNow.Add(-30*24*time.Hour))

	res := env.m.Cleanup()

	assert.Empty(t, res.Deleted)
	assert.FileExists(t, old)
}

func TestCleanup_CustomRetention(t *testing.T) {
	env := newTestManager(t, func(c *Config) { c.Retention = time.Hour })
	writeFile(t, env.path("app-2024-03-08.log"), "x\n", fixedNow.Add(-2*time.Hour))

	assert.Equal(t, []string{"app-2024-03-08.log"}, env.m.Cleanup().Deleted)
}

func TestCleanup_ReadDirFailureReported(t *testing.T) {
	faulty := newFaultyFS()
	faulty.readDirErr = syscall.EACCES
	env := newTestManager(t, func(c *Config) { c.FS = faulty })

	var res SweepResult
	assert.NotPanics(t, func() { res = env.m.Cleanup() })

	assert.NotNil(t, res.Deleted)
	assert.Empty(t, res.Deleted)
	assert.Contains(t, env.diag.String(), "Cleanup failed")
}
