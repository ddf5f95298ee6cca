package applog

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/auditmos/devdash/logging"
)

const maxNameAttempts = 1000

// Rotate moves the content of path into a timestamped archive file and
// empties path. It returns the archive path, or path itself when rotation
// did not happen; in that case path is left exactly as it was.
func (m *Manager) Rotate(path string) string {
	if err := m.lock.lock(); err != nil {
		m.report("lock", "Cross-process lock unavailable", err, nil)
	}
	defer m.lock.unlock()
	return m.rotateLocked(path)
}

func (m *Manager) rotateLocked(path string) string {
	rotated, err := m.rotate(path)
	if err != nil {
		m.report("rotate", "Rotation failed", err, logging.Fields{"file": filepath.Base(path)})
		return path
	}
	m.diag.WithFields(logging.Fields{
		"file":    filepath.Base(path),
		"rotated": filepath.Base(rotated),
	}).Info(component, "rotate", "Log file rotated")
	return rotated
}

// rotate copies through a temp file and renames it into place, so a crash
// never leaves a partial archive under a .log name. The current file is
// truncated only once the archive is complete.
func (m *Manager) rotate(path string) (string, error) {
	content, err := m.fs.ReadFile(path)
	if err != nil {
		return "", logging.WrapError("read", err)
	}

	rotated, err := m.rotatedName(path, m.now())
	if err != nil {
		return "", err
	}

	tmp := rotated + ".tmp"
	if err := m.writeSynced(tmp, content); err != nil {
		_ = m.fs.Remove(tmp)
		return "", err
	}
	if err := m.fs.Rename(tmp, rotated); err != nil {
		_ = m.fs.Remove(tmp)
		return "", logging.WrapError("rename", err)
	}
	if err := m.fs.Truncate(path, 0); err != nil {
		// keep a single copy of the content: the untouched current file
		_ = m.fs.Remove(rotated)
		return "", logging.WrapError("truncate", err)
	}
	return rotated, nil
}

func (m *Manager) writeSynced(name string, data []byte) error {
	f, err := m.fs.OpenFile(name, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		return logging.WrapError("create archive", err)
	}
	if _, err := f.Write(data); err != nil {
		_ = f.Close()
		return logging.WrapError("write archive", err)
	}
	if err := f.Sync(); err != nil {
		_ = f.Close()
		return logging.WrapError("sync archive", err)
	}
	return logging.WrapError("close archive", f.Close())
}

// rotatedName returns <base>-<timestamp>.log, with ':' and '.' in the
// timestamp replaced by '-'. If that name is taken a -<n> counter is added.
func (m *Manager) rotatedName(path string, at time.Time) (string, error) {
	stamp := strings.NewReplacer(":", "-", ".", "-").Replace(formatTimestamp(at))
	base := strings.TrimSuffix(path, fileSuffix) + "-" + stamp

	candidate := base + fileSuffix
	for n := 1; n <= maxNameAttempts; n++ {
		_, err := m.fs.Stat(candidate)
		if errors.Is(err, fs.ErrNotExist) {
			return candidate, nil
		}
		if err != nil {
			return "", logging.WrapError("stat archive", err)
		}
		candidate = fmt.Sprintf("%s-%d%s", base, n, fileSuffix)
	}
	return "", fmt.Errorf("no free archive name for %s", filepath.Base(base))
}
