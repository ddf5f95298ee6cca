package applog

import (
	"path/filepath"
	"sort"

	"github.com/auditmos/devdash/logging"
)

// SweepResult lists the files a retention sweep removed.
type SweepResult struct {
	Deleted []string `json:"deleted"`
}

// Cleanup deletes log files whose modification time is strictly before
// now minus the retention window. The file currently being appended to is
// never deleted. Each deletion is recorded as an info entry.
func (m *Manager) Cleanup() SweepResult {
	res := SweepResult{Deleted: []string{}}
	if !m.enabled {
		return res
	}

	res.Deleted = m.sweep()
	for _, name := range res.Deleted {
		m.Info("Cleaned up old log: "+name, map[string]any{"file": name})
	}
	return res
}

// sweep runs under the directory lock so it cannot delete a file an
// append is in the middle of rotating or writing.
func (m *Manager) sweep() []string {
	if err := m.lock.lock(); err != nil {
		m.report("lock", "Cross-process lock unavailable", err, nil)
	}
	defer m.lock.unlock()

	now := m.now()
	cutoff := now.Add(-m.retention)
	active := filepath.Base(m.currentFileAt(now))

	entries, err := m.fs.ReadDir(m.dir)
	if err != nil {
		m.report("sweep", "Cleanup failed", logging.WrapError("read dir", err), nil)
		return []string{}
	}

	deleted := []string{}
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !isLogFile(name) || name == active {
			continue
		}

		path := filepath.Join(m.dir, name)
		info, err := m.fs.Stat(path)
		if err != nil {
			m.report("sweep", "Cleanup stat failed", err, logging.Fields{"file": name})
			continue
		}
		if !info.ModTime().Before(cutoff) {
			continue
		}
		if err := m.fs.Remove(path); err != nil {
			m.report("sweep", "Cleanup delete failed", err, logging.Fields{"file": name})
			continue
		}
		deleted = append(deleted, name)
	}

	sort.Strings(deleted)
	if len(deleted) > 0 {
		m.diag.WithFields(logging.Fields{"deleted": len(deleted), "cutoff": cutoff.UTC()}).
			Info(component, "sweep", "Retention sweep removed files")
	}
	return deleted
}
