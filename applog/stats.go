package applog

import (
	"fmt"
	"path/filepath"
	"sort"

	"github.com/auditmos/devdash/logging"
)

// Stats summarises the log directory. Current and rotated files are not
// distinguished.
type Stats struct {
	FileCount  int      `json:"fileCount"`
	TotalSize  string   `json:"totalSize"`
	Files      []string `json:"files"`
	TotalBytes int64    `json:"-"`
}

func emptyStats() Stats {
	return Stats{TotalSize: FormatMB(0), Files: []string{}}
}

// FormatMB renders a byte count as megabytes with two decimals, e.g. "1.50MB".
func FormatMB(n int64) string {
	return fmt.Sprintf("%.2fMB", float64(n)/1024/1024)
}

// Stats reads the directory at call time. Any I/O failure yields the zero
// summary rather than a partial one.
func (m *Manager) Stats() Stats {
	entries, err := m.fs.ReadDir(m.dir)
	if err != nil {
		m.report("stats", "Stats unavailable", logging.WrapError("read dir", err), nil)
		return emptyStats()
	}

	st := emptyStats()
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !isLogFile(name) {
			continue
		}
		info, err := m.fs.Stat(filepath.Join(m.dir, name))
		if err != nil {
			m.report("stats", "Stats unavailable", err, logging.Fields{"file": name})
			return emptyStats()
		}
		st.TotalBytes += info.Size()
		st.Files = append(st.Files, name)
	}

	sort.Strings(st.Files)
	st.FileCount = len(st.Files)
	st.TotalSize = FormatMB(st.TotalBytes)
	return st
}
