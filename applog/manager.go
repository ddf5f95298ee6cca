// Package applog manages the application's rotating log files: a date-named
// current file that is appended to, rotated out by size and expired by age.
//
// The manager is an error boundary. Append, Cleanup and Stats never return
// errors; failures are reported on the diagnostics logger instead.
package applog

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/auditmos/devdash/logging"
)

const (
	DefaultMaxFileSize = 10 * 1024 * 1024
	DefaultRetention   = 7 * 24 * time.Hour

	filePrefix = "app-"
	fileSuffix = ".log"

	component = "applog"
)

type Config struct {
	Dir string
	// MaxFileSize is the size at which the current file is rotated before the next append.
	MaxFileSize int64
	Retention   time.Duration
	// Enabled gates all file writes and deletions. It is false outside production.
	Enabled bool
	// Redact replaces sensitive context values before they are written.
	Redact bool
	// CrossProcessLock additionally guards rotation with a lock file in Dir.
	CrossProcessLock bool

	Now  func() time.Time
	FS   FS
	Diag logging.Logger
}

type Manager struct {
	dir         string
	maxFileSize int64
	retention   time.Duration
	enabled     bool
	redact      bool

	now  func() time.Time
	fs   FS
	diag logging.Logger
	lock *dirLock
}

// New creates the log directory if needed. It does not sweep; retention is
// driven by Cleanup callers such as Sweeper.
func New(cfg Config) (*Manager, error) {
	if cfg.Dir == "" {
		return nil, fmt.Errorf("log directory is required")
	}
	if cfg.MaxFileSize <= 0 {
		cfg.MaxFileSize = DefaultMaxFileSize
	}
	if cfg.Retention <= 0 {
		cfg.Retention = DefaultRetention
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.FS == nil {
		cfg.FS = OSFS()
	}
	if cfg.Diag == nil {
		cfg.Diag = logging.NopLogger{}
	}

	dir, err := filepath.Abs(cfg.Dir)
	if err != nil {
		return nil, fmt.Errorf("resolve log dir: %w", err)
	}
	if err := cfg.FS.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create log dir: %w", err)
	}

	return &Manager{
		dir:         dir,
		maxFileSize: cfg.MaxFileSize,
		retention:   cfg.Retention,
		enabled:     cfg.Enabled,
		redact:      cfg.Redact,
		now:         cfg.Now,
		fs:          cfg.FS,
		diag:        cfg.Diag,
		lock:        newDirLock(dir, cfg.CrossProcessLock),
	}, nil
}

func (m *Manager) Dir() string              { return m.dir }
func (m *Manager) MaxFileSize() int64       { return m.maxFileSize }
func (m *Manager) Retention() time.Duration { return m.retention }
func (m *Manager) Enabled() bool            { return m.enabled }

// CurrentFile is the path appends go to right now: app-<UTC date>.log.
func (m *Manager) CurrentFile() string {
	return m.currentFileAt(m.now())
}

func (m *Manager) currentFileAt(t time.Time) string {
	return filepath.Join(m.dir, filePrefix+t.UTC().Format("2006-01-02")+fileSuffix)
}

func (m *Manager) Info(msg string, ctx map[string]any)  { m.Append(LevelInfo, msg, ctx) }
func (m *Manager) Warn(msg string, ctx map[string]any)  { m.Append(LevelWarn, msg, ctx) }
func (m *Manager) Error(msg string, ctx map[string]any) { m.Append(LevelError, msg, ctx) }

// Append writes one entry to the current file, rotating it first when it has
// reached MaxFileSize. Size check, rotation and write happen under the
// directory lock so concurrent writers never straddle a rotation.
func (m *Manager) Append(level Level, msg string, ctx map[string]any) {
	now := m.now()
	entry := Entry{
		Level:     level,
		Message:   msg,
		Timestamp: formatTimestamp(now),
	}
	if len(ctx) > 0 {
		if m.redact {
			ctx = logging.Fields(ctx).Sanitize()
		}
		entry.Context = ctx
	}

	if !m.enabled {
		return
	}
	if !level.Valid() {
		m.diag.WithFields(logging.Fields{"level": string(level)}).
			Warn(component, "append", "Dropped entry with unknown level")
		return
	}

	line, err := entry.MarshalLine()
	if err != nil {
		m.report("append", "Entry not serializable", err, logging.Fields{"message": msg})
		return
	}

	path := m.currentFileAt(now)

	if err := m.lock.lock(); err != nil {
		m.report("lock", "Cross-process lock unavailable", err, nil)
	}
	defer m.lock.unlock()

	if info, err := m.fs.Stat(path); err == nil && info.Size() >= m.maxFileSize {
		m.rotateLocked(path)
	}

	if err := m.appendLocked(path, line); err != nil {
		m.report("append", "Append failed", err, logging.Fields{"file": filepath.Base(path)})
	}
}

func (m *Manager) appendLocked(path string, line []byte) error {
	f, err := m.fs.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return logging.WrapError("open", err)
	}
	if _, err := f.Write(line); err != nil {
		_ = f.Close()
		return logging.WrapError("write", err)
	}
	return logging.WrapError("close", f.Close())
}

func (m *Manager) report(action, msg string, err error, fields logging.Fields) {
	l := m.diag.WithError(err)
	if len(fields) > 0 {
		l = l.WithFields(fields)
	}
	l.Error(component, action, msg)
}

func isLogFile(name string) bool {
	return strings.HasSuffix(name, fileSuffix)
}
