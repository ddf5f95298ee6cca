package applog

import (
	"path/filepath"
	"sync"

	"github.com/gofrs/flock"
)

const lockFileName = ".applog.lock"

// dirLock serialises writers of one log directory. The mutex covers
// goroutines in this process; the flock covers other processes sharing
// the directory. flock.Flock is not reentrant across goroutines, so the
// mutex is always taken first.
type dirLock struct {
	mu    sync.Mutex
	flock *flock.Flock
}

func newDirLock(dir string, crossProcess bool) *dirLock {
	l := &dirLock{}
	if crossProcess {
		l.flock = flock.New(filepath.Join(dir, lockFileName))
	}
	return l
}

// lock acquires the directory lock. A failed flock degrades to in-process
// exclusion only and is reported to the caller; the mutex is held either way.
func (l *dirLock) lock() error {
	l.mu.Lock()
	if l.flock == nil {
		return nil
	}
	return l.flock.Lock()
}

func (l *dirLock) unlock() {
	if l.flock != nil && l.flock.Locked() {
		_ = l.flock.Unlock()
	}
	l.mu.Unlock()
}
