// Package runlock keeps two bot passes from running at the same time.
package runlock

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
)

// ErrLocked means another process holds the lock.
var ErrLocked = errors.New("run lock is held by another process")

// DefaultPath is used when no lock path is configured.
const DefaultPath = "data/run.lock"

// FileLock is an advisory lock on a file.
type FileLock struct {
	path string
}

func New(path string) *FileLock {
	if path == "" {
		path = DefaultPath
	}
	return &FileLock{path: path}
}

func (l *FileLock) Path() string { return l.path }

// TryLock takes the lock without waiting. The returned func releases it.
func (l *FileLock) TryLock() (func() error, error) {
	if err := os.MkdirAll(filepath.Dir(l.path), 0o755); err != nil {
		return nil, fmt.Errorf("runlock: create dir: %w", err)
	}
	return tryLock(l.path)
}

func writeOwner(f *os.File) {
	_ = f.Truncate(0)
	_, _ = f.WriteAt([]byte(strconv.Itoa(os.Getpid())+"\n"), 0)
}
