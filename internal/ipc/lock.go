package ipc

import (
	"fmt"
	"os"
)

// LockFile is an advisory exclusive lock guarding the endpoint of one host
// instance.
type LockFile struct {
	path string
	file *os.File
}

func NewLockFile(path string) *LockFile {
	return &LockFile{path: path}
}

// Acquire takes the lock without blocking. ErrInstanceRunning is returned when
// another process holds it.
func (l *LockFile) Acquire() error {
	f, err := os.OpenFile(l.path, os.O_CREATE|os.O_RDWR, 0600)
	if err != nil {
		return fmt.Errorf("failed to open lock file: %w", err)
	}

	if err := platformLock(f); err != nil {
		f.Close()
		return err
	}

	l.file = f
	return nil
}

// Release drops the lock. The file itself stays on disk: every contender
// must lock the same inode, so unlinking it would let a later opener lock a
// fresh file while another process still holds the old one.
func (l *LockFile) Release() error {
	if l.file == nil {
		return nil
	}

	platformUnlock(l.file)
	err := l.file.Close()
	l.file = nil
	return err
}

func (l *LockFile) Path() string {
	return l.path
}
