//go:build !windows

package ipc

import (
	"errors"
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

func platformLock(f *os.File) error {
	err := unix.Flock(int(f.Fd()), unix.LOCK_EX|unix.LOCK_NB)
	if err == nil {
		return nil
	}
	if errors.Is(err, unix.EWOULDBLOCK) {
		return ErrInstanceRunning
	}
	return fmt.Errorf("failed to acquire lock: %w", err)
}

func platformUnlock(f *os.File) {
	unix.Flock(int(f.Fd()), unix.LOCK_UN)
}
