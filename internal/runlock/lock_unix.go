//go:build !windows

package runlock

import (
	"errors"
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

func tryLock(path string) (func() error, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return nil, fmt.Errorf("runlock: open %s: %w", path, err)
	}
	fd := int(f.Fd())
	for {
		err = unix.Flock(fd, unix.LOCK_EX|unix.LOCK_NB)
		if err == nil {
			break
		}
		if errors.Is(err, unix.EINTR) {
			continue
		}
		f.Close()
		if errors.Is(err, unix.EWOULDBLOCK) || errors.Is(err, unix.EAGAIN) {
			return nil, ErrLocked
		}
		return nil, fmt.Errorf("runlock: flock %s: %w", path, err)
	}
	writeOwner(f)

	return func() error {
		uerr := unix.Flock(fd, unix.LOCK_UN)
		cerr := f.Close()
		if uerr != nil {
			return fmt.Errorf("runlock: unlock %s: %w", path, uerr)
		}
		return cerr
	}, nil
}
