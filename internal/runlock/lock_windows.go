//go:build windows

package runlock

import (
	"errors"
	"fmt"
	"os"
)

func tryLock(path string) (func() error, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_RDWR, 0o644)
	if err != nil {
		if errors.Is(err, os.ErrExist) {
			return nil, ErrLocked
		}
		return nil, fmt.Errorf("runlock: open %s: %w", path, err)
	}
	writeOwner(f)
	return func() error {
		cerr := f.Close()
		if rerr := os.Remove(path); rerr != nil {
			return rerr
		}
		return cerr
	}, nil
}
