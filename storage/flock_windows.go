//go:build windows

package storage

import (
	"fmt"
	"os"
)

// tryLock opens the lock file. Windows gets no cross-process lock; the
// FileStore mutex still serializes writers inside one process.
func tryLock(path string) (*os.File, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0600)
	if err != nil {
		return nil, fmt.Errorf("open lock file: %w", err)
	}
	return f, nil
}

func releaseLock(f *os.File) {
	if f == nil {
		return
	}
	_ = f.Close()
}
