//go:build !unix

package lock

import (
	"os"
	"sync"
)

// Without flock, fall back to an in-process guard keyed by path.
var held sync.Map

func tryLock(f *os.File) error {
	if _, loaded := held.LoadOrStore(f.Name(), struct{}{}); loaded {
		return errLocked
	}
	return nil
}

func unlock(f *os.File) error {
	held.Delete(f.Name())
	return nil
}
