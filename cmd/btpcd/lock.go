package main

import "github.com/btpc-network/btpc/process"

// releaser is the subset of *process.LockFile run needs, so tests can
// substitute a fake without touching the real filesystem lock.
type releaser interface {
	Release() error
}

func defaultAcquireLock(path string) (releaser, error) {
	return process.Acquire(path)
}
