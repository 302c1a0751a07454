package process

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"syscall"

	"github.com/btpc-network/btpc/nodeerrors"
)

// LockFile is the single-instance lock file. It is created with O_EXCL and
// holds the owner's PID; no flock-style advisory lock is taken on it, so
// exclusivity rests on the exclusive create alone. It never trusts an
// existing file's mere presence — a
// stale lock whose recorded PID is no longer alive is cleaned up and
// retried rather than treated as in-use, following the same
// don't-trust-the-filesystem-blindly discipline the node's own
// path-validating file reads use.
type LockFile struct {
	path string
	file *os.File
}

// Acquire creates path exclusively and writes the current PID into it. If
// path already exists and names a live process, it returns
// nodeerrors.LockFileInUse; if it exists but names a dead process, the
// stale file is removed and acquisition retried once.
func Acquire(path string) (*LockFile, error) {
	lf, err := tryAcquire(path)
	if err == nil {
		return lf, nil
	}
	if !os.IsExist(err) {
		return nil, nodeerrors.New(nodeerrors.LockFileInUse, "could not create the instance lock file", err)
	}
	if cleanupStaleLock(path) {
		if lf, err := tryAcquire(path); err == nil {
			return lf, nil
		}
	}
	return nil, nodeerrors.New(nodeerrors.LockFileInUse, "another instance is already running", err)
}

func tryAcquire(path string) (*LockFile, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, err
	}
	if _, err := f.WriteString(strconv.Itoa(os.Getpid())); err != nil {
		f.Close()
		os.Remove(path)
		return nil, err
	}
	return &LockFile{path: path, file: f}, nil
}

// cleanupStaleLock removes path if the PID it names is no longer alive.
// Returns true if it removed the file (so the caller should retry).
func cleanupStaleLock(path string) bool {
	raw, err := os.ReadFile(path)
	if err != nil {
		return false
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(raw)))
	if err != nil || pid <= 0 {
		return false
	}
	if processAlive(pid) {
		return false
	}
	return os.Remove(path) == nil
}

// processAlive sends the null signal, which the kernel delivers without
// side effects purely to check that pid still exists (EPERM also counts
// as alive: it exists, we just can't signal it).
func processAlive(pid int) bool {
	proc, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	err = proc.Signal(syscall.Signal(0))
	if err == nil {
		return true
	}
	return err == syscall.EPERM
}

// Release removes the lock file. Safe to call more than once.
func (l *LockFile) Release() error {
	if l == nil || l.file == nil {
		return nil
	}
	l.file.Close()
	l.file = nil
	if err := os.Remove(l.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("process: removing lock file %s: %w", l.path, err)
	}
	return nil
}
