package atomicfile

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// FileLock is an advisory, PID-stamped lock file guarding the
// read-modify-write window around a JSON store. It is defense in depth:
// the daemon's single mutating-request actor already serializes writes
// in-process, but the lock also protects against a second daemon process
// started against the same config directory.
type FileLock struct {
	path string
}

// staleAfter is how long a lock file is trusted, measured from the
// timestamp written into it. The stored PID is not checked.
const staleAfter = 10 * time.Second

// NewFileLock returns a lock guarding targetPath, stored as
// "<targetPath>.lock".
func NewFileLock(targetPath string) *FileLock {
	return &FileLock{path: targetPath + ".lock"}
}

// Acquire blocks (with a short bounded retry) until the lock is held. If
// a non-stale holder keeps the lock for 2 seconds, Acquire gives up
// waiting and returns a no-op release with a nil error, so the caller
// proceeds without the lock. It returns an error only when the lock file
// cannot be created for a reason other than already existing.
func (l *FileLock) Acquire() (func(), error) {
	deadline := time.Now().Add(2 * time.Second)
	for {
		f, err := os.OpenFile(l.path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0644)
		if err == nil {
			fmt.Fprintf(f, "%d\n%d\n", os.Getpid(), time.Now().UnixNano())
			f.Close()
			return func() { os.Remove(l.path) }, nil
		}
		if !os.IsExist(err) {
			return nil, err
		}
		if l.stale() {
			os.Remove(l.path)
			continue
		}
		if time.Now().After(deadline) {
			return func() {}, nil // best-effort: proceed rather than deadlock the actor
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func (l *FileLock) stale() bool {
	data, err := os.ReadFile(l.path)
	if err != nil {
		return true
	}
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if len(lines) < 2 {
		return true
	}
	nanos, err := strconv.ParseInt(lines[1], 10, 64)
	if err != nil {
		return true
	}
	return time.Since(time.Unix(0, nanos)) > staleAfter
}
