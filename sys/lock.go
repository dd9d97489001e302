package sys

import (
	"errors"
	"fmt"
)

var ErrOSFileLockNotSupported = errors.New("OS file locking not supported on this platform")

// LockError reports that a lock is held by someone else.
type LockError struct {
	Path string
	Err  error
}

func (e *LockError) Error() string {
	return fmt.Sprintf("lock %s is held by another process: %v", e.Path, e.Err)
}

func (e *LockError) Unwrap() error { return e.Err }

// IsLockError checks if an error is a LockError.
func IsLockError(err error) bool {
	var le *LockError
	return errors.As(err, &le)
}

// LockPath returns the sidecar lock file used for path.
func LockPath(path string) string {
	return path + ".lock"
}
