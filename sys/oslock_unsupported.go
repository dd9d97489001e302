//go:build !unix && !windows

package sys

import (
	"time"
)

func AcquireOSFileLock(lockPath string, timeout time.Duration) (func() error, error) {
	return nil, ErrOSFileLockNotSupported
}
