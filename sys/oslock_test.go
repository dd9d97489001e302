package sys

import (
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestAcquireOSFileLock_Exclusive(t *testing.T) {
	lockPath := LockPath(filepath.Join(t.TempDir(), "session.sbr"))

	rel1, err := AcquireOSFileLock(lockPath, 500*time.Millisecond)
	if errors.Is(err, ErrOSFileLockNotSupported) {
		t.Skip("OS file locking not supported on this platform")
	}
	require.NoError(t, err)

	_, err = AcquireOSFileLock(lockPath, 50*time.Millisecond)
	require.Error(t, err, "second acquisition must fail while the lock is held")
	require.True(t, IsLockError(err))

	require.NoError(t, rel1())

	rel2, err := AcquireOSFileLock(lockPath, 200*time.Millisecond)
	require.NoError(t, err)
	require.NoError(t, rel2())
}
