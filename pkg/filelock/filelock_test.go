//go:build unix || windows

package filelock

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestTryLock(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bank.lock")

	lock, err := TryLock(path)
	require.NoError(t, err)
	require.Equal(t, path, lock.Path())

	_, err = TryLock(path)
	require.ErrorIs(t, err, ErrLocked)

	require.NoError(t, lock.Unlock())
	require.NoError(t, lock.Unlock())

	again, err := TryLock(path)
	require.NoError(t, err)
	require.NoError(t, again.Unlock())
}
