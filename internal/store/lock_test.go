package store

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDirLock_LockUnlock(t *testing.T) {
	lock := NewDirLock(t.TempDir())

	require.NoError(t, lock.Lock())
	assert.True(t, lock.IsLocked())
	assert.FileExists(t, lock.Path())

	require.NoError(t, lock.Unlock())
	assert.False(t, lock.IsLocked())
}

func TestDirLock_UnlockWithoutLock(t *testing.T) {
	lock := NewDirLock(t.TempDir())
	assert.NoError(t, lock.Unlock())
	// Double unlock after a real lock is also fine.
	require.NoError(t, lock.Lock())
	require.NoError(t, lock.Unlock())
	assert.NoError(t, lock.Unlock())
}

func TestDirLock_TryLockContention(t *testing.T) {
	dir := t.TempDir()

	first := NewDirLock(dir)
	acquired, err := first.TryLock()
	require.NoError(t, err)
	require.True(t, acquired)
	defer func() { _ = first.Unlock() }()

	// flock is per-process on most platforms, so a second handle in the
	// same process may succeed; only assert the failure path's state.
	second := NewDirLock(dir)
	acquired, err = second.TryLock()
	require.NoError(t, err)
	if !acquired {
		assert.False(t, second.IsLocked())
	} else {
		_ = second.Unlock()
	}
}

func TestDirLock_CreatesDirectory(t *testing.T) {
	nested := filepath.Join(t.TempDir(), "data", "knowledge")
	lock := NewDirLock(nested)

	require.NoError(t, lock.Lock())
	defer func() { _ = lock.Unlock() }()

	info, err := os.Stat(nested)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}

func TestDirLock_Path(t *testing.T) {
	lock := NewDirLock("/some/dir")
	assert.Equal(t, filepath.Join("/some/dir", ".lock"), lock.Path())
}
