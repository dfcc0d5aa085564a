package fixture

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnsure_CreatesDirectoryAndEmptyFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test_data", "test.db")

	created, err := Ensure(path)
	require.NoError(t, err)
	assert.True(t, created)

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, int64(0), info.Size())
}

func TestEnsure_KeepsExistingContent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")
	require.NoError(t, os.WriteFile(path, []byte("SQLite format 3"), 0o644))

	created, err := Ensure(path)
	require.NoError(t, err)
	assert.False(t, created)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "SQLite format 3", string(data))
}

func TestEnsure_Idempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "a", "b", "test.db")

	first, err := Ensure(path)
	require.NoError(t, err)
	second, err := Ensure(path)
	require.NoError(t, err)

	assert.True(t, first)
	assert.False(t, second)
}

func TestEnsure_ConcurrentCallersCreateOnce(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")

	const callers = 8
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		creates int
	)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			created, err := Ensure(path)
			assert.NoError(t, err)
			if created {
				mu.Lock()
				creates++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, creates)
}

func TestEnsure_EmptyPath(t *testing.T) {
	_, err := Ensure("")
	assert.Error(t, err)
}

func TestEnsure_RejectsDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")
	require.NoError(t, os.Mkdir(path, 0o755))

	created, err := Ensure(path)
	require.Error(t, err)
	assert.False(t, created)
	assert.Contains(t, err.Error(), "not a regular file")
}

func TestLock_SecondHolderWaits(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".suiterun", "run.lock")

	unlock, err := Lock(context.Background(), path)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 150*time.Millisecond)
	defer cancel()
	_, err = Lock(ctx, path)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	acquired := make(chan struct{})
	go func() {
		second, err := Lock(context.Background(), path)
		if assert.NoError(t, err) {
			_ = second()
		}
		close(acquired)
	}()

	select {
	case <-acquired:
		t.Fatal("second holder acquired the lock while it was held")
	case <-time.After(150 * time.Millisecond):
	}

	require.NoError(t, unlock())
	select {
	case <-acquired:
	case <-time.After(5 * time.Second):
		t.Fatal("second holder never acquired the released lock")
	}

	assert.FileExists(t, path)
}
