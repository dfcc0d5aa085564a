package suite

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/deixis/suiterun/internal/config"
)

func loadedAt(t *testing.T, root string, cfg *config.Config) *config.LoadResult {
	t.Helper()
	cfg.Root = root
	return &config.LoadResult{Config: cfg, RepoRoot: root}
}

func TestNewSetup_Defaults(t *testing.T) {
	root := t.TempDir()
	s, err := NewSetup(loadedAt(t, root, &config.Config{}), Options{BaseEnv: []string{"PATH=/usr/bin", "HOME=/home/test"}})
	require.NoError(t, err)

	assert.Len(t, s.Steps, 3)
	assert.Equal(t, root, s.Runner.Workspace)
	assert.Zero(t, s.Runner.Timeout)
	assert.Contains(t, s.Env, "DATABASE_PATH="+filepath.Join(root, "test_data", "test.db"))
	assert.Contains(t, s.Env, "LLM_MODEL=llama3.2:3b")
	assert.Contains(t, s.Env, "HOME=/home/test")
	assert.Equal(t, s.Env, s.Runner.Env)
}

func TestNewSetup_OnlyAndTimeout(t *testing.T) {
	cfg := &config.Config{RawTimeout: "5m"}
	s, err := NewSetup(loadedAt(t, t.TempDir(), cfg), Options{Only: []string{"e2e"}, Timeout: time.Second})
	require.NoError(t, err)

	require.Len(t, s.Steps, 1)
	assert.Equal(t, "e2e", s.Steps[0].Name)
	assert.Equal(t, time.Second, s.Runner.Timeout)
}

func TestNewSetup_UnknownStep(t *testing.T) {
	_, err := NewSetup(loadedAt(t, t.TempDir(), &config.Config{}), Options{Only: []string{"smoke"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown step: smoke")
}

func TestNewSetup_InvalidConfig(t *testing.T) {
	cfg := &config.Config{Steps: []config.Step{{Name: "a"}}}
	_, err := NewSetup(loadedAt(t, t.TempDir(), cfg), Options{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "argv is required")
}

func TestSetup_EnsureFixture(t *testing.T) {
	root := t.TempDir()
	s, err := NewSetup(loadedAt(t, root, &config.Config{}), Options{})
	require.NoError(t, err)

	path, created, err := s.EnsureFixture()
	require.NoError(t, err)
	assert.True(t, created)
	assert.FileExists(t, path)

	_, created, err = s.EnsureFixture()
	require.NoError(t, err)
	assert.False(t, created)
}

func TestSetup_EngineSeesEnvironment(t *testing.T) {
	if _, err := os.Stat("/bin/sh"); err != nil {
		t.Skip("/bin/sh not available")
	}
	root := t.TempDir()
	cfg := &config.Config{
		Title: "Env check",
		Steps: []config.Step{{
			Name: "env",
			Argv: []string{"/bin/sh", "-c", `test "$LLM_PROVIDER_TYPE" = ollama && echo "$DATABASE_PATH"`},
		}},
	}
	s, err := NewSetup(loadedAt(t, root, cfg), Options{BaseEnv: os.Environ()})
	require.NoError(t, err)

	e := s.Engine(nil, nil)
	res := e.Run(context.Background())
	require.True(t, res.Passed, "step output: %+v", res.Run.Steps)
	assert.Equal(t, "Env check", res.Run.Title)
	assert.Equal(t, filepath.Join(root, "test_data", "test.db"), strings.TrimSpace(res.Run.Steps[0].Stdout))
}

func TestSetup_LockIsPerProject(t *testing.T) {
	root := t.TempDir()
	s, err := NewSetup(loadedAt(t, root, &config.Config{}), Options{})
	require.NoError(t, err)

	unlock, err := s.Lock(context.Background())
	require.NoError(t, err)
	assert.FileExists(t, filepath.Join(root, ".suiterun", "run.lock"))

	other, err := NewSetup(loadedAt(t, root, &config.Config{}), Options{})
	require.NoError(t, err)
	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	_, err = other.Lock(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	require.NoError(t, unlock())
	unlockOther, err := other.Lock(context.Background())
	require.NoError(t, err)
	require.NoError(t, unlockOther())
}
