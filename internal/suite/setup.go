package suite

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/deixis/suiterun/internal/config"
	"github.com/deixis/suiterun/internal/fixture"
	"github.com/deixis/suiterun/internal/runner"
)

// Options narrow or override a configured run.
type Options struct {
	BaseEnv []string      // environment the child environment is derived from
	Only    []string      // step names; empty selects all
	Timeout time.Duration // per step; overrides the configured value when > 0
}

// Setup is a configured run that has not started yet.
type Setup struct {
	Config *config.Config
	Root   string
	Env    []string
	Steps  []config.Step
	Runner *runner.Runner
}

// NewSetup validates the configuration and derives the child environment
// and step list. It has no side effects on the filesystem.
func NewSetup(loaded *config.LoadResult, opts Options) (*Setup, error) {
	cfg := loaded.Config
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	env, err := cfg.Environ(opts.BaseEnv)
	if err != nil {
		return nil, err
	}

	steps, err := cfg.SelectSteps(opts.Only)
	if err != nil {
		return nil, err
	}

	timeout := cfg.Timeout()
	if opts.Timeout > 0 {
		timeout = opts.Timeout
	}

	return &Setup{
		Config: cfg,
		Root:   loaded.RepoRoot,
		Env:    env,
		Steps:  steps,
		Runner: &runner.Runner{
			Workspace: loaded.RepoRoot,
			Env:       env,
			Timeout:   timeout,
			MaxOutput: cfg.MaxOutputBytes(),
		},
	}, nil
}

// Lock waits until no other run of this project holds the run lock and
// takes it. Callers hold it from EnsureFixture until the run has finished.
func (s *Setup) Lock(ctx context.Context) (func() error, error) {
	return fixture.Lock(ctx, s.Config.RunLockPath())
}

// EnsureFixture makes sure the fixture file exists. It reports the path
// and whether the file was created by this call.
func (s *Setup) EnsureFixture() (string, bool, error) {
	path := s.Config.FixturePath()
	created, err := fixture.Ensure(path)
	if err != nil {
		return path, false, fmt.Errorf("preparing fixture: %w", err)
	}
	return path, created, nil
}

// Engine returns an Engine that runs the selected steps.
func (s *Setup) Engine(con *Console, log *zerolog.Logger) *Engine {
	return &Engine{
		Title:   s.Config.RunTitle(),
		Steps:   s.Steps,
		Runner:  s.Runner,
		Console: con,
		Log:     log,
	}
}
