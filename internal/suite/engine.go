// Package suite runs an ordered list of test suites and reports whether
// all of them passed. Every suite runs even after an earlier one failed.
package suite

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/deixis/suiterun/internal/config"
	"github.com/deixis/suiterun/internal/report"
	"github.com/deixis/suiterun/internal/runner"
)

// CommandRunner executes commands within a workspace.
// Implemented by runner.Runner.
type CommandRunner interface {
	Run(ctx context.Context, argv []string, cwd string) (*runner.Result, error)
}

// StepResult is the outcome of one step.
type StepResult = report.StepRecord

// Result is the outcome of a whole run.
type Result struct {
	Run    *report.RunResult
	Passed bool
}

// Engine runs steps through a CommandRunner and narrates them on a Console.
type Engine struct {
	Title   string
	Steps   []config.Step
	Runner  CommandRunner
	Console *Console        // nil discards the transcript
	Log     *zerolog.Logger // nil disables diagnostics
}

func (e *Engine) console() *Console {
	if e.Console == nil {
		e.Console = NewConsole(io.Discard)
	}
	return e.Console
}

func (e *Engine) log() *zerolog.Logger {
	if e.Log == nil {
		nop := zerolog.Nop()
		e.Log = &nop
	}
	return e.Log
}

// RunStep runs one step and reports its outcome. It never returns an
// error: a command that cannot be run yields a StepResult with status
// report.Error.
func (e *Engine) RunStep(ctx context.Context, step config.Step) (res StepResult) {
	desc := step.Label()
	res = StepResult{
		Name:        step.Name,
		Description: step.Description,
		Argv:        append([]string(nil), step.Argv...),
	}

	con := e.console()
	con.StepHeader(desc, step.Argv)

	start := time.Now()
	defer func() {
		if p := recover(); p != nil {
			res.Status = report.Error
			res.ExitCode = -1
			res.Error = fmt.Sprintf("panic: %v", p)
			res.Duration = time.Since(start)
			e.log().Error().Str("step", step.Name).Interface("panic", p).Msg("step panicked")
			con.SpawnError(desc, fmt.Errorf("%s", res.Error))
		}
	}()

	e.log().Debug().Str("step", step.Name).Strs("argv", step.Argv).Str("dir", step.Dir).Msg("starting step")

	out, err := e.Runner.Run(ctx, step.Argv, step.Dir)
	res.Duration = time.Since(start)
	if err != nil {
		res.Status = report.Error
		res.ExitCode = -1
		res.Error = err.Error()
		e.log().Warn().Err(err).Str("step", step.Name).Msg("could not run step")
		con.SpawnError(desc, err)
		return res
	}

	res.ExitCode = out.ExitCode
	res.Stdout = string(out.Stdout)
	res.Stderr = string(out.Stderr)
	res.Truncated = out.Truncated
	if out.Duration > 0 {
		res.Duration = out.Duration
	}

	if out.ExitCode == 0 {
		res.Status = report.Pass
		con.Success(desc, res.Stdout)
	} else {
		res.Status = report.Fail
		con.Failure(desc, res.Stderr)
	}

	e.log().Debug().
		Str("step", step.Name).
		Str("run_id", out.RunID).
		Int("exit_code", out.ExitCode).
		Bool("timed_out", out.TimedOut).
		Dur("duration", res.Duration).
		Msg("step finished")
	return res
}

// Run executes every step in order and reports whether all of them passed.
// A failing step never prevents later steps from running.
func (e *Engine) Run(ctx context.Context) *Result {
	con := e.console()
	con.Banner(e.Title)

	rr := &report.RunResult{
		ID:      uuid.New().String(),
		Title:   e.Title,
		Started: time.Now().UTC(),
		Steps:   make([]report.StepRecord, 0, len(e.Steps)),
	}

	passed := true
	var failed []string
	for _, step := range e.Steps {
		res := e.RunStep(ctx, step)
		rr.Steps = append(rr.Steps, res)
		// The step has already run; the accumulator only records it.
		passed = res.Succeeded() && passed
		if !res.Succeeded() {
			failed = append(failed, step.Label())
		}
	}

	rr.Duration = time.Since(rr.Started)
	rr.Passed = passed
	con.Summary(passed, len(e.Steps), failed)

	e.log().Info().Str("run_id", rr.ID).Bool("passed", passed).Int("steps", len(e.Steps)).Msg("run finished")
	return &Result{Run: rr, Passed: passed}
}

// ExitCode maps the overall verdict to a process exit status.
func ExitCode(passed bool) int {
	if passed {
		return 0
	}
	return 1
}
