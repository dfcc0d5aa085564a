// Package report provides structured persistence and retrieval of suite
// runs. Runs are stored as typed structs and can be drilled into by step.
package report

import (
	"fmt"
	"time"
)

// Status is the outcome of a single step.
type Status string

const (
	// Pass means the command exited zero.
	Pass Status = "pass"
	// Fail means the command ran and exited non-zero.
	Fail Status = "fail"
	// Error means the command could not be started or awaited.
	Error Status = "error"
)

// Store persists and retrieves run results.
type Store interface {
	Save(result *RunResult) error
	Load(runID string) (*RunResult, error)
}

// RunResult holds the structured outcome of one suite run.
type RunResult struct {
	ID       string        `json:"id"`
	Title    string        `json:"title"`
	Started  time.Time     `json:"started"`
	Duration time.Duration `json:"duration"`
	Passed   bool          `json:"passed"`
	Steps    []StepRecord  `json:"steps"`
}

// StepRecord holds the outcome of a single step.
type StepRecord struct {
	Name        string        `json:"name"`
	Description string        `json:"description"`
	Argv        []string      `json:"argv"`
	Status      Status        `json:"status"`
	ExitCode    int           `json:"exit_code"`
	Stdout      string        `json:"stdout,omitempty"`
	Stderr      string        `json:"stderr,omitempty"`
	Error       string        `json:"error,omitempty"`
	Truncated   bool          `json:"truncated,omitempty"`
	Duration    time.Duration `json:"duration"`
}

// Succeeded reports whether the step's command exited zero.
func (s *StepRecord) Succeeded() bool {
	return s.Status == Pass
}

// Step returns the step with the given name.
func (r *RunResult) Step(name string) (*StepRecord, error) {
	for i := range r.Steps {
		if r.Steps[i].Name == name {
			return &r.Steps[i], nil
		}
	}
	return nil, fmt.Errorf("run %s has no step %q", r.ID, name)
}

// Counts returns the number of passed and not-passed steps.
func (r *RunResult) Counts() (passed, failed int) {
	for i := range r.Steps {
		if r.Steps[i].Succeeded() {
			passed++
		} else {
			failed++
		}
	}
	return passed, failed
}
