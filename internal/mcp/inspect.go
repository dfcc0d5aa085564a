package mcp

import (
	"context"
	"fmt"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/deixis/suiterun/internal/report"
)

type inspectParams struct {
	RunID string `json:"run_id" jsonschema:"the run ID from a suite_run result"`
	Step  string `json:"step" jsonschema:"the step name as listed in the suite_run result (e.g. unit)"`
}

func (h *handler) inspectHandler(ctx context.Context, req *mcp.CallToolRequest, params inspectParams) (*mcp.CallToolResult, any, error) {
	if params.RunID == "" {
		return errorResult("run_id is required")
	}
	if params.Step == "" {
		return errorResult("step is required")
	}

	result, err := h.store.Load(params.RunID)
	if err != nil {
		return errorResult(fmt.Sprintf("Failed to load run %s: %v", params.RunID, err))
	}

	st, err := result.Step(params.Step)
	if err != nil {
		names := make([]string, 0, len(result.Steps))
		for _, s := range result.Steps {
			names = append(names, s.Name)
		}
		return errorResult(fmt.Sprintf("%v. Steps in this run: %s", err, strings.Join(names, ", ")))
	}

	return textResult(formatInspectOutput(params.RunID, st))
}

func formatInspectOutput(runID string, st *report.StepRecord) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Run: %s\n", runID)
	fmt.Fprintf(&b, "Step: %s (%s)\n", st.Name, st.Label())
	fmt.Fprintf(&b, "Command: %s\n", strings.Join(st.Argv, " "))
	fmt.Fprintf(&b, "Status: %s\n", st.Status)

	if st.Status == report.Error {
		fmt.Fprintf(&b, "Error: %s\n", st.Error)
		return b.String()
	}
	fmt.Fprintf(&b, "Exit code: %d\n", st.ExitCode)
	if st.Truncated {
		fmt.Fprintln(&b, "Output was truncated.")
	}

	writeStream(&b, "Stdout", st.Stdout)
	writeStream(&b, "Stderr", st.Stderr)
	return b.String()
}

func writeStream(b *strings.Builder, name, text string) {
	fmt.Fprintln(b)
	if text == "" {
		fmt.Fprintf(b, "%s: (empty)\n", name)
		return
	}
	fmt.Fprintf(b, "%s:\n", name)
	for _, line := range strings.Split(strings.TrimRight(text, "\n"), "\n") {
		fmt.Fprintf(b, "    %s\n", line)
	}
}
