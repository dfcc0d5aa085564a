package mcp

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/deixis/suiterun/internal/report"
	"github.com/deixis/suiterun/internal/suite"
)

type runParams struct {
	Only []string `json:"only,omitempty" jsonschema:"names of the steps to run, in any order. Defaults to every configured step."`
}

func (h *handler) runHandler(ctx context.Context, req *mcp.CallToolRequest, params runParams) (*mcp.CallToolResult, any, error) {
	h.runMu.Lock()
	defer h.runMu.Unlock()

	setup, err := suite.NewSetup(h.current(), suite.Options{BaseEnv: h.baseEnv, Only: params.Only})
	if err != nil {
		return errorResult(fmt.Sprintf("cannot run: %v", err))
	}
	unlock, err := setup.Lock(ctx)
	if err != nil {
		return errorResult(fmt.Sprintf("cannot run: %v", err))
	}
	defer func() {
		if err := unlock(); err != nil {
			h.log.Warn().Err(err).Msg("could not release run lock")
		}
	}()

	if _, _, err := setup.EnsureFixture(); err != nil {
		return errorResult(err.Error())
	}

	var transcript bytes.Buffer
	res := setup.Engine(suite.NewConsole(&transcript), h.log).Run(ctx)

	if err := h.store.Save(res.Run); err != nil {
		h.log.Warn().Err(err).Str("run_id", res.Run.ID).Msg("could not store run")
	}

	return textResult(formatRun(res.Run))
}

func formatRun(rr *report.RunResult) string {
	var b strings.Builder

	if rr.Passed {
		fmt.Fprintln(&b, "Status: PASS")
	} else {
		fmt.Fprintln(&b, "Status: FAIL")
	}
	fmt.Fprintf(&b, "Run: %s\n", rr.ID)
	fmt.Fprintln(&b)

	fmt.Fprintln(&b, "Steps:")
	for _, st := range rr.Steps {
		switch st.Status {
		case report.Error:
			fmt.Fprintf(&b, "  %s: error (%s)\n", st.Name, st.Error)
		case report.Fail:
			fmt.Fprintf(&b, "  %s: fail (exit %d, %s)\n", st.Name, st.ExitCode, st.Duration.Round(time.Millisecond))
		default:
			fmt.Fprintf(&b, "  %s: pass (%s)\n", st.Name, st.Duration.Round(time.Millisecond))
		}
	}

	if !rr.Passed {
		fmt.Fprintln(&b)
		fmt.Fprintf(&b, "Use suite_inspect with run_id %q and a step name for its output.\n", rr.ID)
	}
	return b.String()
}
