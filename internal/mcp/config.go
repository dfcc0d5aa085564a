package mcp

import (
	"context"
	"fmt"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/deixis/suiterun/internal/config"
)

type configParams struct{}

func (h *handler) configHandler(ctx context.Context, req *mcp.CallToolRequest, _ configParams) (*mcp.CallToolResult, any, error) {
	loaded := h.current()
	cfg := loaded.Config

	vars, err := cfg.Vars()
	if err != nil {
		return errorResult(fmt.Sprintf("Failed to compute environment: %v", err))
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Root: %s\n", loaded.RepoRoot)
	if loaded.Path != "" {
		fmt.Fprintf(&b, "Config: %s\n", loaded.Path)
	} else {
		fmt.Fprintln(&b, "Config: (defaults)")
	}
	fmt.Fprintf(&b, "Fixture: %s\n", cfg.FixturePath())
	if t := cfg.Timeout(); t > 0 {
		fmt.Fprintf(&b, "Timeout: %s per step\n", t)
	} else {
		fmt.Fprintln(&b, "Timeout: none")
	}
	fmt.Fprintln(&b)

	fmt.Fprintln(&b, "Environment:")
	for _, v := range vars {
		fmt.Fprintf(&b, "  %s=%s\n", v.Key, displayValue(v))
	}
	fmt.Fprintf(&b, "  PATH includes %s\n", cfg.SearchPathEntry())
	fmt.Fprintln(&b)

	steps := cfg.RunSteps()
	fmt.Fprintf(&b, "Steps (%d):\n", len(steps))
	for _, s := range steps {
		fmt.Fprintf(&b, "  %s: %s\n", s.Name, strings.Join(s.Argv, " "))
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintln(&b)
		fmt.Fprintf(&b, "Configuration problems:\n  %s\n", strings.ReplaceAll(err.Error(), "\n", "\n  "))
	}
	return textResult(b.String())
}

func displayValue(v config.Var) string {
	if config.IsSecret(v.Key) {
		return config.MaskSecret(v.Value)
	}
	return v.Value
}
