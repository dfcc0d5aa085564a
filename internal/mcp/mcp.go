// Package mcp provides the suiterun MCP server, registering the suite
// tools and publishing model instructions.
package mcp

import (
	"context"
	_ "embed"
	"net/url"
	"sync"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/rs/zerolog"

	"github.com/deixis/suiterun"
	"github.com/deixis/suiterun/internal/config"
	"github.com/deixis/suiterun/internal/report"
)

//go:embed instructions.md
var Instructions string

// handler holds shared dependencies for all tool handlers.
type handler struct {
	mu      sync.Mutex
	runMu   sync.Mutex // one suite run at a time
	loaded  *config.LoadResult
	baseEnv []string
	store   report.Store
	log     *zerolog.Logger
}

// NewServer creates an MCP server with the suite tools registered.
// baseEnv is the environment the child environment is derived from.
func NewServer(loaded *config.LoadResult, baseEnv []string, store report.Store, opts ...ServerOption) *mcp.Server {
	var so serverOptions
	for _, o := range opts {
		o(&so)
	}
	log := so.log
	if log == nil {
		nop := zerolog.Nop()
		log = &nop
	}

	h := &handler{
		loaded:  loaded,
		baseEnv: baseEnv,
		store:   store,
		log:     log,
	}

	mcpOpts := &mcp.ServerOptions{
		Instructions: Instructions,
		Capabilities: &mcp.ServerCapabilities{
			Tools: &mcp.ToolCapabilities{ListChanged: false},
		},
	}
	if so.followRoots {
		mcpOpts.InitializedHandler = func(ctx context.Context, req *mcp.InitializedRequest) {
			h.updateWorkspaceFromRoots(ctx, req.Session)
		}
	}
	s := mcp.NewServer(&mcp.Implementation{Name: "suiterun", Version: suiterun.Version}, mcpOpts)

	mcp.AddTool(s, &mcp.Tool{
		Name:        "suite_config",
		Description: "Show the environment the suites receive and the configured steps. Credentials are masked.",
	}, h.configHandler)

	mcp.AddTool(s, &mcp.Tool{
		Name: "suite_run",
		Description: `Prepare the environment and run the configured test suites in order.

Every selected step runs even if an earlier one fails. Returns PASS only when all steps exit zero.
Results are stored for drill-down via suite_inspect.`,
	}, h.runHandler)

	mcp.AddTool(s, &mcp.Tool{
		Name: "suite_inspect",
		Description: `Drill into one step of a suite_run result.

Use the run_id from suite_run and a step name. Returns the command, exit code, stdout and stderr.`,
	}, h.inspectHandler)

	return s
}

// ServerOption configures the MCP server.
type ServerOption func(*serverOptions)

type serverOptions struct {
	log         *zerolog.Logger
	followRoots bool
}

// WithLogger sends handler diagnostics to log.
func WithLogger(log *zerolog.Logger) ServerOption {
	return func(o *serverOptions) {
		o.log = log
	}
}

// WithRoots reloads the configuration from the client's first root once
// the session is initialised.
func WithRoots() ServerOption {
	return func(o *serverOptions) {
		o.followRoots = true
	}
}

// current returns the configuration in effect.
func (h *handler) current() *config.LoadResult {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.loaded
}

// updateWorkspaceFromRoots queries the client for MCP roots and reloads
// the configuration if a file root is returned.
func (h *handler) updateWorkspaceFromRoots(ctx context.Context, session *mcp.ServerSession) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	roots, err := session.ListRoots(ctx, &mcp.ListRootsParams{})
	if err != nil || len(roots.Roots) == 0 {
		return
	}

	u, err := url.Parse(roots.Roots[0].URI)
	if err != nil || u.Scheme != "file" {
		return
	}

	loaded, err := config.Load(u.Path)
	if err != nil {
		h.log.Warn().Err(err).Str("root", u.Path).Msg("ignoring client root")
		return
	}

	h.mu.Lock()
	h.loaded = loaded
	h.mu.Unlock()
	h.log.Info().Str("root", loaded.RepoRoot).Msg("workspace updated from client roots")
}

// textResult is a helper to build a text-only tool result.
func textResult(text string) (*mcp.CallToolResult, any, error) {
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: text}},
	}, nil, nil
}

// errorResult is a helper to build an error tool result.
func errorResult(text string) (*mcp.CallToolResult, any, error) {
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: text}},
		IsError: true,
	}, nil, nil
}
