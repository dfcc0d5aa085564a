// Package cli implements the suiterun command line.
package cli

import (
	"errors"
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/deixis/suiterun"
	"github.com/deixis/suiterun/internal/config"
	"github.com/deixis/suiterun/internal/logging"
)

// Exit statuses other than the run verdict.
const (
	ExitUsage = 2
)

// ExitError carries a process exit status out of a command without
// printing anything further.
type ExitError struct {
	Code int
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("exit status %d", e.Code)
}

// ExitCode maps an Execute error to a process exit status.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	return ExitUsage
}

// globalOptions are shared by every subcommand.
type globalOptions struct {
	dir     string
	verbose bool
}

// workspace returns the directory the configuration is searched from.
func (g *globalOptions) workspace() (string, error) {
	if g.dir != "" {
		return g.dir, nil
	}
	wd, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("determining workspace: %w", err)
	}
	return wd, nil
}

func (g *globalOptions) load() (*config.LoadResult, error) {
	ws, err := g.workspace()
	if err != nil {
		return nil, err
	}
	loaded, err := config.Load(ws)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	return loaded, nil
}

func (g *globalOptions) logger(cmd *cobra.Command) *zerolog.Logger {
	log := logging.New(cmd.ErrOrStderr())
	if g.verbose {
		log = log.Level(zerolog.DebugLevel)
	}
	return &log
}

// NewRootCommand creates the root suiterun command. Without a subcommand
// it behaves like "suiterun run".
func NewRootCommand() *cobra.Command {
	g := &globalOptions{}
	run := &runOptions{}

	cmd := &cobra.Command{
		Use:   "suiterun",
		Short: "Run a project's test suites in a prepared environment",
		Long: `suiterun prepares a test environment and runs the project's test suites
in order.

Before the first suite starts it exports DATABASE_PATH and the LLM_* variables,
adds the configured directory to PATH once, and creates the database fixture
file if it does not exist. Every suite runs even after an earlier one fails.
The exit status is 0 only if all of them passed.

Configuration is read from .suiterun.yaml, .suiterun.yml or .suiterun.toml at
the project root, found by walking up from the working directory.`,
		Version:       suiterun.Version,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runSuite(cmd, g, run)
		},
	}

	bindRunFlags(cmd, run)
	cmd.PersistentFlags().StringVarP(&g.dir, "dir", "C", "", "directory to search for the project root (default: current directory)")
	cmd.PersistentFlags().BoolVarP(&g.verbose, "verbose", "v", false, "log diagnostics at debug level")

	cmd.AddCommand(newRunCommand(g))
	cmd.AddCommand(newEnvCommand(g))
	cmd.AddCommand(newHistoryCommand(g))
	cmd.AddCommand(newMCPCommand(g))
	cmd.AddCommand(newVersionCommand())

	return cmd
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintln(cmd.OutOrStdout(), suiterun.Version)
		},
	}
}
