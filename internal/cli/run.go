package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/deixis/suiterun/internal/report"
	"github.com/deixis/suiterun/internal/suite"
)

type runOptions struct {
	only       []string
	timeout    time.Duration
	jsonOut    bool
	dryRun     bool
	reportPath string
}

func newRunCommand(g *globalOptions) *cobra.Command {
	opts := &runOptions{}
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Prepare the environment and run every test suite",
		Long: `Prepare the environment and run the configured test suites in order.

Each suite's command, outcome and output are printed as it finishes. A failing
suite does not stop the ones after it.

Examples:
  suiterun run                      # all suites
  suiterun run --only unit          # a subset, in configured order
  suiterun run --timeout 10m        # give up on a suite after 10 minutes
  suiterun run --report out.html    # also write a summary report
  suiterun run --dry-run            # show what would run`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runSuite(cmd, g, opts)
		},
	}

	bindRunFlags(cmd, opts)
	return cmd
}

// bindRunFlags registers the run flags on cmd. The root command shares
// them so that "suiterun --only unit" behaves like "suiterun run --only unit".
func bindRunFlags(cmd *cobra.Command, opts *runOptions) {
	fs := cmd.Flags()
	fs.StringSliceVar(&opts.only, "only", nil, "run only the named steps (repeatable)")
	fs.DurationVar(&opts.timeout, "timeout", 0, "per-step timeout, overriding the config (0 = use config)")
	fs.BoolVar(&opts.jsonOut, "json", false, "print the run result as JSON on stdout; the transcript goes to stderr")
	fs.BoolVar(&opts.dryRun, "dry-run", false, "print the steps and environment without running anything")
	fs.StringVar(&opts.reportPath, "report", "", "write a summary report (.md or .html)")
}

func runSuite(cmd *cobra.Command, g *globalOptions, opts *runOptions) error {
	log := g.logger(cmd)

	loaded, err := g.load()
	if err != nil {
		return err
	}
	log.Debug().Str("root", loaded.RepoRoot).Str("config", loaded.Path).Msg("configuration loaded")

	setup, err := suite.NewSetup(loaded, suite.Options{
		BaseEnv: os.Environ(),
		Only:    opts.only,
		Timeout: opts.timeout,
	})
	if err != nil {
		return err
	}

	if opts.dryRun {
		return printPlan(cmd.OutOrStdout(), setup)
	}

	unlock, err := setup.Lock(cmd.Context())
	if err != nil {
		return err
	}
	defer func() {
		if err := unlock(); err != nil {
			log.Warn().Err(err).Msg("could not release run lock")
		}
	}()

	path, created, err := setup.EnsureFixture()
	if err != nil {
		return err
	}
	log.Debug().Str("path", path).Bool("created", created).Msg("fixture ready")

	transcript := cmd.OutOrStdout()
	if opts.jsonOut {
		transcript = cmd.ErrOrStderr()
	}

	res := setup.Engine(suite.NewConsole(transcript), log).Run(cmd.Context())

	saveHistory(log, setup, res.Run)

	if opts.reportPath != "" {
		if err := writeReport(opts.reportPath, res.Run); err != nil {
			log.Error().Err(err).Str("path", opts.reportPath).Msg("could not write report")
		}
	}

	if opts.jsonOut {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		if err := enc.Encode(res.Run); err != nil {
			return fmt.Errorf("encoding result: %w", err)
		}
	}

	if code := suite.ExitCode(res.Passed); code != 0 {
		return &ExitError{Code: code}
	}
	return nil
}

// saveHistory records the run when a history database is configured.
// Failures are logged; they never change the verdict.
func saveHistory(log *zerolog.Logger, setup *suite.Setup, rr *report.RunResult) {
	path := setup.Config.HistoryPath()
	if path == "" {
		return
	}
	store, err := report.OpenSQLiteStore(path)
	if err != nil {
		log.Warn().Err(err).Msg("history unavailable")
		return
	}
	defer store.Close()

	if err := store.Save(rr); err != nil {
		log.Warn().Err(err).Msg("could not save run to history")
		return
	}
	removed, err := store.Prune(setup.Config.HistoryKeep())
	if err != nil {
		log.Warn().Err(err).Msg("could not prune history")
		return
	}
	log.Debug().Str("run_id", rr.ID).Int64("pruned", removed).Msg("run saved to history")
}

func writeReport(path string, rr *report.RunResult) error {
	var data []byte
	switch strings.ToLower(filepath.Ext(path)) {
	case ".html", ".htm":
		page, err := report.HTML(rr)
		if err != nil {
			return err
		}
		data = page
	default:
		data = []byte(report.Markdown(rr))
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create report directory: %w", err)
		}
	}
	return os.WriteFile(path, data, 0o644)
}

func printPlan(w io.Writer, setup *suite.Setup) error {
	cfg := setup.Config
	fmt.Fprintf(w, "Root: %s\n", setup.Root)
	fmt.Fprintf(w, "Fixture: %s\n", cfg.FixturePath())
	if t := setup.Runner.Timeout; t > 0 {
		fmt.Fprintf(w, "Timeout: %s per step\n", t)
	}
	fmt.Fprintln(w)
	if err := printVars(w, setup, false); err != nil {
		return err
	}
	fmt.Fprintln(w)
	fmt.Fprintf(w, "Steps (%d):\n", len(setup.Steps))
	for _, s := range setup.Steps {
		dir := ""
		if s.Dir != "" {
			dir = fmt.Sprintf(" (in %s)", s.Dir)
		}
		fmt.Fprintf(w, "  %s: %s%s\n", s.Name, strings.Join(s.Argv, " "), dir)
	}
	return nil
}
