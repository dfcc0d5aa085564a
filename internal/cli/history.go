package cli

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/deixis/suiterun/internal/report"
)

var errHistoryDisabled = errors.New("history is not enabled; set history.path in the configuration file")

func newHistoryCommand(g *globalOptions) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recent runs from the history database",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			store, err := openHistory(g)
			if err != nil {
				return err
			}
			defer store.Close()

			runs, err := store.List(limit)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(runs) == 0 {
				fmt.Fprintf(out, "No runs recorded in %s\n", store.Path())
				return nil
			}

			green, red := color.New(color.FgGreen), color.New(color.FgRed)
			if f, ok := out.(*os.File); !ok || !isatty.IsTerminal(f.Fd()) {
				green.DisableColor()
				red.DisableColor()
			}
			pass, fail := green.SprintFunc(), red.SprintFunc()
			for _, r := range runs {
				verdict := pass("PASS")
				if !r.Passed {
					verdict = fail("FAIL")
				}
				fmt.Fprintf(out, "%s  %s  %s  %d/%d steps passed  %s  %s\n",
					r.Started.Local().Format("2006-01-02 15:04:05"), verdict, r.ID,
					r.Steps-r.Failed, r.Steps, r.Duration.Round(time.Millisecond), r.Title)
			}
			return nil
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "number of runs to show")

	cmd.AddCommand(&cobra.Command{
		Use:   "show <run-id>",
		Short: "Print the summary report of a recorded run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openHistory(g)
			if err != nil {
				return err
			}
			defer store.Close()

			rr, err := store.Load(args[0])
			if err != nil {
				return err
			}
			fmt.Fprint(cmd.OutOrStdout(), report.Markdown(rr))
			return nil
		},
	})
	return cmd
}

func openHistory(g *globalOptions) (*report.SQLiteStore, error) {
	loaded, err := g.load()
	if err != nil {
		return nil, err
	}
	path := loaded.Config.HistoryPath()
	if path == "" {
		return nil, errHistoryDisabled
	}
	return report.OpenSQLiteStore(path)
}
