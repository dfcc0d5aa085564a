package cli

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/deixis/suiterun/internal/config"
	"github.com/deixis/suiterun/internal/suite"
)

func newEnvCommand(g *globalOptions) *cobra.Command {
	var reveal bool
	cmd := &cobra.Command{
		Use:   "env",
		Short: "Print the variables the suites receive",
		Long: `Print the variables exported to the suites as KEY=value lines, followed by
the resulting PATH. Credentials are masked unless --reveal is given.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			loaded, err := g.load()
			if err != nil {
				return err
			}
			setup, err := suite.NewSetup(loaded, suite.Options{BaseEnv: os.Environ()})
			if err != nil {
				return err
			}
			return printVars(cmd.OutOrStdout(), setup, reveal)
		},
	}
	cmd.Flags().BoolVar(&reveal, "reveal", false, "print credentials in clear text")
	return cmd
}

func printVars(w io.Writer, setup *suite.Setup, reveal bool) error {
	vars, err := setup.Config.Vars()
	if err != nil {
		return err
	}
	for _, v := range vars {
		value := v.Value
		if !reveal && config.IsSecret(v.Key) {
			value = config.MaskSecret(value)
		}
		fmt.Fprintf(w, "%s=%s\n", v.Key, value)
	}
	for _, kv := range setup.Env {
		if strings.HasPrefix(kv, config.EnvPath+"=") {
			fmt.Fprintln(w, kv)
		}
	}
	return nil
}
