// Command suiterun prepares a test environment and runs a project's test
// suites in order.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/deixis/suiterun/internal/cli"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	err := cli.NewRootCommand().ExecuteContext(ctx)
	stop()

	code := cli.ExitCode(err)
	if err != nil && code == cli.ExitUsage {
		fmt.Fprintf(os.Stderr, "suiterun: %v\n", err)
	}
	os.Exit(code)
}
