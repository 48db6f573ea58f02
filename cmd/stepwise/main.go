package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/felixgeelhaar/stepwise/internal/infrastructure/cli"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	cli.Version, cli.Commit, cli.Date = version, commit, date
	cli.RootCmd.Version = version

	if err := cli.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		code := 1
		var cliErr *cli.CLIError
		if errors.As(err, &cliErr) {
			if cliErr.Hint != "" {
				fmt.Fprintln(os.Stderr, "Hint:", cliErr.Hint)
			}
			code = cliErr.ExitCode
		}
		os.Exit(code)
	}
}
