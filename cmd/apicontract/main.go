package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/torosent/apicontract/internal/config"
)

// errCasesFailed is returned when the run completed but not every case passed.
var errCasesFailed = errors.New("contract cases failed")

func main() {
	if err := newRootCommand(os.Stdout, os.Stderr).Execute(); err != nil {
		if !errors.Is(err, errCasesFailed) {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
		os.Exit(1)
	}
}

func newRootCommand(stdout, stderr io.Writer) *cobra.Command {
	root := &cobra.Command{
		Use:           "apicontract",
		Short:         "Declarative contract tests for REST APIs",
		SilenceErrors: true,
		SilenceUsage:  true,
	}
	root.SetOut(stdout)
	root.SetErr(stderr)

	root.AddCommand(
		newRunCommand(stdout, stderr),
		newGenerateCommand(stdout),
		newStubCommand(stderr),
		newHistoryCommand(stdout),
	)
	return root
}

func newRunCommand(stdout, stderr io.Writer) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run [flags]",
		Short: "Execute contract cases against a base URL",
		// The config loader owns flag parsing so that flag > file > env
		// precedence is resolved in one place.
		DisableFlagParsing: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.NewLoader().Load(args)
			if err != nil {
				if errors.Is(err, config.ErrHelpRequested) {
					return nil
				}
				return err
			}
			return runCases(cmd.Context(), cfg, stdout, stderr)
		},
	}
	config.RegisterFlags(cmd)
	return cmd
}
