package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/vango-dev/filterbind/internal/errors"
)

// Version information set at build time.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	rootCmd := newRootCmd()
	if err := rootCmd.Execute(); err != nil {
		var fe *errors.Error
		if errors.As(err, &fe) {
			fmt.Fprint(os.Stderr, fe.Format())
		} else {
			fmt.Fprintf(os.Stderr, "\033[31mError:\033[0m %s\n", err)
		}
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "filterd",
		Short: "Bind URL query parameters to debounced filter state",
		Long: `filterd keeps search filters in the URL.

Each declared filter owns one query parameter. Typing updates the
filter immediately; after a quiet period the parameter is written to
the URL, the "page" parameter is dropped, and history is pushed or
replaced. Back/forward navigation flows back into the filters.

  filterd serve    run the websocket server
  filterd apply    compute the URL a single filter write produces
  filterd explain  describe an error code`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if noColor, _ := cmd.Flags().GetBool("no-color"); noColor {
				errors.DisableColors()
			} else {
				errors.EnableColors()
			}
		},
	}
	rootCmd.PersistentFlags().Bool("no-color", false, "Disable colored error output")

	rootCmd.AddCommand(
		serveCmd(),
		applyCmd(),
		explainCmd(),
		versionCmd(),
	)
	return rootCmd
}

// success prints a success message.
func success(format string, args ...any) {
	fmt.Printf("\033[32m✓\033[0m %s\n", fmt.Sprintf(format, args...))
}

// info prints an info message.
func info(format string, args ...any) {
	fmt.Printf("  %s\n", fmt.Sprintf(format, args...))
}
