package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/vango-dev/filterbind/internal/errors"
)

func explainCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "explain <code>",
		Short: "Describe an error code",
		Long: `Describe an error code reported by filterd.

Examples:
  filterd explain F011
  filterd explain f003`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			code := strings.ToUpper(strings.TrimSpace(args[0]))
			t, ok := errors.Lookup(code)
			if !ok {
				return errors.New("F020").WithDetailf("unknown error code %q", args[0])
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%s: %s\n", code, t.Message)
			fmt.Fprintf(out, "  category: %s\n", t.Category)
			if t.Detail != "" {
				fmt.Fprintf(out, "  %s\n", t.Detail)
			}
			return nil
		},
	}
}
